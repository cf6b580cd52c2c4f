package persist

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/task"
)

// taskAdapter implements Adapter[*task.TaskQueueEntry], grounded on spec
// §6's "Task queue persistence" column list: every exposure field, every
// device selector field, state as an integer, lastchange as a unix
// timestamp, and the result fields.
type taskAdapter struct{}

func (taskAdapter) TableName() string { return "tasks" }

func (taskAdapter) CreateStatement() string {
	return `` // table is created by the migration; NewTable's CREATE TABLE IF NOT EXISTS is a no-op here.
}

var taskColumns = []string{
	"instrument", "camera_index", "ccd_index", "cooler_index", "filterwheel_index",
	"mount_index", "focuser_index",
	"frame_left", "frame_top", "frame_width", "frame_height",
	"bin_h", "bin_v", "exposure_time_ms", "gain", "vmax", "shutter", "purpose",
	"ccd_temperature", "filter_position", "repository_name",
	"state", "last_change", "cause", "filename", "result_width", "result_height",
}

func (taskAdapter) Columns() []string { return taskColumns }

func (taskAdapter) Values(e *task.TaskQueueEntry) []any {
	p := e.Params
	return []any{
		p.Refs.Instrument, p.Refs.CameraIndex, p.Refs.CcdIndex, p.Refs.CoolerIndex, p.Refs.FilterWheelIndex,
		p.Refs.MountIndex, p.Refs.FocuserIndex,
		p.Exposure.Frame.Left, p.Exposure.Frame.Top, p.Exposure.Frame.Width, p.Exposure.Frame.Height,
		p.Exposure.Binning.H, p.Exposure.Binning.V, p.Exposure.ExposureTime.Milliseconds(),
		p.Exposure.Gain, p.Exposure.VMax, int(p.Exposure.Shutter), int(p.Exposure.Purpose),
		p.CcdTemperature, p.FilterPosition, p.RepositoryName,
		int(e.State), e.LastChange.Unix(), e.Cause, e.Filename, e.Frame.Width, e.Frame.Height,
	}
}

func (taskAdapter) Scan(row *sql.Rows) (*task.TaskQueueEntry, error) {
	e := &task.TaskQueueEntry{}
	var (
		shutter, purpose, state int
		lastChange              int64
		expMS                   int64
	)
	err := row.Scan(
		&e.ID,
		&e.Params.Refs.Instrument, &e.Params.Refs.CameraIndex, &e.Params.Refs.CcdIndex, &e.Params.Refs.CoolerIndex,
		&e.Params.Refs.FilterWheelIndex, &e.Params.Refs.MountIndex, &e.Params.Refs.FocuserIndex,
		&e.Params.Exposure.Frame.Left, &e.Params.Exposure.Frame.Top, &e.Params.Exposure.Frame.Width, &e.Params.Exposure.Frame.Height,
		&e.Params.Exposure.Binning.H, &e.Params.Exposure.Binning.V, &expMS,
		&e.Params.Exposure.Gain, &e.Params.Exposure.VMax, &shutter, &purpose,
		&e.Params.CcdTemperature, &e.Params.FilterPosition, &e.Params.RepositoryName,
		&state, &lastChange, &e.Cause, &e.Filename, &e.Frame.Width, &e.Frame.Height,
	)
	if err != nil {
		return nil, err
	}
	e.Params.Exposure.ExposureTime = time.Duration(expMS) * time.Millisecond
	e.Params.Exposure.Shutter = image.ShutterState(shutter)
	e.Params.Exposure.Purpose = image.Purpose(purpose)
	e.State = task.State(state)
	e.LastChange = time.Unix(lastChange, 0)
	return e, nil
}

// TaskTable is the concrete task.Store backed by the "tasks" table (spec
// §4.G, §6).
type TaskTable struct {
	t *Table[*task.TaskQueueEntry]
}

// NewTaskTable binds a TaskTable to db's "tasks" table (created by the
// embedded migration).
func NewTaskTable(db *sql.DB) (*TaskTable, error) {
	t, err := NewTable[*task.TaskQueueEntry](db, taskAdapter{})
	if err != nil {
		return nil, err
	}
	return &TaskTable{t: t}, nil
}

var _ task.Store = (*TaskTable)(nil)

func (tt *TaskTable) Add(e *task.TaskQueueEntry) (int64, error) {
	id, err := tt.t.Add(e)
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

func (tt *TaskTable) Update(e *task.TaskQueueEntry) error {
	return tt.t.Update(e.ID, e)
}

func (tt *TaskTable) ByID(id int64) (*task.TaskQueueEntry, error) {
	return tt.t.ByID(id)
}

func (tt *TaskTable) Remove(id int64) error {
	return tt.t.Remove(id)
}

func (tt *TaskTable) PendingInSubmissionOrder() ([]*task.TaskQueueEntry, error) {
	rows, err := tt.t.SelectRows(fmt.Sprintf("state = %d ORDER BY id ASC", int(task.Pending)))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (tt *TaskTable) Executing() ([]*task.TaskQueueEntry, error) {
	return tt.t.SelectRows(fmt.Sprintf("state = %d", int(task.Executing)))
}
