package persist

import (
	"database/sql"
	"time"

	"github.com/openastro/astrocore/guiding"
)

// trackingRun groups an append-only sequence of guiding.TrackingPoints under
// one guiding run (spec §3: "Lifetime: appended append-only during a
// guiding run").
type trackingRun struct {
	ID            int64
	Guider        string
	CalibrationID int64
	StartedAt     time.Time
}

type trackingRunAdapter struct{}

func (trackingRunAdapter) TableName() string      { return "tracking_runs" }
func (trackingRunAdapter) CreateStatement() string { return "" }
func (trackingRunAdapter) Columns() []string       { return []string{"guider", "calibration_id", "started_at"} }

func (trackingRunAdapter) Values(r *trackingRun) []any {
	return []any{r.Guider, r.CalibrationID, r.StartedAt.Unix()}
}

func (trackingRunAdapter) Scan(row *sql.Rows) (*trackingRun, error) {
	r := &trackingRun{}
	var startedAt int64
	if err := row.Scan(&r.ID, &r.Guider, &r.CalibrationID, &startedAt); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(startedAt, 0)
	return r, nil
}

type trackingPointRow struct {
	ID    int64
	RunID int64
	Seq   int
	T     time.Time
	guiding.TrackingPoint
}

type trackingPointAdapter struct{}

func (trackingPointAdapter) TableName() string      { return "tracking_points" }
func (trackingPointAdapter) CreateStatement() string { return "" }
func (trackingPointAdapter) Columns() []string {
	return []string{"tracking_run_id", "seq", "t", "offset_x", "offset_y", "ra_seconds", "dec_seconds", "exposure_failed"}
}

func (trackingPointAdapter) Values(p *trackingPointRow) []any {
	return []any{p.RunID, p.Seq, p.T.Unix(), p.Offset.X, p.Offset.Y, p.RASeconds, p.DecSeconds, p.ExposureFailed}
}

func (trackingPointAdapter) Scan(row *sql.Rows) (*trackingPointRow, error) {
	p := &trackingPointRow{}
	var t int64
	if err := row.Scan(&p.ID, &p.RunID, &p.Seq, &t, &p.Offset.X, &p.Offset.Y, &p.RASeconds, &p.DecSeconds, &p.ExposureFailed); err != nil {
		return nil, err
	}
	p.T = time.Unix(t, 0)
	return p, nil
}

// TrackingTable persists guiding runs and their append-only TrackingPoint
// history (spec §4.G's TrackingTable + TrackingPointTable pair).
type TrackingTable struct {
	runs   *Table[*trackingRun]
	points *Table[*trackingPointRow]
}

func NewTrackingTable(db *sql.DB) (*TrackingTable, error) {
	runs, err := NewTable[*trackingRun](db, trackingRunAdapter{})
	if err != nil {
		return nil, err
	}
	pts, err := NewTable[*trackingPointRow](db, trackingPointAdapter{})
	if err != nil {
		return nil, err
	}
	return &TrackingTable{runs: runs, points: pts}, nil
}

// StartRun begins a new append-only tracking run for guider against
// calibrationID, returning the run's id.
func (tt *TrackingTable) StartRun(guider string, calibrationID int64, startedAt time.Time) (int64, error) {
	return tt.runs.Add(&trackingRun{Guider: guider, CalibrationID: calibrationID, StartedAt: startedAt})
}

// Append records one TrackingPoint at the end of runID's history.  seq is
// derived from the current count so points stay timestamp/sequence ordered
// even under concurrent appends to different runs.
func (tt *TrackingTable) Append(runID int64, at time.Time, tp guiding.TrackingPoint) error {
	n, err := tt.points.Count("tracking_run_id = ?", runID)
	if err != nil {
		return err
	}
	row := &trackingPointRow{RunID: runID, Seq: int(n), T: at, TrackingPoint: tp}
	_, err = tt.points.Add(row)
	return err
}

// History returns runID's TrackingPoints in append order.
func (tt *TrackingTable) History(runID int64) ([]guiding.TrackingPoint, error) {
	rows, err := tt.points.SelectRows("tracking_run_id = ? ORDER BY seq ASC", runID)
	if err != nil {
		return nil, err
	}
	out := make([]guiding.TrackingPoint, len(rows))
	for i, r := range rows {
		out[i] = r.TrackingPoint
	}
	return out, nil
}
