package persist

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/openastro/astrocore/guiding"
	"github.com/openastro/astrocore/xerr"
)

// StoredCalibration is a guiding.Calibration plus the identity/timestamp
// fields spec §3 attaches to a persisted calibration row (guider identity,
// timestamp).
type StoredCalibration struct {
	ID        int64
	Guider    string
	CreatedAt time.Time
	guiding.Calibration
}

type calibrationAdapter struct{}

func (calibrationAdapter) TableName() string      { return "calibrations" }
func (calibrationAdapter) CreateStatement() string { return "" }

var calibrationColumns = []string{
	"control_type", "guider", "created_at", "focal_length", "pixel_size_um",
	"a0", "a1", "a2", "a3", "a4", "a5",
}

func (calibrationAdapter) Columns() []string { return calibrationColumns }

func (calibrationAdapter) Values(c *StoredCalibration) []any {
	return []any{
		int(c.ControlType), c.Guider, c.CreatedAt.Unix(), c.FocalLength, c.PixelSizeUm,
		c.A[0], c.A[1], c.A[2], c.A[3], c.A[4], c.A[5],
	}
}

func (calibrationAdapter) Scan(row *sql.Rows) (*StoredCalibration, error) {
	c := &StoredCalibration{}
	var controlType int
	var createdAt int64
	err := row.Scan(&c.ID, &controlType, &c.Guider, &createdAt, &c.FocalLength, &c.PixelSizeUm,
		&c.A[0], &c.A[1], &c.A[2], &c.A[3], &c.A[4], &c.A[5])
	if err != nil {
		return nil, err
	}
	c.ControlType = guiding.ControlType(controlType)
	c.CreatedAt = time.Unix(createdAt, 0)
	return c, nil
}

type calibrationPointRow struct {
	ID            int64
	CalibrationID int64
	Seq           int
	guiding.CalibrationPoint
}

type calibrationPointAdapter struct{}

func (calibrationPointAdapter) TableName() string      { return "calibration_points" }
func (calibrationPointAdapter) CreateStatement() string { return "" }

var calibrationPointColumns = []string{"calibration_id", "seq", "t", "commanded_x", "commanded_y", "observed_x", "observed_y"}

func (calibrationPointAdapter) Columns() []string { return calibrationPointColumns }

func (calibrationPointAdapter) Values(p *calibrationPointRow) []any {
	return []any{p.CalibrationID, p.Seq, p.T, p.Commanded.X, p.Commanded.Y, p.Observed.X, p.Observed.Y}
}

func (calibrationPointAdapter) Scan(row *sql.Rows) (*calibrationPointRow, error) {
	p := &calibrationPointRow{}
	err := row.Scan(&p.ID, &p.CalibrationID, &p.Seq, &p.T, &p.Commanded.X, &p.Commanded.Y, &p.Observed.X, &p.Observed.Y)
	return p, err
}

// CalibrationTable persists guiding.Calibration rows and their ordered
// CalibrationPoints, with cascade delete of points on calibration removal
// (spec §4.G's CalibrationTable + CalibrationPointTable pair).
type CalibrationTable struct {
	calibrations *Table[*StoredCalibration]
	points       *Table[*calibrationPointRow]
}

func NewCalibrationTable(db *sql.DB) (*CalibrationTable, error) {
	cals, err := NewTable[*StoredCalibration](db, calibrationAdapter{})
	if err != nil {
		return nil, err
	}
	pts, err := NewTable[*calibrationPointRow](db, calibrationPointAdapter{})
	if err != nil {
		return nil, err
	}
	return &CalibrationTable{calibrations: cals, points: pts}, nil
}

// Add persists cal (and its Points in order) under guider's identity,
// returning the new row's id.
func (ct *CalibrationTable) Add(guider string, createdAt time.Time, cal guiding.Calibration) (int64, error) {
	stored := &StoredCalibration{Guider: guider, CreatedAt: createdAt, Calibration: cal}
	id, err := ct.calibrations.Add(stored)
	if err != nil {
		return 0, err
	}
	for i, p := range cal.Points {
		row := &calibrationPointRow{CalibrationID: id, Seq: i, CalibrationPoint: p}
		if _, err := ct.points.Add(row); err != nil {
			return 0, fmt.Errorf("%w: storing calibration point %d: %v", xerr.BadDatabase, i, err)
		}
	}
	return id, nil
}

// Get reconstructs a StoredCalibration with its ordered Points.
func (ct *CalibrationTable) Get(id int64) (*StoredCalibration, error) {
	stored, err := ct.calibrations.ByID(id)
	if err != nil {
		return nil, err
	}
	rows, err := ct.points.SelectRows("calibration_id = ? ORDER BY seq ASC", id)
	if err != nil {
		return nil, err
	}
	stored.Points = make([]guiding.CalibrationPoint, len(rows))
	for i, r := range rows {
		stored.Points[i] = r.CalibrationPoint
	}
	return stored, nil
}

// Remove deletes the calibration row and cascades to its points (the
// foreign key is declared ON DELETE CASCADE in the migration; this removes
// the points explicitly too so callers on a sqlite build without foreign
// keys enabled still get correct cleanup).
func (ct *CalibrationTable) Remove(id int64) error {
	if _, err := ct.points.RemoveWhere("calibration_id = ?", id); err != nil {
		return err
	}
	return ct.calibrations.Remove(id)
}

// ForGuider lists every calibration id stored for guider, most recent first.
func (ct *CalibrationTable) ForGuider(guider string) ([]int64, error) {
	return ct.calibrations.SelectIDs("guider = ? ORDER BY id DESC", guider)
}
