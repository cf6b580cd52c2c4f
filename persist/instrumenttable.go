package persist

import (
	"database/sql"

	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/instrument"
)

type instrumentRow struct {
	ID   int64
	Name string
}

type instrumentAdapter struct{}

func (instrumentAdapter) TableName() string       { return "instruments" }
func (instrumentAdapter) CreateStatement() string  { return "" }
func (instrumentAdapter) Columns() []string        { return []string{"name"} }
func (instrumentAdapter) Values(r *instrumentRow) []any { return []any{r.Name} }
func (instrumentAdapter) Scan(row *sql.Rows) (*instrumentRow, error) {
	r := &instrumentRow{}
	err := row.Scan(&r.ID, &r.Name)
	return r, err
}

type componentRow struct {
	ID           int64
	InstrumentID int64
	Kind         string
	Index        int
	DeviceName   string
}

type componentAdapter struct{}

func (componentAdapter) TableName() string      { return "instrument_components" }
func (componentAdapter) CreateStatement() string { return "" }
func (componentAdapter) Columns() []string {
	return []string{"instrument_id", "kind", "idx", "device_name"}
}
func (componentAdapter) Values(r *componentRow) []any {
	return []any{r.InstrumentID, r.Kind, r.Index, r.DeviceName}
}
func (componentAdapter) Scan(row *sql.Rows) (*componentRow, error) {
	r := &componentRow{}
	err := row.Scan(&r.ID, &r.InstrumentID, &r.Kind, &r.Index, &r.DeviceName)
	return r, err
}

// componentKinds lists the device-reference slots an Instrument carries, in
// the order instrument.Instrument declares its fields.
var componentKinds = []string{"camera", "ccd", "cooler", "filterwheel", "mount", "focuser", "guideport", "ao"}

func componentSlice(in *instrument.Instrument, kind string) *[]devname.Name {
	switch kind {
	case "camera":
		return &in.Cameras
	case "ccd":
		return &in.Ccds
	case "cooler":
		return &in.Coolers
	case "filterwheel":
		return &in.FilterWheels
	case "mount":
		return &in.Mounts
	case "focuser":
		return &in.Focusers
	case "guideport":
		return &in.GuidePorts
	case "ao":
		return &in.AdaptiveOptics
	default:
		return nil
	}
}

// InstrumentTable persists instrument.Instrument bundles (spec §4.G's
// InstrumentTable + InstrumentComponentTable pair): one row per instrument,
// one row per device reference, cascade-deleted with their instrument.
type InstrumentTable struct {
	instruments *Table[*instrumentRow]
	components  *Table[*componentRow]
}

func NewInstrumentTable(db *sql.DB) (*InstrumentTable, error) {
	instruments, err := NewTable[*instrumentRow](db, instrumentAdapter{})
	if err != nil {
		return nil, err
	}
	components, err := NewTable[*componentRow](db, componentAdapter{})
	if err != nil {
		return nil, err
	}
	return &InstrumentTable{instruments: instruments, components: components}, nil
}

// Put inserts or replaces the instrument named in.Name.
func (it *InstrumentTable) Put(in instrument.Instrument) error {
	id, ok, err := it.instruments.ID("name = ?", in.Name)
	if err != nil {
		return err
	}
	if ok {
		if _, err := it.components.RemoveWhere("instrument_id = ?", id); err != nil {
			return err
		}
	} else {
		id, err = it.instruments.Add(&instrumentRow{Name: in.Name})
		if err != nil {
			return err
		}
	}
	for _, kind := range componentKinds {
		names := *componentSlice(&in, kind)
		for i, n := range names {
			row := &componentRow{InstrumentID: id, Kind: kind, Index: i, DeviceName: n.String()}
			if _, err := it.components.Add(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get reconstructs the instrument named name.
func (it *InstrumentTable) Get(name string) (instrument.Instrument, bool, error) {
	id, ok, err := it.instruments.ID("name = ?", name)
	if err != nil || !ok {
		return instrument.Instrument{}, false, err
	}
	in := instrument.Instrument{Name: name}
	rows, err := it.components.SelectRows("instrument_id = ? ORDER BY kind, idx ASC", id)
	if err != nil {
		return instrument.Instrument{}, false, err
	}
	for _, r := range rows {
		n, err := devname.Parse(r.DeviceName)
		if err != nil {
			return instrument.Instrument{}, false, err
		}
		slice := componentSlice(&in, r.Kind)
		*slice = append(*slice, n)
	}
	return in, true, nil
}

// Remove deletes the instrument named name and its components.
func (it *InstrumentTable) Remove(name string) error {
	id, ok, err := it.instruments.ID("name = ?", name)
	if err != nil || !ok {
		return err
	}
	if _, err := it.components.RemoveWhere("instrument_id = ?", id); err != nil {
		return err
	}
	return it.instruments.Remove(id)
}
