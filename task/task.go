// Package task implements the task queue and executor of spec §4.E:
// submit/cancel/query/remove over a persisted store, a scheduler thread
// arbitrating device conflicts, and per-task executors that bracket
// resource acquisition/release around an exposure.
package task

import (
	"time"

	"github.com/openastro/astrocore/image"
)

// State is a TaskQueueEntry's lifecycle state, monotone once terminal
// (spec §4.E persistence invariants).
type State int

const (
	Pending State = iota
	Executing
	Complete
	Cancelled
	Failed
)

func (s State) String() string {
	return [...]string{"PENDING", "EXECUTING", "COMPLETE", "CANCELLED", "FAILED"}[s]
}

// Terminal reports whether s is one of COMPLETE/CANCELLED/FAILED, after
// which a task is never re-executed.
func (s State) Terminal() bool {
	return s == Complete || s == Cancelled || s == Failed
}

// DeviceRefs names the device indices an instrument binds a task to; two
// tasks block each other iff they share any non-empty reference under the
// same instrument (spec §3's TaskQueueEntry.blocks definition).
type DeviceRefs struct {
	Instrument  string
	CameraIndex int
	CcdIndex    int
	// CoolerIndex, FilterWheelIndex, MountIndex, FocuserIndex are -1 when
	// the task does not use that device.
	CoolerIndex      int
	FilterWheelIndex int
	MountIndex       int
	FocuserIndex     int
}

// blocks reports whether d and other share any device reference under the
// same instrument.  -1 is the "no reference" sentinel for optional slots.
func (d DeviceRefs) blocks(other DeviceRefs) bool {
	if d.Instrument != other.Instrument {
		return false
	}
	share := func(a, b int) bool { return a >= 0 && a == b }
	return share(d.CameraIndex, other.CameraIndex) ||
		share(d.CcdIndex, other.CcdIndex) ||
		share(d.CoolerIndex, other.CoolerIndex) ||
		share(d.FilterWheelIndex, other.FilterWheelIndex) ||
		share(d.MountIndex, other.MountIndex) ||
		share(d.FocuserIndex, other.FocuserIndex)
}

// TaskParameters is the submission payload of spec §4.E's submit contract.
type TaskParameters struct {
	Refs             DeviceRefs
	Exposure         image.Exposure
	CcdTemperature   float64 // <= 0 means "no cooler requested"
	FilterPosition   int     // < 0 means "no filter wheel requested"
	RepositoryName   string
}

// TaskQueueEntry is a persisted task record (spec §3).
type TaskQueueEntry struct {
	ID         int64
	Params     TaskParameters
	State      State
	LastChange time.Time
	Cause      string

	// Populated on COMPLETE.
	Filename string
	Frame    image.Rect
}

// Blocks implements spec §3's symmetric blocks relation: T1.blocks(T2) iff
// T2.blocks(T1), since both directions reduce to DeviceRefs.blocks, which is
// itself symmetric by construction (shared reference is a symmetric test).
func (e *TaskQueueEntry) Blocks(other *TaskQueueEntry) bool {
	return e.Params.Refs.blocks(other.Params.Refs)
}
