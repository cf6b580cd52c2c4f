package persist_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/guiding"
	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/instrument"
	"github.com/openastro/astrocore/persist"
	"github.com/openastro/astrocore/task"
)

func openTestDB(t *testing.T) *persist.DB {
	t.Helper()
	db, err := persist.Open(filepath.Join(t.TempDir(), "astrocore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTaskTableRoundTrip(t *testing.T) {
	db := openTestDB(t)
	tt, err := persist.NewTaskTable(db.DB)
	require.NoError(t, err)

	entry := &task.TaskQueueEntry{
		Params: task.TaskParameters{
			Refs: task.DeviceRefs{Instrument: "scope1", CameraIndex: 0, CcdIndex: 0, CoolerIndex: -1, FilterWheelIndex: -1, MountIndex: -1, FocuserIndex: -1},
			Exposure: image.Exposure{
				Frame:        image.Rect{Width: 100, Height: 100},
				Binning:      image.BinMode{H: 1, V: 1},
				ExposureTime: 5 * time.Second,
				Purpose:      image.Light,
			},
			FilterPosition: -1,
			RepositoryName: "default",
		},
		State:      task.Pending,
		LastChange: time.Now().Truncate(time.Second),
	}
	id, err := tt.Add(entry)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := tt.ByID(id)
	require.NoError(t, err)
	require.Equal(t, entry.Params.Refs.Instrument, got.Params.Refs.Instrument)
	require.Equal(t, entry.Params.Exposure.ExposureTime, got.Params.Exposure.ExposureTime)
	require.Equal(t, task.Pending, got.State)

	got.State = task.Complete
	got.Filename = "00000001.fits"
	require.NoError(t, tt.Update(got))

	pending, err := tt.PendingInSubmissionOrder()
	require.NoError(t, err)
	require.Empty(t, pending)

	reread, err := tt.ByID(id)
	require.NoError(t, err)
	require.Equal(t, task.Complete, reread.State)
	require.Equal(t, "00000001.fits", reread.Filename)
}

func TestCalibrationTableRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ct, err := persist.NewCalibrationTable(db.DB)
	require.NoError(t, err)

	cal := guiding.Calibration{
		A:           [6]float64{0.5, 0, 0, 0, 0.5, 0},
		ControlType: guiding.GuidePortControl,
		FocalLength: 1200,
		PixelSizeUm: 5.4,
		Points: []guiding.CalibrationPoint{
			{T: 0, Commanded: guiding.Point{X: 1, Y: 0}, Observed: guiding.Point{X: 0.5, Y: 0}},
			{T: 1, Commanded: guiding.Point{X: 0, Y: 1}, Observed: guiding.Point{X: 0, Y: 0.5}},
		},
	}
	id, err := ct.Add("guider1", time.Now(), cal)
	require.NoError(t, err)

	got, err := ct.Get(id)
	require.NoError(t, err)
	require.Equal(t, "guider1", got.Guider)
	require.Len(t, got.Points, 2)
	require.InDelta(t, 0.5, got.A[0], 1e-9)

	ids, err := ct.ForGuider("guider1")
	require.NoError(t, err)
	require.Contains(t, ids, id)

	require.NoError(t, ct.Remove(id))
	_, err = ct.Get(id)
	require.Error(t, err)
}

func TestTrackingTableAppendOnly(t *testing.T) {
	db := openTestDB(t)
	ct, err := persist.NewCalibrationTable(db.DB)
	require.NoError(t, err)
	calID, err := ct.Add("guider1", time.Now(), guiding.Calibration{A: [6]float64{1, 0, 0, 0, 1, 0}})
	require.NoError(t, err)

	tt, err := persist.NewTrackingTable(db.DB)
	require.NoError(t, err)
	runID, err := tt.StartRun("guider1", calID, time.Now())
	require.NoError(t, err)

	require.NoError(t, tt.Append(runID, time.Now(), guiding.TrackingPoint{Offset: guiding.Point{X: 1, Y: 2}, RASeconds: 0.1}))
	require.NoError(t, tt.Append(runID, time.Now(), guiding.TrackingPoint{Offset: guiding.Point{X: 1.1, Y: 2.1}, RASeconds: 0.2}))

	hist, err := tt.History(runID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, 0.1, hist[0].RASeconds)
	require.Equal(t, 0.2, hist[1].RASeconds)
}

func TestInstrumentTableRoundTrip(t *testing.T) {
	db := openTestDB(t)
	it, err := persist.NewInstrumentTable(db.DB)
	require.NoError(t, err)

	in := instrument.Instrument{
		Name:    "scope1",
		Cameras: []devname.Name{{Type: devname.Camera, Path: []string{"sim", "cam0"}}},
		Ccds:    []devname.Name{{Type: devname.Ccd, Path: []string{"sim", "cam0", "Imaging"}}},
	}
	require.NoError(t, it.Put(in))

	got, ok, err := it.Get("scope1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Cameras, 1)
	require.Equal(t, in.Ccds[0], got.Ccds[0])

	require.NoError(t, it.Remove("scope1"))
	_, ok, err = it.Get("scope1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGlobalConfigTableReadThrough(t *testing.T) {
	db := openTestDB(t)
	cfg, err := persist.NewGlobalConfigTable(db.DB)
	require.NoError(t, err)

	_, err = cfg.Get("astrod", "guiding", "interval")
	require.Error(t, err)

	require.NoError(t, cfg.Set("astrod", "guiding", "interval", "10"))
	v, err := cfg.Get("astrod", "guiding", "interval")
	require.NoError(t, err)
	require.Equal(t, "10", v)

	require.NoError(t, cfg.Set("astrod", "guiding", "interval", "15"))
	v, err = cfg.Get("astrod", "guiding", "interval")
	require.NoError(t, err)
	require.Equal(t, "15", v)
}
