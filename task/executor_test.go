package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/openastro/astrocore/device"
	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/instrument"
	"github.com/openastro/astrocore/task"
)

func TestExecutorRunSavesImageOnSuccess(t *testing.T) {
	camName := devname.Name{Type: devname.Camera, Path: []string{"sim", "0"}}
	ccd := &execFakeCcd{name: devname.Name{Type: devname.Ccd, Path: []string{"sim", "0"}}, img: image.NewImage(4, 3, image.U16)}
	cam := execFakeCamera{name: camName, ccd: ccd}

	store := newMemStore()
	id, err := store.Add(&task.TaskQueueEntry{
		Params: task.TaskParameters{
			Refs:     task.DeviceRefs{Instrument: "main", CameraIndex: 0, CcdIndex: 0, CoolerIndex: -1, FilterWheelIndex: -1, MountIndex: -1, FocuserIndex: -1},
			Exposure: image.Exposure{ExposureTime: time.Millisecond},
		},
		State: task.Pending,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	entry, _ := store.ByID(id)

	var savedRepo string
	ex := &task.Executor{
		Resolver:   execFakeResolver{devices: map[string]any{camName.String(): cam}},
		Instrument: instrument.Instrument{Name: "main", Cameras: []devname.Name{camName}},
		Store:      store,
		SaveImage: func(img *image.Image, repository string) (string, error) {
			savedRepo = repository
			return "0001abcd.fits", nil
		},
	}
	entry.Params.RepositoryName = "default"

	if err := ex.Run(context.Background(), entry); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if entry.State != task.Complete {
		t.Fatalf("State = %v, want Complete", entry.State)
	}
	if entry.Filename != "0001abcd.fits" {
		t.Fatalf("Filename = %q, want 0001abcd.fits", entry.Filename)
	}
	if savedRepo != "default" {
		t.Fatalf("SaveImage repository = %q, want %q", savedRepo, "default")
	}

	persisted, err := store.ByID(id)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if persisted.State != task.Complete {
		t.Fatalf("persisted State = %v, want Complete", persisted.State)
	}
}

func TestExecutorRunFailsWithoutConfiguredCamera(t *testing.T) {
	store := newMemStore()
	id, _ := store.Add(&task.TaskQueueEntry{
		Params: task.TaskParameters{Refs: task.DeviceRefs{Instrument: "main", CameraIndex: 0, CoolerIndex: -1, FilterWheelIndex: -1, MountIndex: -1, FocuserIndex: -1}},
		State:  task.Pending,
	})
	entry, _ := store.ByID(id)

	ex := &task.Executor{
		Resolver:   execFakeResolver{devices: map[string]any{}},
		Instrument: instrument.Instrument{Name: "main"}, // no cameras configured
		Store:      store,
	}

	if err := ex.Run(context.Background(), entry); err == nil {
		t.Fatal("expected an error when the instrument has no camera at index 0")
	}
	if entry.State != task.Failed {
		t.Fatalf("State = %v, want Failed", entry.State)
	}
	if entry.Cause == "" {
		t.Fatal("expected a non-empty Cause on failure")
	}
}

func TestExecutorRunFailsOnStartExposureError(t *testing.T) {
	camName := devname.Name{Type: devname.Camera, Path: []string{"sim", "0"}}
	ccd := &execFakeCcd{name: devname.Name{Type: devname.Ccd, Path: []string{"sim", "0"}}, startErr: errBoomExec}
	cam := execFakeCamera{name: camName, ccd: ccd}

	store := newMemStore()
	id, _ := store.Add(&task.TaskQueueEntry{
		Params: task.TaskParameters{Refs: task.DeviceRefs{Instrument: "main", CameraIndex: 0, CoolerIndex: -1, FilterWheelIndex: -1, MountIndex: -1, FocuserIndex: -1}},
		State:  task.Pending,
	})
	entry, _ := store.ByID(id)

	ex := &task.Executor{
		Resolver:   execFakeResolver{devices: map[string]any{camName.String(): cam}},
		Instrument: instrument.Instrument{Name: "main", Cameras: []devname.Name{camName}},
		Store:      store,
	}

	if err := ex.Run(context.Background(), entry); err == nil {
		t.Fatal("expected an error from a failing StartExposure")
	}
	if entry.State != task.Failed {
		t.Fatalf("State = %v, want Failed", entry.State)
	}
}

func TestExecutorRunReportsCancellation(t *testing.T) {
	camName := devname.Name{Type: devname.Camera, Path: []string{"sim", "0"}}
	ccd := &execFakeCcd{name: devname.Name{Type: devname.Ccd, Path: []string{"sim", "0"}}, waitErr: context.DeadlineExceeded}
	cam := execFakeCamera{name: camName, ccd: ccd}

	store := newMemStore()
	id, _ := store.Add(&task.TaskQueueEntry{
		Params: task.TaskParameters{
			Refs:     task.DeviceRefs{Instrument: "main", CameraIndex: 0, CoolerIndex: -1, FilterWheelIndex: -1, MountIndex: -1, FocuserIndex: -1},
			Exposure: image.Exposure{ExposureTime: time.Hour},
		},
		State: task.Pending,
	})
	entry, _ := store.ByID(id)

	ex := &task.Executor{
		Resolver:   execFakeResolver{devices: map[string]any{camName.String(): cam}},
		Instrument: instrument.Instrument{Name: "main", Cameras: []devname.Name{camName}},
		Store:      store,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Run reports cancellation via entry.State, not necessarily via its
	// return value: the scheduler (Queue.spawn) discards Run's error.
	_ = ex.Run(ctx, entry)
	if entry.State != task.Cancelled {
		t.Fatalf("State = %v, want Cancelled", entry.State)
	}
}

func TestExecutorRunAttachesMountRaDecMetadata(t *testing.T) {
	camName := devname.Name{Type: devname.Camera, Path: []string{"sim", "0"}}
	mountName := devname.Name{Type: devname.Mount, Path: []string{"sim", "0"}}
	ccd := &execFakeCcd{name: devname.Name{Type: devname.Ccd, Path: []string{"sim", "0"}}, img: image.NewImage(4, 3, image.U16)}
	cam := execFakeCamera{name: camName, ccd: ccd}
	mount := &execFakeMount{name: mountName, radec: device.RaDec{RA: 10.5, Dec: -20.25}}

	store := newMemStore()
	id, _ := store.Add(&task.TaskQueueEntry{
		Params: task.TaskParameters{
			Refs:     task.DeviceRefs{Instrument: "main", CameraIndex: 0, CcdIndex: 0, CoolerIndex: -1, FilterWheelIndex: -1, MountIndex: 0, FocuserIndex: -1},
			Exposure: image.Exposure{ExposureTime: time.Millisecond},
		},
		State: task.Pending,
	})
	entry, _ := store.ByID(id)

	ex := &task.Executor{
		Resolver: execFakeResolver{devices: map[string]any{
			camName.String():   cam,
			mountName.String(): mount,
		}},
		Instrument: instrument.Instrument{Name: "main", Cameras: []devname.Name{camName}, Mounts: []devname.Name{mountName}},
		Store:      store,
		SaveImage:  func(img *image.Image, repository string) (string, error) { return "out.fits", nil },
	}

	if err := ex.Run(context.Background(), entry); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	ra, ok := ccd.img.Metadata.Get("RA")
	if !ok || ra.Value != 10.5 {
		t.Fatalf("RA card = %+v, %v; want 10.5, true", ra, ok)
	}
	dec, ok := ccd.img.Metadata.Get("DEC")
	if !ok || dec.Value != -20.25 {
		t.Fatalf("DEC card = %+v, %v; want -20.25, true", dec, ok)
	}
}

func TestExecutorRunSelectsFilterAndWaitsForIdle(t *testing.T) {
	camName := devname.Name{Type: devname.Camera, Path: []string{"sim", "0"}}
	wheelName := devname.Name{Type: devname.FilterWheel, Path: []string{"sim", "0"}}
	ccd := &execFakeCcd{name: devname.Name{Type: devname.Ccd, Path: []string{"sim", "0"}}, img: image.NewImage(4, 3, image.U16)}
	cam := execFakeCamera{name: camName, ccd: ccd}
	wheel := &execFakeWheel{name: wheelName}

	store := newMemStore()
	id, _ := store.Add(&task.TaskQueueEntry{
		Params: task.TaskParameters{
			Refs:           task.DeviceRefs{Instrument: "main", CameraIndex: 0, CcdIndex: 0, CoolerIndex: -1, FilterWheelIndex: 0, MountIndex: -1, FocuserIndex: -1},
			Exposure:       image.Exposure{ExposureTime: time.Millisecond},
			FilterPosition: 1,
		},
		State: task.Pending,
	})
	entry, _ := store.ByID(id)

	ex := &task.Executor{
		Resolver: execFakeResolver{devices: map[string]any{
			camName.String():   cam,
			wheelName.String(): wheel,
		}},
		Instrument: instrument.Instrument{Name: "main", Cameras: []devname.Name{camName}, FilterWheels: []devname.Name{wheelName}},
		Store:      store,
		SaveImage:  func(img *image.Image, repository string) (string, error) { return "out.fits", nil },
	}

	if err := ex.Run(context.Background(), entry); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if wheel.selected != 1 {
		t.Fatalf("wheel.selected = %d, want 1", wheel.selected)
	}
	card, ok := ccd.img.Metadata.Get("FILTER")
	if !ok || card.Value != "RED" {
		t.Fatalf("FILTER card = %+v, %v; want RED, true", card, ok)
	}
}

func TestExecutorRunFailsWhenFilterWheelNeverReachesIdleAfterSelect(t *testing.T) {
	camName := devname.Name{Type: devname.Camera, Path: []string{"sim", "0"}}
	wheelName := devname.Name{Type: devname.FilterWheel, Path: []string{"sim", "0"}}
	ccd := &execFakeCcd{name: devname.Name{Type: devname.Ccd, Path: []string{"sim", "0"}}, img: image.NewImage(4, 3, image.U16)}
	cam := execFakeCamera{name: camName, ccd: ccd}
	wheel := &execFakeWheel{name: wheelName, stuck: true}

	store := newMemStore()
	id, _ := store.Add(&task.TaskQueueEntry{
		Params: task.TaskParameters{
			Refs:           task.DeviceRefs{Instrument: "main", CameraIndex: 0, CcdIndex: 0, CoolerIndex: -1, FilterWheelIndex: 0, MountIndex: -1, FocuserIndex: -1},
			Exposure:       image.Exposure{ExposureTime: time.Millisecond},
			FilterPosition: 1,
		},
		State: task.Pending,
	})
	entry, _ := store.ByID(id)

	ex := &task.Executor{
		Resolver: execFakeResolver{devices: map[string]any{
			camName.String():   cam,
			wheelName.String(): wheel,
		}},
		Instrument: instrument.Instrument{Name: "main", Cameras: []devname.Name{camName}, FilterWheels: []devname.Name{wheelName}},
		Store:      store,
		SaveImage:  func(img *image.Image, repository string) (string, error) { return "out.fits", nil },
	}

	if err := ex.Run(context.Background(), entry); err == nil {
		t.Fatal("expected an error when the filter wheel never settles to IDLE after Select")
	}
	if entry.State != task.Failed {
		t.Fatalf("State = %v, want Failed", entry.State)
	}
}

var errBoomExec = &boomExecError{}

type boomExecError struct{}

func (*boomExecError) Error() string { return "boom" }
