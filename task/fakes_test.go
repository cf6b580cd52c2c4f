package task_test

import (
	"context"
	"sort"
	"sync"

	"github.com/openastro/astrocore/device"
	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/task"
	"github.com/openastro/astrocore/xerr"
)

// memStore is a minimal in-memory task.Store for exercising the queue and
// executor without a real database.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*task.TaskQueueEntry
}

func newMemStore() *memStore {
	return &memStore{rows: map[int64]*task.TaskQueueEntry{}}
}

func (s *memStore) Add(e *task.TaskQueueEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	cp := *e
	s.rows[e.ID] = &cp
	return e.ID, nil
}

func (s *memStore) Update(e *task.TaskQueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[e.ID]; !ok {
		return xerr.NotFound
	}
	cp := *e
	s.rows[e.ID] = &cp
	return nil
}

func (s *memStore) ByID(id int64) (*task.TaskQueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return nil, xerr.NotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memStore) byState(want task.State) ([]*task.TaskQueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []*task.TaskQueueEntry
	for _, id := range ids {
		e := s.rows[id]
		if e.State == want {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) PendingInSubmissionOrder() ([]*task.TaskQueueEntry, error) {
	return s.byState(task.Pending)
}

func (s *memStore) Executing() ([]*task.TaskQueueEntry, error) {
	return s.byState(task.Executing)
}

// execFakeCcd is a minimal device.Ccd for the executor's acquire/expose/save
// bracket.
type execFakeCcd struct {
	name     devname.Name
	img      *image.Image
	startErr error
	waitErr  error
	getErr   error
}

func (c *execFakeCcd) DeviceName() devname.Name             { return c.name }
func (c *execFakeCcd) Info() image.CcdInfo                  { return image.CcdInfo{} }
func (c *execFakeCcd) StartExposure(image.Exposure) error   { return c.startErr }
func (c *execFakeCcd) ExposureStatus() device.ExposureState { return device.Idle }
func (c *execFakeCcd) Wait(ctx context.Context) error       { return c.waitErr }
func (c *execFakeCcd) GetImage() (*image.Image, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.img, nil
}
func (c *execFakeCcd) CancelExposure() error             { return nil }
func (c *execFakeCcd) StartStream(image.Exposure) error  { return nil }
func (c *execFakeCcd) StopStream() error                 { return nil }
func (c *execFakeCcd) RegisterSink(device.ImageSink)     {}

type execFakeCamera struct {
	name devname.Name
	ccd  device.Ccd
}

func (c execFakeCamera) DeviceName() devname.Name        { return c.name }
func (c execFakeCamera) NCcds() int                      { return 1 }
func (c execFakeCamera) GetCcd(id int) (device.Ccd, error) { return c.ccd, nil }

// execFakeWheel is a minimal device.FilterWheel whose State can be scripted
// to stay WheelMoving after Select, for exercising the executor's
// wait-for-IDLE gate.
type execFakeWheel struct {
	name       devname.Name
	selectErr  error
	stuck      bool
	selected   int
}

func (w *execFakeWheel) DeviceName() devname.Name { return w.name }
func (w *execFakeWheel) NFilters() int             { return 2 }
func (w *execFakeWheel) CurrentPosition() (int, error) { return w.selected, nil }
func (w *execFakeWheel) FilterName(i int) (string, error) {
	return [...]string{"NONE", "RED"}[i], nil
}
func (w *execFakeWheel) Select(i int) error {
	if w.selectErr != nil {
		return w.selectErr
	}
	w.selected = i
	return nil
}
func (w *execFakeWheel) SelectByName(name string) error { return nil }
func (w *execFakeWheel) State() device.FilterWheelState {
	if w.stuck {
		return device.WheelMoving
	}
	return device.WheelIdle
}

// execFakeMount is a minimal device.Mount reporting a fixed RA/Dec.
type execFakeMount struct {
	name  devname.Name
	radec device.RaDec
}

func (m *execFakeMount) DeviceName() devname.Name       { return m.name }
func (m *execFakeMount) Goto(device.RaDec) error        { return nil }
func (m *execFakeMount) Cancel() error                  { return nil }
func (m *execFakeMount) State() device.MountState       { return device.MountTracking }
func (m *execFakeMount) GetRaDec() (device.RaDec, error) { return m.radec, nil }
func (m *execFakeMount) GetAzAlt() (device.AzAlt, error) { return device.AzAlt{}, nil }

// execFakeResolver resolves devname.Name.String() to a pre-registered
// device, standing in for *devname.Repository.
type execFakeResolver struct {
	devices map[string]any
}

func (r execFakeResolver) Get(name devname.Name) (any, error) {
	d, ok := r.devices[name.String()]
	if !ok {
		return nil, xerr.NotFound
	}
	return d, nil
}
