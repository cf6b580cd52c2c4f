package image_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openastro/astrocore/image"
)

var errNoImage = errors.New("no image queued")

// stepCcd is an image.Exposer whose Wait blocks until the test sends on
// proceed (or ctx is cancelled), letting a test single-step a Stream's
// worker loop.
type stepCcd struct {
	mu      sync.Mutex
	imgs    []*image.Image
	i       int
	proceed chan struct{}
	starts  int
	startErr error
}

func (c *stepCcd) StartExposure(image.Exposure) error {
	c.mu.Lock()
	c.starts++
	err := c.startErr
	c.mu.Unlock()
	return err
}

func (c *stepCcd) Wait(ctx context.Context) error {
	select {
	case <-c.proceed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *stepCcd) GetImage() (*image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.i >= len(c.imgs) {
		return nil, errNoImage
	}
	img := c.imgs[c.i]
	c.i++
	return img, nil
}

func (c *stepCcd) CancelExposure() error { return nil }

type recordingSink struct {
	mu      sync.Mutex
	entries []image.QueueEntry
}

func (s *recordingSink) Deliver(e image.QueueEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func waitForLen(t *testing.T, n func() int, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for n() < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for count %d, have %d", want, n())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamDeliversToSinkInSequence(t *testing.T) {
	img1 := image.NewImage(1, 1, image.U16)
	img2 := image.NewImage(1, 1, image.U16)
	ccd := &stepCcd{imgs: []*image.Image{img1, img2}, proceed: make(chan struct{}, 4)}
	sink := &recordingSink{}

	s := image.NewStream(ccd, 4)
	s.RegisterSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, image.Exposure{})

	ccd.proceed <- struct{}{}
	waitForLen(t, sink.len, 1, 2*time.Second)
	ccd.proceed <- struct{}{}
	waitForLen(t, sink.len, 2, 2*time.Second)

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(sink.entries))
	}
	if sink.entries[0].Sequence != 1 || sink.entries[1].Sequence != 2 {
		t.Fatalf("sequences = %d, %d; want 1, 2", sink.entries[0].Sequence, sink.entries[1].Sequence)
	}
	if sink.entries[0].Image != img1 || sink.entries[1].Image != img2 {
		t.Fatal("delivered images do not match the order the ccd produced them in")
	}
}

func TestStreamQueuesWhenNoSinkRegistered(t *testing.T) {
	img1 := image.NewImage(1, 1, image.U16)
	ccd := &stepCcd{imgs: []*image.Image{img1}, proceed: make(chan struct{}, 4)}

	s := image.NewStream(ccd, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, image.Exposure{})

	ccd.proceed <- struct{}{}
	deadline := time.Now().Add(2 * time.Second)
	for s.Queue().Len() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the queue to receive an entry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	e, ok := s.Queue().Pop()
	if !ok || e.Image != img1 {
		t.Fatalf("Pop() = %+v, %v; want the queued image", e, ok)
	}
}

func TestStreamStopWithoutStartErrors(t *testing.T) {
	s := image.NewStream(&stepCcd{proceed: make(chan struct{})}, 4)
	if err := s.Stop(); err == nil {
		t.Fatal("expected an error stopping a stream that was never started")
	}
}

func TestStreamStopsWhenStartExposureFails(t *testing.T) {
	ccd := &stepCcd{proceed: make(chan struct{}), startErr: errors.New("camera offline")}
	s := image.NewStream(ccd, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, image.Exposure{})

	// the worker loop exits on its own when StartExposure fails; Stop must
	// still join it cleanly.
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
