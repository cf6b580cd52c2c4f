package image

import (
	"context"
	"fmt"
	"sync"
)

// Exposer is the minimal Ccd surface Stream needs.  Any device.Ccd satisfies
// this structurally.
type Exposer interface {
	StartExposure(Exposure) error
	Wait(ctx context.Context) error
	GetImage() (*Image, error)
	CancelExposure() error
}

// Sink receives push-delivered images, matching device.ImageSink
// structurally.
type Sink interface {
	Deliver(QueueEntry)
}

// Stream runs the dedicated worker goroutine of spec §4.C: loop{ start
// exposure -> wait -> read image -> deliver-or-queue }.  One Stream exists
// per active streaming Ccd.
type Stream struct {
	ccd Exposer

	mu    sync.Mutex
	sink  Sink
	queue *Queue
	seq   uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStream returns a Stream over ccd with a bounded drop-oldest queue used
// when no sink is registered.
func NewStream(ccd Exposer, maxQueueLen int) *Stream {
	return &Stream{ccd: ccd, queue: NewQueue(maxQueueLen)}
}

// RegisterSink installs sink as the push-delivery target.  Passing nil
// reverts to queue-based pull delivery.
func (s *Stream) RegisterSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Queue returns the underlying bounded queue (used for pull-based retrieval
// when no sink is registered).
func (s *Stream) Queue() *Queue {
	return s.queue
}

// Start launches the worker goroutine.  It returns once the goroutine has
// been spawned; streaming continues until Stop is called or ctx is done.
func (s *Stream) Start(ctx context.Context, exp Exposure) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, exp)
}

func (s *Stream) run(ctx context.Context, exp Exposure) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.ccd.StartExposure(exp); err != nil {
			return
		}
		if err := s.ccd.Wait(ctx); err != nil {
			_ = s.ccd.CancelExposure()
			return
		}
		select {
		case <-ctx.Done():
			_ = s.ccd.CancelExposure()
			return
		default:
		}
		img, err := s.ccd.GetImage()
		if err != nil {
			continue
		}
		s.seq++
		entry := QueueEntry{Exposure: exp, Image: img, Sequence: s.seq}

		s.mu.Lock()
		sink := s.sink
		s.mu.Unlock()
		if sink != nil {
			sink.Deliver(entry)
		} else {
			s.queue.Push(entry)
		}
	}
}

// Stop cancels the in-flight exposure, joins the worker, and preserves any
// pending queue entries (spec §4.C).
func (s *Stream) Stop() error {
	if s.cancel == nil {
		return fmt.Errorf("stream not started")
	}
	s.cancel()
	<-s.done
	return nil
}
