package device

import (
	"sync"
	"time"
)

// pulse channel indices
const (
	chRAPlus = iota
	chRAMinus
	chDecPlus
	chDecMinus
	numPulseChannels
)

// OnPulseChange is called by PulseIntegrator whenever a physical channel
// should be turned on or off.  Drivers implement this to toggle whatever
// relay/TTL line backs the channel.
type OnPulseChange func(channel int, on bool)

// PulseIntegrator implements the GuidePort pulse-integration thread of spec
// §4.B/§5: it holds a 4-vector of remaining-on deadlines, sleeps until the
// earliest deadline or a new Activate call arrives, and calls onChange to
// start/stop the driver's physical output accordingly.  Activate requests
// are additive: a request for a channel only ever extends its deadline, it
// never shortens an in-flight pulse, matching "integrates overlapping pulse
// requests" in spec §4.B.
//
// Embed a PulseIntegrator in a driver's GuidePort type the way the teacher
// embeds comm.RemoteDevice in hardware-facing types.
type PulseIntegrator struct {
	mu        sync.Mutex
	deadlines [numPulseChannels]time.Time
	onChange  OnPulseChange

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewPulseIntegrator starts the integrator's background goroutine.  Call
// Close when the owning device is finalized.
func NewPulseIntegrator(onChange OnPulseChange) *PulseIntegrator {
	p := &PulseIntegrator{
		onChange: onChange,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Activate clamps each non-zero duration to [0, MaxPulseSeconds] and
// extends that channel's remaining-on deadline to at least now+duration.
// A zero duration leaves the corresponding channel untouched.
func (p *PulseIntegrator) Activate(raPlus, raMinus, decPlus, decMinus float64) error {
	durs := [numPulseChannels]float64{raPlus, raMinus, decPlus, decMinus}
	now := time.Now()

	p.mu.Lock()
	for i, d := range durs {
		if d <= 0 {
			continue
		}
		if d > MaxPulseSeconds {
			d = MaxPulseSeconds
		}
		candidate := now.Add(time.Duration(d * float64(time.Second)))
		if candidate.After(p.deadlines[i]) {
			p.deadlines[i] = candidate
		}
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Active returns the current on/off state of all four channels, computed
// directly from the deadlines so it always agrees with "remaining-on time
// > 0" (spec §8 invariant 4), independent of goroutine scheduling.
func (p *PulseIntegrator) Active() GuidePortState {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	return GuidePortState{
		RAPlus:   now.Before(p.deadlines[chRAPlus]),
		RAMinus:  now.Before(p.deadlines[chRAMinus]),
		DecPlus:  now.Before(p.deadlines[chDecPlus]),
		DecMinus: now.Before(p.deadlines[chDecMinus]),
	}
}

// Close stops the background goroutine.
func (p *PulseIntegrator) Close() {
	close(p.stop)
	<-p.done
}

func (p *PulseIntegrator) run() {
	defer close(p.done)
	var wasOn [numPulseChannels]bool

	for {
		now := time.Now()
		p.mu.Lock()
		earliest := time.Time{}
		for i := 0; i < numPulseChannels; i++ {
			on := now.Before(p.deadlines[i])
			if on != wasOn[i] {
				p.onChange(i, on)
				wasOn[i] = on
			}
			if on {
				if earliest.IsZero() || p.deadlines[i].Before(earliest) {
					earliest = p.deadlines[i]
				}
			}
		}
		p.mu.Unlock()

		var timer *time.Timer
		var timerC <-chan time.Time
		if !earliest.IsZero() {
			d := earliest.Sub(now)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-p.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-p.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
		}
	}
}
