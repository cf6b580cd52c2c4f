package guiding_test

import (
	"context"

	"github.com/openastro/astrocore/image"
)

// fakeCcd is a minimal image.Exposer that hands back a pre-set image on
// every exposure, with no simulated timing.
type fakeCcd struct {
	img     *image.Image
	exposed int
}

func (c *fakeCcd) StartExposure(image.Exposure) error { c.exposed++; return nil }
func (c *fakeCcd) Wait(ctx context.Context) error      { return nil }
func (c *fakeCcd) GetImage() (*image.Image, error)     { return c.img, nil }
func (c *fakeCcd) CancelExposure() error               { return nil }

// fakeActuator records every Pulse call it receives.
type fakeActuator struct {
	calls []pulseCall
	err   error
}

type pulseCall struct {
	raPlus, raMinus, decPlus, decMinus float64
}

func (a *fakeActuator) Pulse(raPlus, raMinus, decPlus, decMinus float64) error {
	a.calls = append(a.calls, pulseCall{raPlus, raMinus, decPlus, decMinus})
	return a.err
}

// fakeClock advances only when explicitly told to, so calibration tests run
// instantly and deterministically.
type fakeClock struct {
	t float64
}

func (c *fakeClock) Now() float64 { return c.t }
func (c *fakeClock) Sleep(seconds float64) {
	c.t += seconds
}
