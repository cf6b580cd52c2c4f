package device

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openastro/astrocore/xerr"
)

// ActualTemperature is implemented by a driver's hardware-facing type to
// report the measured focal-plane temperature; CoolerBase calls back into
// it for Stable/Wait without knowing how the reading is obtained.
type ActualTemperature func() (float64, error)

// CoolerBase implements the guard rails, stability check, and blocking wait
// shared by every Cooler driver, grounded on the original Cooler::stable/
// Cooler::wait (control/lib/device/Cooler.cpp): a cooler is "stable" once
// |actual-set| falls under a threshold, and Wait polls once a second up to
// a timeout.  Embed it in a driver's Cooler type; the driver only needs to
// supply the actual-temperature reading and the on/off relay.
type CoolerBase struct {
	name      string
	actual    ActualTemperature
	set       float64
	on        bool
	threshold float64
}

// NewCoolerBase returns a CoolerBase reading its actual temperature through
// actual, with the default stability threshold (spec §4.B).
func NewCoolerBase(actual ActualTemperature) *CoolerBase {
	return &CoolerBase{actual: actual, set: 25, threshold: DefaultStableThreshold}
}

// SetThreshold overrides the default stability band.
func (c *CoolerBase) SetThreshold(kelvin float64) {
	if kelvin <= 0 {
		kelvin = DefaultStableThreshold
	}
	c.threshold = kelvin
}

// SetTemperature validates the guard rails (0K < T < 350K, both bounds
// exclusive) before recording the new set point.
func (c *CoolerBase) SetTemperature(kelvin float64) error {
	if kelvin <= MinKelvin {
		return fmt.Errorf("%w: negative absolute temperature", xerr.BadState)
	}
	if kelvin >= MaxKelvin {
		return fmt.Errorf("%w: temperature too large, that's a heater", xerr.BadState)
	}
	c.set = kelvin
	return nil
}

// GetSetTemperature returns the last validated set point.
func (c *CoolerBase) GetSetTemperature() (float64, error) {
	return c.set, nil
}

// GetActualTemperature delegates to the driver's reading function.
func (c *CoolerBase) GetActualTemperature() (float64, error) {
	if c.actual == nil {
		return 0, fmt.Errorf("%w: no temperature sensor", xerr.DeviceFailure)
	}
	return c.actual()
}

// SetOn records the on/off state; the driver still owns the physical relay.
func (c *CoolerBase) SetOn(on bool) error {
	c.on = on
	return nil
}

// IsOn reports the recorded on/off state.
func (c *CoolerBase) IsOn() (bool, error) {
	return c.on, nil
}

// Stable reports true when the cooler is off (nothing to stabilize) or when
// the actual temperature is within threshold of the set point.
func (c *CoolerBase) Stable() (bool, error) {
	if !c.on {
		return true, nil
	}
	actual, err := c.GetActualTemperature()
	if err != nil {
		return false, err
	}
	return math.Abs(actual-c.set) < c.threshold, nil
}

// Wait polls Stable once a second until it returns true or timeout elapses.
func (c *CoolerBase) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		stable, err := c.Stable()
		if err != nil {
			return false, err
		}
		if stable {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
