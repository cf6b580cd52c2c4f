package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/openastro/astrocore/device"
)

func TestCoolerBaseGuardRails(t *testing.T) {
	c := device.NewCoolerBase(func() (float64, error) { return 0, nil })

	if err := c.SetTemperature(-1); err == nil {
		t.Fatal("expected error for negative temperature")
	}
	if err := c.SetTemperature(351); err == nil {
		t.Fatal("expected error for temperature above 350K")
	}
	if err := c.SetTemperature(0); err == nil {
		t.Fatal("expected error for 0K, the lower guard rail is inclusive")
	}
	if err := c.SetTemperature(350); err == nil {
		t.Fatal("expected error for 350K, the upper guard rail is inclusive")
	}
	if err := c.SetTemperature(200); err != nil {
		t.Fatalf("SetTemperature(200) = %v, want nil", err)
	}
	got, err := c.GetSetTemperature()
	if err != nil || got != 200 {
		t.Fatalf("GetSetTemperature() = %v, %v; want 200, nil", got, err)
	}
}

func TestCoolerBaseStableOffWithoutReading(t *testing.T) {
	c := device.NewCoolerBase(func() (float64, error) { return 0, nil })
	stable, err := c.Stable()
	if err != nil || !stable {
		t.Fatalf("Stable() = %v, %v; want true, nil when off", stable, err)
	}
}

func TestCoolerBaseStableWithinThreshold(t *testing.T) {
	actual := 199.0
	c := device.NewCoolerBase(func() (float64, error) { return actual, nil })
	must(t, c.SetTemperature(200))
	must(t, c.SetOn(true))

	stable, err := c.Stable()
	if err != nil || !stable {
		t.Fatalf("Stable() = %v, %v; want true, nil within threshold", stable, err)
	}

	actual = 150.0
	stable, err = c.Stable()
	if err != nil || stable {
		t.Fatalf("Stable() = %v, %v; want false, nil far from setpoint", stable, err)
	}
}

func TestCoolerBaseWaitTimesOutWhenNeverStable(t *testing.T) {
	c := device.NewCoolerBase(func() (float64, error) { return 100, nil })
	must(t, c.SetTemperature(200))
	must(t, c.SetOn(true))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	stable, err := c.Wait(ctx, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if stable {
		t.Fatal("Wait() reported stable, want timeout (false)")
	}
}
