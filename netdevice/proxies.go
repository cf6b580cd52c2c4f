package netdevice

import (
	"context"
	"fmt"
	"time"

	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/device"
)

// NetCooler proxies device.Cooler over a Client, implementing spec §4.B's
// Cooler contract by issuing one Invoke RPC per call.
type NetCooler struct {
	name   devname.Name
	client *Client
}

func (c *NetCooler) DeviceName() devname.Name { return c.name }

func (c *NetCooler) SetTemperature(kelvin float64) error {
	_, err := c.client.call(context.Background(), c.name.String(), "setTemperature", map[string]interface{}{"kelvin": kelvin})
	return err
}

func (c *NetCooler) GetSetTemperature() (float64, error) {
	r, err := c.client.call(context.Background(), c.name.String(), "getSetTemperature", nil)
	return asFloat(r["kelvin"]), err
}

func (c *NetCooler) GetActualTemperature() (float64, error) {
	r, err := c.client.call(context.Background(), c.name.String(), "getActualTemperature", nil)
	return asFloat(r["kelvin"]), err
}

func (c *NetCooler) SetOn(on bool) error {
	_, err := c.client.call(context.Background(), c.name.String(), "setOn", map[string]interface{}{"on": on})
	return err
}

func (c *NetCooler) IsOn() (bool, error) {
	r, err := c.client.call(context.Background(), c.name.String(), "isOn", nil)
	b, _ := r["on"].(bool)
	return b, err
}

func (c *NetCooler) Stable() (bool, error) {
	r, err := c.client.call(context.Background(), c.name.String(), "stable", nil)
	b, _ := r["stable"].(bool)
	return b, err
}

func (c *NetCooler) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	r, err := c.client.call(ctx, c.name.String(), "wait", map[string]interface{}{"timeoutSeconds": timeout.Seconds()})
	b, _ := r["stable"].(bool)
	return b, err
}

// NetFilterWheel proxies device.FilterWheel.
type NetFilterWheel struct {
	name   devname.Name
	client *Client
}

func (w *NetFilterWheel) DeviceName() devname.Name { return w.name }

func (w *NetFilterWheel) NFilters() int {
	r, err := w.client.call(context.Background(), w.name.String(), "nFilters", nil)
	if err != nil {
		return 0
	}
	return int(asFloat(r["n"]))
}

func (w *NetFilterWheel) CurrentPosition() (int, error) {
	r, err := w.client.call(context.Background(), w.name.String(), "currentPosition", nil)
	return int(asFloat(r["position"])), err
}

func (w *NetFilterWheel) FilterName(i int) (string, error) {
	r, err := w.client.call(context.Background(), w.name.String(), "filterName", map[string]interface{}{"index": float64(i)})
	s, _ := r["name"].(string)
	return s, err
}

func (w *NetFilterWheel) Select(i int) error {
	_, err := w.client.call(context.Background(), w.name.String(), "select", map[string]interface{}{"index": float64(i)})
	return err
}

func (w *NetFilterWheel) SelectByName(name string) error {
	_, err := w.client.call(context.Background(), w.name.String(), "selectByName", map[string]interface{}{"name": name})
	return err
}

func (w *NetFilterWheel) State() device.FilterWheelState {
	r, err := w.client.call(context.Background(), w.name.String(), "state", nil)
	if err != nil {
		return device.WheelUnknown
	}
	return device.FilterWheelState(int(asFloat(r["state"])))
}

// NetFocuser proxies device.Focuser.
type NetFocuser struct {
	name   devname.Name
	client *Client
}

func (f *NetFocuser) DeviceName() devname.Name { return f.name }

func (f *NetFocuser) call(op string, args map[string]interface{}) map[string]interface{} {
	r, _ := f.client.call(context.Background(), f.name.String(), op, args)
	return r
}

func (f *NetFocuser) Min() float64      { return asFloat(f.call("min", nil)["value"]) }
func (f *NetFocuser) Max() float64      { return asFloat(f.call("max", nil)["value"]) }
func (f *NetFocuser) Backlash() float64 { return asFloat(f.call("backlash", nil)["value"]) }

func (f *NetFocuser) Current() (float64, error) {
	r, err := f.client.call(context.Background(), f.name.String(), "current", nil)
	return asFloat(r["value"]), err
}

func (f *NetFocuser) MoveTo(target float64) error {
	_, err := f.client.call(context.Background(), f.name.String(), "moveTo", map[string]interface{}{"target": target})
	return err
}

// NetGuidePort proxies device.GuidePort.
type NetGuidePort struct {
	name   devname.Name
	client *Client
}

func (p *NetGuidePort) DeviceName() devname.Name { return p.name }

func (p *NetGuidePort) Active() device.GuidePortState {
	r, err := p.client.call(context.Background(), p.name.String(), "active", nil)
	if err != nil {
		return device.GuidePortState{}
	}
	b := func(k string) bool { v, _ := r[k].(bool); return v }
	return device.GuidePortState{
		RAPlus: b("raPlus"), RAMinus: b("raMinus"),
		DecPlus: b("decPlus"), DecMinus: b("decMinus"),
	}
}

func (p *NetGuidePort) Activate(raPlus, raMinus, decPlus, decMinus float64) error {
	_, err := p.client.call(context.Background(), p.name.String(), "activate", map[string]interface{}{
		"raPlus": raPlus, "raMinus": raMinus, "decPlus": decPlus, "decMinus": decMinus,
	})
	return err
}

// NetAdaptiveOptics proxies device.AdaptiveOptics.
type NetAdaptiveOptics struct {
	name   devname.Name
	client *Client
}

func (a *NetAdaptiveOptics) DeviceName() devname.Name { return a.name }

func (a *NetAdaptiveOptics) Set(x, y float64) error {
	_, err := a.client.call(context.Background(), a.name.String(), "set", map[string]interface{}{"x": x, "y": y})
	return err
}

func (a *NetAdaptiveOptics) Get() (float64, float64, error) {
	r, err := a.client.call(context.Background(), a.name.String(), "get", nil)
	return asFloat(r["x"]), asFloat(r["y"]), err
}

func (a *NetAdaptiveOptics) Center() error {
	_, err := a.client.call(context.Background(), a.name.String(), "center", nil)
	return err
}

// NetMount proxies device.Mount.
type NetMount struct {
	name   devname.Name
	client *Client
}

func (m *NetMount) DeviceName() devname.Name { return m.name }

func (m *NetMount) Goto(rd device.RaDec) error {
	_, err := m.client.call(context.Background(), m.name.String(), "goto", map[string]interface{}{"ra": rd.RA, "dec": rd.Dec})
	return err
}

func (m *NetMount) Cancel() error {
	_, err := m.client.call(context.Background(), m.name.String(), "cancel", nil)
	return err
}

func (m *NetMount) State() device.MountState {
	r, err := m.client.call(context.Background(), m.name.String(), "state", nil)
	if err != nil {
		return device.MountIdle
	}
	return device.MountState(int(asFloat(r["state"])))
}

func (m *NetMount) GetRaDec() (device.RaDec, error) {
	r, err := m.client.call(context.Background(), m.name.String(), "getRaDec", nil)
	return device.RaDec{RA: asFloat(r["ra"]), Dec: asFloat(r["dec"])}, err
}

func (m *NetMount) GetAzAlt() (device.AzAlt, error) {
	r, err := m.client.call(context.Background(), m.name.String(), "getAzAlt", nil)
	return device.AzAlt{Az: asFloat(r["az"]), Alt: asFloat(r["alt"])}, err
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

var _ = fmt.Sprintf // keep fmt imported for future error-path formatting
