package netdevice

import (
	"context"
	"fmt"
	"time"

	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/device"
	"github.com/openastro/astrocore/xerr"
)

// RepositoryInvoker adapts one devname.Module, resolved through a
// devname.Repository, into an Invoker: the server-side counterpart to
// Client/Module, bound to a grpc.Server for each locally hosted module
// exposed to peers addressing it as "net:<modulename>". cmd/astrod does
// not start such a server.
type RepositoryInvoker struct {
	Repo       *devname.Repository
	ModuleName string
}

func (s *RepositoryInvoker) Devicelist(ctx context.Context, deviceType string) ([]string, error) {
	t, err := parseTypeTag(deviceType)
	if err != nil {
		return nil, err
	}
	mod, err := s.Repo.GetModule(s.ModuleName)
	if err != nil {
		return nil, err
	}
	loc, err := mod.Locator()
	if err != nil {
		return nil, err
	}
	names, err := loc.Devicelist(t)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return out, nil
}

func (s *RepositoryInvoker) Invoke(ctx context.Context, deviceName string, op string, args map[string]interface{}) (map[string]interface{}, error) {
	name, err := devname.Parse(deviceName)
	if err != nil {
		return nil, err
	}
	dev, err := s.Repo.Get(name)
	if err != nil {
		return nil, err
	}

	switch d := dev.(type) {
	case device.Cooler:
		return invokeCooler(ctx, d, op, args)
	case device.FilterWheel:
		return invokeFilterWheel(d, op, args)
	case device.Focuser:
		return invokeFocuser(d, op, args)
	case device.GuidePort:
		return invokeGuidePort(d, op, args)
	case device.AdaptiveOptics:
		return invokeAO(d, op, args)
	case device.Mount:
		return invokeMount(d, op, args)
	default:
		return nil, fmt.Errorf("%s: %w: unsupported over net proxy", deviceName, xerr.Unsupported)
	}
}

func parseTypeTag(tag string) (devname.Type, error) {
	switch tag {
	case "adaptiveoptics":
		return devname.AdaptiveOptics, nil
	case "camera":
		return devname.Camera, nil
	case "ccd":
		return devname.Ccd, nil
	case "cooler":
		return devname.Cooler, nil
	case "filterwheel":
		return devname.FilterWheel, nil
	case "focuser":
		return devname.Focuser, nil
	case "guideport":
		return devname.GuidePort, nil
	case "mount":
		return devname.Mount, nil
	default:
		return 0, fmt.Errorf("%q: %w", tag, xerr.NotFound)
	}
}

func argFloat(args map[string]interface{}, key string) float64 {
	f, _ := args[key].(float64)
	return f
}

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func argBool(args map[string]interface{}, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func invokeCooler(ctx context.Context, c device.Cooler, op string, args map[string]interface{}) (map[string]interface{}, error) {
	switch op {
	case "setTemperature":
		return nil, c.SetTemperature(argFloat(args, "kelvin"))
	case "getSetTemperature":
		v, err := c.GetSetTemperature()
		return map[string]interface{}{"kelvin": v}, err
	case "getActualTemperature":
		v, err := c.GetActualTemperature()
		return map[string]interface{}{"kelvin": v}, err
	case "setOn":
		return nil, c.SetOn(argBool(args, "on"))
	case "isOn":
		v, err := c.IsOn()
		return map[string]interface{}{"on": v}, err
	case "stable":
		v, err := c.Stable()
		return map[string]interface{}{"stable": v}, err
	case "wait":
		v, err := c.Wait(ctx, time.Duration(argFloat(args, "timeoutSeconds")*float64(time.Second)))
		return map[string]interface{}{"stable": v}, err
	default:
		return nil, fmt.Errorf("cooler: %w: %s", xerr.Unsupported, op)
	}
}

func invokeFilterWheel(w device.FilterWheel, op string, args map[string]interface{}) (map[string]interface{}, error) {
	switch op {
	case "nFilters":
		return map[string]interface{}{"n": float64(w.NFilters())}, nil
	case "currentPosition":
		v, err := w.CurrentPosition()
		return map[string]interface{}{"position": float64(v)}, err
	case "filterName":
		v, err := w.FilterName(int(argFloat(args, "index")))
		return map[string]interface{}{"name": v}, err
	case "select":
		return nil, w.Select(int(argFloat(args, "index")))
	case "selectByName":
		return nil, w.SelectByName(argString(args, "name"))
	case "state":
		return map[string]interface{}{"state": float64(w.State())}, nil
	default:
		return nil, fmt.Errorf("filterwheel: %w: %s", xerr.Unsupported, op)
	}
}

func invokeFocuser(f device.Focuser, op string, args map[string]interface{}) (map[string]interface{}, error) {
	switch op {
	case "min":
		return map[string]interface{}{"value": f.Min()}, nil
	case "max":
		return map[string]interface{}{"value": f.Max()}, nil
	case "backlash":
		return map[string]interface{}{"value": f.Backlash()}, nil
	case "current":
		v, err := f.Current()
		return map[string]interface{}{"value": v}, err
	case "moveTo":
		return nil, f.MoveTo(argFloat(args, "target"))
	default:
		return nil, fmt.Errorf("focuser: %w: %s", xerr.Unsupported, op)
	}
}

func invokeGuidePort(p device.GuidePort, op string, args map[string]interface{}) (map[string]interface{}, error) {
	switch op {
	case "active":
		s := p.Active()
		return map[string]interface{}{
			"raPlus": s.RAPlus, "raMinus": s.RAMinus,
			"decPlus": s.DecPlus, "decMinus": s.DecMinus,
		}, nil
	case "activate":
		return nil, p.Activate(argFloat(args, "raPlus"), argFloat(args, "raMinus"), argFloat(args, "decPlus"), argFloat(args, "decMinus"))
	default:
		return nil, fmt.Errorf("guideport: %w: %s", xerr.Unsupported, op)
	}
}

func invokeAO(a device.AdaptiveOptics, op string, args map[string]interface{}) (map[string]interface{}, error) {
	switch op {
	case "set":
		return nil, a.Set(argFloat(args, "x"), argFloat(args, "y"))
	case "get":
		x, y, err := a.Get()
		return map[string]interface{}{"x": x, "y": y}, err
	case "center":
		return nil, a.Center()
	default:
		return nil, fmt.Errorf("ao: %w: %s", xerr.Unsupported, op)
	}
}

func invokeMount(m device.Mount, op string, args map[string]interface{}) (map[string]interface{}, error) {
	switch op {
	case "goto":
		return nil, m.Goto(device.RaDec{RA: argFloat(args, "ra"), Dec: argFloat(args, "dec")})
	case "cancel":
		return nil, m.Cancel()
	case "state":
		return map[string]interface{}{"state": float64(m.State())}, nil
	case "getRaDec":
		rd, err := m.GetRaDec()
		return map[string]interface{}{"ra": rd.RA, "dec": rd.Dec}, err
	case "getAzAlt":
		aa, err := m.GetAzAlt()
		return map[string]interface{}{"az": aa.Az, "alt": aa.Alt}, err
	default:
		return nil, fmt.Errorf("mount: %w: %s", xerr.Unsupported, op)
	}
}
