package transporthttp

import "github.com/openastro/astrocore/device"

// asT helpers narrow the `any` a devname.Repository resolves to its
// capability interface; every concrete driver device (simmodule's or a
// real one) satisfies these structurally, so no driver-specific import is
// needed here.

func asCcd(dev interface{}) (device.Ccd, bool) {
	d, ok := dev.(device.Ccd)
	return d, ok
}

func asCooler(dev interface{}) (device.Cooler, bool) {
	d, ok := dev.(device.Cooler)
	return d, ok
}

func asFilterWheel(dev interface{}) (device.FilterWheel, bool) {
	d, ok := dev.(device.FilterWheel)
	return d, ok
}

func asFocuser(dev interface{}) (device.Focuser, bool) {
	d, ok := dev.(device.Focuser)
	return d, ok
}

func asGuidePort(dev interface{}) (device.GuidePort, bool) {
	d, ok := dev.(device.GuidePort)
	return d, ok
}

func asAO(dev interface{}) (device.AdaptiveOptics, bool) {
	d, ok := dev.(device.AdaptiveOptics)
	return d, ok
}

func asMount(dev interface{}) (device.Mount, bool) {
	d, ok := dev.(device.Mount)
	return d, ok
}
