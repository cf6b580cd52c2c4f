// Package instrument implements spec §3's Instrument: a named bundle of
// device references (by index, per component type) resolved through a
// devname.Repository into concrete devices.
package instrument

import "github.com/openastro/astrocore/devname"

// Instrument is a named collection of device references treated as a unit
// by clients (spec §6's GLOSSARY "Instrument" entry).  Each slice is
// indexed by the component index used in task.DeviceRefs /
// task.TaskParameters.
type Instrument struct {
	Name           string
	Cameras        []devname.Name
	Ccds           []devname.Name
	Coolers        []devname.Name
	FilterWheels   []devname.Name
	Mounts         []devname.Name
	Focusers       []devname.Name
	GuidePorts     []devname.Name
	AdaptiveOptics []devname.Name
}

// at returns names[i] and whether i is a valid, non-negative index.
func at(names []devname.Name, i int) (devname.Name, bool) {
	if i < 0 || i >= len(names) {
		return devname.Name{}, false
	}
	return names[i], true
}

func (in Instrument) Camera(i int) (devname.Name, bool)      { return at(in.Cameras, i) }
func (in Instrument) Ccd(i int) (devname.Name, bool)         { return at(in.Ccds, i) }
func (in Instrument) Cooler(i int) (devname.Name, bool)      { return at(in.Coolers, i) }
func (in Instrument) FilterWheel(i int) (devname.Name, bool) { return at(in.FilterWheels, i) }
func (in Instrument) Mount(i int) (devname.Name, bool)       { return at(in.Mounts, i) }
func (in Instrument) Focuser(i int) (devname.Name, bool)     { return at(in.Focusers, i) }
func (in Instrument) GuidePort(i int) (devname.Name, bool)   { return at(in.GuidePorts, i) }
func (in Instrument) AO(i int) (devname.Name, bool)          { return at(in.AdaptiveOptics, i) }

// Registry holds named Instruments, looked up by clients before submitting
// tasks or starting a guider.
type Registry struct {
	byName map[string]Instrument
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Instrument{}}
}

func (r *Registry) Put(in Instrument) {
	r.byName[in.Name] = in
}

func (r *Registry) Get(name string) (Instrument, bool) {
	in, ok := r.byName[name]
	return in, ok
}
