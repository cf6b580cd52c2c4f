// Package devname implements the hierarchical device identifier and the
// driver module registry/locator described in spec §3 and §4.A.
//
// Go has no dlopen-free story for loading shared driver modules at runtime,
// so the ABI boundary described in spec §6 (two C-linkage entry points per
// module) is reexpressed the way database/sql expresses its driver registry:
// each driver module calls devname.Register from an init() func, and
// Repository.GetModule looks the registration up by name.
package devname

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/openastro/astrocore/xerr"
)

// Type is the device capability tag carried by a DeviceName.
type Type int

// The device types named in spec §3.
const (
	AdaptiveOptics Type = iota
	Camera
	Ccd
	Cooler
	FilterWheel
	Focuser
	GuidePort
	Mount
)

func (t Type) String() string {
	switch t {
	case AdaptiveOptics:
		return "adaptiveoptics"
	case Camera:
		return "camera"
	case Ccd:
		return "ccd"
	case Cooler:
		return "cooler"
	case FilterWheel:
		return "filterwheel"
	case Focuser:
		return "focuser"
	case GuidePort:
		return "guideport"
	case Mount:
		return "mount"
	default:
		return "unknown"
	}
}

// Name is a typed, path-like device identifier.  The first path component is
// the driver module name; the second identifies the physical unit; any
// remaining components sub-address within that unit.
type Name struct {
	Type Type
	Path []string
}

// Equal compares two Names by type and path equality.
func (n Name) Equal(other Name) bool {
	if n.Type != other.Type || len(n.Path) != len(other.Path) {
		return false
	}
	for i := range n.Path {
		if n.Path[i] != other.Path[i] {
			return false
		}
	}
	return true
}

// Parent returns a prefix-truncated Name of type t.  If n has only one path
// component, Parent returns a copy of n with the type changed.
func (n Name) Parent(t Type) Name {
	path := n.Path
	if len(path) > 1 {
		path = path[:len(path)-1]
	}
	cp := make([]string, len(path))
	copy(cp, path)
	return Name{Type: t, Path: cp}
}

// Module returns the first path component, the owning driver module's name.
func (n Name) Module() string {
	if len(n.Path) == 0 {
		return ""
	}
	return n.Path[0]
}

// String renders the name as "type:comp1/comp2/...".
func (n Name) String() string {
	return fmt.Sprintf("%s:%s", n.Type, strings.Join(n.Path, "/"))
}

// Parse is the inverse of String: it parses "type:comp1/comp2/..." back into
// a Name.  Unknown type tags produce an error.
func Parse(s string) (Name, error) {
	typStr, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Name{}, fmt.Errorf("%q: missing type prefix: %w", s, xerr.NotFound)
	}
	t, err := parseType(typStr)
	if err != nil {
		return Name{}, err
	}
	path := strings.Split(rest, "/")
	return Name{Type: t, Path: path}, nil
}

func parseType(s string) (Type, error) {
	switch s {
	case "adaptiveoptics":
		return AdaptiveOptics, nil
	case "camera":
		return Camera, nil
	case "ccd":
		return Ccd, nil
	case "cooler":
		return Cooler, nil
	case "filterwheel":
		return FilterWheel, nil
	case "focuser":
		return Focuser, nil
	case "guideport":
		return GuidePort, nil
	case "mount":
		return Mount, nil
	default:
		return 0, fmt.Errorf("%q: unknown device type: %w", s, xerr.NotFound)
	}
}

// USBIdent holds the fields the spec's USB naming grammar (§6) embeds:
// "BBB-AAA-iproduct-VVVV-PPPP[-serial]".
type USBIdent struct {
	Bus, Addr       int
	Product         string
	VendorID        uint16
	ProductID       uint16
	Serial          string
}

// UnparseUSB renders a USBIdent into the grammar's textual form.
func UnparseUSB(u USBIdent) string {
	s := fmt.Sprintf("%03d-%03d-%s-%04x-%04x", u.Bus, u.Addr, u.Product, u.VendorID, u.ProductID)
	if u.Serial != "" {
		s += "-" + u.Serial
	}
	return s
}

// ParseUSB is the inverse of UnparseUSB.
func ParseUSB(s string) (USBIdent, error) {
	parts := strings.SplitN(s, "-", 5)
	if len(parts) < 4 {
		return USBIdent{}, fmt.Errorf("%q: malformed usb component: %w", s, xerr.NotFound)
	}
	bus, err := strconv.Atoi(parts[0])
	if err != nil {
		return USBIdent{}, fmt.Errorf("%q: bad bus number: %w", s, err)
	}
	addr, err := strconv.Atoi(parts[1])
	if err != nil {
		return USBIdent{}, fmt.Errorf("%q: bad device address: %w", s, err)
	}
	vid, err := strconv.ParseUint(parts[3], 16, 16)
	if err != nil {
		return USBIdent{}, fmt.Errorf("%q: bad vendor id: %w", s, err)
	}
	u := USBIdent{Bus: bus, Addr: addr, Product: parts[2], VendorID: uint16(vid)}
	if len(parts) < 5 {
		return USBIdent{}, fmt.Errorf("%q: missing product id: %w", s, xerr.NotFound)
	}
	// parts[4] may itself contain "PPPP" or "PPPP-serial"
	pidAndSerial := strings.SplitN(parts[4], "-", 2)
	pid, err := strconv.ParseUint(pidAndSerial[0], 16, 16)
	if err != nil {
		return USBIdent{}, fmt.Errorf("%q: bad product id: %w", s, err)
	}
	u.ProductID = uint16(pid)
	if len(pidAndSerial) == 2 {
		u.Serial = pidAndSerial[1]
	}
	return u, nil
}

// Descriptor exposes a module's identity, mirroring spec §4.A's
// ModuleDescriptor.
type Descriptor struct {
	Name             string
	Version          string
	HasDeviceLocator bool
}

// Locator discovers and instantiates devices for a single driver module.
type Locator interface {
	// Devicelist returns the names of all devices of the given type this
	// module can currently see.
	Devicelist(t Type) ([]Name, error)

	// Get instantiates the device named by name.  The concrete return value
	// depends on name.Type; callers type-assert to the capability interface
	// they need (device.Ccd, device.Cooler, etc. in package device).
	Get(name Name) (any, error)
}

// Module is a driver handle: a descriptor plus, optionally, a locator.
type Module interface {
	Descriptor() Descriptor
	Locator() (Locator, error)
}

// Factory builds a fresh Module instance.  Modules register a Factory with
// Register; the Repository memoizes the result of calling it.
type Factory func() (Module, error)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register adds a driver module factory under name.  Meant to be called from
// a driver package's init().  Re-registering the same name overwrites the
// previous factory, which is convenient for tests that install fakes.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Registered returns the sorted list of currently-registered module names.
func Registered() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Repository resolves module names to Module handles, lazily constructing
// and memoizing them.  The zero value is ready to use.
type Repository struct {
	mu      sync.Mutex
	modules map[string]Module
}

// GetModule returns the module registered under name, constructing it on
// first use and memoizing the result thereafter.
func (r *Repository) GetModule(name string) (Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.modules == nil {
		r.modules = map[string]Module{}
	}
	if m, ok := r.modules[name]; ok {
		return m, nil
	}
	registryMu.Lock()
	f, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, xerr.ModuleNotFound)
	}
	m, err := f()
	if err != nil {
		return nil, fmt.Errorf("constructing module %q: %w", name, err)
	}
	r.modules[name] = m
	return m, nil
}

// Get resolves a full Name to a concrete device, deferring to the owning
// module's Locator.  No partial device construction leaks a driver handle:
// if Locator() or Get() fails, nothing is retained.
func (r *Repository) Get(name Name) (any, error) {
	mod, err := r.GetModule(name.Module())
	if err != nil {
		return nil, err
	}
	loc, err := mod.Locator()
	if err != nil {
		return nil, err
	}
	dev, err := loc.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return dev, nil
}
