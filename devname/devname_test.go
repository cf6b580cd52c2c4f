package devname_test

import (
	"errors"
	"testing"

	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/xerr"
)

func TestNameStringParseRoundTrip(t *testing.T) {
	n := devname.Name{Type: devname.Ccd, Path: []string{"andor", "0"}}
	s := n.String()
	if s != "ccd:andor/0" {
		t.Fatalf("String() = %q, want %q", s, "ccd:andor/0")
	}
	got, err := devname.Parse(s)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !got.Equal(n) {
		t.Fatalf("Parse(String()) = %+v, want %+v", got, n)
	}
}

func TestParseRejectsMissingTypePrefix(t *testing.T) {
	if _, err := devname.Parse("andor/0"); !errors.Is(err, xerr.NotFound) {
		t.Fatalf("error = %v, want xerr.NotFound", err)
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	if _, err := devname.Parse("spectrograph:andor/0"); !errors.Is(err, xerr.NotFound) {
		t.Fatalf("error = %v, want xerr.NotFound", err)
	}
}

func TestNameModuleAndParent(t *testing.T) {
	n := devname.Name{Type: devname.Ccd, Path: []string{"andor", "0"}}
	if got := n.Module(); got != "andor" {
		t.Fatalf("Module() = %q, want %q", got, "andor")
	}
	parent := n.Parent(devname.Camera)
	want := devname.Name{Type: devname.Camera, Path: []string{"andor"}}
	if !parent.Equal(want) {
		t.Fatalf("Parent() = %+v, want %+v", parent, want)
	}

	single := devname.Name{Type: devname.Ccd, Path: []string{"andor"}}
	if got := single.Parent(devname.Camera); !got.Equal(devname.Name{Type: devname.Camera, Path: []string{"andor"}}) {
		t.Fatalf("single-component Parent() = %+v, want a type-only rename", got)
	}
}

func TestUSBIdentRoundTrip(t *testing.T) {
	u := devname.USBIdent{Bus: 2, Addr: 14, Product: "andor", VendorID: 0x1234, ProductID: 0xabcd, Serial: "SN1"}
	s := devname.UnparseUSB(u)
	got, err := devname.ParseUSB(s)
	if err != nil {
		t.Fatalf("ParseUSB() error = %v", err)
	}
	if got != u {
		t.Fatalf("ParseUSB(UnparseUSB(u)) = %+v, want %+v", got, u)
	}
}

func TestUSBIdentRoundTripWithoutSerial(t *testing.T) {
	u := devname.USBIdent{Bus: 1, Addr: 3, Product: "fw", VendorID: 0x0403, ProductID: 0x6001}
	got, err := devname.ParseUSB(devname.UnparseUSB(u))
	if err != nil {
		t.Fatalf("ParseUSB() error = %v", err)
	}
	if got != u {
		t.Fatalf("ParseUSB(UnparseUSB(u)) = %+v, want %+v", got, u)
	}
}

type stubLocator struct {
	devices map[string]any
}

func (l stubLocator) Devicelist(t devname.Type) ([]devname.Name, error) { return nil, nil }

func (l stubLocator) Get(name devname.Name) (any, error) {
	d, ok := l.devices[name.String()]
	if !ok {
		return nil, xerr.NotFound
	}
	return d, nil
}

type stubModule struct {
	desc         devname.Descriptor
	loc          devname.Locator
	constructErr error
	constructed  int
}

func TestRepositoryGetModuleMemoizes(t *testing.T) {
	calls := 0
	devname.Register("stubtest", func() (devname.Module, error) {
		calls++
		return stubModule{desc: devname.Descriptor{Name: "stubtest"}, loc: stubLocator{}}, nil
	})

	repo := &devname.Repository{}
	m1, err := repo.GetModule("stubtest")
	if err != nil {
		t.Fatalf("GetModule() error = %v", err)
	}
	m2, err := repo.GetModule("stubtest")
	if err != nil {
		t.Fatalf("GetModule() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("factory called %d times, want 1 (GetModule should memoize)", calls)
	}
	if m1.Descriptor() != m2.Descriptor() {
		t.Fatal("GetModule should return the same module on repeat calls")
	}
}

func TestRepositoryGetModuleUnknownName(t *testing.T) {
	repo := &devname.Repository{}
	if _, err := repo.GetModule("does-not-exist"); !errors.Is(err, xerr.ModuleNotFound) {
		t.Fatalf("error = %v, want xerr.ModuleNotFound", err)
	}
}

func TestRepositoryGetResolvesThroughLocator(t *testing.T) {
	dev := "a fake ccd handle"
	devname.Register("stubccd", func() (devname.Module, error) {
		return stubModule{
			desc: devname.Descriptor{Name: "stubccd"},
			loc:  stubLocator{devices: map[string]any{"ccd:stubccd/0": dev}},
		}, nil
	})

	repo := &devname.Repository{}
	name := devname.Name{Type: devname.Ccd, Path: []string{"stubccd", "0"}}
	got, err := repo.Get(name)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != dev {
		t.Fatalf("Get() = %v, want %v", got, dev)
	}
}

func TestRepositoryGetPropagatesLocatorNotFound(t *testing.T) {
	devname.Register("stubempty", func() (devname.Module, error) {
		return stubModule{desc: devname.Descriptor{Name: "stubempty"}, loc: stubLocator{}}, nil
	})

	repo := &devname.Repository{}
	name := devname.Name{Type: devname.Ccd, Path: []string{"stubempty", "0"}}
	if _, err := repo.Get(name); !errors.Is(err, xerr.NotFound) {
		t.Fatalf("error = %v, want xerr.NotFound", err)
	}
}

func (m stubModule) Descriptor() devname.Descriptor { return m.desc }
func (m stubModule) Locator() (devname.Locator, error) {
	if m.constructErr != nil {
		return nil, m.constructErr
	}
	return m.loc, nil
}

func TestRegisteredListsRegisteredNames(t *testing.T) {
	devname.Register("zzz-registered-test", func() (devname.Module, error) { return nil, nil })
	names := devname.Registered()
	found := false
	for _, n := range names {
		if n == "zzz-registered-test" {
			found = true
		}
	}
	if !found {
		t.Fatal("Registered() did not include a name just registered")
	}
}
