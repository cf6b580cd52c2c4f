// Package config loads the daemon's configuration the way the teacher's
// cmd/multiserver does (a YAML file decoded into a typed Config struct),
// generalized to the layered loader the teacher's own go.mod already
// carries but never wires into multiserver: github.com/knadh/koanf, with
// struct-tag defaults, a YAML file overlay, and an environment-variable
// overlay (ASTROD_ prefixed, "__" as the nesting separator), in that
// precedence order, read-through with no hidden cache (spec §6's
// Configuration contract: "no in-memory cache that hides external
// writes" — reloading re-reads every source from scratch).
package config

import (
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// InstrumentConfig names, per physical component type, the devname.Name
// strings (spec §3 Name.String() form, e.g. "ccd:sim/0/Imaging") an
// instrument bundles (spec §6 GLOSSARY "Instrument"). Parsed into a
// concrete instrument.Instrument by cmd/astrod at startup.
type InstrumentConfig struct {
	Cameras        []string `koanf:"cameras" yaml:"Cameras"`
	Ccds           []string `koanf:"ccds" yaml:"Ccds"`
	Coolers        []string `koanf:"coolers" yaml:"Coolers"`
	FilterWheels   []string `koanf:"filterwheels" yaml:"FilterWheels"`
	Mounts         []string `koanf:"mounts" yaml:"Mounts"`
	Focusers       []string `koanf:"focusers" yaml:"Focusers"`
	GuidePorts     []string `koanf:"guideports" yaml:"GuidePorts"`
	AdaptiveOptics []string `koanf:"adaptiveoptics" yaml:"AdaptiveOptics"`
}

// Config is the daemon's top-level configuration, shaped like the
// teacher's multiserver.Config (Addr, Mock, Nodes) generalized to this
// domain's components.
type Config struct {
	// Addr is the address transporthttp listens on.
	Addr string `koanf:"addr" yaml:"Addr"`

	// Mock mirrors the teacher's "Mock bool" multiserver field. cmd/astrod
	// does not consult it: simmodule is always registered, and device
	// names resolve through "sim:" or a configured "net:" peer either way.
	Mock bool `koanf:"mock" yaml:"Mock"`

	// SysConfDir is the sysconfdir root for the device.properties
	// precedence chain (spec §6, device.LoadProperties); cmd/astrod does
	// not load device properties, so nothing reads this field there.
	SysConfDir string `koanf:"sysconfdir" yaml:"SysConfDir"`

	// RepositoryDir is the image repository's base directory (spec §6).
	RepositoryDir string `koanf:"repositorydir" yaml:"RepositoryDir"`

	// DatabasePath is the task/guiding/instrument persistence database
	// (spec §4.G), separate from the image repository's own
	// "<basedir>/.files.db".
	DatabasePath string `koanf:"databasepath" yaml:"DatabasePath"`

	// MaxConcurrentTasks caps the task queue's executor pool (spec §4.E).
	MaxConcurrentTasks int `koanf:"maxconcurrenttasks" yaml:"MaxConcurrentTasks"`

	// GuidingIntervalSeconds is the default guiding cycle period (spec
	// §4.D.3), overridable per guiding run by callers.
	GuidingIntervalSeconds float64 `koanf:"guidingintervalseconds" yaml:"GuidingIntervalSeconds"`

	// Instruments maps instrument name to its device bundle.
	Instruments map[string]InstrumentConfig `koanf:"instruments" yaml:"Instruments"`

	// NetPeers maps remote module name to its "host:port" gRPC address;
	// each entry is registered as devname module "net:"+name via
	// netdevice.RegisterNetModule (spec §4.A's "net:" proxied module).
	NetPeers map[string]string `koanf:"netpeers" yaml:"NetPeers"`
}

// Defaults mirrors the teacher's pattern of seeding koanf from a zero-ish
// struct literal (cmd/multiserver's `k.Load(structs.Provider(multiserver.
// Config{}, "koanf"), nil)`) before any file is read, so an absent config
// file still produces a usable daemon.
func Defaults() Config {
	return Config{
		Addr:                   ":8080",
		SysConfDir:             "/etc/astrod",
		RepositoryDir:          "./images",
		DatabasePath:           "./astrod.db",
		MaxConcurrentTasks:     4,
		GuidingIntervalSeconds: 10,
		Instruments:            map[string]InstrumentConfig{},
		NetPeers:               map[string]string{},
	}
}

// Load mirrors cmd/multiserver's setupconfig/LoadYaml pair: seed koanf
// with Defaults(), overlay path's YAML file if present (a missing file is
// not an error, matching the teacher's "no such file, who cares" check),
// then overlay ASTROD_-prefixed environment variables, and unmarshal the
// merged view into a Config.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !strings.Contains(err.Error(), "no such file") {
				return Config{}, err
			}
		}
	}

	if err := k.Load(env.Provider("ASTROD_", ".", envKey), nil); err != nil {
		return Config{}, err
	}

	cfg := Config{}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey turns "ASTROD_MAXCONCURRENTTASKS" into "maxconcurrenttasks" and
// "ASTROD_GUIDINGINTERVALSECONDS" into the matching koanf-tagged field,
// using "__" (double underscore) as the nested-key separator since single
// underscores are common inside instrument/device names.
func envKey(s string) string {
	s = strings.TrimPrefix(s, "ASTROD_")
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// Merge overlays extra on top of cfg's koanf view and returns the result,
// used by tests that want to tweak a couple of fields without writing a
// YAML fixture file. Grounded on the same confmap.Provider the koanf
// ecosystem documents for exactly this in-memory-overlay use case.
func Merge(cfg Config, extra map[string]interface{}) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return Config{}, err
	}
	if err := k.Load(confmap.Provider(extra, "."), nil); err != nil {
		return Config{}, err
	}
	out := Config{}
	if err := k.Unmarshal("", &out); err != nil {
		return Config{}, err
	}
	return out, nil
}
