// Command astrod is the daemon binary: it loads configuration, registers
// device driver modules, and serves the HTTP control surface, mirroring
// cmd/multiserver's command-dispatch shape (help/mkconf/conf/run/version)
// generalized from a single flat Config to this domain's instrument/task/
// guiding wiring.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/openastro/astrocore/config"
	"github.com/openastro/astrocore/device"
	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/guiding"
	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/imagerepo"
	"github.com/openastro/astrocore/instrument"
	"github.com/openastro/astrocore/logx"
	"github.com/openastro/astrocore/netdevice"
	"github.com/openastro/astrocore/persist"
	_ "github.com/openastro/astrocore/simmodule"
	"github.com/openastro/astrocore/task"
	"github.com/openastro/astrocore/transporthttp"
)

var (
	// Version is the daemon version, typically injected via ldflags.
	Version = "dev"

	// ConfigFileName is the YAML config file astrod reads and writes.
	ConfigFileName = "astrod.yml"
)

func root() {
	str := `astrod resolves and serves an astrophotography instrument over HTTP:
cameras, coolers, filter wheels, focusers, mounts, guide ports, and
adaptive optics, plus the autoguiding loop and the exposure task queue.

Usage:
	astrod <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `astrod is configured via a YAML file (astrod.yml by default) plus
ASTROD_-prefixed environment variable overrides ("__" nests, e.g.
ASTROD_MAXCONCURRENTTASKS=8). When no file is present, built-in defaults
apply. The mkconf command writes the defaults out as a starting point.`
	fmt.Println(str)
}

func mkconf() {
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := yaml.NewEncoder(f).Encode(config.Defaults()); err != nil {
		log.Fatal(err)
	}
}

func printconf(cfg config.Config) {
	if err := yaml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("astrod version %v\n", Version)
}

// buildInstrument parses every device-name string in ic (spec §3's
// Name.String() form) into the devname.Name the rest of the daemon
// resolves through repo.
func buildInstrument(name string, ic config.InstrumentConfig) (instrument.Instrument, error) {
	parse := func(ss []string) ([]devname.Name, error) {
		out := make([]devname.Name, 0, len(ss))
		for _, s := range ss {
			n, err := devname.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("instrument %q: %w", name, err)
			}
			out = append(out, n)
		}
		return out, nil
	}

	in := instrument.Instrument{Name: name}
	var err error
	if in.Cameras, err = parse(ic.Cameras); err != nil {
		return instrument.Instrument{}, err
	}
	if in.Ccds, err = parse(ic.Ccds); err != nil {
		return instrument.Instrument{}, err
	}
	if in.Coolers, err = parse(ic.Coolers); err != nil {
		return instrument.Instrument{}, err
	}
	if in.FilterWheels, err = parse(ic.FilterWheels); err != nil {
		return instrument.Instrument{}, err
	}
	if in.Mounts, err = parse(ic.Mounts); err != nil {
		return instrument.Instrument{}, err
	}
	if in.Focusers, err = parse(ic.Focusers); err != nil {
		return instrument.Instrument{}, err
	}
	if in.GuidePorts, err = parse(ic.GuidePorts); err != nil {
		return instrument.Instrument{}, err
	}
	if in.AdaptiveOptics, err = parse(ic.AdaptiveOptics); err != nil {
		return instrument.Instrument{}, err
	}
	return in, nil
}

// buildNewExecutor returns the per-task Executor factory task.Queue needs:
// each TaskQueueEntry names its instrument by string, so the instrument
// lookup (not just the device resolver) has to happen per task rather than
// once at startup.
func buildNewExecutor(repo *devname.Repository, registry *instrument.Registry, store task.Store, imgRepo *imagerepo.Repository) func(*task.TaskQueueEntry) *task.Executor {
	return func(entry *task.TaskQueueEntry) *task.Executor {
		inst, _ := registry.Get(entry.Params.Refs.Instrument)

		saveImage := func(img *image.Image, repository string) (string, error) {
			ccdTemp := 0.0
			if c, ok := img.Metadata.Get("CCD-TEMP"); ok {
				if v, ok := c.Value.(float64); ok {
					ccdTemp = v
				}
			}
			return imgRepo.Save(img, entry.Params.Exposure.Purpose, entry.Params.Exposure.ExposureTime, ccdTemp, img.Bayer, time.Now())
		}

		return &task.Executor{
			Resolver:   repo,
			Instrument: inst,
			Store:      store,
			SaveImage:  saveImage,
		}
	}
}

// buildGuiderSession resolves instrument in's first Ccd and GuidePort once
// at startup and wires them into a GuiderSession, grounded on
// CalibrationProcess/GuidingProcess both taking a Ccd/Actuator/Tracker
// triple that does not change device identity between runs. Instruments
// with no GuidePort or no Ccd get no guider (nil, nil).
func buildGuiderSession(repo *devname.Repository, in instrument.Instrument, intervalSeconds float64) (*transporthttp.GuiderSession, error) {
	ccdName, ok := in.Ccd(0)
	if !ok {
		return nil, nil
	}
	gpName, ok := in.GuidePort(0)
	if !ok {
		return nil, nil
	}

	ccdDev, err := repo.Get(ccdName)
	if err != nil {
		return nil, err
	}
	ccd, ok := ccdDev.(device.Ccd)
	if !ok {
		return nil, fmt.Errorf("%s: not a Ccd", ccdName)
	}

	gpDev, err := repo.Get(gpName)
	if err != nil {
		return nil, err
	}
	gp, ok := gpDev.(device.GuidePort)
	if !ok {
		return nil, fmt.Errorf("%s: not a GuidePort", gpName)
	}

	info := ccd.Info()
	center := guiding.Point{X: float64(info.DefaultFrame.Width) / 2, Y: float64(info.DefaultFrame.Height) / 2}
	tracker := guiding.NewStarTracker(center, info.DefaultFrame, 5)
	actuator := guiding.NewGuidePortActuator(gp)
	interval := time.Duration(intervalSeconds * float64(time.Second))

	return &transporthttp.GuiderSession{
		NewCalibration: func(onPoint guiding.CalibrationPointFunc, onProgress guiding.ProgressFunc) *guiding.CalibrationProcess {
			return &guiding.CalibrationProcess{
				Ccd:      ccd,
				Actuator: actuator,
				Tracker:  tracker,
				Clock:    guiding.NewSystemClock(),
				Exposure: image.Exposure{ExposureTime: time.Second, Purpose: image.Guide},

				OnPoint:    onPoint,
				OnProgress: onProgress,
			}
		},
		NewGuiding: func(cal guiding.Calibration) *guiding.GuidingProcess {
			return guiding.NewGuidingProcess(ccd, actuator, tracker, cal, interval)
		},
	}, nil
}

func run(cfg config.Config) {
	repo := &devname.Repository{}

	// simmodule registers itself under "sim" via init() regardless of
	// Mock; there are no vendor SDK modules in this build to switch to
	// when Mock is false (see DESIGN.md), so every instrument's device
	// names are expected to resolve through "sim:" or a configured
	// "net:" peer below.
	for name, addr := range cfg.NetPeers {
		netdevice.RegisterNetModule(name, addr)
	}

	registry := instrument.NewRegistry()
	for name, ic := range cfg.Instruments {
		in, err := buildInstrument(name, ic)
		if err != nil {
			log.Fatalf("configuring instrument %q: %v", name, err)
		}
		registry.Put(in)
	}

	db, err := persist.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	store, err := persist.NewTaskTable(db.DB)
	if err != nil {
		log.Fatalf("preparing task table: %v", err)
	}

	imgRepo, err := imagerepo.Open(cfg.RepositoryDir)
	if err != nil {
		log.Fatalf("opening image repository: %v", err)
	}
	defer imgRepo.Close()

	newExecutor := buildNewExecutor(repo, registry, store, imgRepo)
	queue := task.NewQueue(store, newExecutor, cfg.MaxConcurrentTasks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	binders := make([]*transporthttp.InstrumentBinder, 0, len(cfg.Instruments))
	for name := range cfg.Instruments {
		in, _ := registry.Get(name)
		guider, err := buildGuiderSession(repo, in, cfg.GuidingIntervalSeconds)
		if err != nil {
			logx.Warnf("instrument %q: guider not wired: %v", name, err)
		}
		binders = append(binders, &transporthttp.InstrumentBinder{
			Repo:   repo,
			Name:   name,
			Inst:   in,
			Guider: guider,
		})
	}

	mux := transporthttp.BuildMux(binders, queue)
	logx.Infof("astrod listening at %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, mux))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}

	cfg, err := config.Load(ConfigFileName)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	switch strings.ToLower(args[1]) {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf(cfg)
	case "run":
		run(cfg)
	case "version":
		pversion()
	default:
		log.Fatalf("unknown command %q", args[1])
	}
}
