package transporthttp

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"goji.io"

	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/instrument"
	"github.com/openastro/astrocore/task"
)

// InstrumentBinder resolves one instrument's devices and mounts their
// routes under stem, e.g. "/instruments/main/ccd/0". Errors resolving an
// optional device (a -1 index) are not fatal; the route simply isn't
// bound for that slot.
type InstrumentBinder struct {
	Repo   *devname.Repository
	Name   string
	Inst   instrument.Instrument
	Guider *GuiderSession // nil if this instrument has no guider wired
}

func mount(root chi.Router, stem string, rt RouteTable) {
	sub := goji.NewMux()
	rt.Bind(sub)
	root.Mount(SubMuxSanitize(stem), sub)
}

// bindIndexed mounts one route table per resolved device in names, under
// stem+"/"+index.
func bindIndexed(root chi.Router, repo *devname.Repository, stem string, names []devname.Name, bind func(dev interface{}, table RouteTable) bool) {
	for i, name := range names {
		dev, err := repo.Get(name)
		if err != nil {
			continue
		}
		table := RouteTable{}
		if !bind(dev, table) {
			continue
		}
		mount(root, fmt.Sprintf("%s/%d", stem, i), table)
	}
}

// Bind mounts every resolved device of b.Inst, plus the guider routes if
// b.Guider is set, under root at "/instruments/"+b.Name+"/...".
func (b *InstrumentBinder) Bind(root chi.Router) {
	base := "/instruments/" + b.Name

	bindIndexed(root, b.Repo, base+"/ccd", b.Inst.Ccds, func(dev interface{}, t RouteTable) bool {
		if d, ok := asCcd(dev); ok {
			HTTPCcd(d, t)
			return true
		}
		return false
	})
	bindIndexed(root, b.Repo, base+"/cooler", b.Inst.Coolers, func(dev interface{}, t RouteTable) bool {
		if d, ok := asCooler(dev); ok {
			HTTPCooler(d, t)
			return true
		}
		return false
	})
	bindIndexed(root, b.Repo, base+"/filterwheel", b.Inst.FilterWheels, func(dev interface{}, t RouteTable) bool {
		if d, ok := asFilterWheel(dev); ok {
			HTTPFilterWheel(d, t)
			return true
		}
		return false
	})
	bindIndexed(root, b.Repo, base+"/focuser", b.Inst.Focusers, func(dev interface{}, t RouteTable) bool {
		if d, ok := asFocuser(dev); ok {
			HTTPFocuser(d, t)
			return true
		}
		return false
	})
	bindIndexed(root, b.Repo, base+"/guideport", b.Inst.GuidePorts, func(dev interface{}, t RouteTable) bool {
		if d, ok := asGuidePort(dev); ok {
			HTTPGuidePort(d, t)
			return true
		}
		return false
	})
	bindIndexed(root, b.Repo, base+"/ao", b.Inst.AdaptiveOptics, func(dev interface{}, t RouteTable) bool {
		if d, ok := asAO(dev); ok {
			HTTPAdaptiveOptics(d, t)
			return true
		}
		return false
	})
	bindIndexed(root, b.Repo, base+"/mount", b.Inst.Mounts, func(dev interface{}, t RouteTable) bool {
		if d, ok := asMount(dev); ok {
			HTTPMount(d, t)
			return true
		}
		return false
	})

	if b.Guider != nil {
		table := RouteTable{}
		HTTPGuider(b.Guider, table)
		mount(root, base+"/guider", table)
	}
}

// BuildMux assembles the daemon's root HTTP router: one mount point per
// instrument device (via InstrumentBinder), one for the task queue.
// Grounded on cmd/multiserver/lib.go's BuildMux, which builds a chi.Router
// root with the same middleware.Logger and mounts one goji sub-mux per
// configured node; this version mounts one sub-mux per resolved device
// instead of per YAML node, since device identity here comes from
// devname.Name rather than a node list.
func BuildMux(binders []*InstrumentBinder, q *task.Queue) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Use(middleware.Recoverer)

	for _, b := range binders {
		b.Bind(root)
	}

	if q != nil {
		table := RouteTable{}
		HTTPTaskQueue(q, table)
		mount(root, "/tasks", table)
	}

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return root
}
