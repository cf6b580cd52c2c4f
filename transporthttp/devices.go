package transporthttp

import (
	"encoding/json"
	"net/http"
	"time"

	"goji.io/pat"

	"github.com/openastro/astrocore/device"
)

// HTTPCooler adds routes for a Cooler, grounded on generichttp/thermal.go's
// set/get-temperature route pair, extended with on/off/stable/wait to
// cover device.Cooler's full interface.
func HTTPCooler(c device.Cooler, table RouteTable) {
	table[pat.Get("/cooler/setpoint")] = GetFloat(c.GetSetTemperature)
	table[pat.Post("/cooler/setpoint")] = SetFloat(c.SetTemperature)
	table[pat.Get("/cooler/actual")] = GetFloat(c.GetActualTemperature)
	table[pat.Post("/cooler/on")] = SetBool(c.SetOn)
	table[pat.Get("/cooler/on")] = GetBool(c.IsOn)
	table[pat.Get("/cooler/stable")] = GetBool(c.Stable)
	table[pat.Post("/cooler/wait")] = func(w http.ResponseWriter, r *http.Request) {
		hp := HumanPayload{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&hp); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stable, err := c.Wait(r.Context(), time.Duration(hp.Float*float64(time.Second)))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, HumanPayload{Bool: stable})
	}
}

// HTTPFilterWheel adds routes for a FilterWheel, grounded on generichttp's
// pattern of one getter+setter route pair per axis-like concept (here,
// "position" stands in for "axis").
func HTTPFilterWheel(wh device.FilterWheel, table RouteTable) {
	table[pat.Get("/filterwheel/n")] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HumanPayload{Int: wh.NFilters()})
	}
	table[pat.Get("/filterwheel/position")] = GetInt(wh.CurrentPosition)
	table[pat.Post("/filterwheel/position")] = SetInt(wh.Select)
	table[pat.Post("/filterwheel/name")] = SetString(wh.SelectByName)
	table[pat.Get("/filterwheel/state")] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HumanPayload{String: wh.State().String()})
	}
}

// HTTPFocuser adds routes for a Focuser, mirroring generichttp/motion.go's
// Mover route set (GetPos/SetPos) narrowed to a single axis.
func HTTPFocuser(f device.Focuser, table RouteTable) {
	table[pat.Get("/focuser/min")] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HumanPayload{Float: f.Min()})
	}
	table[pat.Get("/focuser/max")] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HumanPayload{Float: f.Max()})
	}
	table[pat.Get("/focuser/backlash")] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HumanPayload{Float: f.Backlash()})
	}
	table[pat.Get("/focuser/position")] = GetFloat(f.Current)
	table[pat.Post("/focuser/position")] = SetFloat(f.MoveTo)
}

// HTTPGuidePort adds routes for a GuidePort: a read of the active-channel
// state and a pulse-activation command carrying all four channel durations
// in one request, matching device.GuidePort.Activate's signature.
func HTTPGuidePort(p device.GuidePort, table RouteTable) {
	table[pat.Get("/guideport/active")] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, p.Active())
	}
	table[pat.Post("/guideport/activate")] = func(w http.ResponseWriter, r *http.Request) {
		req := struct{ RAPlus, RAMinus, DecPlus, DecMinus float64 }{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := p.Activate(req.RAPlus, req.RAMinus, req.DecPlus, req.DecMinus); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HTTPAdaptiveOptics adds routes for an AdaptiveOptics corrector.
func HTTPAdaptiveOptics(a device.AdaptiveOptics, table RouteTable) {
	table[pat.Get("/ao/position")] = func(w http.ResponseWriter, r *http.Request) {
		x, y, err := a.Get()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, struct{ X, Y float64 }{x, y})
	}
	table[pat.Post("/ao/position")] = func(w http.ResponseWriter, r *http.Request) {
		req := struct{ X, Y float64 }{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := a.Set(req.X, req.Y); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
	table[pat.Post("/ao/center")] = func(w http.ResponseWriter, r *http.Request) {
		if err := a.Center(); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HTTPMount adds routes for a Mount: goto/cancel/state/position readback.
func HTTPMount(m device.Mount, table RouteTable) {
	table[pat.Post("/mount/goto")] = func(w http.ResponseWriter, r *http.Request) {
		req := device.RaDec{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := m.Goto(req); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
	table[pat.Post("/mount/cancel")] = func(w http.ResponseWriter, r *http.Request) {
		if err := m.Cancel(); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
	table[pat.Get("/mount/state")] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HumanPayload{String: m.State().String()})
	}
	table[pat.Get("/mount/radec")] = func(w http.ResponseWriter, r *http.Request) {
		rd, err := m.GetRaDec()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, rd)
	}
	table[pat.Get("/mount/azalt")] = func(w http.ResponseWriter, r *http.Request) {
		aa, err := m.GetAzAlt()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, aa)
	}
}
