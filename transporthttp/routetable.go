// Package transporthttp binds the device, guiding, and task control planes
// described in spec §6 onto HTTP, grounded on the teacher's
// generichttp+server route-table idiom (goji.io/pat patterns keyed in a
// map, bound onto a *goji.Mux) and on cmd/multiserver/lib.go's BuildMux,
// which mounts one goji sub-mux per configured node into a chi.Router root.
// This package keeps that two-layer shape: chi owns the root and per-
// instrument mount points, goji/pat owns the leaf routes within a mount,
// exactly as multiserver does for its motion/thermal/laser nodes.
package transporthttp

import (
	"encoding/json"
	"net/http"
	"sort"

	"goji.io"
	"goji.io/pat"
)

// HumanPayload mirrors the teacher's generichttp.HumanPayload: a single-
// purpose envelope so every scalar get/set handler encodes the same way
// regardless of the underlying Go type.
type HumanPayload struct {
	Bool   bool    `json:"bool,omitempty"`
	Int    int     `json:"int,omitempty"`
	Float  float64 `json:"f64,omitempty"`
	String string  `json:"str,omitempty"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// GetFloat calls fcn and replies {"f64": value}.
func GetFloat(fcn func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fcn()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, HumanPayload{Float: f})
	}
}

// SetFloat decodes {"f64": value} from the body and calls fcn with it.
func SetFloat(fcn func(float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hp := HumanPayload{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&hp); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(hp.Float); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetInt calls fcn and replies {"int": value}.
func GetInt(fcn func() (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i, err := fcn()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, HumanPayload{Int: i})
	}
}

// SetInt decodes {"int": value} from the body and calls fcn with it.
func SetInt(fcn func(int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hp := HumanPayload{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&hp); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(hp.Int); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetString calls fcn and replies {"str": value}.
func GetString(fcn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fcn()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, HumanPayload{String: s})
	}
}

// SetString decodes {"str": value} from the body and calls fcn with it.
func SetString(fcn func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hp := HumanPayload{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&hp); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(hp.String); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetBool calls fcn and replies {"bool": value}.
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, HumanPayload{Bool: b})
	}
}

// SetBool decodes {"bool": value} from the body and calls fcn with it.
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hp := HumanPayload{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&hp); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(hp.Bool); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// RouteTable maps goji/pat patterns to handlers, the same shape as the
// teacher's generichttp.RouteTable.
type RouteTable map[*pat.Pattern]http.HandlerFunc

// Endpoints lists the bound patterns as strings, sorted.
func (rt RouteTable) Endpoints() []string {
	out := make([]string, 0, len(rt))
	for p := range rt {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}

func (rt RouteTable) endpointsHTTP() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, rt.Endpoints())
	}
}

// Bind registers every route in rt on mux, adding a GET /endpoints route
// if one isn't already present (mirrors generichttp.RouteTable.Bind).
func (rt RouteTable) Bind(mux *goji.Mux) {
	for p, h := range rt {
		mux.HandleFunc(p, h)
	}
	ep := pat.Get("/endpoints")
	if _, exists := rt[ep]; !exists {
		mux.HandleFunc(ep, rt.endpointsHTTP())
	}
}

// SubMuxSanitize ensures str begins with / and ends with /* so it is a
// legal chi.Mount prefix pairing with a goji.Mux sub-router (mirrors
// generichttp.SubMuxSanitize).
func SubMuxSanitize(str string) string {
	if len(str) == 0 || str[0] != '/' {
		str = "/" + str
	}
	if str[len(str)-1] != '/' {
		str += "/"
	}
	return str + "*"
}
