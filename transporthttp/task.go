package transporthttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"goji.io/pat"

	"github.com/openastro/astrocore/task"
)

// submitRequest is the wire form of task.TaskParameters, flattened the way
// exposureRequest flattens image.Exposure.
type submitRequest struct {
	Instrument       string
	CameraIndex      int
	CcdIndex         int
	CoolerIndex      int
	FilterWheelIndex int
	MountIndex       int
	FocuserIndex     int
	Exposure         exposureRequest
	CcdTemperature   float64
	FilterPosition   int
	RepositoryName   string
}

func (s submitRequest) toParams() task.TaskParameters {
	return task.TaskParameters{
		Refs: task.DeviceRefs{
			Instrument:       s.Instrument,
			CameraIndex:      s.CameraIndex,
			CcdIndex:         s.CcdIndex,
			CoolerIndex:      s.CoolerIndex,
			FilterWheelIndex: s.FilterWheelIndex,
			MountIndex:       s.MountIndex,
			FocuserIndex:     s.FocuserIndex,
		},
		Exposure:       s.Exposure.toExposure(),
		CcdTemperature: s.CcdTemperature,
		FilterPosition: s.FilterPosition,
		RepositoryName: s.RepositoryName,
	}
}

// HTTPTaskQueue adds the submit/cancel/remove/query routes of spec §4.E's
// client-visible task API onto table, grounded on generichttp's JSON-body-
// in, JSON-body-out handler convention.
func HTTPTaskQueue(q *task.Queue, table RouteTable) {
	table[pat.Post("/")] = func(w http.ResponseWriter, r *http.Request) {
		req := submitRequest{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id, err := q.Submit(req.toParams())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, struct{ ID int64 }{id})
	}

	table[pat.Get("/:id")] = func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(pat.Param(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entry, err := q.Query(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, entry)
	}

	table[pat.Post("/:id/cancel")] = func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(pat.Param(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := q.Cancel(id); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}

	table[pat.Delete("/:id")] = func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(pat.Param(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := q.Remove(id); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
