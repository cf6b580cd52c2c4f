package transporthttp

import (
	"encoding/json"
	"net/http"
	"time"

	"goji.io/pat"

	"github.com/openastro/astrocore/device"
	"github.com/openastro/astrocore/fitsfmt"
	"github.com/openastro/astrocore/image"
)

// exposureRequest is the wire form of image.Exposure, grounded on the
// teacher's generichttp/camera exposure JSON shape (same field set, same
// flattened nested-struct-as-JSON-object convention).
type exposureRequest struct {
	Left, Top, Width, Height int
	BinH, BinV               int
	ExposureTimeSeconds      float64
	Gain, VMax               float64
	Shutter                  int
	Purpose                  int
}

func (e exposureRequest) toExposure() image.Exposure {
	return image.Exposure{
		Frame:        image.Rect{Left: e.Left, Top: e.Top, Width: e.Width, Height: e.Height},
		Binning:      image.BinMode{H: e.BinH, V: e.BinV},
		ExposureTime: time.Duration(e.ExposureTimeSeconds * float64(time.Second)),
		Gain:         e.Gain,
		VMax:         e.VMax,
		Shutter:      image.ShutterState(e.Shutter),
		Purpose:      image.Purpose(e.Purpose),
	}
}

// HTTPCcd adds every route for a Ccd to table: info, start/status/wait/
// cancel exposure, getimage (as a FITS byte stream), and stream start/stop.
// Grounded on generichttp/camera.go's route set for the teacher's camera
// HTTP wrapper, re-expressed against this module's device.Ccd interface.
func HTTPCcd(ccd device.Ccd, table RouteTable) {
	table[pat.Get("/info")] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ccd.Info())
	}

	table[pat.Post("/exposure")] = func(w http.ResponseWriter, r *http.Request) {
		req := exposureRequest{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := ccd.StartExposure(req.toExposure()); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}

	table[pat.Get("/exposure/status")] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HumanPayload{String: ccd.ExposureStatus().String()})
	}

	table[pat.Post("/exposure/wait")] = func(w http.ResponseWriter, r *http.Request) {
		if err := ccd.Wait(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}

	table[pat.Post("/exposure/cancel")] = func(w http.ResponseWriter, r *http.Request) {
		if err := ccd.CancelExposure(); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}

	table[pat.Get("/image")] = func(w http.ResponseWriter, r *http.Request) {
		img, err := ccd.GetImage()
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/fits")
		if err := fitsfmt.Encode(w, img); err != nil {
			writeErr(w, err)
		}
	}

	table[pat.Post("/stream")] = func(w http.ResponseWriter, r *http.Request) {
		req := exposureRequest{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := ccd.StartStream(req.toExposure()); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}

	table[pat.Delete("/stream")] = func(w http.ResponseWriter, r *http.Request) {
		if err := ccd.StopStream(); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
