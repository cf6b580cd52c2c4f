package transporthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"goji.io/pat"

	"github.com/openastro/astrocore/guiding"
)

// GuiderSession owns one instrument's CalibrationProcess/GuidingProcess
// pair plus the in-memory tracking history spec §4.D.3 step 6 says a
// client can retrieve; it is the thing HTTPGuider binds onto routes.
// Grounded on the same "run a background process, collect callback
// output, expose it over HTTP" shape the teacher's nkt laser HTTP wrapper
// uses for its own status-polling routes.
type GuiderSession struct {
	NewCalibration func(onPoint guiding.CalibrationPointFunc, onProgress guiding.ProgressFunc) *guiding.CalibrationProcess
	NewGuiding     func(cal guiding.Calibration) *guiding.GuidingProcess

	mu      sync.Mutex
	cal     guiding.Calibration
	gp      *guiding.GuidingProcess
	cancel  context.CancelFunc
	history []guiding.TrackingPoint
}

func (s *GuiderSession) addHistory(tp guiding.TrackingPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, tp)
	if len(s.history) > 1000 {
		s.history = s.history[len(s.history)-1000:]
	}
}

// HTTPGuider adds the calibrate/start/stop/history routes of spec §4.D to
// table.
func HTTPGuider(s *GuiderSession, table RouteTable) {
	table[pat.Post("/guider/calibrate")] = func(w http.ResponseWriter, r *http.Request) {
		cp := s.NewCalibration(nil, nil)
		cal, err := cp.Run(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		s.mu.Lock()
		s.cal = cal
		s.mu.Unlock()
		writeJSON(w, cal)
	}

	table[pat.Post("/guider/start")] = func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		if s.gp != nil {
			s.mu.Unlock()
			http.Error(w, "guider already running", http.StatusConflict)
			return
		}
		req := exposureRequest{}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.mu.Unlock()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gp := s.NewGuiding(s.cal)
		gp.OnTrackingPoint = s.addHistory
		ctx, cancel := context.WithCancel(context.Background())
		s.gp = gp
		s.cancel = cancel
		s.mu.Unlock()

		gp.Start(ctx, req.toExposure())
		w.WriteHeader(http.StatusOK)
	}

	table[pat.Post("/guider/stop")] = func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		gp, cancel := s.gp, s.cancel
		s.gp, s.cancel = nil, nil
		s.mu.Unlock()
		if gp == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		cancel()
		gp.Stop()
		w.WriteHeader(http.StatusOK)
	}

	table[pat.Get("/guider/history")] = func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		hist := append([]guiding.TrackingPoint(nil), s.history...)
		s.mu.Unlock()
		writeJSON(w, hist)
	}
}
