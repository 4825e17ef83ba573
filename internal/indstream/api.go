package indstream

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"ta-streamv1/internal/model"
)

// latestStore keeps the most recent update per indicator name for the
// /values endpoint. Confirmed updates overwrite live ones for the same bar.
type latestStore struct {
	mu sync.RWMutex
	m  map[string]model.Update
}

func newLatestStore() *latestStore {
	return &latestStore{m: make(map[string]model.Update)}
}

func (s *latestStore) put(updates []model.Update) {
	s.mu.Lock()
	for _, u := range updates {
		s.m[u.Name] = u
	}
	s.mu.Unlock()
}

func (s *latestStore) snapshot() map[string]model.Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Update, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// startHTTP launches the HTTP server for /values, /indicators and /healthz.
func (svc *Service) startHTTP() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/values", svc.handleValues)
	mux.HandleFunc("/indicators", svc.handleIndicators)
	mux.HandleFunc("/healthz", svc.health.ServeHTTP)

	srv := &http.Server{Addr: svc.cfg.HTTPAddr, Handler: mux}
	go func() {
		svc.log.Info("http server listening", "addr", svc.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			svc.log.Error("http server error", "err", err)
		}
	}()
	return srv
}

// handleValues returns the latest update per indicator name.
func (svc *Service) handleValues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(svc.latest.snapshot())
}

// handleIndicators lists the configured indicators.
func (svc *Service) handleIndicators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	names := make([]string, 0, len(svc.bound))
	for _, b := range svc.bound {
		names = append(names, b.String())
	}
	sort.Strings(names)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(names)
}
