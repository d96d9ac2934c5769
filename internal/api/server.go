package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"biosense/internal/config"
	"biosense/internal/events"
	"biosense/internal/model"
	"biosense/internal/results"
)

// EngineControl is the slice of the pipeline the API needs: session
// lifecycle, state reset, and config pushes.
type EngineControl interface {
	Reset()
	UpdateConfig(cfg *config.Config)
	StartSession() string
	StopSession()
	PauseSession()
	ResumeSession()
	SessionStats() events.Stats
	SessionID() string
}

type Server struct {
	cfg     *config.Manager
	results *results.Store
	events  *events.Store
	engine  EngineControl
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status     string       `json:"status"`
	Time       string       `json:"time"`
	Version    string       `json:"version"`
	ConfigPath string       `json:"config_path"`
	Ingest     ingestStatus `json:"ingest"`
	API        apiStatus    `json:"api"`
	Session    events.Stats `json:"session"`
}

type ingestStatus struct {
	Kafka  bool `json:"kafka"`
	MQTT   bool `json:"mqtt"`
	Replay bool `json:"replay"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

func Start(ctx context.Context, cfg *config.Manager, resultsStore *results.Store, eventStore *events.Store, engine EngineControl, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		results: resultsStore,
		events:  eventStore,
		engine:  engine,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/results", server.handleResults)
	mux.HandleFunc("/results/", server.handleResults)
	mux.HandleFunc("/events", server.handleEvents)
	mux.HandleFunc("/session/start", server.handleSession)
	mux.HandleFunc("/session/stop", server.handleSession)
	mux.HandleFunc("/session/pause", server.handleSession)
	mux.HandleFunc("/session/resume", server.handleSession)
	mux.HandleFunc("/admin/clear", server.handleClear)
	mux.HandleFunc("/admin/restart", server.handleRestart)

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	var stats events.Stats
	if s.engine != nil {
		stats = s.engine.SessionStats()
	}
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Ingest: ingestStatus{
			Kafka:  cfg.Ingest.Kafka.Enabled,
			MQTT:   cfg.Ingest.MQTT.Enabled,
			Replay: cfg.Ingest.Replay.Enabled,
		},
		API:     apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Session: stats,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/results")
	path = strings.TrimPrefix(path, "/")
	if path != "" {
		result, updated, ok := s.results.Get(path)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"device_id":  path,
			"updated_at": updated.Format(time.RFC3339Nano),
			"result":     result,
		})
		return
	}
	all := s.results.GetAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"results": all,
		"count":   len(all),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.MuscleActivityEvent
	if sinceStr != "" {
		if ts, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			list = s.events.Since(ts)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	} else {
		list = s.events.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": list,
		"count":  len(list),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	action := strings.TrimPrefix(r.URL.Path, "/session/")
	switch action {
	case "start":
		id := s.engine.StartSession()
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "session_id": id})
		return
	case "stop":
		s.engine.StopSession()
	case "pause":
		s.engine.PauseSession()
	case "resume":
		s.engine.ResumeSession()
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "session_id": s.engine.SessionID()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		if s.results != nil {
			s.results.Clear()
		}
		if s.events != nil {
			s.events.Clear()
		}
	case "events":
		if s.events != nil {
			s.events.Clear()
		}
	case "results":
		if s.results != nil {
			s.results.Clear()
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine != nil {
		s.engine.Reset()
	}
	if s.results != nil {
		s.results.Clear()
	}
	if s.events != nil {
		s.events.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
