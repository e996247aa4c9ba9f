// Package server exposes the studio over HTTP: the effect catalog, the live
// session, presets, offline renders and an event stream.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/auth"
	"github.com/stevecastle/fxlab/gesture"
	"github.com/stevecastle/fxlab/presets"
	"github.com/stevecastle/fxlab/renderjob"
	"github.com/stevecastle/fxlab/scheduler"
	"github.com/stevecastle/fxlab/stream"
	"github.com/stevecastle/fxlab/studio"
)

// maxBody caps JSON request bodies.
const maxBody = 1 << 20

// Dependencies are the collaborators handlers reach.
type Dependencies struct {
	Session   *studio.Session
	Renders   *renderjob.Manager
	Presets   *presets.Store
	Hub       *stream.Hub
	Auth      *auth.Service
	Sink      renderjob.Sink
	Scheduler *scheduler.Scheduler
	Audio     *audio.Latch
	Gestures  *gesture.Latch
}

type Server struct {
	deps Dependencies
	mux  *http.ServeMux
	log  *logrus.Entry
}

// New registers every route.
func New(deps Dependencies) *Server {
	s := &Server{
		deps: deps,
		mux:  http.NewServeMux(),
		log:  logrus.WithField("component", "server"),
	}
	op := func(h http.HandlerFunc) http.HandlerFunc { return s.applyMiddlewares(h, RoleOperator) }
	pub := func(h http.HandlerFunc) http.HandlerFunc { return s.applyMiddlewares(h, RolePublic) }

	s.mux.HandleFunc("/health", pub(s.healthHandler))
	s.mux.HandleFunc("/api/login", pub(s.loginHandler))
	s.mux.HandleFunc("/api/effects", op(s.effectsHandler))
	s.mux.HandleFunc("/api/events", op(s.deps.Hub.ServeHTTP))
	s.mux.HandleFunc("/api/stats", op(s.statsHandler))

	s.mux.HandleFunc("/api/session", op(s.sessionHandler))
	s.mux.HandleFunc("/api/session/load", op(s.loadHandler))
	s.mux.HandleFunc("/api/session/chain", op(s.chainHandler))
	s.mux.HandleFunc("/api/session/toggle/{id}", op(s.toggleHandler))
	s.mux.HandleFunc("/api/session/params/{id}", op(s.paramsHandler))
	s.mux.HandleFunc("/api/session/gestures", op(s.gestureConfigHandler))
	s.mux.HandleFunc("/api/session/gesture", op(s.gestureHandler))
	s.mux.HandleFunc("/api/session/audio", op(s.audioHandler))
	s.mux.HandleFunc("/api/session/frame.png", op(s.frameHandler))
	s.mux.HandleFunc("/api/session/still", op(s.stillHandler))

	s.mux.HandleFunc("/api/presets", op(s.presetsHandler))
	s.mux.HandleFunc("/api/presets/{id}", op(s.presetHandler))
	s.mux.HandleFunc("/api/presets/{id}/apply", op(s.applyPresetHandler))

	s.mux.HandleFunc("/api/renders", op(s.rendersHandler))
	s.mux.HandleFunc("/api/renders/{id}", op(s.renderHandler))
	s.mux.HandleFunc("/api/renders/{id}/cancel", op(s.cancelRenderHandler))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	msg := "Use"
	for i, m := range methods {
		if i > 0 {
			msg += " or"
		}
		msg += " " + m
	}
	http.Error(w, msg, http.StatusMethodNotAllowed)
	return false
}
