package server

import (
	"errors"
	"net/http"

	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/auth"
	"github.com/stevecastle/fxlab/catalog"
	"github.com/stevecastle/fxlab/gesture"
	"github.com/stevecastle/fxlab/presets"
	"github.com/stevecastle/fxlab/renderjob"
	"github.com/stevecastle/fxlab/source"
	"github.com/stevecastle/fxlab/stream"
	"github.com/stevecastle/fxlab/studio"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stream": s.deps.Hub.Stats()})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if s.deps.Auth == nil || !s.deps.Auth.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"token": "", "auth": false})
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	token, expires, err := s.deps.Auth.Login(req.Key)
	if errors.Is(err, auth.ErrInvalidKey) {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expiresAt": expires, "auth": true})
}

func (s *Server) effectsHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, catalog.All())
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	out := map[string]any{"stream": s.deps.Hub.Stats()}
	if s.deps.Scheduler != nil {
		out["preview"] = s.deps.Scheduler.Stats()
	}
	writeJSON(w, http.StatusOK, out)
}

// publishSession tells stream listeners that the chain or params changed.
func (s *Server) publishSession() {
	s.deps.Hub.Publish(stream.KindChain, s.deps.Session.Status())
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.deps.Session.Status())
	case http.MethodDelete:
		if err := s.deps.Session.Close(); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.publishSession()
		w.WriteHeader(http.StatusNoContent)
	default:
		allow(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) loadHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Path string `json:"path"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Session.Load(r.Context(), req.Path); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, source.ErrInputUnavailable) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}
	s.publishSession()
	writeJSON(w, http.StatusOK, s.deps.Session.Status())
}

func (s *Server) chainHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.deps.Session.Chain())
	case http.MethodPut:
		var req struct {
			Chain []string `json:"chain"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.deps.Session.SetChain(req.Chain); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.publishSession()
		writeJSON(w, http.StatusOK, s.deps.Session.Chain())
	default:
		allow(w, r, http.MethodGet, http.MethodPut)
	}
}

func (s *Server) toggleHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	chain, err := s.deps.Session.Toggle(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.publishSession()
	writeJSON(w, http.StatusOK, chain)
}

func (s *Server) paramsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	def, ok := catalog.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, studio.ErrUnknownEffect)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, catalog.Resolve(def, s.deps.Session.Settings()[id]))
	case http.MethodPut:
		var p catalog.Params
		if !decodeJSON(w, r, &p) {
			return
		}
		if err := s.deps.Session.SetParams(id, p); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.publishSession()
		writeJSON(w, http.StatusOK, catalog.Resolve(def, s.deps.Session.Settings()[id]))
	case http.MethodDelete:
		s.deps.Session.ResetParams(id)
		s.publishSession()
		w.WriteHeader(http.StatusNoContent)
	default:
		allow(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) gestureConfigHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPut) {
		return
	}
	req := struct {
		Enabled bool            `json:"enabled"`
		Mapping gesture.Mapping `json:"mapping"`
	}{Mapping: gesture.DefaultMapping()}
	if !decodeJSON(w, r, &req) {
		return
	}
	s.deps.Session.SetGestures(req.Enabled, req.Mapping)
	if !req.Enabled {
		s.deps.Gestures.Clear()
	}
	writeJSON(w, http.StatusOK, s.deps.Session.Status())
}

// gestureHandler accepts either raw hand landmarks or a reduced signal.
func (s *Server) gestureHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		s.deps.Gestures.Stop()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var req struct {
		Hands  []gesture.Hand  `json:"hands"`
		Signal *gesture.Signal `json:"signal"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sig := gesture.FromHands(req.Hands)
	if req.Signal != nil {
		sig = *req.Signal
	}
	s.deps.Gestures.Publish(sig)
	writeJSON(w, http.StatusOK, sig)
}

// audioHandler accepts a byte spectrum from an external analyser or a
// precomputed band signal.
func (s *Server) audioHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		s.deps.Audio.Stop()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var req struct {
		Spectrum []uint8       `json:"spectrum"`
		Signal   *audio.Signal `json:"signal"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sig := audio.FromSpectrum(req.Spectrum)
	if req.Signal != nil {
		sig = *req.Signal
	}
	s.deps.Audio.Publish(sig)
	writeJSON(w, http.StatusOK, s.deps.Audio.Latest())
}

func (s *Server) frameHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	frame, err := s.deps.Session.Frame()
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := frame.EncodePNG(w); err != nil {
		s.log.WithError(err).Debug("frame write failed")
	}
}

func (s *Server) stillHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	loc, err := s.deps.Session.ExportStill(r.Context(), s.deps.Sink)
	if errors.Is(err, studio.ErrNoMedia) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"location": loc})
}

func (s *Server) presetsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.deps.Presets.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		// An empty chain saves the live session under the given name.
		var p presets.Preset
		if !decodeJSON(w, r, &p) {
			return
		}
		p.ID = ""
		if p.Chain == nil {
			p.Chain = s.deps.Session.Chain()
			p.Params = s.deps.Session.Settings()
		}
		saved, err := s.deps.Presets.Save(r.Context(), p)
		if errors.Is(err, presets.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	default:
		allow(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) presetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, presets.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, presets.ErrInvalid):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) presetHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		p, err := s.deps.Presets.Load(r.Context(), id)
		if err != nil {
			s.presetError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPut:
		var p presets.Preset
		if !decodeJSON(w, r, &p) {
			return
		}
		p.ID = id
		saved, err := s.deps.Presets.Save(r.Context(), p)
		if err != nil {
			s.presetError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	case http.MethodDelete:
		if err := s.deps.Presets.Delete(r.Context(), id); err != nil {
			s.presetError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		allow(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) applyPresetHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	p, err := s.deps.Presets.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.presetError(w, err)
		return
	}
	if err := s.deps.Session.Apply(p.Chain, p.Params); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.publishSession()
	writeJSON(w, http.StatusOK, s.deps.Session.Status())
}

// renderRequest defaults to the live session's media, chain and params.
type renderRequest struct {
	Input   string           `json:"input"`
	Chain   []string         `json:"chain"`
	Params  catalog.Settings `json:"params"`
	Audio   *audio.Signal    `json:"audio"`
	Bitrate int              `json:"bitrate"`
}

func (s *Server) rendersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.deps.Renders.List())
	case http.MethodPost:
		var req renderRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		spec := s.deps.Session.RenderSpec()
		if req.Chain != nil {
			if err := catalog.CheckChain(req.Chain); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			spec.Chain = req.Chain
			spec.Settings = req.Params
		}
		if req.Audio != nil {
			spec.Audio = req.Audio.Clamped()
		}
		spec.Bitrate = req.Bitrate
		input := req.Input
		if input == "" {
			input = s.deps.Session.Input()
		}
		if input == "" {
			writeError(w, http.StatusBadRequest, studio.ErrNoMedia)
			return
		}
		job, err := s.deps.Renders.Submit(input, spec)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	default:
		allow(w, r, http.MethodGet, http.MethodPost)
	}
}

func renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, renderjob.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, renderjob.ErrJobRunning), errors.Is(err, renderjob.ErrJobFinished):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		job, ok := s.deps.Renders.Get(id)
		if !ok {
			renderError(w, renderjob.ErrJobNotFound)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.deps.Renders.Remove(id); err != nil {
			renderError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		allow(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) cancelRenderHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := s.deps.Renders.Cancel(r.PathValue("id")); err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Cancellation requested"})
}
