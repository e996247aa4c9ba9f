package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/stevecastle/fxlab/audio"
	"github.com/stevecastle/fxlab/auth"
	"github.com/stevecastle/fxlab/compositor"
	"github.com/stevecastle/fxlab/effects"
	"github.com/stevecastle/fxlab/gesture"
	"github.com/stevecastle/fxlab/presets"
	"github.com/stevecastle/fxlab/renderjob"
	"github.com/stevecastle/fxlab/source"
	"github.com/stevecastle/fxlab/stream"
	"github.com/stevecastle/fxlab/studio"
	"github.com/stevecastle/fxlab/surface"
)

type memSink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memSink) Put(_ context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return "mem://" + name, nil
}

func stillSource(c color.NRGBA) *source.Still {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return source.NewStill(img)
}

type fixture struct {
	srv     *Server
	deps    Dependencies
	sink    *memSink
	sources map[string]source.Source
}

func newFixture(t *testing.T, authSvc *auth.Service) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		sink:    &memSink{files: map[string][]byte{}},
		sources: map[string]source.Source{},
	}
	open := func(_ context.Context, path string) (source.Source, error) {
		src, ok := f.sources[path]
		if !ok {
			return nil, source.ErrInputUnavailable
		}
		return src, nil
	}

	comp := compositor.New(effects.NewRegistry(effects.Options{}))
	audioLatch := &audio.Latch{}
	gestures := &gesture.Latch{}
	sess := studio.New(studio.Options{Compositor: comp, Open: open, Audio: audioLatch, Gestures: gestures})

	store, err := presets.Open(db)
	require.NoError(t, err)

	hub := stream.NewHub()
	t.Cleanup(hub.Shutdown)

	renderer := renderjob.NewRenderer(comp, func(context.Context) (renderjob.Encoder, error) {
		return nil, assert.AnError
	})
	mgr, err := renderjob.NewManager(renderer, renderjob.ManagerOptions{
		DB: db,
		Open: func(ctx context.Context, input string) (renderjob.Source, error) {
			return open(ctx, input)
		},
		Sink:      f.sink,
		Publisher: hub,
	})
	require.NoError(t, err)
	t.Cleanup(mgr.Shutdown)

	f.deps = Dependencies{
		Session:  sess,
		Renders:  mgr,
		Presets:  store,
		Hub:      hub,
		Auth:     authSvc,
		Sink:     f.sink,
		Audio:    audioLatch,
		Gestures: gestures,
	}
	f.srv = New(f.deps)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestEffectsAndHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/effects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	defs := decode[[]map[string]any](t, rec)
	assert.Len(t, defs, 24)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do(t, http.MethodPost, "/api/effects", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodOptions, "/api/effects", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionFlow(t *testing.T) {
	f := newFixture(t, nil)
	f.sources["a.png"] = stillSource(color.NRGBA{10, 20, 30, 255})

	rec := f.do(t, http.MethodPost, "/api/session/load", map[string]string{"path": "missing.png"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/session/still", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/session/load", map[string]string{"path": "a.png"})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[studio.Status](t, rec)
	assert.Equal(t, 2, st.Width)

	rec = f.do(t, http.MethodPut, "/api/session/chain", map[string]any{"chain": []string{"invert", "nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/session/toggle/invert", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"invert"}, decode[[]string](t, rec))

	rec = f.do(t, http.MethodPut, "/api/session/params/invert", map[string]any{"amount": 500})
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decode[map[string]any](t, rec)
	assert.Equal(t, map[string]any{"amount": 100.0, "threshold": 128.0, "mode": 0.0}, resolved)

	rec = f.do(t, http.MethodGet, "/api/session/params/sparkle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.deps.Session.Tick(time.Now())
	rec = f.do(t, http.MethodGet, "/api/session/frame.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	frame, err := surface.DecodePNG(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, []uint8{245, 235, 225, 255}, frame.Pix()[:4])

	rec = f.do(t, http.MethodPost, "/api/session/still", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, f.sink.files, 1)
}

func TestGestureAndAudioInputs(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/session/gesture", map[string]any{"hands": []any{}})
	require.Equal(t, http.StatusOK, rec.Code)
	sig, ok := f.deps.Gestures.Latest()
	require.True(t, ok)
	assert.Equal(t, 0.5, sig.X)

	rec = f.do(t, http.MethodPost, "/api/session/gesture", map[string]any{"signal": map[string]any{"x": 0.9}})
	require.Equal(t, http.StatusOK, rec.Code)
	sig, _ = f.deps.Gestures.Latest()
	assert.Equal(t, 0.9, sig.X)

	rec = f.do(t, http.MethodPut, "/api/session/gestures", map[string]any{"enabled": true, "mapping": map[string]string{"x": "bogus"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPut, "/api/session/gestures", map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[studio.Status](t, rec)
	assert.True(t, st.Gestures)
	assert.Equal(t, gesture.DefaultMapping(), st.Mapping)

	rec = f.do(t, http.MethodPost, "/api/session/audio", map[string]any{"signal": map[string]any{"bass": 3, "mid": 0.5}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audio.Signal{Bass: 1, Mid: 0.5}, f.deps.Audio.Latest())

	rec = f.do(t, http.MethodDelete, "/api/session/audio", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, audio.Signal{}, f.deps.Audio.Latest())
}

func TestPresetsAPI(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.deps.Session.SetChain([]string{"glitch"}))

	rec := f.do(t, http.MethodPost, "/api/presets", map[string]any{"name": "live"})
	require.Equal(t, http.StatusCreated, rec.Code)
	saved := decode[presets.Preset](t, rec)
	assert.Equal(t, []string{"glitch"}, saved.Chain)

	rec = f.do(t, http.MethodPost, "/api/presets", map[string]any{"name": "", "chain": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/presets", map[string]any{
		"name": "inv", "chain": []string{"invert"}, "params": map[string]any{"invert": map[string]any{"amount": 40}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	inv := decode[presets.Preset](t, rec)

	rec = f.do(t, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]presets.Preset](t, rec), 2)

	rec = f.do(t, http.MethodPost, "/api/presets/"+inv.ID+"/apply", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"invert"}, f.deps.Session.Chain())
	assert.Equal(t, 40.0, f.deps.Session.Settings()["invert"]["amount"])

	rec = f.do(t, http.MethodDelete, "/api/presets/"+inv.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/presets/"+inv.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRendersAPI(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/renders", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/renders", map[string]any{"input": "x.mp4", "chain": []string{"sparkle"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/renders", map[string]any{"input": "x.mp4", "chain": []string{"invert", "invert"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/renders", map[string]any{"input": "missing.mp4", "chain": []string{"invert"}})
	require.Equal(t, http.StatusAccepted, rec.Code)
	job := decode[map[string]any](t, rec)
	id := job["id"].(string)
	f.deps.Renders.Wait()

	rec = f.do(t, http.MethodGet, "/api/renders/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "error", got["state"])

	rec = f.do(t, http.MethodPost, "/api/renders/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/renders", nil)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = f.do(t, http.MethodDelete, "/api/renders/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/renders/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthGuardsAPI(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("key"), bcrypt.MinCost)
	require.NoError(t, err)
	svc, err := auth.NewService(string(hash), "secret")
	require.NoError(t, err)
	f := newFixture(t, svc)

	rec := f.do(t, http.MethodGet, "/api/effects", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/login", map[string]string{"key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/login", map[string]string{"key": "key"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	token := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), auth.CookieName+"=")

	rec = f.do(t, http.MethodGet, "/api/effects", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}
