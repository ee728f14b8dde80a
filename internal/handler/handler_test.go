package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-engine/internal/domain"
	"story-engine/internal/engine"
	"story-engine/internal/messaging"
	"story-engine/internal/save"
	"story-engine/internal/story"
	"story-engine/pkg/scheduler"
)

type apiFixture struct {
	e      *echo.Echo
	engine *engine.Engine
	events *messaging.Recorder
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	bundle, err := story.Samples()
	require.NoError(t, err)

	store, err := save.NewStore(ctx, save.NewMemoryBackend(), save.Options{Logger: zap.NewNop()})
	require.NoError(t, err)

	f := &apiFixture{events: &messaging.Recorder{}}
	f.engine, err = engine.New(engine.Options{
		Stories:   bundle.Stories,
		MiniGames: bundle.MiniGames,
		Store:     store,
		Scheduler: scheduler.NewManual(),
		Publisher: f.events,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(f.engine.Close)

	f.e = echo.New()
	f.e.Use(EchoZapLogger(zap.NewNop()), RequestMetrics())
	NewGameHandler(f.engine, nil, zap.NewNop()).RegisterRoutes(f.e)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, code int) ErrorResponse {
	t.Helper()
	require.Equal(t, code, rec.Code, rec.Body.String())
	body := decode[ErrorResponse](t, rec)
	assert.NotEmpty(t, body.Error)
	return body
}

func TestPlaythroughWithMiniGameAndSaves(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/stories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stories := decode[[]StorySummary](t, rec)
	require.Len(t, stories, 2)

	requireError(t, f.do(t, http.MethodGet, "/scene", ""), http.StatusConflict)
	requireError(t, f.do(t, http.MethodPost, "/stories/unknown/start", ""), http.StatusNotFound)

	rec = f.do(t, http.MethodPost, "/stories/space-adventure/start", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[SceneView](t, rec)
	assert.Equal(t, "space-station", view.Scene.ID)
	assert.Len(t, view.Choices, 2)

	rec = f.do(t, http.MethodPost, "/choices/start-mission", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "space-travel", decode[SceneView](t, rec).Scene.ID)

	rec = f.do(t, http.MethodPost, "/choices/check-alert", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decode[SceneView](t, rec)
	assert.Equal(t, "space-alert", view.Scene.ID)
	require.NotNil(t, view.MiniGame)
	assert.Equal(t, "asteroid-dodge", view.MiniGame.Game.ID)
	assert.True(t, view.MiniGame.CanRetry)

	rec = f.do(t, http.MethodPost, "/minigame/pause", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[engine.MiniGameStatus](t, rec).State.IsPaused)

	requireError(t, f.do(t, http.MethodPost, "/minigame/score", `{}`), http.StatusBadRequest)
	rec = f.do(t, http.MethodPost, "/minigame/score", `{"delta": 15}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 15.0, decode[engine.MiniGameStatus](t, rec).State.Score)

	requireError(t, f.do(t, http.MethodPost, "/minigame/result", `{"score": 3}`), http.StatusBadRequest)

	rec = f.do(t, http.MethodPost, "/minigame/result", `{"success": true, "score": 40}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decode[SceneView](t, rec)
	assert.Equal(t, "space-clear", view.Scene.ID)
	assert.Nil(t, view.MiniGame)
	require.Len(t, view.Choices, 1)
	assert.Equal(t, "land", view.Choices[0].ID)

	rec = f.do(t, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[domain.GameState](t, rec)
	assert.Equal(t, []string{"asteroid-dodge"}, state.CompletedMiniGames)
	assert.Equal(t, 40.0, state.GameVariables["minigame_asteroid-dodge_score"])
	assert.Equal(t, true, state.GameVariables["minigame_asteroid-dodge_result"])

	rec = f.do(t, http.MethodPost, "/saves/1", `{"name": "before landing", "thumbnail": "/thumbs/clear.png"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	slot := decode[domain.SaveSlot](t, rec)
	assert.Equal(t, "before landing", slot.Name)
	assert.Equal(t, "/thumbs/clear.png", slot.Thumbnail)

	rec = f.do(t, http.MethodPost, "/choices/land", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "planet-surface", decode[SceneView](t, rec).Scene.ID)

	rec = f.do(t, http.MethodPost, "/saves/1/load", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "space-clear", decode[SceneView](t, rec).Scene.ID)

	rec = f.do(t, http.MethodGet, "/saves", "")
	require.Equal(t, http.StatusOK, rec.Code)
	saves := decode[SavesView](t, rec)
	require.Len(t, saves.Slots, 1)
	assert.Equal(t, domain.DefaultMaxSaveSlots, saves.MaxSlots)
	require.NotNil(t, saves.EmptySlot)
	assert.Equal(t, 2, *saves.EmptySlot)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/saves/1", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/saves/1", "").Code)
	requireError(t, f.do(t, http.MethodPost, "/saves/1/load", ""), http.StatusNotFound)

	assert.Contains(t, f.events.Types(), messaging.EventMiniGameCompleted)
	assert.Contains(t, f.events.Types(), messaging.EventGameLoaded)
}

func TestSaveSlotValidation(t *testing.T) {
	f := newAPIFixture(t)
	requireError(t, f.do(t, http.MethodPost, "/saves/1", ""), http.StatusConflict)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/stories/mystery-mansion/start", "").Code)

	for _, path := range []string{"/saves/0", "/saves/11", "/saves/abc"} {
		t.Run(path, func(t *testing.T) {
			requireError(t, f.do(t, http.MethodPost, path, ""), http.StatusBadRequest)
			requireError(t, f.do(t, http.MethodPost, path+"/load", ""), http.StatusBadRequest)
			requireError(t, f.do(t, http.MethodDelete, path, ""), http.StatusBadRequest)
		})
	}

	long := strings.Repeat("x", 101)
	requireError(t, f.do(t, http.MethodPost, "/saves/2", fmt.Sprintf(`{"name": %q}`, long)), http.StatusBadRequest)

	rec := f.do(t, http.MethodPost, "/saves/2", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Save 2", decode[domain.SaveSlot](t, rec).Name)
}

func TestElementsVariablesAndNavigation(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/stories/mystery-mansion/start", "").Code)

	requireError(t, f.do(t, http.MethodPost, "/scenes/nowhere/jump", ""), http.StatusNotFound)

	rec := f.do(t, http.MethodPost, "/scenes/mansion-hall-investigation/jump", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[SceneView](t, rec)
	require.Len(t, view.Elements, 1)
	assert.Equal(t, "strange-clock", view.Elements[0].ID)
	assert.Len(t, view.Choices, 1)

	requireError(t, f.do(t, http.MethodPost, "/elements/hidden-panel/activate", ""), http.StatusConflict)
	requireError(t, f.do(t, http.MethodPost, "/elements/ghost/activate", ""), http.StatusNotFound)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/elements/strange-clock/activate", "").Code)

	requireError(t, f.do(t, http.MethodPatch, "/variables", `{"variables": {}}`), http.StatusBadRequest)
	requireError(t, f.do(t, http.MethodPatch, "/variables", `{"variables": `), http.StatusBadRequest)

	rec = f.do(t, http.MethodPatch, "/variables", `{"variables": {"hasKey": true}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decode[domain.GameState](t, rec)
	assert.Equal(t, true, state.GameVariables["hasKey"])
	assert.Equal(t, true, state.GameVariables["examined_strange-clock"])

	rec = f.do(t, http.MethodGet, "/scene", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[SceneView](t, rec).Choices, 2)

	requireError(t, f.do(t, http.MethodPost, "/choices/teleport", ""), http.StatusNotFound)

	rec = f.do(t, http.MethodPost, "/auto-advance/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[autoAdvanceResponse](t, rec).AutoAdvance
	rec = f.do(t, http.MethodPost, "/auto-advance/toggle", "")
	assert.Equal(t, !first, decode[autoAdvanceResponse](t, rec).AutoAdvance)
}

func TestMiniGameRoutesWithoutSession(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/minigames", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.MiniGame](t, rec), 1)

	for _, path := range []string{"/minigame/pause", "/minigame/resume", "/minigame/reset", "/minigame/retry", "/minigame/exit"} {
		requireError(t, f.do(t, http.MethodPost, path, ""), http.StatusConflict)
	}
	requireError(t, f.do(t, http.MethodGet, "/minigame", ""), http.StatusConflict)
	requireError(t, f.do(t, http.MethodPost, "/minigame/score", `{"delta": 1}`), http.StatusConflict)
	requireError(t, f.do(t, http.MethodPost, "/minigame/result", `{"success": false}`), http.StatusConflict)
	requireError(t, f.do(t, http.MethodPost, "/minigames/asteroid-dodge/start", ""), http.StatusConflict)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/stories/space-adventure/start", "").Code)
	requireError(t, f.do(t, http.MethodPost, "/minigames/unknown/start", ""), http.StatusNotFound)

	rec = f.do(t, http.MethodPost, "/minigames/asteroid-dodge/start", `{"config": {"timeLimit": 5}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status := decode[engine.MiniGameStatus](t, rec)
	require.NotNil(t, status.State.TimeRemaining)
	assert.Equal(t, 5, *status.State.TimeRemaining)

	rec = f.do(t, http.MethodPost, "/minigame/exit", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, f.events.Types(), messaging.EventMiniGameExited)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.do(t, http.MethodGet, "/stories", "")
	rec = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `story_engine_http_requests_total{method="GET",route="/stories",status="200"}`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrStoryNotFound, http.StatusNotFound},
		{fmt.Errorf("slot 1: %w", domain.ErrSaveNotFound), http.StatusNotFound},
		{domain.ErrInvalidSlotID, http.StatusBadRequest},
		{domain.ErrRetryNotAllowed, http.StatusConflict},
		{fmt.Errorf("write: %w: %w", domain.ErrPersistenceFailure, errors.New("disk full")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
