package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"story-engine/internal/domain"
	"story-engine/internal/engine"
	"story-engine/internal/save"
)

// GameEngine is the engine surface the renderer drives over HTTP.
type GameEngine interface {
	Stories() []domain.Story
	StartStory(ctx context.Context, storyID string) error
	State() *domain.GameState
	CurrentStory() *domain.Story
	CurrentScene() *domain.Scene
	AvailableChoices() []domain.Choice
	VisibleElements() []domain.ClickableElement
	SubmitChoice(ctx context.Context, choiceID string) error
	JumpToScene(ctx context.Context, sceneID string) bool
	ActivateElement(ctx context.Context, elementID string) error
	MergeVariables(ctx context.Context, patch map[string]any) error
	ToggleAutoAdvance() bool
	AutoAdvance() bool

	SaveSlots() []domain.SaveSlot
	EmptySlotID() (int, bool)
	MaxSaveSlots() int
	Save(ctx context.Context, slotID int, name string, opts ...save.SaveOption) (domain.SaveSlot, error)
	Load(ctx context.Context, slotID int) error
	DeleteSave(ctx context.Context, slotID int) error

	MiniGames() []domain.MiniGame
	CurrentMiniGame() (engine.MiniGameStatus, bool)
	StartMiniGame(ctx context.Context, gameID string, override domain.MiniGameConfig) error
	ReportMiniGameResult(ctx context.Context, result domain.GameResult) error
	PauseMiniGame() error
	ResumeMiniGame() error
	ResetMiniGame() error
	AddMiniGameScore(delta float64) error
	RetryMiniGame(ctx context.Context) error
	ExitMiniGame(ctx context.Context) error
}

var _ GameEngine = (*engine.Engine)(nil)

// GameHandler serves the renderer API.
type GameHandler struct {
	engine   GameEngine
	ws       http.Handler
	validate *validator.Validate
	logger   *zap.Logger
}

// NewGameHandler creates the handler. ws may be nil when no event stream is served.
func NewGameHandler(eng GameEngine, ws http.Handler, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		engine:   eng,
		ws:       ws,
		validate: validator.New(),
		logger:   logger.Named("GameHandler"),
	}
}

// RegisterRoutes mounts every route on e.
func (h *GameHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if h.ws != nil {
		e.GET("/ws", echo.WrapHandler(h.ws))
	}

	e.GET("/stories", h.listStories)
	e.POST("/stories/:id/start", h.startStory)

	e.GET("/state", h.getState)
	e.GET("/scene", h.getScene)
	e.POST("/choices/:id", h.submitChoice)
	e.POST("/scenes/:id/jump", h.jumpToScene)
	e.POST("/elements/:id/activate", h.activateElement)
	e.PATCH("/variables", h.mergeVariables)
	e.POST("/auto-advance/toggle", h.toggleAutoAdvance)

	saves := e.Group("/saves")
	{
		saves.GET("", h.listSaves)
		saves.POST("/:slot", h.createSave)
		saves.POST("/:slot/load", h.loadSave)
		saves.DELETE("/:slot", h.deleteSave)
	}

	e.GET("/minigames", h.listMiniGames)
	e.POST("/minigames/:id/start", h.startMiniGame)

	mg := e.Group("/minigame")
	{
		mg.GET("", h.currentMiniGame)
		mg.POST("/result", h.reportMiniGameResult)
		mg.POST("/score", h.addMiniGameScore)
		mg.POST("/pause", h.controlMiniGame(func(context.Context) error { return h.engine.PauseMiniGame() }))
		mg.POST("/resume", h.controlMiniGame(func(context.Context) error { return h.engine.ResumeMiniGame() }))
		mg.POST("/reset", h.controlMiniGame(func(context.Context) error { return h.engine.ResetMiniGame() }))
		mg.POST("/retry", h.controlMiniGame(h.engine.RetryMiniGame))
		mg.POST("/exit", h.controlMiniGame(h.engine.ExitMiniGame))
	}
}

func (h *GameHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *GameHandler) listStories(c echo.Context) error {
	stories := h.engine.Stories()
	out := make([]StorySummary, 0, len(stories))
	for _, s := range stories {
		out = append(out, StorySummary{
			ID:           s.ID,
			Title:        s.Title,
			Description:  s.Description,
			Thumbnail:    s.Thumbnail,
			StartSceneID: s.StartSceneID,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *GameHandler) startStory(c echo.Context) error {
	if err := h.engine.StartStory(c.Request().Context(), c.Param("id")); err != nil {
		return h.handleEngineError(c, err)
	}
	return h.sceneResponse(c, http.StatusCreated)
}

func (h *GameHandler) getState(c echo.Context) error {
	state := h.engine.State()
	if state == nil {
		return h.handleEngineError(c, domain.ErrNoActiveSession)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *GameHandler) getScene(c echo.Context) error {
	return h.sceneResponse(c, http.StatusOK)
}

func (h *GameHandler) sceneResponse(c echo.Context, code int) error {
	scene := h.engine.CurrentScene()
	st := h.engine.CurrentStory()
	if scene == nil || st == nil {
		return h.handleEngineError(c, domain.ErrNoActiveSession)
	}
	view := SceneView{
		StoryID:     st.ID,
		Scene:       scene,
		Choices:     h.engine.AvailableChoices(),
		Elements:    h.engine.VisibleElements(),
		AutoAdvance: h.engine.AutoAdvance(),
	}
	if view.Choices == nil {
		view.Choices = []domain.Choice{}
	}
	if view.Elements == nil {
		view.Elements = []domain.ClickableElement{}
	}
	if status, ok := h.engine.CurrentMiniGame(); ok {
		view.MiniGame = &status
	}
	return c.JSON(code, view)
}

func (h *GameHandler) submitChoice(c echo.Context) error {
	if err := h.engine.SubmitChoice(c.Request().Context(), c.Param("id")); err != nil {
		return h.handleEngineError(c, err)
	}
	return h.sceneResponse(c, http.StatusOK)
}

func (h *GameHandler) jumpToScene(c echo.Context) error {
	id := c.Param("id")
	if h.engine.State() == nil {
		return h.handleEngineError(c, domain.ErrNoActiveSession)
	}
	if !h.engine.JumpToScene(c.Request().Context(), id) {
		return h.handleEngineError(c, fmt.Errorf("%w: %s", domain.ErrSceneNotFound, id))
	}
	return h.sceneResponse(c, http.StatusOK)
}

func (h *GameHandler) activateElement(c echo.Context) error {
	if err := h.engine.ActivateElement(c.Request().Context(), c.Param("id")); err != nil {
		return h.handleEngineError(c, err)
	}
	return h.sceneResponse(c, http.StatusOK)
}

func (h *GameHandler) mergeVariables(c echo.Context) error {
	var req variablesRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.engine.MergeVariables(c.Request().Context(), req.Variables); err != nil {
		return h.handleEngineError(c, err)
	}
	return c.JSON(http.StatusOK, h.engine.State())
}

func (h *GameHandler) toggleAutoAdvance(c echo.Context) error {
	return c.JSON(http.StatusOK, autoAdvanceResponse{AutoAdvance: h.engine.ToggleAutoAdvance()})
}

func (h *GameHandler) listSaves(c echo.Context) error {
	view := SavesView{
		Slots:    h.engine.SaveSlots(),
		MaxSlots: h.engine.MaxSaveSlots(),
	}
	if view.Slots == nil {
		view.Slots = []domain.SaveSlot{}
	}
	if id, ok := h.engine.EmptySlotID(); ok {
		view.EmptySlot = &id
	}
	return c.JSON(http.StatusOK, view)
}

func (h *GameHandler) createSave(c echo.Context) error {
	slotID, err := slotParam(c)
	if err != nil {
		return h.handleEngineError(c, err)
	}
	var req saveRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	var opts []save.SaveOption
	if req.Thumbnail != "" {
		opts = append(opts, save.WithThumbnail(req.Thumbnail))
	}
	slot, err := h.engine.Save(c.Request().Context(), slotID, req.Name, opts...)
	if err != nil {
		return h.handleEngineError(c, err)
	}
	return c.JSON(http.StatusCreated, slot)
}

func (h *GameHandler) loadSave(c echo.Context) error {
	slotID, err := slotParam(c)
	if err != nil {
		return h.handleEngineError(c, err)
	}
	if err := h.engine.Load(c.Request().Context(), slotID); err != nil {
		return h.handleEngineError(c, err)
	}
	return h.sceneResponse(c, http.StatusOK)
}

func (h *GameHandler) deleteSave(c echo.Context) error {
	slotID, err := slotParam(c)
	if err != nil {
		return h.handleEngineError(c, err)
	}
	if err := h.engine.DeleteSave(c.Request().Context(), slotID); err != nil {
		return h.handleEngineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *GameHandler) listMiniGames(c echo.Context) error {
	games := h.engine.MiniGames()
	if games == nil {
		games = []domain.MiniGame{}
	}
	return c.JSON(http.StatusOK, games)
}

func (h *GameHandler) currentMiniGame(c echo.Context) error {
	status, ok := h.engine.CurrentMiniGame()
	if !ok {
		return h.handleEngineError(c, domain.ErrNoActiveMiniGame)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *GameHandler) startMiniGame(c echo.Context) error {
	var req miniGameStartRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.engine.StartMiniGame(c.Request().Context(), c.Param("id"), req.Config); err != nil {
		return h.handleEngineError(c, err)
	}
	return h.currentMiniGame(c)
}

func (h *GameHandler) reportMiniGameResult(c echo.Context) error {
	var req miniGameResultRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	result := domain.GameResult{Success: *req.Success, Score: req.Score, Data: req.Data}
	if err := h.engine.ReportMiniGameResult(c.Request().Context(), result); err != nil {
		return h.handleEngineError(c, err)
	}
	return h.sceneResponse(c, http.StatusOK)
}

func (h *GameHandler) addMiniGameScore(c echo.Context) error {
	var req miniGameScoreRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.engine.AddMiniGameScore(*req.Delta); err != nil {
		return h.handleEngineError(c, err)
	}
	return h.currentMiniGame(c)
}

func (h *GameHandler) controlMiniGame(op func(context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := op(c.Request().Context()); err != nil {
			return h.handleEngineError(c, err)
		}
		status, ok := h.engine.CurrentMiniGame()
		if !ok {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, status)
	}
}

// bind decodes the body, if any, and validates it.
func (h *GameHandler) bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return fmt.Errorf("invalid request body: %v", he.Message)
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func slotParam(c echo.Context) (int, error) {
	raw := c.Param("slot")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidSlotID, raw)
	}
	return id, nil
}
