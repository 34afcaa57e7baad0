package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"

	"github.com/slanderwatch/slanderwatch/models"
)

// watchStore is the slice of the store watch handling needs.
type watchStore interface {
	CreateWatch(ctx context.Context, w models.Watch) (string, error)
	GetWatch(ctx context.Context, id string) (models.Watch, error)
	ListWatches(ctx context.Context) ([]models.Watch, error)
	DeleteWatch(ctx context.Context, id string) error
}

type WatchesHandler struct {
	Store watchStore
}

func (h *WatchesHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
}

func (h *WatchesHandler) create(c echo.Context) error {
	var req CreateWatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	if req.CronSpec == "" {
		req.CronSpec = "@daily"
	}
	if err := ValidateCronSpec(req.CronSpec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.Store.CreateWatch(c.Request().Context(), models.Watch{
		Query:    req.Query,
		Target:   req.Target,
		Keywords: req.Keywords,
		CronSpec: req.CronSpec,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *WatchesHandler) list(c echo.Context) error {
	watches, err := h.Store.ListWatches(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, watches)
}

func (h *WatchesHandler) get(c echo.Context) error {
	w, err := h.Store.GetWatch(c.Request().Context(), c.Param("id"))
	if errors.Is(err, models.ErrWatchNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "watch not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, w)
}

func (h *WatchesHandler) delete(c echo.Context) error {
	err := h.Store.DeleteWatch(c.Request().Context(), c.Param("id"))
	if errors.Is(err, models.ErrWatchNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "watch not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ValidateCronSpec accepts @daily, @hourly or a standard cron expression.
// Shared with the CLI so both write paths reject the same specs.
func ValidateCronSpec(spec string) error {
	switch spec {
	case "@daily", "@hourly":
		return nil
	}
	if _, err := cronexpr.Parse(spec); err != nil {
		return errors.New("invalid cron spec: " + spec)
	}
	return nil
}
