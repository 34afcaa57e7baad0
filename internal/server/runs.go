package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slanderwatch/slanderwatch/internal/detect"
	"github.com/slanderwatch/slanderwatch/internal/telemetry"
	"github.com/slanderwatch/slanderwatch/models"
	"github.com/slanderwatch/slanderwatch/repository"
)

// runStore is the slice of the store run handling needs.
type runStore interface {
	CreateRun(ctx context.Context, run models.Run) (string, error)
	SetRunStatus(ctx context.Context, runID string, status models.RunStatus) error
	FinishRun(ctx context.Context, runID string, status models.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	SaveReport(ctx context.Context, report models.Report) error
	GetReport(ctx context.Context, runID string) (models.Report, error)
}

// runner executes the detection pipeline.
type runner interface {
	Run(ctx context.Context, req detect.Request) (models.Report, error)
}

// reportIndexer makes finished reports searchable.
type reportIndexer interface {
	AddReport(report models.Report) error
}

const (
	statusTTL = time.Hour
	reportTTL = 24 * time.Hour
)

type RunsHandler struct {
	Store    runStore
	Detector runner
	Cache    repository.RunCache // optional
	Index    reportIndexer       // optional
	Logger   *log.Logger
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/report", h.report)
}

func (h *RunsHandler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

func (h *RunsHandler) create(c echo.Context) error {
	var req CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" && req.Describe == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query or describe required")
	}
	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	target := req.Target
	if target == "" {
		target = req.Query
	}
	runID, err := h.Store.CreateRun(c.Request().Context(), models.Run{
		Query:  req.Query,
		Target: target,
		Status: models.RunStatusCreated,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	go h.execute(detect.Request{
		RunID:     runID,
		Query:     req.Query,
		Keywords:  req.Keywords,
		Target:    target,
		Describe:  req.Describe,
		Platforms: platforms,
	})

	return c.JSON(http.StatusAccepted, IDResponse{ID: runID})
}

// execute drives one run in the background and persists the outcome.
func (h *RunsHandler) execute(req detect.Request) {
	ctx := context.Background()
	h.setStatus(ctx, req.RunID, models.RunStatusRunning)

	report, err := h.Detector.Run(ctx, req)
	if err != nil {
		h.logger().Printf("run %s failed: %v", req.RunID, err)
		telemetry.RunsTotal.WithLabelValues(string(models.RunStatusFailed)).Inc()
		if err := h.Store.FinishRun(ctx, req.RunID, models.RunStatusFailed, err.Error()); err != nil {
			h.logger().Printf("finish run %s: %v", req.RunID, err)
		}
		h.cacheStatus(ctx, req.RunID, models.RunStatusFailed)
		return
	}

	if err := h.Store.SaveReport(ctx, report); err != nil {
		h.logger().Printf("save report %s: %v", req.RunID, err)
	}
	if h.Cache != nil {
		if err := h.Cache.CacheReport(ctx, report, reportTTL); err != nil {
			h.logger().Printf("cache report %s: %v", req.RunID, err)
		}
	}
	if h.Index != nil {
		if err := h.Index.AddReport(report); err != nil {
			h.logger().Printf("index report %s: %v", req.RunID, err)
		}
	}

	telemetry.RunsTotal.WithLabelValues(string(models.RunStatusSucceeded)).Inc()
	if err := h.Store.FinishRun(ctx, req.RunID, models.RunStatusSucceeded, ""); err != nil {
		h.logger().Printf("finish run %s: %v", req.RunID, err)
	}
	h.cacheStatus(ctx, req.RunID, models.RunStatusSucceeded)
}

func (h *RunsHandler) setStatus(ctx context.Context, runID string, status models.RunStatus) {
	if err := h.Store.SetRunStatus(ctx, runID, status); err != nil {
		h.logger().Printf("set run %s status: %v", runID, err)
	}
	h.cacheStatus(ctx, runID, status)
}

func (h *RunsHandler) cacheStatus(ctx context.Context, runID string, status models.RunStatus) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.SetRunStatus(ctx, runID, status, statusTTL); err != nil {
		h.logger().Printf("cache run %s status: %v", runID, err)
	}
}

func (h *RunsHandler) list(c echo.Context) error {
	runs, err := h.Store.ListRuns(c.Request().Context(), 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) get(c echo.Context) error {
	ctx := c.Request().Context()
	run, err := h.Store.GetRun(ctx, c.Param("id"))
	if errors.Is(err, models.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// the cache may hold a fresher status than the row, e.g. when another
	// replica is executing the run
	if h.Cache != nil && run.FinishedAt == nil {
		if status, err := h.Cache.GetRunStatus(ctx, run.ID); err == nil && status != "" {
			run.Status = status
		}
	}
	return c.JSON(http.StatusOK, run)
}

func (h *RunsHandler) report(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("id")

	var report models.Report
	found := false
	if h.Cache != nil {
		if cached, ok, err := h.Cache.GetCachedReport(ctx, runID); err == nil && ok {
			report, found = cached, true
		}
	}
	if !found {
		var err error
		report, err = h.Store.GetReport(ctx, runID)
		if errors.Is(err, models.ErrRunNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	switch format := c.QueryParam("format"); format {
	case "", "json":
		return c.JSON(http.StatusOK, report)
	case "markdown", "md":
		return c.String(http.StatusOK, detect.RenderMarkdown(report))
	case "yaml", "yml":
		out, err := detect.RenderYAML(report)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.String(http.StatusOK, out)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown format")
	}
}

func parsePlatforms(raw []string) ([]models.Platform, error) {
	var out []models.Platform
	for _, p := range raw {
		switch models.Platform(p) {
		case models.PlatformYouTube, models.PlatformTwitter:
			out = append(out, models.Platform(p))
		default:
			return nil, errors.New("unknown platform: " + p)
		}
	}
	return out, nil
}
