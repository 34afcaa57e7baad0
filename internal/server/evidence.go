package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slanderwatch/slanderwatch/internal/index"
)

// evidenceSearcher is the slice of the full-text index the handler needs.
type evidenceSearcher interface {
	Search(q string, k int) ([]index.Hit, error)
}

type EvidenceHandler struct {
	Index evidenceSearcher
}

func (h *EvidenceHandler) Register(g *echo.Group) {
	g.GET("/search", h.search)
}

func (h *EvidenceHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	k := 10
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be 1-100")
		}
		k = n
	}
	hits, err := h.Index.Search(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	return c.JSON(http.StatusOK, hits)
}
