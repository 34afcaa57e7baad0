package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/slanderwatch/slanderwatch/internal/index"
	"github.com/slanderwatch/slanderwatch/models"
)

func TestEvidenceSearch(t *testing.T) {
	idx, err := index.Open("")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()
	_ = idx.AddReport(models.Report{
		RunID: "r1",
		Items: []models.ReportItem{{
			Evidence: models.Evidence{ID: "e1", Platform: models.PlatformTwitter, Text: "jane doe is a liar"},
		}},
	})

	e := echo.New()
	h := &EvidenceHandler{Index: idx}

	req := httptest.NewRequest(http.MethodGet, "/api/evidence/search?q=liar", nil)
	rec := httptest.NewRecorder()
	if err := h.search(e.NewContext(req, rec)); err != nil {
		t.Fatalf("search: %v", err)
	}
	var hits []index.Hit
	if err := json.Unmarshal(rec.Body.Bytes(), &hits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hits) != 1 || hits[0].Evidence.ID != "e1" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestEvidenceSearchValidation(t *testing.T) {
	e := echo.New()
	h := &EvidenceHandler{}

	req := httptest.NewRequest(http.MethodGet, "/api/evidence/search", nil)
	err := h.search(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing q, got %#v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/evidence/search?q=x&k=0", nil)
	err = h.search(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok = err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad k, got %#v", err)
	}
}
