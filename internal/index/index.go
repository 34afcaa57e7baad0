package index

import (
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/slanderwatch/slanderwatch/models"
)

// Hit is a single evidence search result.
type Hit struct {
	Evidence models.Evidence `json:"evidence"`
	RunID    string          `json:"run_id"`
	Score    float64         `json:"score"`
	Fragment string          `json:"fragment,omitempty"`
}

// doc is the indexed shape: evidence text plus the run it came from.
type doc struct {
	RunID      string `json:"run_id"`
	Platform   string `json:"platform"`
	Author     string `json:"author"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	Comments   string `json:"comments"`
	LinkedText string `json:"linked_text"`
}

// EvidenceIndex is a full-text index over collected evidence, backed by bleve.
type EvidenceIndex struct {
	idx  bleve.Index
	meta map[string]Hit // evidence id -> original evidence + run
	mu   sync.RWMutex
}

// Open opens (or creates) a file-backed evidence index at path. An empty path
// yields an in-memory index.
func Open(path string) (*EvidenceIndex, error) {
	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	default:
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist || os.IsNotExist(err) {
			idx, err = bleve.New(path, bleve.NewIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open evidence index: %w", err)
	}
	return &EvidenceIndex{idx: idx, meta: make(map[string]Hit)}, nil
}

// AddReport indexes every evidence item of a finished report.
func (e *EvidenceIndex) AddReport(report models.Report) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range report.Items {
		ev := it.Evidence
		d := doc{
			RunID:      report.RunID,
			Platform:   string(ev.Platform),
			Author:     ev.Author,
			Title:      ev.Title,
			Text:       ev.Text,
			LinkedText: ev.LinkedText,
		}
		for _, c := range ev.Comments {
			d.Comments += c + "\n"
		}
		if err := e.idx.Index(ev.ID, d); err != nil {
			return fmt.Errorf("index evidence %s: %w", ev.ID, err)
		}
		e.meta[ev.ID] = Hit{Evidence: ev, RunID: report.RunID}
	}
	return nil
}

// Search runs a query-string search over indexed evidence and returns at most
// k hits, best first.
func (e *EvidenceIndex) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")

	res, err := e.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("evidence search: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Hit
	for _, h := range res.Hits {
		hit, ok := e.meta[h.ID]
		if !ok {
			continue
		}
		hit.Score = h.Score
		for _, frags := range h.Fragments {
			if len(frags) > 0 {
				hit.Fragment = frags[0]
				break
			}
		}
		out = append(out, hit)
	}
	return out, nil
}

// Close releases the underlying index.
func (e *EvidenceIndex) Close() error {
	return e.idx.Close()
}
