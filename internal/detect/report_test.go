package detect

import (
	"strings"
	"testing"

	"github.com/slanderwatch/slanderwatch/models"
)

func sampleItems() []models.ReportItem {
	return []models.ReportItem{
		{
			Evidence: models.Evidence{Platform: models.PlatformYouTube, SourceID: "v1", Title: "Mild take"},
			Analysis: models.Analysis{RiskScore: 0.2, ConfidenceScore: 0.6},
		},
		{
			Evidence: models.Evidence{Platform: models.PlatformTwitter, SourceID: "t1", Author: "@acc", URL: "https://twitter.com/acc/status/t1"},
			Analysis: models.Analysis{
				RiskScore:       0.9,
				ConfidenceScore: 0.8,
				Statements: []models.Statement{
					{Statement: "she embezzled money", RiskLevel: "high", Reasoning: "factual crime claim"},
					{Statement: "everyone knows she is shady", RiskLevel: "low"},
				},
				ContextAnalysis: "direct accusation",
			},
		},
	}
}

func TestBuildReport(t *testing.T) {
	req := Request{RunID: "r1", Query: "jane doe", Target: "jane doe"}
	report := BuildReport(req, models.SearchPlan{}, sampleItems())

	if report.EvidenceCount != 2 {
		t.Fatalf("expected 2 items, got %d", report.EvidenceCount)
	}
	if got := report.OverallRisk; got < 0.549 || got > 0.551 {
		t.Fatalf("expected mean risk 0.55, got %f", got)
	}
	if got := report.OverallConfidence; got < 0.699 || got > 0.701 {
		t.Fatalf("expected mean confidence 0.7, got %f", got)
	}
	if report.HighRiskCount != 1 || report.MediumRiskCount != 0 || report.LowRiskCount != 1 {
		t.Fatalf("bad band counts: %d/%d/%d", report.HighRiskCount, report.MediumRiskCount, report.LowRiskCount)
	}
	// sorted by risk descending
	if report.Items[0].Evidence.SourceID != "t1" {
		t.Fatalf("items not sorted by risk: %+v", report.Items[0].Evidence)
	}
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(Request{RunID: "r1", Target: "x"}, models.SearchPlan{}, nil)
	if report.OverallRisk != 0 || report.EvidenceCount != 0 {
		t.Fatalf("empty report should be zeroed: %+v", report)
	}
}

func TestRenderMarkdown(t *testing.T) {
	report := BuildReport(Request{RunID: "r1", Query: "jane doe", Target: "jane doe"}, models.SearchPlan{}, sampleItems())
	out := RenderMarkdown(report)

	for _, want := range []string{
		"# Slander Report: jane doe",
		"Overall risk: **0.55**",
		"she embezzled money",
		"https://twitter.com/acc/status/t1",
		"1 high / 0 medium / 1 low",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDispatch(t *testing.T) {
	report := BuildReport(Request{RunID: "r1", Target: "x"}, models.SearchPlan{}, nil)

	if out, err := Render(report, "json"); err != nil || !strings.Contains(out, `"run_id": "r1"`) {
		t.Fatalf("json render failed: %v\n%s", err, out)
	}
	if out, err := Render(report, "yaml"); err != nil || !strings.Contains(out, "run_id: r1") {
		t.Fatalf("yaml render failed: %v\n%s", err, out)
	}
	if out, err := Render(report, ""); err != nil || !strings.Contains(out, "# Slander Report") {
		t.Fatalf("default render should be markdown: %v", err)
	}
	if _, err := Render(report, "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
