package detect

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slanderwatch/slanderwatch/models"
)

// BuildReport aggregates analyzed items into a report: mean risk and
// confidence across items, statement counts per risk band, items sorted by
// risk score descending.
func BuildReport(req Request, plan models.SearchPlan, items []models.ReportItem) models.Report {
	report := models.Report{
		RunID:         req.RunID,
		Target:        req.Target,
		Query:         req.Query,
		Keywords:      req.Keywords,
		Plan:          plan,
		Items:         items,
		EvidenceCount: len(items),
		CreatedAt:     time.Now().UTC(),
	}

	if len(items) > 0 {
		var risk, confidence float64
		for _, it := range items {
			risk += it.Analysis.RiskScore
			confidence += it.Analysis.ConfidenceScore
		}
		report.OverallRisk = risk / float64(len(items))
		report.OverallConfidence = confidence / float64(len(items))
	}

	for _, it := range items {
		for _, st := range it.Analysis.Statements {
			switch st.RiskLevel {
			case "high":
				report.HighRiskCount++
			case "medium":
				report.MediumRiskCount++
			default:
				report.LowRiskCount++
			}
		}
	}

	sort.SliceStable(report.Items, func(i, j int) bool {
		return report.Items[i].Analysis.RiskScore > report.Items[j].Analysis.RiskScore
	})
	return report
}

// RenderJSON renders the report as indented JSON.
func RenderJSON(r models.Report) (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(b), nil
}

// RenderYAML renders the report as YAML. The report goes through JSON first
// so the YAML keys match the json struct tags.
func RenderYAML(r models.Report) (string, error) {
	jb, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(jb, &generic); err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	b, err := yaml.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(b), nil
}

// RenderMarkdown renders the report as a human-readable markdown document.
func RenderMarkdown(r models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Slander Report: %s\n\n", r.Target)
	fmt.Fprintf(&b, "Run `%s` — %s\n\n", r.RunID, r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Overall risk: **%.2f** (%s)\n", r.OverallRisk, models.RiskBand(r.OverallRisk))
	fmt.Fprintf(&b, "- Confidence: %.2f\n", r.OverallConfidence)
	fmt.Fprintf(&b, "- Evidence analyzed: %d\n", r.EvidenceCount)
	fmt.Fprintf(&b, "- Flagged statements: %d high / %d medium / %d low\n",
		r.HighRiskCount, r.MediumRiskCount, r.LowRiskCount)
	if r.ProcessingTime > 0 {
		fmt.Fprintf(&b, "- Processing time: %s\n", r.ProcessingTime.Round(time.Millisecond))
	}
	b.WriteString("\n")

	if len(r.Items) == 0 {
		b.WriteString("No evidence matched the search plan.\n")
		return b.String()
	}

	b.WriteString("## Findings\n\n")
	for i, it := range r.Items {
		title := it.Evidence.Title
		if title == "" {
			title = it.Evidence.Author
		}
		fmt.Fprintf(&b, "### %d. [%s] %s (risk %.2f)\n\n", i+1, it.Evidence.Platform, title, it.Analysis.RiskScore)
		if it.Evidence.URL != "" {
			fmt.Fprintf(&b, "%s\n\n", it.Evidence.URL)
		}
		if it.Analysis.ContextAnalysis != "" {
			fmt.Fprintf(&b, "%s\n\n", it.Analysis.ContextAnalysis)
		}
		for _, st := range it.Analysis.Statements {
			fmt.Fprintf(&b, "- **%s**: %q\n", st.RiskLevel, st.Statement)
			if st.Reasoning != "" {
				fmt.Fprintf(&b, "  - %s\n", st.Reasoning)
			}
		}
		if len(it.Analysis.Statements) > 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Render dispatches on the output format: markdown (default), yaml or json.
func Render(r models.Report, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "markdown", "md":
		return RenderMarkdown(r), nil
	case "yaml", "yml":
		return RenderYAML(r)
	case "json":
		return RenderJSON(r)
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}
