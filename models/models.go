package models

import (
	"errors"
	"time"
)

// ErrWatchNotFound is returned when a monitored subject is not found
var ErrWatchNotFound = errors.New("watch not found")

// ErrRunNotFound is returned when a detection run is not found
var ErrRunNotFound = errors.New("run not found")

// Platform identifies a content source.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformTwitter Platform = "twitter"
)

// RunStatus is the lifecycle state of a detection run.
type RunStatus string

const (
	RunStatusCreated   RunStatus = "created"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// TwitterQuery is a single Twitter search in a plan. Quality filters
// (min retweets/likes/replies) are applied client-side against public metrics.
type TwitterQuery struct {
	Query       string `json:"query" yaml:"query"`
	Description string `json:"description" yaml:"description"`
	Section     string `json:"section,omitempty" yaml:"section,omitempty"` // top or latest
	MinRetweets int    `json:"min_retweets" yaml:"min_retweets"`
	MinLikes    int    `json:"min_likes" yaml:"min_likes"`
	MinReplies  int    `json:"min_replies" yaml:"min_replies"`
	StartDate   string `json:"start_date,omitempty" yaml:"start_date,omitempty"` // YYYY-MM-DD
	EndDate     string `json:"end_date,omitempty" yaml:"end_date,omitempty"`     // YYYY-MM-DD
	Language    string `json:"language,omitempty" yaml:"language,omitempty"`     // 2-letter code
}

// YouTubeQuery is a single YouTube search in a plan.
type YouTubeQuery struct {
	Query       string `json:"query" yaml:"query"`
	Description string `json:"description" yaml:"description"`
}

// SearchPlan is the per-platform set of queries a run executes.
type SearchPlan struct {
	Twitter []TwitterQuery `json:"twitter" yaml:"twitter"`
	YouTube []YouTubeQuery `json:"youtube" yaml:"youtube"`
}

// Evidence is one fetched snippet of platform content, the unit of analysis.
type Evidence struct {
	ID          string    `json:"id"`
	Platform    Platform  `json:"platform"`
	SourceID    string    `json:"source_id"` // video id or tweet id
	Title       string    `json:"title,omitempty"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	URL         string    `json:"url,omitempty"`
	Engagement  string    `json:"engagement,omitempty"`
	Comments    []string  `json:"comments,omitempty"`
	LinkedText  string    `json:"linked_text,omitempty"` // readability extraction of linked pages
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Statement is a potentially defamatory statement flagged by the analyzer.
type Statement struct {
	Statement string `json:"statement" yaml:"statement"`
	Context   string `json:"context" yaml:"context"`
	RiskLevel string `json:"risk_level" yaml:"risk_level"` // high, medium, low
	Reasoning string `json:"reasoning" yaml:"reasoning"`
}

// Analysis is the analyzer verdict for a single piece of evidence.
type Analysis struct {
	RiskScore       float64     `json:"risk_score" yaml:"risk_score"`             // 0.0 to 1.0
	ConfidenceScore float64     `json:"confidence_score" yaml:"confidence_score"` // 0.0 to 1.0
	Statements      []Statement `json:"slanderous_statements" yaml:"slanderous_statements"`
	ContextAnalysis string      `json:"context_analysis" yaml:"context_analysis"`
}

// ReportItem pairs evidence with its analysis.
type ReportItem struct {
	Evidence Evidence `json:"evidence"`
	Analysis Analysis `json:"analysis"`
}

// Report is the aggregated outcome of a detection run.
type Report struct {
	RunID             string        `json:"run_id"`
	Target            string        `json:"target"`
	Query             string        `json:"query"`
	Keywords          []string      `json:"keywords,omitempty"`
	Plan              SearchPlan    `json:"plan"`
	Items             []ReportItem  `json:"items"`
	OverallRisk       float64       `json:"overall_risk"`
	OverallConfidence float64       `json:"overall_confidence"`
	HighRiskCount     int           `json:"high_risk_count"`
	MediumRiskCount   int           `json:"medium_risk_count"`
	LowRiskCount      int           `json:"low_risk_count"`
	EvidenceCount     int           `json:"evidence_count"`
	ProcessingTime    time.Duration `json:"processing_time"`
	CreatedAt         time.Time     `json:"created_at"`
}

// RiskBand maps a score to the high/medium/low banding used across report
// rendering and statement counting.
func RiskBand(score float64) string {
	switch {
	case score > 0.7:
		return "high"
	case score > 0.3:
		return "medium"
	default:
		return "low"
	}
}

// Run is a persisted detection run.
type Run struct {
	ID         string     `json:"id"`
	WatchID    string     `json:"watch_id,omitempty"`
	Query      string     `json:"query"`
	Target     string     `json:"target,omitempty"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Watch is a monitored subject the scheduler re-runs on a cron spec.
type Watch struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Target    string    `json:"target,omitempty"`
	Keywords  []string  `json:"keywords,omitempty"`
	CronSpec  string    `json:"cron_spec"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
