package detect

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/internal/telemetry"
	"github.com/slanderwatch/slanderwatch/models"
	"github.com/slanderwatch/slanderwatch/provider"
	"github.com/slanderwatch/slanderwatch/tools/twitter"
	"github.com/slanderwatch/slanderwatch/tools/webpage"
	"github.com/slanderwatch/slanderwatch/tools/youtube"
)

// YouTubeSource is the slice of the YouTube client the pipeline needs.
type YouTubeSource interface {
	SearchVideos(ctx context.Context, query string) ([]youtube.Video, error)
	VideoComments(ctx context.Context, videoID string, maxResults int) ([]youtube.Comment, error)
}

// TwitterSource is the slice of the Twitter client the pipeline needs.
type TwitterSource interface {
	SearchTweets(ctx context.Context, q models.TwitterQuery) ([]twitter.Tweet, error)
}

// PageFetcher extracts readable text from links found in evidence.
type PageFetcher interface {
	ExtractText(ctx context.Context, pageURL string) (string, error)
}

// Request describes one detection run.
type Request struct {
	RunID     string
	Query     string
	Keywords  []string
	Target    string            // person named in the analysis prompt; defaults to Query
	Describe  string            // natural-language input; triggers LLM plan generation
	Platforms []models.Platform // empty means all
}

// Detector runs the plan -> search -> analyze -> aggregate pipeline.
type Detector struct {
	cfg      config.DetectionConfig
	provider provider.Provider
	youtube  YouTubeSource
	twitter  TwitterSource
	pages    PageFetcher
	comments int
	logger   *log.Logger
}

// New creates a detector. youtube, twitter and pages may be nil; the
// corresponding stages are skipped.
func New(cfg config.DetectionConfig, prov provider.Provider, yt YouTubeSource, tw TwitterSource, pages PageFetcher, maxComments int) *Detector {
	if maxComments <= 0 {
		maxComments = 20
	}
	return &Detector{
		cfg:      cfg.Normalize(),
		provider: prov,
		youtube:  yt,
		twitter:  tw,
		pages:    pages,
		comments: maxComments,
		logger:   log.New(log.Writer(), "[DETECT] ", log.LstdFlags),
	}
}

// Run executes a full detection run and returns the aggregated report.
func (d *Detector) Run(ctx context.Context, req Request) (models.Report, error) {
	start := time.Now()
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Target == "" {
		req.Target = req.Query
	}

	if d.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RunTimeout)
		defer cancel()
	}

	plan, err := d.buildPlan(ctx, req)
	if err != nil {
		return models.Report{}, err
	}
	plan = d.filterPlan(plan, req.Platforms)

	evidence, searchErrs := d.collect(ctx, plan)
	if len(evidence) == 0 && len(searchErrs) > 0 {
		return models.Report{}, fmt.Errorf("all searches failed: %w", searchErrs[0])
	}
	d.logger.Printf("run %s: collected %d evidence items (%d search errors)", req.RunID, len(evidence), len(searchErrs))

	items, err := d.analyze(ctx, evidence, req.Target)
	if err != nil {
		return models.Report{}, err
	}

	report := BuildReport(req, plan, items)
	report.ProcessingTime = time.Since(start)
	return report, nil
}

// buildPlan either asks the LLM for a plan (--describe) or builds a literal
// one from the query and keywords.
func (d *Detector) buildPlan(ctx context.Context, req Request) (models.SearchPlan, error) {
	if req.Describe != "" {
		plan, err := d.provider.GenerateSearchPlan(ctx, req.Describe)
		if err != nil {
			return models.SearchPlan{}, fmt.Errorf("search plan generation failed: %w", err)
		}
		return plan, nil
	}
	if strings.TrimSpace(req.Query) == "" {
		return models.SearchPlan{}, fmt.Errorf("query is required")
	}

	terms := append([]string{req.Query}, req.Keywords...)
	q := strings.Join(terms, " ")
	end := time.Now()
	startDate := end.AddDate(0, 0, -d.cfg.LookbackDays).Format("2006-01-02")
	endDate := end.Format("2006-01-02")

	return models.SearchPlan{
		Twitter: []models.TwitterQuery{{
			Query:       q,
			Description: "literal query from CLI arguments",
			Section:     "latest",
			MinRetweets: 1,
			MinLikes:    1,
			StartDate:   startDate,
			EndDate:     endDate,
			Language:    d.cfg.DefaultLanguage,
		}},
		YouTube: []models.YouTubeQuery{{
			Query:       q,
			Description: "literal query from CLI arguments",
		}},
	}, nil
}

func (d *Detector) filterPlan(plan models.SearchPlan, platforms []models.Platform) models.SearchPlan {
	if len(platforms) == 0 {
		return plan
	}
	want := make(map[models.Platform]bool, len(platforms))
	for _, p := range platforms {
		want[p] = true
	}
	if !want[models.PlatformTwitter] {
		plan.Twitter = nil
	}
	if !want[models.PlatformYouTube] {
		plan.YouTube = nil
	}
	return plan
}

// collect fans out the plan's searches with bounded concurrency and returns
// deduplicated evidence. Individual search failures are collected, not fatal.
func (d *Detector) collect(ctx context.Context, plan models.SearchPlan) ([]models.Evidence, []error) {
	type job func(ctx context.Context) ([]models.Evidence, error)
	var jobs []job

	if d.youtube != nil {
		for _, q := range plan.YouTube {
			q := q
			jobs = append(jobs, func(ctx context.Context) ([]models.Evidence, error) {
				return d.searchYouTube(ctx, q)
			})
		}
	}
	if d.twitter != nil {
		for _, q := range plan.Twitter {
			q := q
			jobs = append(jobs, func(ctx context.Context) ([]models.Evidence, error) {
				return d.searchTwitter(ctx, q)
			})
		}
	}

	var (
		mu       sync.Mutex
		evidence []models.Evidence
		errs     []error
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, d.cfg.MaxConcurrentSearches)
	for _, j := range jobs {
		j := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				errs = append(errs, ctx.Err())
				mu.Unlock()
				return
			}
			evs, err := j(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.logger.Printf("search failed: %v", err)
				errs = append(errs, err)
				return
			}
			evidence = append(evidence, evs...)
		}()
	}
	wg.Wait()

	return dedupe(evidence), errs
}

func (d *Detector) searchYouTube(ctx context.Context, q models.YouTubeQuery) ([]models.Evidence, error) {
	start := time.Now()
	videos, err := d.youtube.SearchVideos(ctx, q.Query)
	telemetry.ObserveSource(string(models.PlatformYouTube), start, err)
	if err != nil {
		return nil, err
	}

	var out []models.Evidence
	for _, v := range videos {
		ev := models.Evidence{
			ID:          uuid.NewString(),
			Platform:    models.PlatformYouTube,
			SourceID:    v.VideoID,
			Title:       v.Title,
			Author:      v.ChannelTitle,
			Text:        v.Description,
			URL:         "https://www.youtube.com/watch?v=" + v.VideoID,
			Engagement:  fmt.Sprintf("%d views, %d likes, %d comments", v.ViewCount, v.LikeCount, v.CommentCount),
			PublishedAt: v.PublishedAt,
		}
		comments, err := d.youtube.VideoComments(ctx, v.VideoID, d.comments)
		if err != nil {
			// comments disabled or quota exhausted; the video still counts
			d.logger.Printf("comments unavailable for %s: %v", v.VideoID, err)
		}
		for _, cm := range comments {
			ev.Comments = append(ev.Comments, fmt.Sprintf("%s: %s", cm.Author, cm.Text))
		}
		out = append(out, ev)
		telemetry.EvidenceCollected.WithLabelValues(string(models.PlatformYouTube)).Inc()
	}
	return out, nil
}

func (d *Detector) searchTwitter(ctx context.Context, q models.TwitterQuery) ([]models.Evidence, error) {
	start := time.Now()
	tweets, err := d.twitter.SearchTweets(ctx, q)
	telemetry.ObserveSource(string(models.PlatformTwitter), start, err)
	if err != nil {
		return nil, err
	}

	var out []models.Evidence
	for _, tw := range tweets {
		ev := models.Evidence{
			ID:          uuid.NewString(),
			Platform:    models.PlatformTwitter,
			SourceID:    tw.TweetID,
			Author:      "@" + tw.User.Username,
			Text:        tw.Text,
			URL:         fmt.Sprintf("https://twitter.com/%s/status/%s", tw.User.Username, tw.TweetID),
			Engagement:  fmt.Sprintf("%d likes, %d retweets, %d replies", tw.LikeCount, tw.RetweetCount, tw.ReplyCount),
			PublishedAt: tw.CreatedAt,
		}
		if d.pages != nil && d.cfg.EnrichLinks {
			ev.LinkedText = d.enrich(ctx, tw.Text)
		}
		out = append(out, ev)
		telemetry.EvidenceCollected.WithLabelValues(string(models.PlatformTwitter)).Inc()
	}
	return out, nil
}

// enrich pulls readable text out of links in the tweet. Failures are logged
// and skipped.
func (d *Detector) enrich(ctx context.Context, text string) string {
	links := webpage.ExtractLinks(text, d.cfg.MaxLinksPerItem)
	var parts []string
	for _, l := range links {
		extracted, err := d.pages.ExtractText(ctx, l)
		if err != nil {
			d.logger.Printf("link enrichment skipped: %v", err)
			continue
		}
		parts = append(parts, extracted)
	}
	return strings.Join(parts, "\n---\n")
}

// analyze runs every evidence item through the provider with bounded
// concurrency. Per-item failures are logged and skipped; the run fails only
// when nothing could be analyzed.
func (d *Detector) analyze(ctx context.Context, evidence []models.Evidence, target string) ([]models.ReportItem, error) {
	if len(evidence) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		items   []models.ReportItem
		lastErr error
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, d.cfg.MaxConcurrentAnalyses)
	for _, ev := range evidence {
		ev := ev
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			analysis, err := d.provider.AnalyzeEvidence(ctx, ev, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.logger.Printf("analysis failed for %s/%s: %v", ev.Platform, ev.SourceID, err)
				telemetry.AnalysesTotal.WithLabelValues("error").Inc()
				lastErr = err
				return
			}
			telemetry.AnalysesTotal.WithLabelValues("ok").Inc()
			items = append(items, models.ReportItem{Evidence: ev, Analysis: analysis})
		}()
	}
	wg.Wait()

	if len(items) == 0 && lastErr != nil {
		return nil, fmt.Errorf("analysis failed for every item: %w", lastErr)
	}
	return items, nil
}

func dedupe(evidence []models.Evidence) []models.Evidence {
	seen := make(map[string]struct{}, len(evidence))
	out := evidence[:0]
	for _, ev := range evidence {
		key := string(ev.Platform) + ":" + ev.SourceID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}
