package detect

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/models"
	"github.com/slanderwatch/slanderwatch/tools/twitter"
	"github.com/slanderwatch/slanderwatch/tools/youtube"
)

type fakeProvider struct {
	plan     models.SearchPlan
	planErr  error
	analysis models.Analysis
	failFor  string // source id that AnalyzeEvidence fails for
	calls    atomic.Int64
}

func (f *fakeProvider) GenerateSearchPlan(ctx context.Context, input string) (models.SearchPlan, error) {
	return f.plan, f.planErr
}

func (f *fakeProvider) AnalyzeEvidence(ctx context.Context, ev models.Evidence, target string) (models.Analysis, error) {
	f.calls.Add(1)
	if f.failFor != "" && ev.SourceID == f.failFor {
		return models.Analysis{}, errors.New("model unavailable")
	}
	return f.analysis, nil
}

type fakeYouTube struct {
	videos      []youtube.Video
	comments    []youtube.Comment
	searchErr   error
	commentsErr error
}

func (f *fakeYouTube) SearchVideos(ctx context.Context, query string) ([]youtube.Video, error) {
	return f.videos, f.searchErr
}

func (f *fakeYouTube) VideoComments(ctx context.Context, videoID string, maxResults int) ([]youtube.Comment, error) {
	return f.comments, f.commentsErr
}

type fakeTwitter struct {
	tweets []twitter.Tweet
	err    error
}

func (f *fakeTwitter) SearchTweets(ctx context.Context, q models.TwitterQuery) ([]twitter.Tweet, error) {
	return f.tweets, f.err
}

type fakePages struct{ text string }

func (f *fakePages) ExtractText(ctx context.Context, pageURL string) (string, error) {
	return f.text, nil
}

func testConfig() config.DetectionConfig {
	return config.DetectionConfig{EnrichLinks: true}.Normalize()
}

func TestRunLiteralQuery(t *testing.T) {
	prov := &fakeProvider{
		analysis: models.Analysis{
			RiskScore:       0.8,
			ConfidenceScore: 0.9,
			Statements: []models.Statement{
				{Statement: "he stole the funds", RiskLevel: "high"},
				{Statement: "people say he lies", RiskLevel: "medium"},
			},
			ContextAnalysis: "direct accusation of a crime",
		},
	}
	yt := &fakeYouTube{
		videos:   []youtube.Video{{VideoID: "v1", Title: "Exposed", ChannelTitle: "chan"}},
		comments: []youtube.Comment{{Author: "a", Text: "unbelievable"}},
	}
	tw := &fakeTwitter{
		tweets: []twitter.Tweet{{
			TweetID: "t1",
			Text:    "see https://example.com/story for the truth",
			User:    twitter.User{Username: "acc"},
		}},
	}

	d := New(testConfig(), prov, yt, tw, &fakePages{text: "article body"}, 10)
	report, err := d.Run(context.Background(), Request{Query: "jane doe", Keywords: []string{"fraud"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Target != "jane doe" {
		t.Fatalf("target should default to query, got %q", report.Target)
	}
	if report.EvidenceCount != 2 {
		t.Fatalf("expected 2 evidence items, got %d", report.EvidenceCount)
	}
	if report.OverallRisk != 0.8 || report.OverallConfidence != 0.9 {
		t.Fatalf("bad aggregation: risk=%f confidence=%f", report.OverallRisk, report.OverallConfidence)
	}
	if report.HighRiskCount != 2 || report.MediumRiskCount != 2 {
		t.Fatalf("bad statement counts: %d high, %d medium", report.HighRiskCount, report.MediumRiskCount)
	}
	if len(report.Plan.Twitter) != 1 || !strings.Contains(report.Plan.Twitter[0].Query, "fraud") {
		t.Fatalf("literal plan missing keywords: %+v", report.Plan.Twitter)
	}

	var tweet *models.ReportItem
	for i := range report.Items {
		if report.Items[i].Evidence.Platform == models.PlatformTwitter {
			tweet = &report.Items[i]
		}
	}
	if tweet == nil {
		t.Fatalf("twitter evidence missing from report")
	}
	if tweet.Evidence.LinkedText != "article body" {
		t.Fatalf("link enrichment not applied: %+v", tweet.Evidence)
	}
}

func TestRunDescribeUsesGeneratedPlan(t *testing.T) {
	prov := &fakeProvider{
		plan: models.SearchPlan{
			YouTube: []models.YouTubeQuery{{Query: "john smith scandal"}},
		},
		analysis: models.Analysis{RiskScore: 0.1, ConfidenceScore: 0.5},
	}
	yt := &fakeYouTube{videos: []youtube.Video{{VideoID: "v1"}}}

	d := New(testConfig(), prov, yt, nil, nil, 10)
	report, err := d.Run(context.Background(), Request{Describe: "my client john smith is being attacked", Target: "john smith"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Plan.YouTube) != 1 || report.Plan.YouTube[0].Query != "john smith scandal" {
		t.Fatalf("generated plan not used: %+v", report.Plan)
	}
	if report.EvidenceCount != 1 {
		t.Fatalf("expected 1 evidence item, got %d", report.EvidenceCount)
	}
}

func TestRunRequiresQueryOrDescribe(t *testing.T) {
	d := New(testConfig(), &fakeProvider{}, &fakeYouTube{}, nil, nil, 10)
	if _, err := d.Run(context.Background(), Request{}); err == nil {
		t.Fatalf("expected error for empty request")
	}
}

func TestRunSurvivesPartialSearchFailure(t *testing.T) {
	prov := &fakeProvider{analysis: models.Analysis{RiskScore: 0.5, ConfidenceScore: 0.5}}
	yt := &fakeYouTube{searchErr: errors.New("quota exceeded")}
	tw := &fakeTwitter{tweets: []twitter.Tweet{{TweetID: "t1", User: twitter.User{Username: "u"}}}}

	d := New(testConfig(), prov, yt, tw, nil, 10)
	report, err := d.Run(context.Background(), Request{Query: "jane doe"})
	if err != nil {
		t.Fatalf("run should survive one failing source: %v", err)
	}
	if report.EvidenceCount != 1 {
		t.Fatalf("expected twitter evidence only, got %d items", report.EvidenceCount)
	}
}

func TestRunFailsWhenAllSearchesFail(t *testing.T) {
	d := New(testConfig(), &fakeProvider{},
		&fakeYouTube{searchErr: errors.New("down")},
		&fakeTwitter{err: errors.New("down")}, nil, 10)
	if _, err := d.Run(context.Background(), Request{Query: "jane doe"}); err == nil {
		t.Fatalf("expected error when every search fails")
	}
}

func TestRunFailsWhenAllAnalysesFail(t *testing.T) {
	prov := &fakeProvider{failFor: "v1"}
	yt := &fakeYouTube{videos: []youtube.Video{{VideoID: "v1"}}}
	d := New(testConfig(), prov, yt, nil, nil, 10)
	if _, err := d.Run(context.Background(), Request{Query: "jane doe"}); err == nil {
		t.Fatalf("expected error when every analysis fails")
	}
}

func TestRunSkipsFailingAnalyses(t *testing.T) {
	prov := &fakeProvider{
		analysis: models.Analysis{RiskScore: 0.6, ConfidenceScore: 0.7},
		failFor:  "v2",
	}
	yt := &fakeYouTube{videos: []youtube.Video{{VideoID: "v1"}, {VideoID: "v2"}}}
	d := New(testConfig(), prov, yt, nil, nil, 10)
	report, err := d.Run(context.Background(), Request{Query: "jane doe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.EvidenceCount != 1 {
		t.Fatalf("failed analysis should be dropped, got %d items", report.EvidenceCount)
	}
}

func TestRunPlatformFilter(t *testing.T) {
	prov := &fakeProvider{analysis: models.Analysis{RiskScore: 0.2}}
	yt := &fakeYouTube{videos: []youtube.Video{{VideoID: "v1"}}}
	tw := &fakeTwitter{tweets: []twitter.Tweet{{TweetID: "t1", User: twitter.User{Username: "u"}}}}

	d := New(testConfig(), prov, yt, tw, nil, 10)
	report, err := d.Run(context.Background(), Request{
		Query:     "jane doe",
		Platforms: []models.Platform{models.PlatformYouTube},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Plan.Twitter) != 0 {
		t.Fatalf("twitter queries should be filtered out: %+v", report.Plan.Twitter)
	}
	if report.EvidenceCount != 1 || report.Items[0].Evidence.Platform != models.PlatformYouTube {
		t.Fatalf("unexpected evidence: %+v", report.Items)
	}
}

func TestDedupe(t *testing.T) {
	evs := []models.Evidence{
		{Platform: models.PlatformTwitter, SourceID: "1"},
		{Platform: models.PlatformTwitter, SourceID: "1"},
		{Platform: models.PlatformYouTube, SourceID: "1"},
	}
	if got := dedupe(evs); len(got) != 2 {
		t.Fatalf("expected 2 unique items, got %d", len(got))
	}
}
