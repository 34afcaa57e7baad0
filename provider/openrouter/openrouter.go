package openrouter_provider

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/models"
)

// client implements the provider interface against any OpenAI-compatible
// chat completions endpoint (OpenRouter by default).
type client struct {
	api         *openai.Client
	model       string
	temperature float64
	maxTokens   int
	detection   config.DetectionConfig
	logger      *log.Logger
}

// New creates a chat completion client from the LLM config.
func New(llm config.LLMConfig, detection config.DetectionConfig) *client {
	cfg := openai.DefaultConfig(llm.APIKey)
	if llm.BaseURL != "" {
		cfg.BaseURL = llm.BaseURL
	}
	timeout := llm.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &client{
		api:         openai.NewClientWithConfig(cfg),
		model:       llm.Model,
		temperature: llm.Temperature,
		maxTokens:   llm.MaxTokens,
		detection:   detection,
		logger:      log.New(log.Writer(), "[LLM] ", log.LstdFlags),
	}
}

// GenerateSearchPlan asks the model for per-platform search queries in YAML
// and normalizes the result (section, language, date range defaults).
func (c *client) GenerateSearchPlan(ctx context.Context, input string) (models.SearchPlan, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -c.detection.LookbackDays)
	startDate := start.Format("2006-01-02")
	endDate := end.Format("2006-01-02")

	prompt := fmt.Sprintf(`### CONTEXT
You are an expert search query generator for social media analysis.
Natural language input: %s

### TASK
Generate a set of search queries for Twitter and YouTube that will help gather relevant information.
Consider:
1. Different variations of the search terms
2. Including/excluding specific terms
3. Using platform-specific search operators
4. Focusing on different aspects of the topic
5. Keep the query short and concise. Only include words, separated by spaces, don't use AND, OR, NOT, etc.
6. Use single quotes for the query string

### OUTPUT FORMAT
Provide your search queries in the following YAML format:

`+"```yaml"+`
twitter:
  - query: 'search query string'
    description: 'explanation of what this query aims to find'
    section: 'top'
    min_retweets: 1
    min_likes: 1
    min_replies: 0
    start_date: '%s'
    end_date: '%s'
    language: '%s'
youtube:
  - query: 'search query string'
    description: 'explanation of what this query aims to find'
`+"```"+`

IMPORTANT:
1. Use proper indentation (2 spaces) for all fields
2. Generate %d queries per platform
3. Make descriptions clear and specific
4. For Twitter queries set appropriate min_retweets and min_likes for quality filtering,
   use 2-letter language codes, and use date ranges when temporal context is important
   (default range: %s to %s)
5. For YouTube queries focus on recent and relevant content
6. Ensure proper YAML formatting and indentation`,
		input, startDate, endDate, c.detection.DefaultLanguage,
		c.detection.QueriesPerPlatform, startDate, endDate)

	raw, err := c.sendRequest(ctx, prompt)
	if err != nil {
		return models.SearchPlan{}, err
	}

	var plan models.SearchPlan
	if err := yaml.Unmarshal([]byte(stripFences(raw)), &plan); err != nil {
		return models.SearchPlan{}, fmt.Errorf("failed to parse search plan: %w", err)
	}
	return c.normalizePlan(plan, startDate, endDate), nil
}

// AnalyzeEvidence runs one snippet through the defamation analyst prompt and
// parses the YAML verdict.
func (c *client) AnalyzeEvidence(ctx context.Context, ev models.Evidence, target string) (models.Analysis, error) {
	if target == "" {
		target = "Not specified"
	}

	prompt := fmt.Sprintf(`### CONTEXT
You are an expert legal analyst specializing in defamation and slander detection.
Text to analyze: %s
Target person (if specified): %s

### ANALYSIS CRITERIA
1. False Statements
   - Identify statements that appear to be false or misleading
   - Consider if statements are presented as facts rather than opinions
   - Check for verifiable claims that could be proven false

2. Harmful Impact
   - Assess potential damage to reputation
   - Consider the reach and visibility of the content
   - Evaluate the severity of the allegations

3. Context Analysis
   - Consider the overall context and tone
   - Identify any mitigating factors
   - Note any disclaimers or opinion indicators

4. Risk Assessment
   - Evaluate the likelihood of legal action
   - Consider the severity of potential consequences
   - Assess the credibility of the source

### OUTPUT FORMAT
Analyze the text and provide your assessment in the following YAML format:

`+"```yaml"+`
risk_score: <float between 0 and 1>
slanderous_statements:
  - statement: <the potentially slanderous statement>
    context: <relevant context>
    risk_level: <high/medium/low>
    reasoning: <why this might be slanderous>
context_analysis: |
    <detailed analysis of the overall context>
confidence_score: <float between 0 and 1>
`+"```"+`

IMPORTANT:
1. Use proper indentation (2 spaces) for all fields
2. Use the | character for multi-line text fields
3. Be thorough but objective in your analysis
4. Consider both legal and ethical implications
5. Only use single quotes for the statement field.`,
		FormatEvidence(ev), target)

	raw, err := c.sendRequest(ctx, prompt)
	if err != nil {
		return models.Analysis{}, err
	}

	// models love unbalanced double quotes inside YAML scalars; swap them
	// for backticks before parsing
	raw = strings.ReplaceAll(raw, `"`, "`")

	var analysis models.Analysis
	if err := yaml.Unmarshal([]byte(stripFences(raw)), &analysis); err != nil {
		return models.Analysis{}, fmt.Errorf("failed to parse analysis: %w", err)
	}
	analysis.RiskScore = clamp01(analysis.RiskScore)
	analysis.ConfidenceScore = clamp01(analysis.ConfidenceScore)
	for i, s := range analysis.Statements {
		switch s.RiskLevel {
		case "high", "medium", "low":
		default:
			analysis.Statements[i].RiskLevel = "medium"
		}
	}
	return analysis, nil
}

// FormatEvidence renders a snippet the way the analyst prompt expects,
// per platform.
func FormatEvidence(ev models.Evidence) string {
	var b strings.Builder
	switch ev.Platform {
	case models.PlatformYouTube:
		fmt.Fprintf(&b, "Title: %s\nDescription: %s\nChannel: %s\n", ev.Title, ev.Text, ev.Author)
		if len(ev.Comments) > 0 {
			b.WriteString("Comments:\n")
			for _, cm := range ev.Comments {
				fmt.Fprintf(&b, "- %s\n", cm)
			}
		}
	case models.PlatformTwitter:
		fmt.Fprintf(&b, "Tweet: %s\nAuthor: %s\n", ev.Text, ev.Author)
		if ev.Engagement != "" {
			fmt.Fprintf(&b, "Engagement: %s\n", ev.Engagement)
		}
	default:
		b.WriteString(ev.Text)
	}
	if ev.LinkedText != "" {
		fmt.Fprintf(&b, "Linked page content:\n%s\n", ev.LinkedText)
	}
	return b.String()
}

func (c *client) normalizePlan(plan models.SearchPlan, startDate, endDate string) models.SearchPlan {
	for i, q := range plan.Twitter {
		if q.Section != "top" && q.Section != "latest" {
			plan.Twitter[i].Section = "latest"
		}
		if q.Language != "" && len(q.Language) != 2 {
			plan.Twitter[i].Language = c.detection.DefaultLanguage
		}
		if q.StartDate == "" {
			plan.Twitter[i].StartDate = startDate
		}
		if q.EndDate == "" {
			plan.Twitter[i].EndDate = endDate
		}
		if _, err := time.Parse("2006-01-02", plan.Twitter[i].StartDate); err != nil {
			plan.Twitter[i].StartDate = startDate
		}
		if _, err := time.Parse("2006-01-02", plan.Twitter[i].EndDate); err != nil {
			plan.Twitter[i].EndDate = endDate
		}
	}
	return plan
}

// sendRequest sends a chat completion request and returns the first choice.
func (c *client) sendRequest(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.Printf("chat completion failed (model=%s): %v", c.model, err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```yaml", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
