package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slanderwatch/slanderwatch/models"
)

// User is the tweet author resolved from the author_id expansion.
type User struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	Verified       bool   `json:"verified"`
}

// Tweet is a single recent-search hit with its public metrics.
type Tweet struct {
	TweetID      string    `json:"tweet_id"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	Language     string    `json:"language,omitempty"`
	User         User      `json:"user"`
	LikeCount    int       `json:"like_count"`
	RetweetCount int       `json:"retweet_count"`
	ReplyCount   int       `json:"reply_count"`
	QuoteCount   int       `json:"quote_count"`
}

// Client is a thin Twitter API v2 recent-search client.
type Client struct {
	BearerToken string
	Endpoint    string // default https://api.twitter.com/2
	MaxResults  int
	HTTPClient  *http.Client

	logger *log.Logger
}

// NewClient creates a Twitter client. It fails when no bearer token is configured.
func NewClient(bearerToken, endpoint string, maxResults int, timeout time.Duration) (*Client, error) {
	if bearerToken == "" {
		return nil, fmt.Errorf("twitter bearer token not set (TWITTER_BEARER_TOKEN)")
	}
	if endpoint == "" {
		endpoint = "https://api.twitter.com/2"
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BearerToken: bearerToken,
		Endpoint:    strings.TrimRight(endpoint, "/"),
		MaxResults:  maxResults,
		HTTPClient:  &http.Client{Timeout: timeout},
		logger:      log.New(log.Writer(), "[TWITTER] ", log.LstdFlags),
	}, nil
}

type searchResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		Lang          string    `json:"lang"`
		AuthorID      string    `json:"author_id"`
		PublicMetrics struct {
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
			LikeCount    int `json:"like_count"`
			QuoteCount   int `json:"quote_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Username      string `json:"username"`
			Verified      bool   `json:"verified"`
			PublicMetrics struct {
				FollowersCount int `json:"followers_count"`
				FollowingCount int `json:"following_count"`
			} `json:"public_metrics"`
		} `json:"users"`
	} `json:"includes"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// ValidateQuery checks the date fields of a plan query before it is sent.
func ValidateQuery(q models.TwitterQuery) error {
	var start, end time.Time
	var err error
	if q.StartDate != "" {
		if start, err = time.Parse("2006-01-02", q.StartDate); err != nil {
			return fmt.Errorf("start_date must be in YYYY-MM-DD format: %w", err)
		}
	}
	if q.EndDate != "" {
		if end, err = time.Parse("2006-01-02", q.EndDate); err != nil {
			return fmt.Errorf("end_date must be in YYYY-MM-DD format: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("start_date must be before end_date")
	}
	return nil
}

// BuildQuery translates a plan query into v2 recent-search operators.
// Retweets are always excluded; the language operator is added when set.
func BuildQuery(q models.TwitterQuery) string {
	parts := []string{q.Query, "-is:retweet"}
	if q.Language != "" {
		parts = append(parts, "lang:"+q.Language)
	}
	return strings.Join(parts, " ")
}

// SearchTweets runs a recent search for the plan query. The v2 API no longer
// supports min_retweets/min_likes operators on standard access, so those
// filters are applied here against public_metrics.
func (c *Client) SearchTweets(ctx context.Context, q models.TwitterQuery) ([]Tweet, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}

	maxResults := c.MaxResults
	if maxResults > 20 {
		maxResults = 20 // per-query cap
	}
	if maxResults < 10 {
		maxResults = 10 // v2 floor
	}

	params := url.Values{}
	params.Set("query", BuildQuery(q))
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("tweet.fields", "created_at,public_metrics,lang,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "name,username,verified,public_metrics")
	if q.Section == "top" {
		params.Set("sort_order", "relevancy")
	} else {
		params.Set("sort_order", "recency")
	}
	if q.StartDate != "" {
		start, _ := time.Parse("2006-01-02", q.StartDate)
		// recent search only covers the last 7 days
		if floor := time.Now().UTC().AddDate(0, 0, -7).Add(time.Minute); start.Before(floor) {
			start = floor
		}
		params.Set("start_time", start.Format(time.RFC3339))
	}
	if q.EndDate != "" {
		end, _ := time.Parse("2006-01-02", q.EndDate)
		end = end.AddDate(0, 0, 1) // inclusive day
		// end_time must lie in the past
		if ceil := time.Now().UTC().Add(-30 * time.Second); end.After(ceil) {
			end = ceil
		}
		params.Set("end_time", end.Format(time.RFC3339))
	}

	reqURL := fmt.Sprintf("%s/tweets/search/recent?%s", c.Endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.BearerToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("twitter api error: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode twitter response: %w", err)
	}

	users := make(map[string]User, len(sr.Includes.Users))
	for _, u := range sr.Includes.Users {
		users[u.ID] = User{
			UserID:         u.ID,
			Username:       u.Username,
			Name:           u.Name,
			FollowerCount:  u.PublicMetrics.FollowersCount,
			FollowingCount: u.PublicMetrics.FollowingCount,
			Verified:       u.Verified,
		}
	}

	var out []Tweet
	for _, d := range sr.Data {
		m := d.PublicMetrics
		if m.RetweetCount < q.MinRetweets || m.LikeCount < q.MinLikes || m.ReplyCount < q.MinReplies {
			continue
		}
		out = append(out, Tweet{
			TweetID:      d.ID,
			Text:         d.Text,
			CreatedAt:    d.CreatedAt,
			Language:     d.Lang,
			User:         users[d.AuthorID],
			LikeCount:    m.LikeCount,
			RetweetCount: m.RetweetCount,
			ReplyCount:   m.ReplyCount,
			QuoteCount:   m.QuoteCount,
		})
	}
	if len(sr.Errors) > 0 {
		c.logger.Printf("partial errors in twitter response: %d (first: %s)", len(sr.Errors), sr.Errors[0].Title)
	}
	return out, nil
}
