package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Video is a search hit enriched with the full description and engagement
// counters from the videos endpoint.
type Video struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelTitle string    `json:"channel_title"`
	PublishedAt  time.Time `json:"published_at"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
}

// Comment is a top-level comment on a video.
type Comment struct {
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at"`
	LikeCount   int64     `json:"like_count"`
}

// Client is a thin YouTube Data API v3 client.
type Client struct {
	APIKey     string
	Endpoint   string // default https://www.googleapis.com/youtube/v3
	MaxResults int
	HTTPClient *http.Client

	logger *log.Logger
}

// NewClient creates a YouTube client. It fails when no API key is configured.
func NewClient(apiKey, endpoint string, maxResults int, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube api key not set (YOUTUBE_API_KEY)")
	}
	if endpoint == "" {
		endpoint = "https://www.googleapis.com/youtube/v3"
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		APIKey:     apiKey,
		Endpoint:   strings.TrimRight(endpoint, "/"),
		MaxResults: maxResults,
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     log.New(log.Writer(), "[YOUTUBE] ", log.LstdFlags),
	}, nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string    `json:"title"`
			Description  string    `json:"description"`
			ChannelTitle string    `json:"channelTitle"`
			PublishedAt  time.Time `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Description string `json:"description"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type commentThreadsResponse struct {
	Items []struct {
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					AuthorDisplayName string    `json:"authorDisplayName"`
					TextDisplay       string    `json:"textDisplay"`
					PublishedAt       time.Time `json:"publishedAt"`
					LikeCount         int64     `json:"likeCount"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

// SearchVideos searches for videos matching the query. The short search
// snippet is replaced with the full description from the videos endpoint;
// when that lookup fails the snippet is kept.
func (c *Client) SearchVideos(ctx context.Context, query string) ([]Video, error) {
	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", fmt.Sprintf("%d", c.MaxResults))
	params.Set("key", c.APIKey)

	var sr searchResponse
	if err := c.get(ctx, "/search", params, &sr); err != nil {
		return nil, fmt.Errorf("youtube search failed: %w", err)
	}

	videos := make([]Video, 0, len(sr.Items))
	ids := make([]string, 0, len(sr.Items))
	for _, item := range sr.Items {
		if item.ID.VideoID == "" {
			continue
		}
		ids = append(ids, item.ID.VideoID)
		videos = append(videos, Video{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelTitle: item.Snippet.ChannelTitle,
			PublishedAt:  item.Snippet.PublishedAt,
		})
	}
	if len(ids) == 0 {
		return videos, nil
	}

	details, err := c.videoDetails(ctx, ids)
	if err != nil {
		c.logger.Printf("video details lookup failed, keeping search snippets: %v", err)
		return videos, nil
	}
	for i := range videos {
		if d, ok := details[videos[i].VideoID]; ok {
			if d.Description != "" {
				videos[i].Description = d.Description
			}
			videos[i].ViewCount = d.ViewCount
			videos[i].LikeCount = d.LikeCount
			videos[i].CommentCount = d.CommentCount
		}
	}
	return videos, nil
}

func (c *Client) videoDetails(ctx context.Context, ids []string) (map[string]Video, error) {
	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", c.APIKey)

	var vr videosResponse
	if err := c.get(ctx, "/videos", params, &vr); err != nil {
		return nil, err
	}
	out := make(map[string]Video, len(vr.Items))
	for _, item := range vr.Items {
		out[item.ID] = Video{
			VideoID:      item.ID,
			Description:  item.Snippet.Description,
			ViewCount:    atoi64(item.Statistics.ViewCount),
			LikeCount:    atoi64(item.Statistics.LikeCount),
			CommentCount: atoi64(item.Statistics.CommentCount),
		}
	}
	return out, nil
}

// VideoComments fetches top-level comments for a video in plain text.
func (c *Client) VideoComments(ctx context.Context, videoID string, maxResults int) ([]Comment, error) {
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 100
	}
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("maxResults", fmt.Sprintf("%d", maxResults))
	params.Set("textFormat", "plainText")
	params.Set("key", c.APIKey)

	var cr commentThreadsResponse
	if err := c.get(ctx, "/commentThreads", params, &cr); err != nil {
		// comments are frequently disabled; callers treat this as empty
		return nil, fmt.Errorf("youtube comments failed: %w", err)
	}
	comments := make([]Comment, 0, len(cr.Items))
	for _, item := range cr.Items {
		s := item.Snippet.TopLevelComment.Snippet
		comments = append(comments, Comment{
			Author:      s.AuthorDisplayName,
			Text:        s.TextDisplay,
			PublishedAt: s.PublishedAt,
			LikeCount:   s.LikeCount,
		})
	}
	return comments, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s%s?%s", c.Endpoint, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube api error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func atoi64(s string) int64 {
	var n int64
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}
