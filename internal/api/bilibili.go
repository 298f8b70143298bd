// Package api provides the HTTP client for the Bilibili video metadata API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.bilibili.com"
	requestTimeout = 10 * time.Second
	viewPath       = "/x/web-interface/view"
)

// BilibiliClient is the HTTP client for looking up Bilibili video details.
type BilibiliClient struct {
	client *resty.Client
}

// NewBilibiliClient creates a new client. An empty baseURL uses the public API.
func NewBilibiliClient(baseURL, userAgent string) *BilibiliClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Referer", "https://www.bilibili.com/")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}

	return &BilibiliClient{client: client}
}

type Owner struct {
	Name string `json:"name"`
}

// VideoInfo is the subset of the view response this project uses.
type VideoInfo struct {
	BVID     string `json:"bvid"`
	AID      int64  `json:"aid"`
	Title    string `json:"title"`
	Desc     string `json:"desc"`
	Pic      string `json:"pic"`
	Duration int    `json:"duration"` // seconds
	Owner    Owner  `json:"owner"`
}

type viewResponse struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *VideoInfo `json:"data"`
}

// GetVideoInfo fetches details for a BV id ("BV1xx411c7mD") or an AV id ("av170001").
func (c *BilibiliClient) GetVideoInfo(ctx context.Context, id string) (*VideoInfo, error) {
	req := c.client.R().SetContext(ctx)

	switch {
	case strings.HasPrefix(id, "BV"):
		req.SetQueryParam("bvid", id)
	case strings.HasPrefix(strings.ToLower(id), "av"):
		req.SetQueryParam("aid", id[2:])
	default:
		return nil, fmt.Errorf("unrecognised bilibili id %q", id)
	}

	resp, err := req.Get(viewPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video %s: %w", id, err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var response viewResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse video response: %w", err)
	}

	if response.Code != 0 {
		return nil, fmt.Errorf("api returned code %d: %s", response.Code, response.Message)
	}
	if response.Data == nil || response.Data.Title == "" {
		return nil, fmt.Errorf("api response for %s has no video data", id)
	}

	return response.Data, nil
}

// ThumbnailURL returns the cover image URL upgraded to https.
func (v *VideoInfo) ThumbnailURL() string {
	if strings.HasPrefix(v.Pic, "http://") {
		return "https://" + strings.TrimPrefix(v.Pic, "http://")
	}
	if strings.HasPrefix(v.Pic, "//") {
		return "https:" + v.Pic
	}
	return v.Pic
}
