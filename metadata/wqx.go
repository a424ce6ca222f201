package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// WqxClient looks up ISBN metadata via the WQX book search API. Results are
// keyword matches, so the response is filtered to the exact ISBN.
type WqxClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewWqxClient(httpClient *http.Client, baseURL string) *WqxClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WqxClient{httpClient: httpClient, baseURL: baseURL}
}

type wqxSearchResponse struct {
	Errcode *int   `json:"errcode"`
	Errmsg  string `json:"errmsg"`
	Data    *struct {
		List []wqxSearchItem `json:"list"`
	} `json:"data"`
}

type wqxSearchItem struct {
	ISBN     string `json:"isbn"`
	Name     string `json:"name"`
	Author   string `json:"author"`
	Descript string `json:"descript"`
	CoverURL string `json:"coverurl"`
}

func (c *WqxClient) Lookup(ctx context.Context, isbn13 string) (Metadata, error) {
	params := url.Values{}
	params.Set("kw", isbn13)
	params.Set("pn", "1")
	params.Set("size", "1")
	params.Set("webType", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/search/index?"+params.Encode(), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build wqx request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("wqx request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("wqx status %d", resp.StatusCode)
	}

	var body wqxSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Metadata{}, fmt.Errorf("decode wqx response: %w", err)
	}
	if body.Data == nil {
		return Metadata{}, fmt.Errorf("no wqx result for ISBN %s", isbn13)
	}

	for _, item := range body.Data.List {
		if strings.TrimSpace(item.ISBN) != isbn13 {
			continue
		}
		// Cover URLs carry a "!m" size suffix the cover store rejects elsewhere.
		cover, _, _ := strings.Cut(item.CoverURL, "!m")
		return Metadata{
			ISBN13:        isbn13,
			Title:         item.Name,
			Author:        item.Author,
			Description:   item.Descript,
			CoverImageURL: cover,
		}, nil
	}
	return Metadata{}, fmt.Errorf("no wqx result for ISBN %s", isbn13)
}
