package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultGoogleBooksBaseURL is the public volumes endpoint prefix.
	DefaultGoogleBooksBaseURL = "https://www.googleapis.com/books/v1"

	googleBooksFields = "items(volumeInfo/title,volumeInfo/authors,volumeInfo/description,volumeInfo/imageLinks/thumbnail)"
)

// GoogleBooksClient looks up ISBN metadata via the Google Books volumes API.
// The API key is optional; anonymous requests are rate-limited but work.
type GoogleBooksClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewGoogleBooksClient(httpClient *http.Client, baseURL, apiKey string) *GoogleBooksClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultGoogleBooksBaseURL
	}
	return &GoogleBooksClient{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

type googleBooksResponse struct {
	Items []struct {
		VolumeInfo *struct {
			Title       string   `json:"title"`
			Authors     []string `json:"authors"`
			Description string   `json:"description"`
			ImageLinks  *struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (c *GoogleBooksClient) Lookup(ctx context.Context, isbn13 string) (Metadata, error) {
	params := url.Values{}
	params.Set("q", "isbn:"+isbn13)
	params.Set("fields", googleBooksFields)
	params.Set("maxResults", "1")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/volumes?"+params.Encode(), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build google books request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("google books request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("google books status %d", resp.StatusCode)
	}

	var body googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Metadata{}, fmt.Errorf("decode google books response: %w", err)
	}
	if len(body.Items) == 0 || body.Items[0].VolumeInfo == nil {
		return Metadata{}, fmt.Errorf("no google books volume for ISBN %s", isbn13)
	}

	info := body.Items[0].VolumeInfo
	md := Metadata{
		ISBN13:      isbn13,
		Title:       info.Title,
		Author:      strings.Join(info.Authors, ", "),
		Description: info.Description,
	}
	if info.ImageLinks != nil {
		md.CoverImageURL = info.ImageLinks.Thumbnail
	}
	return md, nil
}
