// Package flickr implements the remote photo search and image download
// against the Flickr REST API. The wire format is fixed by the
// provider: a search response decodes to {photos: {page, pages,
// perpage, total, photo: [...]}, stat}, an error response to
// {stat, code, message}.
package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bitbucket.org/kleinnic74/pinboard/domain"
	"bitbucket.org/kleinnic74/pinboard/logging"
	"go.uber.org/zap"
)

const (
	defaultBaseURL      = "https://www.flickr.com/services/rest"
	defaultImageBaseURL = "https://live.staticflickr.com"

	searchMethod = "flickr.photos.search"
	userAgent    = "Pinboard/0.1"
)

// Config carries the injected service parameters, none of them is
// hardcoded in the calling logic
type Config struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	// Radius is the search radius around the coordinate, in km
	Radius int
	// PerPage is the requested result page size, 0 leaves the choice
	// to the service
	PerPage int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.ImageBaseURL == "" {
		c.ImageBaseURL = defaultImageBaseURL
	}
	if c.Radius == 0 {
		c.Radius = 5
	}
	return c
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: 10 * time.Second})
}

func NewClientWithHTTP(cfg Config, httpClient *http.Client) *Client {
	return &Client{cfg: cfg.withDefaults(), client: httpClient}
}

type photoDetails struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Secret   string `json:"secret"`
	Server   string `json:"server"`
	Farm     int    `json:"farm"`
	Title    string `json:"title"`
	IsPublic int    `json:"ispublic"`
	IsFriend int    `json:"isfriend"`
	IsFamily int    `json:"isfamily"`
}

type photosPage struct {
	Page    int            `json:"page"`
	Pages   int            `json:"pages"`
	PerPage int            `json:"perpage"`
	Total   int            `json:"total"`
	Photo   []photoDetails `json:"photo"`
}

type searchResponse struct {
	Photos photosPage `json:"photos"`
	Stat   string     `json:"stat"`
}

type errorResponse struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Search returns one page of photo references around the given
// coordinate. An empty page with TotalPages >= 1 is a valid result.
// There are no retries at this layer.
func (c *Client) Search(ctx context.Context, lat, lon float64, page int) (*domain.PhotoPage, error) {
	logger, ctx := logging.SubFrom(ctx, "flickr")
	url := fmt.Sprintf("%s/?method=%s&api_key=%s&lat=%f&lon=%f&page=%d&radius=%d&format=json&nojsoncallback=1",
		c.cfg.BaseURL, searchMethod, c.cfg.APIKey, lat, lon, page, c.cfg.Radius)
	if c.cfg.PerPage > 0 {
		url = fmt.Sprintf("%s&per_page=%d", url, c.cfg.PerPage)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Transport(err)
	}
	req.Header.Set("User-Agent", userAgent)
	res, err := c.client.Do(req)
	if err != nil {
		return nil, Transport(err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, Transport(err)
	}
	logger.Debug("Search response", zap.Int("status", res.StatusCode), zap.Int("size", len(data)))

	var decoded searchResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &DecodeError{cause: err}
	}
	if decoded.Stat != "ok" {
		var serviceErr errorResponse
		if err := json.Unmarshal(data, &serviceErr); err != nil || serviceErr.Code == 0 {
			return nil, &DecodeError{cause: fmt.Errorf("stat %q without error body", decoded.Stat)}
		}
		return nil, &ServiceError{Code: serviceErr.Code, Message: serviceErr.Message}
	}

	result := domain.PhotoPage{
		Page:       decoded.Photos.Page,
		TotalPages: decoded.Photos.Pages,
		PerPage:    decoded.Photos.PerPage,
		Total:      decoded.Photos.Total,
	}
	for _, p := range decoded.Photos.Photo {
		result.Items = append(result.Items, domain.PhotoRef{
			RemoteID: p.ID,
			Server:   p.Server,
			Secret:   p.Secret,
			Owner:    p.Owner,
			Title:    p.Title,
		})
	}
	return &result, nil
}
