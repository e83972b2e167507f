package flickr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"bitbucket.org/kleinnic74/pinboard/domain"
)

// ImageFetcher resolves a photo reference to its binary payload. The
// download locator is derived purely from the reference, no additional
// lookup call is needed.
type ImageFetcher struct {
	baseURL string
	client  *http.Client
}

func NewImageFetcher(cfg Config) *ImageFetcher {
	return NewImageFetcherWithHTTP(cfg, &http.Client{Timeout: 30 * time.Second})
}

func NewImageFetcherWithHTTP(cfg Config, httpClient *http.Client) *ImageFetcher {
	return &ImageFetcher{baseURL: cfg.withDefaults().ImageBaseURL, client: httpClient}
}

func (f *ImageFetcher) urlFor(ref domain.PhotoRef) string {
	return fmt.Sprintf("%s/%s/%s_%s_w.jpg", f.baseURL, ref.Server, ref.RemoteID, ref.Secret)
}

// Fetch downloads the image bytes for the given reference
func (f *ImageFetcher) Fetch(ctx context.Context, ref domain.PhotoRef) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.urlFor(ref), nil)
	if err != nil {
		return nil, Transport(err)
	}
	req.Header.Set("User-Agent", userAgent)
	res, err := f.client.Do(req)
	if err != nil {
		return nil, Transport(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, Transport(fmt.Errorf("unexpected status %s for image %s", res.Status, ref.RemoteID))
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, Transport(err)
	}
	return data, nil
}
