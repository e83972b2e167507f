package flickr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchResponseBody = `{"photos":{"page":1,"pages":5,"perpage":3,"total":15,` +
	`"photo":[` +
	`{"id":"51142113901","owner":"7231887@N08","secret":"5a2e8996e9","server":"65535","farm":66,"title":"Danube bend","ispublic":1,"isfriend":0,"isfamily":0},` +
	`{"id":"51142113902","owner":"7231887@N08","secret":"8cb2fda713","server":"65535","farm":66,"title":"Esztergom","ispublic":1,"isfriend":0,"isfamily":0},` +
	`{"id":"51142113903","owner":"99812123@N02","secret":"0f11abd0c3","server":"65535","farm":66,"title":"","ispublic":1,"isfriend":0,"isfamily":0}` +
	`]},"stat":"ok"}`

const emptyResponseBody = `{"photos":{"page":1,"pages":2,"perpage":250,"total":0,"photo":[]},"stat":"ok"}`

const errorResponseBody = `{"stat":"fail","code":100,"message":"Invalid API Key (Key has invalid format)"}`

type RoundTripperFunc func(*http.Request) *http.Response

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func newTestClient(roundTripFunc RoundTripperFunc) *http.Client {
	return &http.Client{
		Transport: roundTripFunc,
	}
}

func respondWith(body string) *http.Client {
	return newTestClient(func(r *http.Request) *http.Response {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewBufferString(body)),
		}
	})
}

func TestSearchDecodesPage(t *testing.T) {
	var requested string
	client := NewClientWithHTTP(Config{APIKey: "testkey"}, newTestClient(func(r *http.Request) *http.Response {
		requested = r.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewBufferString(searchResponseBody)),
		}
	}))
	page, err := client.Search(context.Background(), 47.904175, 18.849911, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalPages)
	assert.Equal(t, 15, page.Total)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, "51142113901", page.Items[0].RemoteID)
	assert.Equal(t, "5a2e8996e9", page.Items[0].Secret)
	assert.Equal(t, "65535", page.Items[0].Server)
	assert.Contains(t, requested, "method=flickr.photos.search")
	assert.Contains(t, requested, "api_key=testkey")
	assert.Contains(t, requested, "page=1")
	assert.Contains(t, requested, "radius=5")
	assert.Contains(t, requested, "nojsoncallback=1")
}

func TestSearchEmptyPageIsNotAnError(t *testing.T) {
	client := NewClientWithHTTP(Config{APIKey: "testkey"}, respondWith(emptyResponseBody))
	page, err := client.Search(context.Background(), 0, 0, 1)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 2, page.TotalPages)
}

func TestSearchServiceError(t *testing.T) {
	client := NewClientWithHTTP(Config{APIKey: "bad"}, respondWith(errorResponseBody))
	_, err := client.Search(context.Background(), 0, 0, 1)
	require.Error(t, err)
	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr), "expected ServiceError, got %T", err)
	assert.Equal(t, 100, serviceErr.Code)
	assert.Contains(t, serviceErr.Message, "Invalid API Key")
}

func TestSearchDecodeError(t *testing.T) {
	client := NewClientWithHTTP(Config{APIKey: "testkey"}, respondWith("<html>not json</html>"))
	_, err := client.Search(context.Background(), 0, 0, 1)
	require.Error(t, err)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %T", err)
}

func TestSearchTransportError(t *testing.T) {
	client := NewClientWithHTTP(Config{APIKey: "testkey"}, &http.Client{
		Transport: failingTransport{},
	})
	_, err := client.Search(context.Background(), 0, 0, 1)
	require.Error(t, err)
	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr), "expected TransportError, got %T", err)
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}
