// Package httpsource supplies fetch operations that read JSON resources over
// HTTP, for use with a fetcher.Fetcher.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	"github.com/ipni/go-fetchcache/apierror"
	"github.com/ipni/go-fetchcache/cachekey"
	"github.com/ipni/go-fetchcache/fetcher"
)

var log = logging.Logger("fetchcache/httpsource")

// Source issues GET requests for JSON resources below a base URL.
type Source struct {
	url    *url.URL
	client *http.Client
	header http.Header
}

// New creates a Source for resources below baseURL.
func New(baseURL string, options ...Option) (*Source, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url must have http or https scheme: %s", baseURL)
	}
	u.RawQuery = ""
	u.Fragment = ""

	client := opts.httpClient
	if opts.timeout != 0 {
		c := *client
		c.Timeout = opts.timeout
		client = &c
	}
	if opts.retryMax != 0 {
		rclient := &retryablehttp.Client{
			HTTPClient:   client,
			RetryWaitMin: opts.retryWaitMin,
			RetryWaitMax: opts.retryWaitMax,
			RetryMax:     opts.retryMax,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
			// Return the last response so its status is reported.
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		}
		client = rclient.StandardClient()
	}

	return &Source{
		url:    u,
		client: client,
		header: opts.header,
	}, nil
}

// Key returns the cache key for the resource at path with the given query
// parameters. The key is the request URL, so sources with different base URLs
// can share a cache, and different requests never share a key.
func (s *Source) Key(path string, params map[string]any) string {
	return s.requestURL(path, params)
}

// requestURL returns the URL for path with params as its sorted query. Names
// and values are query-escaped, so a value containing "&" or "=" cannot be
// mistaken for more parameters.
func (s *Source) requestURL(path string, params map[string]any) string {
	escaped := make(map[string]any, len(params))
	for name, val := range params {
		escaped[url.QueryEscape(name)] = url.QueryEscape(fmt.Sprint(val))
	}
	return cachekey.Build(s.url.JoinPath(path).String(), escaped)
}

// Fetch gets the JSON resource at path with the given query parameters. A
// response with a status other than 200 returns an *apierror.Error.
func (s *Source) Fetch(ctx context.Context, path string, params map[string]any) (json.RawMessage, error) {
	u := s.requestURL(path, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for key, vals := range s.header {
		for _, val := range vals {
			req.Header.Add(key, val)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		log.Debugw("Fetch returned error status", "url", u, "status", resp.StatusCode)
		return nil, apierror.FromResponse(resp.StatusCode, body)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("response from %s is not valid json", u)
	}
	return json.RawMessage(body), nil
}

// Operation returns a fetch operation that gets the resource at path.
func (s *Source) Operation(path string, params map[string]any) fetcher.Operation[json.RawMessage] {
	return func(ctx context.Context) (json.RawMessage, error) {
		return s.Fetch(ctx, path, params)
	}
}

// JSONOperation returns a fetch operation that gets the resource at path and
// decodes it into a T.
func JSONOperation[T any](s *Source, path string, params map[string]any) fetcher.Operation[T] {
	return func(ctx context.Context) (T, error) {
		var v T
		body, err := s.Fetch(ctx, path, params)
		if err != nil {
			return v, err
		}
		if err = json.Unmarshal(body, &v); err != nil {
			return v, fmt.Errorf("cannot decode response: %w", err)
		}
		return v, nil
	}
}

func (s *Source) String() string {
	return s.url.String()
}
