package docgraph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// defaultFetchTimeout bounds HTTP(S) source fetches when the caller (via
// config.AnalysisConfig.HTTPTimeoutSeconds) supplies no override.
const defaultFetchTimeout = 30 * time.Second

// fetchSource resolves a document's source text. file:// URIs are read from
// disk; http(s):// URIs are fetched with a bounded timeout (timeout <= 0
// falls back to defaultFetchTimeout); any other scheme is rejected.
func fetchSource(ctx context.Context, uri string, timeout time.Duration) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid URI %q: %w", uri, err)
	}

	switch u.Scheme {
	case "file":
		path := u.Path
		if path == "" {
			path = strings.TrimPrefix(uri, "file://")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil

	case "http", "https":
		if timeout <= 0 {
			timeout = defaultFetchTimeout
		}
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, uri, nil)
		if err != nil {
			return "", fmt.Errorf("build request for %s: %w", uri, err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", uri, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch %s: unexpected status %d", uri, resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("read body of %s: %w", uri, err)
		}
		return string(body), nil

	default:
		return "", fmt.Errorf("unsupported URI scheme %q in %q", u.Scheme, uri)
	}
}
