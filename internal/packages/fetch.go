package packages

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

// DefaultRegistry hosts the preview namespace.
const DefaultRegistry = "https://packages.typst.org"

// URL is the archive location of spec: {registry}/{namespace}/{name}-{version}.tar.gz.
func URL(registry string, spec source.PackageSpec) string {
	if registry == "" {
		registry = DefaultRegistry
	}
	return fmt.Sprintf("%s/%s/%s-%s.tar.gz", strings.TrimRight(registry, "/"), spec.Namespace, spec.Name, spec.Version)
}

// IndexURL lists the packages of a namespace.
func IndexURL(registry, namespace string) string {
	if registry == "" {
		registry = DefaultRegistry
	}
	return fmt.Sprintf("%s/%s/index.json", strings.TrimRight(registry, "/"), namespace)
}

// Fetcher downloads the bytes at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchFunc adapts a plain function, such as a host-provided download hook,
// to Fetcher.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPFetcher downloads over HTTP.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: "typstcore",
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &diag.PackageError{Kind: diag.NetworkFailed, Err: err}
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	log.Debugf("GET %s", url)
	resp, err := client.Do(req)
	if err != nil {
		return nil, &diag.PackageError{Kind: diag.NetworkFailed, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &diag.PackageError{Kind: diag.PackageNotFound, Message: url}
	case resp.StatusCode != http.StatusOK:
		return nil, &diag.PackageError{Kind: diag.NetworkFailed, Message: fmt.Sprintf("%s: %s", url, resp.Status)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &diag.PackageError{Kind: diag.NetworkFailed, Err: err}
	}
	return data, nil
}
