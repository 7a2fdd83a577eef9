package overlay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Fetcher retrieves overlay payloads and icons by location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// SourceFetcher reads http(s) URLs over the network and everything else as a
// path relative to Root.
type SourceFetcher struct {
	Root   string
	Client *http.Client
}

// NewSourceFetcher creates a fetcher rooted at dir.
func NewSourceFetcher(dir string, client *http.Client) *SourceFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &SourceFetcher{Root: dir, Client: client}
}

// Fetch returns the payload at location. Errors are *FetchError.
func (f *SourceFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if isURL(location) {
		return f.get(ctx, location)
	}
	clean := filepath.Clean(filepath.FromSlash(location))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, &FetchError{Location: location, Err: fmt.Errorf("path escapes data directory")}
	}
	data, err := os.ReadFile(filepath.Join(f.Root, clean))
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}
	return data, nil
}

func (f *SourceFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Location: url, Err: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Location: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Location: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Location: url, Err: err}
	}
	return data, nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
