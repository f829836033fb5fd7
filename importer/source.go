package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/eringen/folio/content"
)

// maxDocumentSize caps documents fetched over HTTP.
const maxDocumentSize = 4 << 20

// Source reads the raw profile document.
type Source interface {
	Read(ctx context.Context) (string, error)
}

// FileSource reads the document from a local file.
type FileSource struct {
	Path string
}

func (s FileSource) Read(_ context.Context) (string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HTTPSource downloads the document, for example from a raw file URL in a
// repository.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) Read(ctx context.Context) (string, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %d", s.URL, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Load reads src and parses it for kind.
func Load(ctx context.Context, src Source, kind content.Kind) ([]Candidate, error) {
	doc, err := src.Read(ctx)
	if err != nil {
		return nil, err
	}
	return ParseDocument(doc, kind)
}
