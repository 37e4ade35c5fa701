package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/chartpub/chartpub/internal/index"
)

// Getter retrieves a document by URL. Satisfied by *Fetcher and
// *CircuitBreakerFetcher.
type Getter interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// IndexClient retrieves the previously published index document.
type IndexClient struct {
	Getter Getter
	Logger *log.Logger
}

// FetchIndex downloads <baseURL>/index.yaml, persists the raw document to
// savePath for later use as a merge base, and returns the parsed index.
//
// Absence is not an error: a not-found response is the normal first-publish
// state, and a fetch failure or a document that fails to parse only costs
// the merge base, so all of these degrade to a nil index and the run
// proceeds. Losing the merge base means more rebuilding on later runs,
// never an incorrect output.
func (c *IndexClient) FetchIndex(ctx context.Context, baseURL, savePath string) (*index.Index, error) {
	url := strings.TrimSuffix(baseURL, "/") + "/" + index.FileName

	body, err := c.Getter.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.Logger.Info("no published index found, assuming first publish", "url", url)
		} else {
			c.Logger.Warn("could not fetch published index, proceeding without it", "url", url, "err", err)
		}
		return nil, nil
	}

	if err := os.WriteFile(savePath, body, 0o644); err != nil {
		return nil, fmt.Errorf("saving merge base: %w", err)
	}

	ix, err := index.Parse(body)
	if err != nil {
		c.Logger.Warn("published index is malformed, proceeding without it", "url", url, "err", err)
		return nil, nil
	}

	c.Logger.Info("fetched published index", "url", url, "charts", ix.Len())
	return ix, nil
}
