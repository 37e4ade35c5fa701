// Package validate proves a generated index is servable: it serves the
// output directory on an ephemeral local endpoint, registers it as a
// temporary repository with the toolchain, and exercises a search against
// it, the same read path a real client would take.
package validate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chartpub/chartpub/internal/helm"
)

// Prober is the toolchain surface needed to probe a repository.
// Satisfied by *helm.CLI.
type Prober interface {
	RepoAdd(ctx context.Context, name, url string) error
	RepoRemove(ctx context.Context, name string) error
	SearchRepo(ctx context.Context, keyword string) ([]helm.SearchResult, error)
}

// ErrEmptyIndex is returned when the probe lists no charts.
var ErrEmptyIndex = errors.New("validation search returned no charts")

// repoName is the temporary repository registration used for probing.
// Process-scoped so a crashed previous run's leftover registration is
// overwritten rather than accumulated.
const repoName = "chartpub-verify"

// Validator checks a generated repository directory end to end.
type Validator struct {
	Prober Prober
	Logger *log.Logger
}

// Validate serves dir on a loopback listener and probes it through the
// toolchain. The temporary registration and the listener are torn down on
// every exit path; a leaked listener or a dangling registration must not
// survive across runs.
func (v *Validator) Validate(ctx context.Context, dir string) (err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("starting validation listener: %w", err)
	}

	server := &http.Server{Handler: http.FileServer(http.Dir(dir))}
	go func() { _ = server.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	url := fmt.Sprintf("http://%s", ln.Addr().String())
	v.Logger.Info("validating generated index", "url", url)

	if err := v.Prober.RepoAdd(ctx, repoName, url); err != nil {
		return fmt.Errorf("registering validation repo: %w", err)
	}
	defer func() {
		if rmErr := v.Prober.RepoRemove(ctx, repoName); rmErr != nil {
			v.Logger.Warn("failed to remove validation repo", "err", rmErr)
		}
	}()

	results, err := v.Prober.SearchRepo(ctx, repoName+"/")
	if err != nil {
		return fmt.Errorf("probing validation repo: %w", err)
	}
	if len(results) == 0 {
		return ErrEmptyIndex
	}

	v.Logger.Info("index validated", "charts", len(results))
	return nil
}
