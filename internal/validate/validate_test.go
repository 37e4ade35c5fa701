package validate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/chartpub/chartpub/internal/helm"
)

// fakeProber records the probe sequence and can also exercise the served
// endpoint the way a real client would.
type fakeProber struct {
	addErr    error
	searchErr error
	results   []helm.SearchResult

	addedURL string
	removed  bool
	fetch    func(url string) error // optional: probe the served endpoint
}

func (f *fakeProber) RepoAdd(ctx context.Context, name, url string) error {
	f.addedURL = url
	return f.addErr
}

func (f *fakeProber) RepoRemove(ctx context.Context, name string) error {
	f.removed = true
	return nil
}

func (f *fakeProber) SearchRepo(ctx context.Context, keyword string) ([]helm.SearchResult, error) {
	if f.fetch != nil {
		if err := f.fetch(f.addedURL); err != nil {
			return nil, err
		}
	}
	return f.results, f.searchErr
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestValidateServesIndexToProbe(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.yaml"), []byte("apiVersion: v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	prober := &fakeProber{
		results: []helm.SearchResult{{Name: "chartpub-verify/nginx", Version: "1.0.0"}},
		// Hit the served directory over HTTP, as the toolchain would.
		fetch: func(url string) error {
			resp, err := http.Get(url + "/index.yaml")
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				return errors.New("index not served")
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if string(body) != "apiVersion: v1\n" {
				return errors.New("served unexpected content")
			}
			return nil
		},
	}

	v := &Validator{Prober: prober, Logger: testLogger()}
	if err := v.Validate(context.Background(), dir); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !prober.removed {
		t.Error("temporary repo registration not cleaned up")
	}
}

func TestValidateRepoAddFailure(t *testing.T) {
	prober := &fakeProber{addErr: errors.New("registration refused")}
	v := &Validator{Prober: prober, Logger: testLogger()}

	if err := v.Validate(context.Background(), t.TempDir()); err == nil {
		t.Fatal("Validate succeeded despite registration failure")
	}
	if prober.removed {
		t.Error("RepoRemove called for a registration that never happened")
	}
}

func TestValidateSearchFailureStillCleansUp(t *testing.T) {
	prober := &fakeProber{searchErr: errors.New("index unreadable")}
	v := &Validator{Prober: prober, Logger: testLogger()}

	if err := v.Validate(context.Background(), t.TempDir()); err == nil {
		t.Fatal("Validate succeeded despite search failure")
	}
	if !prober.removed {
		t.Error("cleanup skipped on search failure")
	}
}

func TestValidateEmptyResultIsMalformedIndex(t *testing.T) {
	prober := &fakeProber{results: nil}
	v := &Validator{Prober: prober, Logger: testLogger()}

	err := v.Validate(context.Background(), t.TempDir())
	if !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("Validate = %v, want ErrEmptyIndex", err)
	}
	if !prober.removed {
		t.Error("cleanup skipped on empty result")
	}
}
