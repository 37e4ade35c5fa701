// Package helm shells out to the helm CLI for packaging, registry pulls,
// index generation, and repository probes.
package helm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// runner executes one helm invocation and returns its stdout. Swappable in
// tests so no helm binary is needed.
type runner func(ctx context.Context, path string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, path string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("helm %s: %w\nstderr: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// CLI invokes the helm binary.
type CLI struct {
	Path   string
	Logger *log.Logger

	run runner
}

// New creates a CLI for the helm binary at path ("helm" resolves via PATH).
func New(path string, logger *log.Logger) *CLI {
	return &CLI{Path: path, Logger: logger, run: execRunner}
}

// Verify checks that the helm binary is present and runnable.
func (c *CLI) Verify(ctx context.Context) error {
	out, err := c.do(ctx, "version", "--short")
	if err != nil {
		return fmt.Errorf("helm CLI not found at %q: %w", c.Path, err)
	}
	c.Logger.Debug("helm version", "version", strings.TrimSpace(string(out)))
	return nil
}

// DependencyBuild downloads a chart's declared dependencies into its
// charts/ subdirectory.
func (c *CLI) DependencyBuild(ctx context.Context, chartDir string) error {
	_, err := c.do(ctx, "dependency", "build", chartDir)
	return err
}

// Package packages a chart directory into an archive under destDir.
func (c *CLI) Package(ctx context.Context, chartDir, destDir string) error {
	_, err := c.do(ctx, "package", chartDir, "--destination", destDir)
	return err
}

// Pull downloads a prebuilt chart release from a registry reference
// (for example oci://ghcr.io/org/charts/name) into destDir.
func (c *CLI) Pull(ctx context.Context, ref, version, destDir string) error {
	_, err := c.do(ctx, "pull", ref, "--version", version, "--destination", destDir)
	return err
}

// RepoIndex generates dir/index.yaml describing the archives in dir, with
// entry urls rooted at url. When mergePath is non-empty the prior index
// document at that path is merged into the result.
func (c *CLI) RepoIndex(ctx context.Context, dir, url, mergePath string) error {
	args := []string{"repo", "index", dir, "--url", url}
	if mergePath != "" {
		args = append(args, "--merge", mergePath)
	}
	_, err := c.do(ctx, args...)
	return err
}

// RepoAdd registers a named repository with the local helm configuration.
func (c *CLI) RepoAdd(ctx context.Context, name, url string) error {
	_, err := c.do(ctx, "repo", "add", name, url, "--force-update")
	return err
}

// RepoRemove deregisters a named repository.
func (c *CLI) RepoRemove(ctx context.Context, name string) error {
	_, err := c.do(ctx, "repo", "remove", name)
	return err
}

// SearchResult is one row of helm search repo output.
type SearchResult struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	AppVersion string `json:"app_version"`
}

// SearchRepo lists charts matching keyword across registered repositories.
func (c *CLI) SearchRepo(ctx context.Context, keyword string) ([]SearchResult, error) {
	out, err := c.do(ctx, "search", "repo", keyword, "--output", "json")
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	if err := json.Unmarshal(out, &results); err != nil {
		return nil, fmt.Errorf("parsing search output: %w", err)
	}
	return results, nil
}

func (c *CLI) do(ctx context.Context, args ...string) ([]byte, error) {
	c.Logger.Debug("running helm", "args", strings.Join(args, " "))
	return c.run(ctx, c.Path, args...)
}
