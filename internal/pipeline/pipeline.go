// Package pipeline runs the stages of a publish: discovery, manifest
// reading, remote index fetch, acquisition, index generation and merge,
// post-processing, and validation. Stages run strictly sequentially; each
// is a function of filesystem state and the previous stage's output.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/chartpub/chartpub/internal/chart"
	"github.com/chartpub/chartpub/internal/config"
	"github.com/chartpub/chartpub/internal/helm"
	"github.com/chartpub/chartpub/internal/index"
	"github.com/chartpub/chartpub/internal/registry"
	"github.com/chartpub/chartpub/internal/resolve"
	"github.com/chartpub/chartpub/internal/validate"
)

// mergeBaseName is where the fetched published index is persisted inside
// the output directory, to serve as the merge base. The index toolchain
// only scans archives, so the extra file is never indexed.
const mergeBaseName = ".prev-index.yaml"

// Toolchain is the external toolchain surface the pipeline drives.
// Satisfied by *helm.CLI.
type Toolchain interface {
	resolve.Puller
	resolve.Builder
	RepoIndex(ctx context.Context, dir, url, mergePath string) error
	RepoAdd(ctx context.Context, name, url string) error
	RepoRemove(ctx context.Context, name string) error
	SearchRepo(ctx context.Context, keyword string) ([]helm.SearchResult, error)
}

// IndexFetcher retrieves the previously published index.
// Satisfied by *fetch.IndexClient.
type IndexFetcher interface {
	FetchIndex(ctx context.Context, baseURL, savePath string) (*index.Index, error)
}

// Pipeline reconciles the local chart tree against the published index and
// produces a validated, servable output directory.
type Pipeline struct {
	Config  config.Config
	Helm    Toolchain
	Fetcher IndexFetcher
	Logger  *log.Logger
}

// Run executes one publish pass. Per-chart failures are absorbed by the
// acquisition stage; an error return means no valid publishable output
// exists and the process must exit non-zero.
func (p *Pipeline) Run(ctx context.Context) error {
	outDir := p.outputDir()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	dirs := chart.Find(p.Config.RepoRoot, p.Config.Categories, p.Logger)
	if len(dirs) == 0 {
		p.Logger.Warn("no charts found, nothing to publish")
		return nil
	}

	candidates := p.readManifests(dirs)

	published, mergeBase := p.fetchPublished(ctx, outDir)

	resolver := &resolve.Resolver{
		Published: published,
		OutputDir: outDir,
		Registry:  registry.ChartURLs{Root: p.Config.Registry},
		Puller:    p.Helm,
		Builder:   p.Helm,
		Logger:    p.Logger,
	}
	budget := resolve.NewBudget(p.Config.PullBudget, p.Config.BuildBudget)
	resolver.Run(ctx, candidates, budget)

	if err := p.generateIndex(ctx, outDir, mergeBase); err != nil {
		return err
	}

	p.postProcess(outDir)

	validator := &validate.Validator{Prober: p.Helm, Logger: p.Logger}
	if err := validator.Validate(ctx, outDir); err != nil {
		return fmt.Errorf("generated index failed validation: %w", err)
	}

	p.Logger.Info("repository ready", "dir", outDir, "url", p.Config.PublishURL)
	return nil
}

func (p *Pipeline) outputDir() string {
	if filepath.IsAbs(p.Config.OutputDir) {
		return p.Config.OutputDir
	}
	return filepath.Join(p.Config.RepoRoot, p.Config.OutputDir)
}

// readManifests loads each discovered chart's identity. Charts with
// unreadable or incomplete manifests are skipped, not fatal.
func (p *Pipeline) readManifests(dirs []chart.Dir) []resolve.Candidate {
	candidates := make([]resolve.Candidate, 0, len(dirs))
	for _, d := range dirs {
		md, err := chart.Load(d)
		if err != nil {
			p.Logger.Warn("skipping chart with unusable manifest", "path", d.Path, "err", err)
			continue
		}
		candidates = append(candidates, resolve.Candidate{Dir: d, Meta: md})
	}
	return candidates
}

// fetchPublished retrieves the published index when a publish URL is
// configured. It returns the parsed index (nil when absent or malformed)
// and the merge base path (empty when no usable base was saved).
func (p *Pipeline) fetchPublished(ctx context.Context, outDir string) (*index.Index, string) {
	if p.Config.PublishURL == "" {
		p.Logger.Info("no publish URL configured, running in first-publish mode")
		return nil, ""
	}

	savePath := filepath.Join(outDir, mergeBaseName)
	published, err := p.Fetcher.FetchIndex(ctx, p.Config.PublishURL, savePath)
	if err != nil {
		p.Logger.Warn("could not fetch published index, proceeding without it", "err", err)
		return nil, ""
	}
	if _, statErr := os.Stat(savePath); statErr != nil {
		return published, ""
	}
	return published, savePath
}

// generateIndex invokes the index toolchain, merging with the fetched
// index when a merge base exists. A failed merge falls back to a fresh
// index: it omits prior entries but is still correct, and a later run will
// merge again. Total generation failure, or the index file not
// materializing, is fatal.
func (p *Pipeline) generateIndex(ctx context.Context, outDir, mergeBase string) error {
	err := p.Helm.RepoIndex(ctx, outDir, p.Config.PublishURL, mergeBase)
	if err != nil && mergeBase != "" {
		p.Logger.Warn("index merge failed, regenerating without merge base", "err", err)
		err = p.Helm.RepoIndex(ctx, outDir, p.Config.PublishURL, "")
	}
	if err != nil {
		return fmt.Errorf("generating index: %w", err)
	}

	indexPath := filepath.Join(outDir, index.FileName)
	if _, err := os.Stat(indexPath); err != nil {
		return fmt.Errorf("index generation produced no %s: %w", index.FileName, err)
	}
	return nil
}

// postProcess rewrites the generated index in place: appVersion coercion
// and the registry-link policy. A missing or structurally empty index is
// skipped with a warning rather than fabricated.
func (p *Pipeline) postProcess(outDir string) {
	indexPath := filepath.Join(outDir, index.FileName)

	doc, err := index.LoadDocument(indexPath)
	if err != nil {
		p.Logger.Warn("skipping index post-processing", "err", err)
		return
	}

	index.Normalize(doc, index.Options{
		RegistryURL:         p.Config.Registry,
		AddRegistryLinks:    p.Config.AddRegistryLinks,
		RemoveRegistryLinks: p.Config.RemoveRegistryLinks,
	}, p.Logger)

	if err := index.SaveDocument(indexPath, doc); err != nil {
		p.Logger.Error("failed to persist post-processed index", "err", err)
	}
}
