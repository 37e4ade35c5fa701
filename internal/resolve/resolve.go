// Package resolve decides, per chart, how to obtain a missing artifact:
// reuse what is already published or cached, pull a prebuilt release from
// the registry, or build from source, under per-run budgets.
package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/chartpub/chartpub/internal/chart"
	"github.com/chartpub/chartpub/internal/index"
	"github.com/chartpub/chartpub/internal/registry"
)

// Puller pulls a prebuilt chart release into destDir.
type Puller interface {
	Pull(ctx context.Context, ref, version, destDir string) error
}

// Builder resolves a chart's dependencies and packages it into destDir.
type Builder interface {
	DependencyBuild(ctx context.Context, chartDir string) error
	Package(ctx context.Context, chartDir, destDir string) error
}

// Outcome classifies how one chart was handled.
type Outcome int

const (
	// AlreadyPublished: the release is in the published index; nothing to do.
	AlreadyPublished Outcome = iota
	// Cached: the artifact is already in the output directory.
	Cached
	// Pulled: a prebuilt release was pulled from the registry.
	Pulled
	// Built: the chart was packaged from source.
	Built
	// SkippedBudget: a budget was exhausted; retried on a later run.
	SkippedBudget
	// Failed: every applicable strategy failed for this run.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case AlreadyPublished:
		return "already-published"
	case Cached:
		return "cached"
	case Pulled:
		return "pulled"
	case Built:
		return "built"
	case SkippedBudget:
		return "skipped-budget"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Candidate pairs a chart's identity with its source directory.
type Candidate struct {
	Dir  chart.Dir
	Meta chart.Metadata
}

// Summary tallies outcomes across one resolver run.
type Summary struct {
	Counts map[Outcome]int
}

// Resolver acquires missing chart artifacts into OutputDir.
type Resolver struct {
	Published *index.Index // nil on first publish
	OutputDir string
	Registry  registry.ChartURLs
	Puller    Puller
	Builder   Builder
	Logger    *log.Logger
}

// Resolve runs the strategy chain for one chart and returns the outcome.
// The chain is strictly ordered and short-circuits on first success:
// published index, local cache, registry pull, build from source. A pull is
// strictly cheaper than a build, so when the pull budget is exhausted the
// build is foregone too and the chart waits for a later run. When no
// registry is configured the pull strategy does not apply and no pull
// budget is consumed.
func (r *Resolver) Resolve(ctx context.Context, c Candidate, budget *Budget) Outcome {
	name, version := c.Meta.Name, c.Meta.Version

	if r.Published.Has(name, version) {
		return AlreadyPublished
	}

	archive := filepath.Join(r.OutputDir, chart.ArchiveName(name, version))
	if _, err := os.Stat(archive); err == nil {
		return Cached
	}

	if r.Registry.Configured() {
		if !budget.TakePull() {
			r.Logger.Info("pull budget exhausted, deferring to next run",
				"chart", r.Registry.PURL(name, version))
			return SkippedBudget
		}
		err := r.Puller.Pull(ctx, r.Registry.Ref(name), version, r.OutputDir)
		if err == nil {
			return Pulled
		}
		// The registry may simply not carry this release yet.
		r.Logger.Info("registry pull missed, falling back to build",
			"chart", r.Registry.PURL(name, version), "err", err)
	}

	if !budget.TakeBuild() {
		r.Logger.Info("build budget exhausted, deferring to next run",
			"chart", name, "version", version)
		return SkippedBudget
	}

	if err := r.Builder.DependencyBuild(ctx, c.Dir.Path); err != nil {
		r.Logger.Error("dependency build failed", "chart", name, "version", version, "err", err)
		return Failed
	}
	if err := r.Builder.Package(ctx, c.Dir.Path, r.OutputDir); err != nil {
		r.Logger.Error("packaging failed", "chart", name, "version", version, "err", err)
		return Failed
	}
	return Built
}

// Run resolves every candidate in order. Per-chart failures are local:
// they are tallied and logged but never stop the loop.
func (r *Resolver) Run(ctx context.Context, candidates []Candidate, budget *Budget) Summary {
	summary := Summary{Counts: make(map[Outcome]int)}

	for _, c := range candidates {
		outcome := r.Resolve(ctx, c, budget)
		summary.Counts[outcome]++
		r.Logger.Info("resolved chart",
			"chart", c.Meta.Name, "version", c.Meta.Version, "outcome", outcome.String())
	}

	r.Logger.Info("acquisition complete",
		"pulls", budget.PullsUsed(), "builds", budget.BuildsUsed(),
		"published", summary.Counts[AlreadyPublished], "cached", summary.Counts[Cached],
		"pulled", summary.Counts[Pulled], "built", summary.Counts[Built],
		"skipped", summary.Counts[SkippedBudget], "failed", summary.Counts[Failed])
	return summary
}
