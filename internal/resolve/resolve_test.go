package resolve

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/chartpub/chartpub/internal/chart"
	"github.com/chartpub/chartpub/internal/index"
	"github.com/chartpub/chartpub/internal/registry"
)

type fakePuller struct {
	calls int
	err   error
	dest  string // when set, a pulled archive is materialized here
	name  string
}

func (f *fakePuller) Pull(ctx context.Context, ref, version, destDir string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.dest != "" {
		return os.WriteFile(filepath.Join(destDir, chart.ArchiveName(f.name, version)), []byte("tgz"), 0o644)
	}
	return nil
}

type fakeBuilder struct {
	depCalls  int
	pkgCalls  int
	depErr    error
	pkgErr    error
	materials bool
}

func (f *fakeBuilder) DependencyBuild(ctx context.Context, chartDir string) error {
	f.depCalls++
	return f.depErr
}

func (f *fakeBuilder) Package(ctx context.Context, chartDir, destDir string) error {
	f.pkgCalls++
	if f.pkgErr != nil {
		return f.pkgErr
	}
	if f.materials {
		name := filepath.Base(chartDir)
		return os.WriteFile(filepath.Join(destDir, chart.ArchiveName(name, "1.0.0")), []byte("tgz"), 0o644)
	}
	return nil
}

func candidate(name, version string) Candidate {
	return Candidate{
		Dir:  chart.Dir{Path: filepath.Join("charts", "stable", name)},
		Meta: chart.Metadata{Name: name, Version: version},
	}
}

func newResolver(t *testing.T, published *index.Index, puller Puller, builder Builder, withRegistry bool) *Resolver {
	t.Helper()
	urls := registry.ChartURLs{}
	if withRegistry {
		urls.Root = "oci://ghcr.io/acme/charts"
	}
	return &Resolver{
		Published: published,
		OutputDir: t.TempDir(),
		Registry:  urls,
		Puller:    puller,
		Builder:   builder,
		Logger:    log.New(io.Discard),
	}
}

func TestResolveAlreadyPublished(t *testing.T) {
	ix, err := index.Parse([]byte("entries:\n  nginx:\n    - version: 1.0.0\n"))
	if err != nil {
		t.Fatal(err)
	}
	p, b := &fakePuller{}, &fakeBuilder{}
	r := newResolver(t, ix, p, b, true)

	got := r.Resolve(context.Background(), candidate("nginx", "1.0.0"), NewBudget(5, 5))
	if got != AlreadyPublished {
		t.Fatalf("Resolve = %v, want AlreadyPublished", got)
	}
	if p.calls != 0 || b.depCalls != 0 {
		t.Error("published chart triggered acquisition")
	}
}

func TestResolveCachedArtifact(t *testing.T) {
	p, b := &fakePuller{}, &fakeBuilder{}
	r := newResolver(t, nil, p, b, true)

	archive := filepath.Join(r.OutputDir, chart.ArchiveName("foo", "1.0.0"))
	if err := os.WriteFile(archive, []byte("tgz"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := r.Resolve(context.Background(), candidate("foo", "1.0.0"), NewBudget(5, 5))
	if got != Cached {
		t.Fatalf("Resolve = %v, want Cached", got)
	}
	if p.calls != 0 || b.depCalls != 0 {
		t.Error("cached chart was re-pulled or rebuilt")
	}
}

func TestResolvePullSucceeds(t *testing.T) {
	p := &fakePuller{dest: "x", name: "nginx"}
	b := &fakeBuilder{}
	r := newResolver(t, nil, p, b, true)

	got := r.Resolve(context.Background(), candidate("nginx", "1.0.0"), NewBudget(5, 5))
	if got != Pulled {
		t.Fatalf("Resolve = %v, want Pulled", got)
	}
	if b.depCalls != 0 {
		t.Error("successful pull still attempted a build")
	}
}

func TestResolvePullFailureFallsBackToBuild(t *testing.T) {
	p := &fakePuller{err: errors.New("not in registry")}
	b := &fakeBuilder{}
	r := newResolver(t, nil, p, b, true)

	got := r.Resolve(context.Background(), candidate("nginx", "1.0.0"), NewBudget(5, 5))
	if got != Built {
		t.Fatalf("Resolve = %v, want Built", got)
	}
	if p.calls != 1 || b.depCalls != 1 || b.pkgCalls != 1 {
		t.Errorf("calls = pull %d, dep %d, pkg %d, want 1 each", p.calls, b.depCalls, b.pkgCalls)
	}
}

func TestResolvePullBudgetExhaustedSkipsBuildToo(t *testing.T) {
	p, b := &fakePuller{}, &fakeBuilder{}
	r := newResolver(t, nil, p, b, true)

	budget := NewBudget(0, 5)
	got := r.Resolve(context.Background(), candidate("nginx", "1.0.0"), budget)
	if got != SkippedBudget {
		t.Fatalf("Resolve = %v, want SkippedBudget", got)
	}
	// Builds are strictly more expensive than pulls: once pulls are
	// exhausted, building is foregone as well.
	if b.depCalls != 0 || b.pkgCalls != 0 {
		t.Error("build attempted after pull budget exhaustion")
	}
	if p.calls != 0 {
		t.Error("pull attempted despite exhausted budget")
	}
}

func TestResolveBuildBudgetExhausted(t *testing.T) {
	p := &fakePuller{err: errors.New("not in registry")}
	b := &fakeBuilder{}
	r := newResolver(t, nil, p, b, true)

	got := r.Resolve(context.Background(), candidate("nginx", "1.0.0"), NewBudget(5, 0))
	if got != SkippedBudget {
		t.Fatalf("Resolve = %v, want SkippedBudget", got)
	}
	if b.depCalls != 0 {
		t.Error("build attempted despite exhausted budget")
	}
}

func TestResolveNoRegistryGoesStraightToBuild(t *testing.T) {
	p, b := &fakePuller{}, &fakeBuilder{}
	r := newResolver(t, nil, p, b, false)

	budget := NewBudget(0, 5)
	got := r.Resolve(context.Background(), candidate("nginx", "1.0.0"), budget)
	if got != Built {
		t.Fatalf("Resolve = %v, want Built", got)
	}
	if p.calls != 0 {
		t.Error("pull attempted without a configured registry")
	}
	if budget.PullsUsed() != 0 {
		t.Errorf("PullsUsed = %d, want 0", budget.PullsUsed())
	}
}

func TestResolveBuildFailures(t *testing.T) {
	tests := []struct {
		name    string
		builder *fakeBuilder
	}{
		{"dependency failure", &fakeBuilder{depErr: errors.New("missing dep")}},
		{"package failure", &fakeBuilder{pkgErr: errors.New("bad chart")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePuller{err: errors.New("not in registry")}
			r := newResolver(t, nil, p, tt.builder, true)

			got := r.Resolve(context.Background(), candidate("nginx", "1.0.0"), NewBudget(5, 5))
			if got != Failed {
				t.Fatalf("Resolve = %v, want Failed", got)
			}
		})
	}
}

func TestBudgetInvariant(t *testing.T) {
	p := &fakePuller{err: errors.New("always misses")}
	b := &fakeBuilder{depErr: errors.New("always fails")}
	r := newResolver(t, nil, p, b, true)

	var candidates []Candidate
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		candidates = append(candidates, candidate(name, "1.0.0"))
	}

	budget := NewBudget(3, 2)
	summary := r.Run(context.Background(), candidates, budget)

	if p.calls > 3 {
		t.Errorf("pull attempts = %d, exceeds budget 3", p.calls)
	}
	if b.depCalls > 2 {
		t.Errorf("build attempts = %d, exceeds budget 2", b.depCalls)
	}
	if budget.PullsUsed() != 3 || budget.BuildsUsed() != 2 {
		t.Errorf("used = %d pulls, %d builds, want 3, 2", budget.PullsUsed(), budget.BuildsUsed())
	}
	// Charts a..c consumed pulls; a,b consumed builds and failed; c had no
	// build budget left; d..g were skipped at the pull gate.
	if summary.Counts[SkippedBudget] != 5 {
		t.Errorf("skipped = %d, want 5", summary.Counts[SkippedBudget])
	}
	if summary.Counts[Failed] != 2 {
		t.Errorf("failed = %d, want 2", summary.Counts[Failed])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	p := &fakePuller{}
	b := &fakeBuilder{materials: true}
	r := newResolver(t, nil, p, b, false)

	candidates := []Candidate{candidate("nginx", "1.0.0"), candidate("redis", "1.0.0")}

	first := r.Run(context.Background(), candidates, NewBudget(10, 10))
	if first.Counts[Built] != 2 {
		t.Fatalf("first run built %d, want 2", first.Counts[Built])
	}

	second := r.Run(context.Background(), candidates, NewBudget(10, 10))
	if second.Counts[Cached] != 2 {
		t.Errorf("second run cached %d, want 2 (no new acquisitions)", second.Counts[Cached])
	}
	if b.depCalls != 2 {
		t.Errorf("second run triggered %d extra builds", b.depCalls-2)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{AlreadyPublished, "already-published"},
		{Cached, "cached"},
		{Pulled, "pulled"},
		{Built, "built"},
		{SkippedBudget, "skipped-budget"},
		{Failed, "failed"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("String = %q, want %q", got, tt.want)
		}
	}
}

func TestBudgetCounters(t *testing.T) {
	b := NewBudget(2, 1)

	if !b.TakePull() || !b.TakePull() {
		t.Fatal("TakePull refused within budget")
	}
	if b.TakePull() {
		t.Error("TakePull allowed beyond budget")
	}
	if b.PullsUsed() != 2 {
		t.Errorf("PullsUsed = %d, want 2", b.PullsUsed())
	}

	if !b.TakeBuild() {
		t.Fatal("TakeBuild refused within budget")
	}
	if b.TakeBuild() {
		t.Error("TakeBuild allowed beyond budget")
	}
	if b.BuildsUsed() != 1 {
		t.Errorf("BuildsUsed = %d, want 1", b.BuildsUsed())
	}
}
