package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := Load()

	if cfg.RepoRoot != "." {
		t.Errorf("RepoRoot = %q, want .", cfg.RepoRoot)
	}
	if cfg.OutputDir != "helm-repo" {
		t.Errorf("OutputDir = %q, want helm-repo", cfg.OutputDir)
	}
	if cfg.PublishURL != "" {
		t.Errorf("PublishURL = %q, want empty (first-publish mode)", cfg.PublishURL)
	}
	if cfg.PullBudget != 25 || cfg.BuildBudget != 10 {
		t.Errorf("budgets = %d/%d, want 25/10", cfg.PullBudget, cfg.BuildBudget)
	}
	if cfg.HelmPath != "helm" {
		t.Errorf("HelmPath = %q, want helm", cfg.HelmPath)
	}
	want := []string{"stable", "premium", "incubator", "system", "library"}
	if len(cfg.Categories) != len(want) {
		t.Fatalf("Categories = %v, want %v", cfg.Categories, want)
	}
	for i := range want {
		if cfg.Categories[i] != want[i] {
			t.Errorf("Categories[%d] = %q, want %q", i, cfg.Categories[i], want[i])
		}
	}
	if cfg.AddRegistryLinks || cfg.RemoveRegistryLinks {
		t.Error("registry-link policies enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("publish_url", "https://charts.example.com")
	viper.Set("pull_budget", 3)
	viper.Set("remove_registry_links", true)

	cfg := Load()

	if cfg.PublishURL != "https://charts.example.com" {
		t.Errorf("PublishURL = %q, want override", cfg.PublishURL)
	}
	if cfg.PullBudget != 3 {
		t.Errorf("PullBudget = %d, want 3", cfg.PullBudget)
	}
	if !cfg.RemoveRegistryLinks {
		t.Error("RemoveRegistryLinks override lost")
	}
}

func TestLoadFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("CHARTPUB_BUILD_BUDGET", "7")
	viper.SetEnvPrefix("CHARTPUB")
	viper.AutomaticEnv()

	cfg := Load()
	if cfg.BuildBudget != 7 {
		t.Errorf("BuildBudget = %d, want 7 from env", cfg.BuildBudget)
	}
}
