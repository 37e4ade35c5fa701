// Package config holds runtime configuration for a chartpub run.
package config

import "github.com/spf13/viper"

// Config is populated from .chartpub.yaml, CHARTPUB_* env vars, and CLI
// flags, in increasing order of precedence.
type Config struct {
	// PublishURL is the base URL the repository is served from. When unset
	// the run is in first-publish mode: no remote fetch, no merge.
	PublishURL string `mapstructure:"publish_url"`
	// RepoRoot is the local chart repository checkout.
	RepoRoot string `mapstructure:"repo_root"`
	// OutputDir receives packaged artifacts and the generated index,
	// relative to RepoRoot unless absolute.
	OutputDir string `mapstructure:"output_dir"`
	// Categories are the top-level chart directories scanned, in order.
	Categories []string `mapstructure:"categories"`
	// Registry is the OCI registry root prebuilt releases are pulled from.
	// Empty disables the pull strategy.
	Registry string `mapstructure:"registry"`
	// PullBudget caps registry pull attempts per run.
	PullBudget int `mapstructure:"pull_budget"`
	// BuildBudget caps build-from-source attempts per run.
	BuildBudget int `mapstructure:"build_budget"`
	// AddRegistryLinks prepends each chart's registry link to its index urls.
	AddRegistryLinks bool `mapstructure:"add_registry_links"`
	// RemoveRegistryLinks strips registry links from index urls. Wins over
	// AddRegistryLinks when both are set.
	RemoveRegistryLinks bool `mapstructure:"remove_registry_links"`
	// HelmPath locates the helm binary.
	HelmPath string `mapstructure:"helm_path"`
	Verbose  bool   `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() Config {
	viper.SetDefault("publish_url", "")
	viper.SetDefault("repo_root", ".")
	viper.SetDefault("output_dir", "helm-repo")
	viper.SetDefault("categories", []string{"stable", "premium", "incubator", "system", "library"})
	viper.SetDefault("registry", "")
	viper.SetDefault("pull_budget", 25)
	viper.SetDefault("build_budget", 10)
	viper.SetDefault("add_registry_links", false)
	viper.SetDefault("remove_registry_links", false)
	viper.SetDefault("helm_path", "helm")
	viper.SetDefault("verbose", false)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
