package main

import (
	"github.com/spf13/cobra"

	"github.com/chartpub/chartpub/internal/config"
	"github.com/chartpub/chartpub/internal/fetch"
	"github.com/chartpub/chartpub/internal/helm"
	"github.com/chartpub/chartpub/internal/pipeline"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Run the full reconciliation and publishing pipeline",
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().String("publish-url", "", "base URL the repository is served from")
	publishCmd.Flags().String("repo-root", "", "local chart repository checkout")
	publishCmd.Flags().String("registry", "", "OCI registry root for prebuilt releases")
	publishCmd.Flags().Int("pull-budget", 0, "max registry pulls per run")
	publishCmd.Flags().Int("build-budget", 0, "max builds per run")
	publishCmd.Flags().Bool("add-registry-links", false, "add registry links to index entries")
	publishCmd.Flags().Bool("remove-registry-links", false, "remove registry links from index entries")
	bindFlag(publishCmd, "publish_url", "publish-url")
	bindFlag(publishCmd, "repo_root", "repo-root")
	bindFlag(publishCmd, "registry", "registry")
	bindFlag(publishCmd, "pull_budget", "pull-budget")
	bindFlag(publishCmd, "build_budget", "build-budget")
	bindFlag(publishCmd, "add_registry_links", "add-registry-links")
	bindFlag(publishCmd, "remove_registry_links", "remove-registry-links")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger(cfg.Verbose)

	h := helm.New(cfg.HelmPath, logger)
	if err := h.Verify(cmd.Context()); err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		Config: cfg,
		Helm:   h,
		Fetcher: &fetch.IndexClient{
			Getter: fetch.NewCircuitBreakerFetcher(fetch.NewFetcher()),
			Logger: logger,
		},
		Logger: logger,
	}
	return p.Run(cmd.Context())
}
