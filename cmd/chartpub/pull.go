package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chartpub/chartpub/internal/config"
	"github.com/chartpub/chartpub/internal/helm"
	"github.com/chartpub/chartpub/internal/registry"
)

var pullCmd = &cobra.Command{
	Use:   "pull <name@version | pkg:helm/name@version>",
	Short: "Pull a single prebuilt chart release into the output directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runPull,
}

func init() {
	pullCmd.Flags().String("registry", "", "OCI registry root for prebuilt releases")
	bindFlag(pullCmd, "registry", "registry")

	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger(cfg.Verbose)

	name, version, err := registry.ParseRef(args[0])
	if err != nil {
		return err
	}

	urls := registry.ChartURLs{Root: cfg.Registry}
	if !urls.Configured() {
		return fmt.Errorf("no registry configured, set --registry or CHARTPUB_REGISTRY")
	}

	outDir := cfg.OutputDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(cfg.RepoRoot, outDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	h := helm.New(cfg.HelmPath, logger)
	if err := h.Pull(cmd.Context(), urls.Ref(name), version, outDir); err != nil {
		return fmt.Errorf("pulling %s: %w", urls.PURL(name, version), err)
	}

	logger.Info("pulled chart", "chart", urls.PURL(name, version), "dir", outDir)
	return nil
}
