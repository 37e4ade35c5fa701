// chartpub reconciles a local chart repository against its published index
// and produces an updated, validated index ready to serve.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "chartpub",
	Short: "Chart repository publisher",
	Long: "chartpub scans a chart repository checkout, acquires missing chart\n" +
		"artifacts (registry pull first, build from source second, both under\n" +
		"per-run budgets), regenerates the repository index merged with the\n" +
		"previously published one, and validates the result before it is\n" +
		"declared ready to serve.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .chartpub.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".chartpub")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("CHARTPUB")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// bindFlag wires a cobra flag to a viper key. Unchanged flags fall through
// to env vars, the config file, and defaults.
func bindFlag(cmd *cobra.Command, key, flag string) {
	_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
}

func newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "chartpub",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
