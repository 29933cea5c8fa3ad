package main

import (
	"fmt"
	"os"
	"strings"

	"coin-tracker/internal/config"
	"coin-tracker/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "coin-tracker",
	Short: "Record ethereum mining profitability to a Google Sheet",
	Long: `coin-tracker fetches daily mining metrics for a rig, derives profit in
rewards, and appends the result as one row of a Google Sheet.

Every flag can also be set with a COIN_ prefixed environment variable,
e.g. --sheet-id as COIN_SHEET_ID.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to YAML config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console or json); defaults to log.format from config")

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(authCmd)
}

// bindEnv fills every flag the user did not set from its COIN_ environment
// variable. Precedence: flag, environment, default.
func bindEnv(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("COIN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
			bindErr = fmt.Errorf("failed to bind flag %s to environment: %w", f.Name, err)
		}
	})
	return bindErr
}

// setup loads the config and builds the logger shared by the subcommands.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	if err := bindEnv(cmd); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(logSettings(cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// logSettings returns the log level and format, flags taking precedence over config.
func logSettings(cfg *config.Config) (level, format string) {
	level, format = cfg.Log.Level, cfg.Log.Format
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	return level, format
}
