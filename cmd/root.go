// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/internal/config"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
	"github.com/xkilldash9x/bridgecheck/internal/observability"
)

// globalOptions is the state shared by every subcommand once the root
// command's pre-run has loaded configuration.
type globalOptions struct {
	cfgFile string

	cfg    *config.Config
	logger *zap.Logger

	// launcher builds the page launcher for run. Tests replace it.
	launcher launcherFactory
}

// NewRootCommand creates a fresh command tree. Every call returns independent
// flag state.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&globalOptions{launcher: browserLauncher})
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bridgecheck",
		Short: "Bridgecheck verifies a desktop app's web UI against a mocked host bridge.",
		Long: `Bridgecheck loads the renderer of a desktop application in a headless
browser, replaces the host process bridge with canned responses, and drives
scripted scenarios that wait, hover, click and capture screenshots.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCommand(opts),
		newListCommand(opts),
		newScriptCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

// load reads configuration and initializes the global logger.
func (o *globalOptions) load() error {
	cfg, err := loadConfig(o.cfgFile)
	if err != nil {
		// Still surface the failure through a logger.
		observability.InitializeLogger(config.NewDefaultConfig().Logger())
		return err
	}
	o.cfg = cfg

	observability.InitializeLogger(cfg.Logger())
	o.logger = observability.GetLogger()
	o.logger.Debug("Starting bridgecheck", zap.String("version", Version))
	return nil
}

// loadConfig reads the config file, if any, and environment overrides on top
// of the defaults.
func loadConfig(cfgFile string) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	config.BindEnvironment(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment only.
	}
	return config.NewConfigFromViper(v)
}

// Execute runs the command line against a fresh command tree. The returned
// error keeps its classification so the caller can derive the exit status.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	observability.Sync()
	return err
}

// ExitCode maps an error returned by Execute to the process status.
func ExitCode(err error) int {
	return failures.Classify(err).ExitCode()
}

func printError(w io.Writer, err error) {
	kind := failures.Classify(err)
	if kind == failures.KindUnknown {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error (%s): %v\n", kind, err)
}
