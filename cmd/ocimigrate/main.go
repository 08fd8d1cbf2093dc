// Package main provides the entry point for the ocimigrate CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codebypatrickleung/ocimigrate/internal/config"
	"github.com/codebypatrickleung/ocimigrate/internal/logger"
	"github.com/codebypatrickleung/ocimigrate/internal/progress"
	"github.com/codebypatrickleung/ocimigrate/internal/workflow"
)

const defaultConfigFile = "config.json"

var (
	cfgFile      string
	workflowName string
	logFile      string
	dryRun       bool
	debug        bool
	timeout      time.Duration
)

var version = "0.2.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "ocimigrate",
	Short:         "ocimigrate - OCI cross-region migration tool",
	Long:          `ocimigrate moves OCI resources between regions. Progress is saved after every step, so an interrupted run resumes where it stopped when the same command is run again.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the saved migration progress",
	Args:  cobra.NoArgs,
	RunE:  status,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.Flags().StringVarP(&workflowName, "workflow", "w", "",
		fmt.Sprintf("workflow to run (%s)", strings.Join(workflow.NewDefaultRegistry().Names(), ", ")))
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log remote operations without executing them and do not save progress")
	rootCmd.Flags().StringVar(&logFile, "log-file", "migration.log", "log file path")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this long (0 means no limit)")
	if err := rootCmd.MarkFlagRequired("workflow"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to mark workflow flag required: %v\n", err)
	}

	// Config overrides; flags win over the environment and the config file.
	flags := []struct {
		name, usage string
	}{
		{"source-region", "source OCI region"},
		{"target-region", "target OCI region"},
		{"state-file-path", "progress file path for the file backend"},
		{"progress-backend", "where progress is saved (file, oci, azblob)"},
		{"oci-config-file", "OCI SDK config file"},
		{"oci-profile", "OCI SDK config profile"},
	}
	for _, f := range flags {
		rootCmd.PersistentFlags().String(f.name, "", f.usage)
		key := strings.ReplaceAll(f.name, "-", "_")
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(f.name)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to bind flag %s to %s: %v\n", f.name, key, err)
		}
	}

	rootCmd.AddCommand(statusCmd)
}

// loadConfig reads the configuration. A missing default config file is not
// an error; the environment and flags may supply everything.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if errors.Is(err, config.ErrConfigNotFound) && !cmd.Flags().Changed("config") {
		cfg, err = config.Load("")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewWithFile(debug, logFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	log.Infof("ocimigrate version %s", version)
	log.Infof("Log file: %s", logFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	mgr, err := workflow.NewManager(cfg, log, workflowName, dryRun, version)
	if err != nil {
		return fmt.Errorf("failed to create workflow manager: %w", err)
	}

	if err := mgr.Run(ctx); err != nil {
		return fmt.Errorf("workflow %s failed: %w", workflowName, err)
	}
	return nil
}

func status(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.New(debug)

	store, err := workflow.NewStore(cfg, log)
	if err != nil {
		return err
	}
	record, err := store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load progress from %s: %w", store.Location(), err)
	}
	if record.Empty() {
		fmt.Fprintf(cmd.OutOrStdout(), "No progress saved at %s\n", store.Location())
		return nil
	}

	data, err := progress.Encode(record)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Progress at %s (committed: %v)\n", store.Location(), record.Keys())
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
