// Command medallion refreshes the Bronze, Silver and Gold tables for the
// used-car listings dataset in one run.
//
// Usage:
//
//	medallion [--config medallion.yaml] [--env-file .env] [--validate] [-v]
//
// The exit code is 0 when the run reaches Done, including runs where some
// Gold tables failed, and 1 when it ends in Failed or the configuration is
// invalid.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"medallion/internal/config"
	"medallion/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// register all backends with the warehouse factory.
	_ "medallion/internal/warehouse/all"
)

var errInvalidConfig = errors.New("configuration is invalid")

type options struct {
	configPath string
	envFile    string
	validate   bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "medallion",
		Short: "Load used-car listings into Bronze, Silver and Gold tables",
		Long: `medallion reads the raw listings file, loads it unchanged into the
bronze layer, cleans and types it into the silver layer, and rebuilds the
gold aggregate tables from silver.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	f.StringVar(&opts.envFile, "env-file", "", "dotenv file (default .env when present)")
	f.BoolVar(&opts.validate, "validate", false, "validate the configuration and exit")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	cfg, err := config.Load(config.LoadOptions{File: opts.configPath, EnvFile: opts.envFile})
	if err != nil {
		return err
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}

	issues := config.ValidateConfig(*cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errInvalidConfig
	}
	if opts.validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return nil
	}

	log, syncLog, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Encoding:   cfg.Log.Encoding,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Stderr:     stderr,
	})
	if err != nil {
		return err
	}
	defer syncLog()
	log = log.With(zap.String("job", cfg.Job))

	flush := installMetrics(cfg, log)
	defer flush()

	p, closeWarehouse, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		log.Error("pipeline setup failed", zap.Error(err))
		return err
	}
	defer closeWarehouse()

	rep, err := p.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: bronze=%d silver=%d rejected=%d gold=%d/%d\n",
		rep.State, rep.Bronze.RowCount, rep.Silver.RowCount, len(rep.Rejected),
		len(rep.Gold.Succeeded), len(rep.Gold.Succeeded)+len(rep.Gold.Failures))
	return nil
}

func main() {
	cmd := newRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "medallion: %v\n", err)
		os.Exit(1)
	}
}
