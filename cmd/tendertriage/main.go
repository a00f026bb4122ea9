// Command tendertriage loads a tender dataset, flags outliers by value with a
// five-pass isolation-forest cascade, and serves the results to analysts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tendertriage/internal/config"
	"tendertriage/internal/logging"
)

// cli carries state shared by the subcommands once the root has run.
type cli struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tendertriage:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "tendertriage",
		Short: "Outlier triage for public tender records",
		Long: `tendertriage scores tender values with an isolation forest and sorts
suspicious tenders into Rejected, Pending and Confirmed through a fixed
five-pass cascade. Analysts can override any status; Rejected and Confirmed
stay put across later runs until an analyst moves them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if c.verbose {
				cfg.Logging.Level = "debug"
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg, c.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "tendertriage.yaml", "path to the YAML config file (missing file means defaults)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newServeCmd(c), newClassifyCmd(c))
	return root
}
