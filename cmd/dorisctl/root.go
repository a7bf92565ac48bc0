package main

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nucleus/doris-core/internal/config"
	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/logger"
	"github.com/nucleus/doris-core/pkg/doris"
)

type rootFlags struct {
	configPath string
	logLevel   string
	database   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "dorisctl",
		Short:         "Stream load, online re-bucketing and metadata harvesting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn, error or off (overrides config)")
	cmd.PersistentFlags().StringVarP(&flags.database, "database", "d", "", "database (overrides config)")

	cmd.AddCommand(
		newLoadCmd(flags),
		newModifyCmd(flags),
		newMetaCmd(flags),
		newJournalCmd(flags),
	)
	return cmd
}

// open loads config, installs the process logger and builds a client.
func (f *rootFlags) open() (*doris.Client, *config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.database != "" {
		cfg.Cluster.Database = f.database
	}

	log, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)

	client, err := doris.New(cfg, doris.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

func newLogger(w io.Writer, level string) (logger.Logger, error) {
	switch strings.ToLower(level) {
	case "none", "off":
		return logger.NopLogger, nil
	}
	lvl, ok := logger.ParseLevel(level)
	if !ok {
		return nil, core.Configurationf("unknown log level %q", level)
	}
	return logger.NewLevelLogger(w, lvl), nil
}
