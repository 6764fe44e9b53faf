// Package cli implements the lostfound-matcher commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lostlink/matcher/internal/config"
	logpkg "github.com/lostlink/matcher/internal/logger"
)

var (
	envFlag    string
	configFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "lostfound-matcher",
	Short:         "Matches lost and found reports by meaning",
	Long:          "Embeds lost-and-found reports, scores them against reports of the opposite kind and links likely pairs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "", "Environment: local, dev, prod (default: $ENV or local)")
	RootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file path (default: config/<env>.yaml)")
}

func environment() string {
	if envFlag != "" {
		return envFlag
	}
	return config.GetEnv()
}

// loadConfig reads the configuration and builds the logger for the selected environment.
func loadConfig() (config.Config, *zap.Logger, error) {
	env := environment()

	var (
		cfg config.Config
		err error
	)
	if configFlag != "" {
		cfg, err = config.LoadFile(configFlag)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
