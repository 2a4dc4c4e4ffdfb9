package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/config"
	"github.com/BaSui01/llmgate/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "llmgate",
		Short:         "Vendor-agnostic LLM completions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (defaults to $"+config.ConfigPathEnv+")")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newVendorsCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logger     *zap.Logger
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		loader := config.NewLoader().WithValidator((*config.Config).Validate)
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			loader = loader.WithConfigPath(path)
		} else if path := strings.TrimSpace(getenv(config.ConfigPathEnv)); path != "" {
			loader = loader.WithConfigPath(path)
		}
		cfg, err := loader.Load()
		if err != nil {
			c.configErr = err
			return
		}
		if lvl := strings.TrimSpace(*c.logLevelFlag); lvl != "" {
			cfg.Log.Level = lvl
		}
		c.config = cfg
		c.logger = logging.New(cfg.Log)
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}
