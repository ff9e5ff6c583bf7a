// Package cli implements the graphwire command-line interface.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entitycache/graphwire/internal/config"
	"github.com/entitycache/graphwire/wire"
	"github.com/entitycache/graphwire/wire/core"
)

const appName = "graphwire"

// CLI holds shared state for all commands.
type CLI struct {
	Logger *zap.Logger
	Config config.Config

	out       io.Writer
	newLogger func(verbose bool) (*zap.Logger, error)
}

// New creates a CLI writing command output to out.
func New(out io.Writer) *CLI {
	return &CLI{
		Logger:    zap.NewNop(),
		Config:    config.Default(),
		out:       out,
		newLogger: newLogger,
	}
}

// Execute runs the graphwire CLI against stdout.
func Execute() error {
	c := New(os.Stdout)
	defer func() { _ = c.Logger.Sync() }()
	return c.RootCommand().ExecuteContext(context.Background())
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:           appName,
		Short:         "graphwire serializes live object graphs into wire values",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := c.newLogger(verbose)
			if err != nil {
				return errors.Wrap(err, "build logger")
			}
			c.Logger = logger

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable development logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML configuration file")

	root.AddCommand(c.dumpCommand())
	root.AddCommand(c.publishCommand())

	return root
}

// engine builds a serializer from the loaded configuration.
func (c *CLI) engine() *core.Engine {
	opts := append(c.Config.Serializer.EngineOptions(), core.WithLogger(c.Logger))
	return wire.NewEngine(opts...)
}

// depth resolves the --depth flag, falling back to the configured depth.
func (c *CLI) depth(flag string) (core.Depth, error) {
	if flag == "" {
		return c.Config.Serializer.ParsedDepth()
	}
	return core.ParseDepth(flag)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
