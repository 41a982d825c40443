package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/handin"
)

// cli carries the state shared by every subcommand.
type cli struct {
	v      *viper.Viper
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	app := &cli{v: viper.New(), logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "gradectl",
		Short:         "Operator tooling for the handin grader",
		Long:          "gradectl inspects the action catalog, resolves deadlines offline, unarchives single handins and mints API tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "config file (default .gradectl.toml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	root.AddCommand(newActionsCmd(app))
	root.AddCommand(newDeadlineCmd())
	root.AddCommand(newUnarchiveCmd(app))
	root.AddCommand(newTokenCmd(app))
	return root
}

func (a *cli) init(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName(".gradectl")
		a.v.SetConfigType("toml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
	}

	a.v.SetEnvPrefix("GRADER")
	a.v.AutomaticEnv()
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.SetDefaults(a.v)

	// Without --config a missing file is fine; defaults apply.
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level := zerolog.InfoLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).With().Timestamp().Str("component", "gradectl").Logger()
	return nil
}

func (a *cli) config() (config.Config, error) {
	return config.FromViper(a.v)
}

func defaultDest(workspaceRoot, archivePath string) string {
	name := filepath.Base(archivePath)
	if stem, ok := handin.StripArchiveSuffix(name); ok {
		name = stem
	}
	return filepath.Join(workspaceRoot, "gradectl", name)
}
