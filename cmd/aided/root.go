package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kittclouds/aide/internal/config"
)

var (
	cfgFile  string
	logLevel string

	vcfg *viper.Viper
	cfg  config.Config
	log  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "aided",
	Short: "AIde living-object kernel and orchestrator",
	Long: `aided hosts the four subsystems of the conversational-editor core: a
pure reducer over a typed entity tree, a streaming orchestrator pipeline
(classify, assemble, stream, parse, reduce, broadcast), event-sourced
hydration and persistence, and a telemetry flight recorder.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		vcfg = config.New(cfgFile)
		bindFlags(vcfg, cmd.Root().PersistentFlags())
		loaded, err := config.Load(vcfg)
		if err != nil {
			return err
		}
		cfg = loaded

		level, perr := zerolog.ParseLevel(logLevel)
		if perr != nil {
			level = zerolog.InfoLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			Level(level).
			With().Timestamp().Logger()
		return nil
	},
}

// bindFlags overlays explicitly set command-line flags onto their
// configuration keys, so a flag beats env and file values.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	overrides := map[string]string{
		"db": "db_path",
	}
	fs.Visit(func(f *pflag.Flag) {
		if key, ok := overrides[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (yaml/json/toml; optional)")
	rootCmd.PersistentFlags().String("db", "", "sqlite database path (overrides config/env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// Execute runs the root command, dispatching to whichever subcommand the
// caller named.
func Execute() error {
	return rootCmd.Execute()
}
