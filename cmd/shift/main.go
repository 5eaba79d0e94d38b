package main

import (
	"io"
	"os"

	"github.com/go-go-golems/shift/pkg/steps/ai/settings"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:           "shift",
	Short:         "shift is a cognitive copilot that reframes decisions, beliefs and patterns",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := settings.LoadDotEnv(viper.GetString("env-file")); err != nil {
			return err
		}
		if err := settings.ConfigureViper(viper.GetViper(), viper.GetString("config")); err != nil {
			return err
		}
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
		return nil
	},
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetString("verbose") != ""
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func InitLogger(config *logConfig) error {
	logger := log.Logger
	if config.WithCaller {
		logger = logger.With().Caller().Logger()
	}

	var logWriter io.Writer
	if config.LogFormat == "json" {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, //days
				},
			})
	}

	log.Logger = logger.Output(logWriter)

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("shift failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file, rotated (default: stderr only)")

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./shift.yaml or ~/.shift/shift.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file to load before reading the configuration")
	rootCmd.PersistentFlags().String("verbose", "", "Print provider events to stderr (text, raw)")
	rootCmd.PersistentFlags().Lookup("verbose").NoOptDefVal = verboseText

	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))

	rootCmd.AddCommand(
		newAskCommand(),
		newChatCommand(),
		newEditImageCommand(),
		newTranscribeCommand(),
		newSpeakCommand(),
		newVoiceCommand(),
		newServeCommand(),
	)
}
