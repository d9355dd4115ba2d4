package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "estatechat",
	Short: "Terminal client for the estate-chat service",
	Long: `estatechat is a terminal client for the estate-chat real-estate
assistant. It keeps a locally synchronized view of the conversation,
shows sent messages immediately and reconciles them against the
service in the background.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func initConfig(cmd *cobra.Command) error {
	viper.SetConfigName("estatechat")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if xdgConfigPath, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(xdgConfigPath + "/estatechat")
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file is fine, flags and env cover everything
	} else if err != nil {
		return err
	}

	viper.SetEnvPrefix("ESTATECHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("configuration loaded")

	return nil
}

func initLogger() {
	if viper.GetBool("with-caller") {
		log.Logger = log.With().Caller().Logger()
	}

	// default is json
	var logWriter io.Writer = os.Stderr
	if viper.GetString("log-format") == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	log.Logger = log.Output(logWriter)

	switch viper.GetString("log-level") {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

func init() {
	rootCmd.PersistentFlags().String("base-url", "http://localhost:8000", "estate-chat service base URL")
	rootCmd.PersistentFlags().String("language", "", "preferred language (ja, en, vi); detected when empty")
	rootCmd.PersistentFlags().Duration("poll-interval", 5*time.Second, "authoritative refresh interval")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().Bool("with-caller", false, "annotate log lines with their caller")

	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newGlossaryCommand())
	rootCmd.AddCommand(newBriefCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
