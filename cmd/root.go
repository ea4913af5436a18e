/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/ridehub/apiserver/config"
	"github.com/ridehub/apiserver/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apiserver",
	Short: "ridehub backend API server",
	Long: `ridehub backend API server: accounts, sessions and photo storage.

	apiserver server
	apiserver migrate up
	apiserver events tail
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Int("port", 8080, "HTTP listen port")
	rootCmd.PersistentFlags().Bool("log-debug", false, "enable debug logging with the console encoder")
	rootCmd.PersistentFlags().String("log-path", "logs/", "directory for the rotating log file (empty disables it)")
	rootCmd.PersistentFlags().String("storage", "local", "object storage backend: local, minio or gcs")
	rootCmd.PersistentFlags().String("mq", "none", "event broker backend: none, rabbitmq or pubsub")

	bindFlag("SERVER_PORT", "port")
	bindFlag("LOG_DEBUG", "log-debug")
	bindFlag("LOG_PATH", "log-path")
	bindFlag("STORAGE_BACKEND", "storage")
	bindFlag("MQ_BACKEND", "mq")
}

func bindFlag(key, flag string) {
	_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
}

// loadRuntime reads configuration and builds the process logger.
func loadRuntime() (config.Config, *zap.Logger, error) {
	cfg := config.LoadConfig()
	log, err := logger.New(cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}
