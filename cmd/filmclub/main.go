// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the filmclub CLI. Each stage of the
// pipeline is a subcommand: extract pulls a Letterboxd list or profile into
// ';'-separated tables, compare checks a suffixed export against the
// canonical one, analyze derives the report tables, images caches avatars
// of the most frequent people, serve shows the report and history lists
// past extraction batches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/filmclub/internal/logging"
	"github.com/pdiddy/filmclub/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// creds holds the Letterboxd credentials loaded at startup.
var creds secrets.Credentials

// log is the logger shared by every subcommand.
var log = logging.New("info", "text")

// rootCmd is the base command for the filmclub CLI.
var rootCmd = &cobra.Command{
	Use:   "filmclub",
	Short: "Extract and analyze a Letterboxd film club list",
	Long: `filmclub exports the films of a Letterboxd list (or a member's watched
films) into ';'-separated tables, merges each run into the previous export,
and derives report tables, avatar images and a small web report from it.

Credentials are read from auths.env (LETTERBOXD_TOKEN, LETTERBOXD_BASE_URL,
LETTERBOXD_USERNAME, FILMCLUB_LIST_URL). Every flag can also be set in
filmclub.yaml or as a FILMCLUB_ environment variable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log = logging.New(settingString(cmd, "log-level"), settingString(cmd, "log-format"))

		s, err := secrets.Load(settingString(cmd, "secrets"))
		if err != nil {
			return err
		}
		creds = secrets.FromMap(s)
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.WithField("keys", keys).Debug("loaded credentials")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./filmclub.yaml or ~/.config/filmclub/filmclub.yaml)")
	rootCmd.PersistentFlags().String("secrets", "auths.env", "credentials env file or directory of key files")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("filmclub")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "filmclub"))
		}
	}

	viper.SetEnvPrefix("FILMCLUB")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// settingKey maps a flag name to its config and environment key.
func settingKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// The setting helpers resolve a flag in order: explicit flag, config file
// or FILMCLUB_ environment variable, flag default.

func settingString(cmd *cobra.Command, flag string) string {
	if !cmd.Flags().Changed(flag) && viper.IsSet(settingKey(flag)) {
		return viper.GetString(settingKey(flag))
	}
	v, _ := cmd.Flags().GetString(flag)
	return v
}

func settingInt(cmd *cobra.Command, flag string) int {
	if !cmd.Flags().Changed(flag) && viper.IsSet(settingKey(flag)) {
		return viper.GetInt(settingKey(flag))
	}
	v, _ := cmd.Flags().GetInt(flag)
	return v
}

func settingDuration(cmd *cobra.Command, flag string) time.Duration {
	if !cmd.Flags().Changed(flag) && viper.IsSet(settingKey(flag)) {
		return viper.GetDuration(settingKey(flag))
	}
	v, _ := cmd.Flags().GetDuration(flag)
	return v
}

func settingBool(cmd *cobra.Command, flag string) bool {
	if !cmd.Flags().Changed(flag) && viper.IsSet(settingKey(flag)) {
		return viper.GetBool(settingKey(flag))
	}
	v, _ := cmd.Flags().GetBool(flag)
	return v
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
