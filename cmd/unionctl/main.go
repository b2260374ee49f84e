package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	baseURL    string
	cookieFile string
	timeout    time.Duration
	verbose    bool
}

func main() {
	_ = godotenv.Load()

	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "unionctl",
		Short: "Command line session client for the Union admin server",
		Long: `unionctl logs in to the Union admin server and keeps the
session cookie in a local file, so later commands reuse the session.

Examples:
  unionctl login --email admin@example.com --password admin
  unionctl whoami
  unionctl token
  unionctl watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flags.verbose)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", envOr("UNION_BASE_URL", "http://localhost:8080"), "Admin server base URL")
	rootCmd.PersistentFlags().StringVar(&flags.cookieFile, "cookie-file", defaultCookieFile(), "File holding the session cookie")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "HTTP timeout per request")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(
		loginCmd(flags),
		whoamiCmd(flags),
		tokenCmd(flags),
		refreshCmd(flags),
		logoutCmd(flags),
		watchCmd(flags),
		keygenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func defaultCookieFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".unionctl-cookies.json"
	}
	return filepath.Join(dir, "unionctl", "cookies.json")
}

func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
