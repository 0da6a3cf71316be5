package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"credhelper/internal/config"
	"credhelper/internal/providers"
	"credhelper/internal/store"
	"credhelper/pkg/logging"
)

// Exit codes for CLI commands.
// These follow common conventions so Git and scripts can react to them.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates an authentication flow was attempted and failed.
	ExitCodeAuthFailed = 3
)

// errAuthRequired marks failures where no credential exists and none could
// be acquired without the user.
var errAuthRequired = errors.New("authentication required")

// errAuthFailed marks failures of an attempted authentication flow.
var errAuthFailed = errors.New("authentication failed")

var (
	flagConfigPath string
	flagDebug      bool
)

// rootCmd is the entry point. Git invokes the helper as
// `credhelper <get|store|erase>` with the request on stdin.
var rootCmd = &cobra.Command{
	Use:   "credhelper",
	Short: "Git credential helper for Azure DevOps, GitHub, and basic-auth remotes",
	Long: `credhelper implements the Git credential helper protocol. It detects
which identity authority protects a remote, acquires tokens through OAuth
or basic authentication, and keeps the results in the operating system's
secure credential store.

Logs go to stderr; stdout carries only the credential protocol.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logging.LevelWarn
		if flagDebug {
			level = logging.LevelDebug
		}
		logging.Init(level, os.Stderr)
		return nil
	},
}

// SetVersion sets the version for the root command. Called from main to
// inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and maps handled errors to exit codes.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "credhelper version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	switch {
	case errors.Is(err, errAuthRequired):
		return ExitCodeAuthRequired
	case errors.Is(err, errAuthFailed):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}

// loadConfig resolves the config directory and reads the configuration,
// honoring the --config flag and then the --debug override.
func loadConfig() (config.Config, error) {
	path := flagConfigPath
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return config.Config{}, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), os.Stderr)
	return cfg, nil
}

// newRegistry assembles the provider registry over the OS credential
// vault.
func newRegistry(cfg config.Config, interactive bool) (*providers.Registry, error) {
	if !interactive {
		return providers.NewRegistry(cfg, store.NewKeyring(), nil)
	}
	return providers.NewRegistry(cfg, store.NewKeyring(), newTerminalPrompter())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config directory (default is $HOME/.config/credhelper)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging on stderr")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newStoreCmd())
	rootCmd.AddCommand(newEraseCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
