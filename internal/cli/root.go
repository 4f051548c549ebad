// Package cli implements the pmsync command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opencode-ai/pmsync/internal/config"
	"github.com/opencode-ai/pmsync/internal/logging"
	"github.com/spf13/cobra"
)

// Build metadata, set by the linker.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	cfgFile        string
	envFile        string
	serverToken    string
	requestHost    string
	logLevel       string
	logFormat      string
	jsonOutput     bool
	jsonlOutput    bool
	yamlOutput     bool
	noColor        bool
	nonInteractive bool
	noProgress     bool
	noHistory      bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pmsync",
	Short: "Sync email templates with a Postmark server",
	Long: `pmsync keeps a local directory of email templates and layouts in sync
with the templates stored on a Postmark server.

Each template lives in its own folder with a meta.json file and optional
content.html and content.txt bodies. Layouts are kept under _layouts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/pmsync/config.yaml)")
	flags.StringVar(&envFile, "env-file", "", "env file to load (default .env)")
	flags.StringVar(&serverToken, "server-token", "", "Postmark server token")
	flags.StringVar(&requestHost, "request-host", "", "API host to send requests to")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	flags.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output in JSON Lines format")
	flags.BoolVar(&yamlOutput, "yaml", false, "output in YAML format")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt; fail instead")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress output")
	flags.BoolVar(&noHistory, "no-history", false, "do not record pushes in the history journal")
	_ = flags.MarkHidden("server-token")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("pmsync {{.Version}}\n")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.Version = fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		return 1
	}
	return 0
}

func initConfig(cmd *cobra.Command) error {
	if countTrue(jsonOutput, jsonlOutput, yamlOutput) > 1 {
		return &PreflightError{
			Message: "--json, --jsonl and --yaml are mutually exclusive",
			Hint:    "Pick one output format",
		}
	}

	v := config.New()
	flags := cmd.Root().PersistentFlags()
	bindings := map[string]string{
		"server_token": "server-token",
		"request_host": "request-host",
		"log.level":    "log-level",
		"log.format":   "log-format",
	}
	for key, name := range bindings {
		if flag := flags.Lookup(name); flag != nil && flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg, err := config.Load(v, config.LoadOptions{ConfigFile: cfgFile, EnvFile: envFile})
	if err != nil {
		return &PreflightError{
			Message: err.Error(),
			Hint:    "Check the config file, .env and POSTMARK_* environment variables",
		}
	}
	if noHistory {
		cfg.History.Enabled = false
	}

	if err := logging.Init(logging.Config{
		Level:   cfg.Log.Level,
		Format:  logging.Format(cfg.Log.Format),
		Output:  cmd.ErrOrStderr(),
		NoColor: colorDisabled(),
	}); err != nil {
		return &PreflightError{Message: err.Error(), Hint: "Use --log-level debug|info|warn|error and --log-format console|json"}
	}

	appConfig = cfg
	logger := logging.Component("cli")
	logger.Debug().
		Str("request_host", cfg.RequestHost).
		Bool("history", cfg.History.Enabled).
		Msg("configuration loaded")
	return nil
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

func colorDisabled() bool {
	if noColor {
		return true
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	return false
}

func countTrue(values ...bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}

func printError(w io.Writer, err error) {
	var preflight *PreflightError
	if errors.As(err, &preflight) {
		fmt.Fprintln(w, preflight.Render())
		return
	}
	fmt.Fprintf(w, "Error: %s\n", strings.TrimSpace(err.Error()))
}
