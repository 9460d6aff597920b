package cli

import (
	"github.com/postnome/postnome/internal/config"
	"github.com/postnome/postnome/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	settingsPath string
	logLevel     string
	noColor      bool

	// cfg is loaded before every command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "postnome",
	Short: "Chain templated HTTP resources into requests",
	Long: `Postnome keeps a workspace of named variables, templated HTTP resources and
multi-step requests.

Resources reference variables as {{name}} in their URL, body, headers and
import fields. Output bindings pull values out of a captured response so that
later steps of a request can use them.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { logging.Sync() },
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./postnome.yaml)")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file, overrides settings.path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides log.level")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(varCmd)
	rootCmd.AddCommand(resourceCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stateCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if settingsPath != "" {
		c.Settings.Path = settingsPath
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	logging.Init(c.Log.Level, c.Log.Format)
	cfg = c
	return nil
}
