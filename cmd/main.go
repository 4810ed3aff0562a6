package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harshul/calcshell/internal/blueprint"
)

// Version information (can be set at build time)
var (
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "calcshell",
	Short: "Desktop shell for the calculator app",
	Long: `calcshell supervises the calculator's two local services and presents
them in a window. It resolves and provisions the app's writable paths, starts
the data service and the UI service, waits for them to answer, and tears
down both process trees when the shell quits.

Usage:
  calcshell run         Start both services and open the window
  calcshell init        Write a default .calcshell.yaml
  calcshell doctor      Check tools, files, ports and the data file
  calcshell template    Create the bundled template data file`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", blueprint.DefaultFileName, "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("dev", false, "Run from the source tree instead of the packaged payload")
	rootCmd.PersistentFlags().String("app-root", "", "Override the application root")
	rootCmd.PersistentFlags().String("resources", "", "Override the bundled resources directory")
	rootCmd.PersistentFlags().String("user-data", "", "Override the per-user data directory")

	for key, flag := range map[string]string{
		"config":    "config",
		"log_level": "log-level",
		"dev":       "dev",
		"app_root":  "app-root",
		"resources": "resources",
		"user_data": "user-data",
	} {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(templateCmd)
}

func initConfig() {
	// CALCSHELL_LOG_LEVEL, CALCSHELL_DEV, CALCSHELL_USER_DATA, ...
	viper.SetEnvPrefix("CALCSHELL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
