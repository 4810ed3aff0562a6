package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harshul/calcshell/internal/blueprint"
	"github.com/harshul/calcshell/internal/ui"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .calcshell.yaml",
	Long: `The init command writes the default configuration: service ports,
readiness targets and timeouts, the window kind and quit policy, the status
bridge address and the files seeded into the per-user data directory.

Edit the file to change any of them; fields left out keep their defaults.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	outputPath := viper.GetString("config")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s. Use --force to overwrite", outputPath)
	}

	if err := blueprint.Write(outputPath, blueprint.Default()); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	ui.Success(fmt.Sprintf("Configuration written to %s", outputPath))
	ui.Info("Run 'calcshell run' to start the app")
	return nil
}
