package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harshul/calcshell/internal/provisioner"
	"github.com/harshul/calcshell/internal/seed"
	"github.com/harshul/calcshell/internal/ui"
)

var templateCmd = &cobra.Command{
	Use:   "template [path]",
	Short: "Create the bundled template data file",
	Long: `The template command creates an empty data file with the calculations
table. Packaged builds ship it as resources/sqlite-template/calculator.db and
copy it into the per-user data directory on first run.

An existing file is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemplate,
}

func runTemplate(cmd *cobra.Command, args []string) error {
	path := filepath.Join("resources", "sqlite-template", provisioner.DataFileName)
	if len(args) == 1 {
		path = args[0]
	}

	if err := seed.CreateTemplate(cmd.Context(), path); err != nil {
		if errors.Is(err, seed.ErrExists) {
			return fmt.Errorf("%s already exists; remove it first to rebuild the template", path)
		}
		return fmt.Errorf("failed to create template: %w", err)
	}

	info, err := seed.Verify(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("template failed verification: %w", err)
	}
	ui.Success(fmt.Sprintf("Template written to %s (%d bytes)", path, info.SizeBytes))
	return nil
}
