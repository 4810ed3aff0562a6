package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/harshul/calcshell/internal/blueprint"
	"github.com/harshul/calcshell/internal/mode"
	"github.com/harshul/calcshell/internal/provisioner"
)

const appName = "calcshell"

// selectedMode is fixed for the life of the process.
func selectedMode() mode.Mode {
	return mode.FromFlag(viper.GetBool("dev"))
}

func loadBlueprint() (blueprint.Blueprint, error) {
	path := viper.GetString("config")
	bp, err := blueprint.Load(path)
	if err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	return bp, nil
}

// resolveLayout picks the root directories: flags and environment first,
// then the config file, then the platform defaults for m.
func resolveLayout(m mode.Mode, bp blueprint.Blueprint) (provisioner.Layout, error) {
	var l provisioner.Layout

	switch m {
	case mode.Development:
		cwd, err := os.Getwd()
		if err != nil {
			return l, fmt.Errorf("failed to get current directory: %w", err)
		}
		l.AppRoot = cwd
		l.ResourcesDir = cwd
	default:
		exe, err := os.Executable()
		if err != nil {
			return l, fmt.Errorf("failed to locate executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		l.ResourcesDir = filepath.Join(filepath.Dir(exe), "resources")
		l.AppRoot = filepath.Join(l.ResourcesDir, "app")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return l, fmt.Errorf("failed to locate user data directory: %w", err)
	}
	l.UserDataDir = filepath.Join(configDir, appName)

	override(&l.AppRoot, bp.Layout.AppRoot, viper.GetString("app_root"))
	override(&l.ResourcesDir, bp.Layout.Resources, viper.GetString("resources"))
	override(&l.UserDataDir, bp.Layout.UserData, viper.GetString("user_data"))
	return l, nil
}

func override(dst *string, values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if abs, err := filepath.Abs(v); err == nil {
			v = abs
		}
		*dst = v
	}
}

func newResolver(m mode.Mode, bp blueprint.Blueprint, opts ...provisioner.Option) (*provisioner.Resolver, error) {
	layout, err := resolveLayout(m, bp)
	if err != nil {
		return nil, err
	}
	if len(bp.BundledFiles) > 0 {
		opts = append(opts, provisioner.WithBundledFiles(bp.BundledFiles))
	}
	return provisioner.NewResolver(layout, opts...), nil
}
