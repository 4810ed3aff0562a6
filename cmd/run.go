package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/harshul/calcshell/internal/blueprint"
	"github.com/harshul/calcshell/internal/bridge"
	"github.com/harshul/calcshell/internal/logging"
	"github.com/harshul/calcshell/internal/mode"
	"github.com/harshul/calcshell/internal/orchestrator"
	"github.com/harshul/calcshell/internal/provisioner"
	"github.com/harshul/calcshell/internal/supervisor"
	"github.com/harshul/calcshell/internal/ui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start both services and open the window",
	Long: `The run command starts the calculator:

- Resolves the runtime paths and, in packaged mode, seeds the per-user
  data directory from the bundled template and service sources
- Starts the data service and waits for its port
- Starts the UI service and opens the window once it answers
- Stops both process trees when the shell quits

Services that fail to start or never answer are logged and the window opens
anyway.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("window", "w", "", "Window kind: tui or browser (default: browser with --dev, tui otherwise)")
	viper.BindPFlag("window", runCmd.Flags().Lookup("window"))
}

func windowKind(m mode.Mode, bp blueprint.Blueprint) (string, error) {
	kind := viper.GetString("window")
	if kind == "" {
		kind = bp.Window.Kind
	}
	if kind == "" {
		if m == mode.Development {
			return blueprint.WindowBrowser, nil
		}
		return blueprint.WindowTUI, nil
	}
	if kind != blueprint.WindowTUI && kind != blueprint.WindowBrowser {
		return "", fmt.Errorf("unknown window kind %q (want tui or browser)", kind)
	}
	return kind, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	m := selectedMode()
	bp, err := loadBlueprint()
	if err != nil {
		return err
	}
	kind, err := windowKind(m, bp)
	if err != nil {
		return err
	}
	tui := kind == blueprint.WindowTUI

	resolver, err := newResolver(m, bp)
	if err != nil {
		return err
	}
	paths, err := resolver.Paths(m)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Dir:     paths.LogDir,
		Level:   viper.GetString("log_level"),
		Console: !tui,
	})
	if err != nil {
		// An unwritable log directory surfaces again as a provisioning error.
		ui.Warn(fmt.Sprintf("File logging disabled: %v", err))
		if logger, closeLog, err = logging.New(logging.Options{Level: viper.GetString("log_level"), Console: !tui}); err != nil {
			return err
		}
	}
	defer closeLog()
	logger = logger.With(zap.String("app", bp.Name))

	if resolver, err = newResolver(m, bp, provisioner.WithLogger(logger)); err != nil {
		return err
	}

	ui.PrintHeader(fmt.Sprintf("%s (%s)", bp.Name, m))
	ui.PrintKV("data", bp.Services.Data.Readiness)
	ui.PrintKV("ui", bp.Services.UI.Readiness)
	ui.PrintKV("logs", paths.LogDir)

	sup := supervisor.New(supervisor.WithLogger(logger))

	var live bridge.ProcessSource
	if bp.Bridge.Live {
		live = bridge.ProcessSourceFunc(func(service string) bool {
			_, ok := sup.Lookup(service)
			return ok
		})
	}
	br := bridge.New(bp.Services.Data.Port, orchestrator.ServiceData, live)

	board := ui.NewBoard(bp.Name, br, orchestrator.ServiceData, orchestrator.ServiceUI)
	board.SetURL(bp.Services.UI.Readiness)

	launcher := orchestrator.NewLauncher(sup, logger)
	launcher.Sink = func(service string) io.Writer { return board.Writer(service) }
	launcher.OnExit = func(service string, pid int, err error) {
		board.ServiceExited(service, pid, err)
	}
	if tui {
		// The dashboard owns the terminal; inherited output goes to its log pane.
		launcher.Stdout, launcher.Stderr = nil, nil
	}

	factory := ui.Factory(ui.BrowserFactory)
	if tui {
		factory = ui.DashboardFactory(board, ui.DashboardOptions{StartOnLogs: m == mode.Development})
	}
	windows := ui.NewController(factory, logger)

	orch, err := orchestrator.New(orchestrator.Options{
		Mode:       m,
		Blueprint:  bp,
		Resolver:   resolver,
		Starter:    launcher,
		Windows:    windows,
		Supervisor: sup,
		Bridge:     br,
		Observer:   board,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	ui.Info("Starting services...")
	if err := orch.Run(cmd.Context()); err != nil {
		if provisioner.IsProvisioningError(err) {
			ui.Error("Could not prepare the app's data directory")
		}
		return err
	}

	report := orch.LastReport()
	for _, f := range report.SpawnFailures {
		ui.Warn(f.Error())
	}
	ui.Success("Services stopped")
	return nil
}
