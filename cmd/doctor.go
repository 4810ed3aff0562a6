package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harshul/calcshell/internal/doctor"
	"github.com/harshul/calcshell/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check tools, files, ports and the data file",
	Long: `The doctor command checks what 'calcshell run' needs in the selected
mode without starting anything:

- the interpreter and tools each service is launched with
- the virtualenv, service sources and standalone UI server
- whether the service ports are free, and which process holds them if not
- the integrity of the template and data files

Pass --dev to check the development setup.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	m := selectedMode()
	bp, err := loadBlueprint()
	if err != nil {
		return err
	}
	resolver, err := newResolver(m, bp)
	if err != nil {
		return err
	}
	paths, err := resolver.Paths(m)
	if err != nil {
		return err
	}

	d := doctor.Diagnose(m, paths, bp)

	ui.PrintHeader(fmt.Sprintf("%s doctor (%s)", bp.Name, m))
	for _, rt := range d.Runtimes {
		if !rt.Installed {
			ui.Error(rt.Name + ": not found")
			continue
		}
		line := rt.Name + ": " + rt.Path
		if rt.Version != "" {
			line += " (" + rt.Version + ")"
		}
		ui.Success(line)
	}

	ui.PrintHeader("Files")
	for _, f := range d.Files {
		state := "ok"
		if !f.Exists {
			state = f.Detail
		}
		ui.PrintKV(f.Label, f.Path+" ["+state+"]")
	}

	ui.PrintHeader("Ports")
	for _, p := range d.Ports {
		ui.PrintKV(p.Service, p.Summary)
	}

	if d.Data != nil {
		ui.PrintHeader("Data")
		ui.PrintKV("file", d.Data.Path)
		ui.PrintKV("rows", strconv.FormatInt(d.Data.Rows, 10))
		ui.PrintKV("size", ui.FormatBytes(uint64(d.Data.SizeBytes)))
	}

	fmt.Fprintln(ui.Out)
	for _, w := range d.Warnings {
		ui.Warn(w)
	}
	if d.Healthy {
		ui.Success("Ready to run")
		return nil
	}
	for _, issue := range d.Issues {
		ui.Error(issue)
	}
	return fmt.Errorf("%d issue(s) found", len(d.Issues))
}
