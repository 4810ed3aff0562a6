package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harshul/calcshell/internal/blueprint"
	"github.com/harshul/calcshell/internal/bridge"
	"github.com/harshul/calcshell/internal/mode"
	"github.com/harshul/calcshell/internal/ports"
	"github.com/harshul/calcshell/internal/provisioner"
	"github.com/harshul/calcshell/internal/supervisor"
	"github.com/harshul/calcshell/internal/ui"
)

// PathResolver computes and provisions the runtime paths for a mode.
type PathResolver interface {
	Resolve(m mode.Mode) (provisioner.RuntimePaths, error)
}

// Observer follows service progress during startup. ui.Board implements it.
type Observer interface {
	ServiceStarting(service string)
	ServiceStarted(service string, pid int)
	ServiceReady(service string, ready bool)
	ServiceFailed(service string, err error)
}

type nopObserver struct{}

func (nopObserver) ServiceStarting(string) {}
func (nopObserver) ServiceStarted(string, int) {}
func (nopObserver) ServiceReady(string, bool) {}
func (nopObserver) ServiceFailed(string, error) {}

// Options wires an Orchestrator. Mode, Blueprint, Resolver, Starter, Windows
// and Supervisor are required.
type Options struct {
	Mode       mode.Mode
	Blueprint  blueprint.Blueprint
	Resolver   PathResolver
	Starter    Starter
	Windows    *ui.Controller
	Supervisor *supervisor.Supervisor

	Builder  CommandBuilder // defaults to NewCommandBuilder
	Prober   ui.Prober      // defaults to a ports.Prober at the configured interval
	Bridge   *bridge.Bridge // nil serves no bridge
	Observer Observer
	Logger   *zap.Logger
}

// Report is the outcome of the startup sequence.
type Report struct {
	Paths         provisioner.RuntimePaths
	DataReady     ports.Result
	UIReady       ports.Result
	SpawnFailures []error
}

// Orchestrator runs the startup sequence and the shutdown events.
type Orchestrator struct {
	mode      mode.Mode
	bp        blueprint.Blueprint
	endpoints Endpoints
	resolver  PathResolver
	builder   CommandBuilder
	starter   Starter
	prober    ui.Prober
	windows   *ui.Controller
	sup       *supervisor.Supervisor
	bridge    *bridge.Bridge
	observer  Observer
	logger    *zap.Logger

	mu     sync.Mutex
	report Report
}

// EndpointsFrom reads the service network contract from bp.
func EndpointsFrom(bp blueprint.Blueprint) (Endpoints, error) {
	data, err := ports.ParseTarget(bp.Services.Data.Readiness)
	if err != nil {
		return Endpoints{}, fmt.Errorf("services.data.readiness: %w", err)
	}
	uiTarget, err := ports.ParseTarget(bp.Services.UI.Readiness)
	if err != nil {
		return Endpoints{}, fmt.Errorf("services.ui.readiness: %w", err)
	}
	if uiTarget.Kind != ports.TargetHTTP {
		return Endpoints{}, fmt.Errorf("services.ui.readiness must be an http(s) URL, got %s", uiTarget)
	}
	return Endpoints{Data: data, UI: uiTarget, UIPort: bp.Services.UI.Port, UIHost: "localhost"}, nil
}

// New validates opts and fills in defaults.
func New(opts Options) (*Orchestrator, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("invalid mode %s", opts.Mode)
	}
	if opts.Resolver == nil || opts.Starter == nil || opts.Windows == nil || opts.Supervisor == nil {
		return nil, errors.New("orchestrator: resolver, starter, windows and supervisor are required")
	}

	endpoints, err := EndpointsFrom(opts.Blueprint)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		mode:      opts.Mode,
		bp:        opts.Blueprint,
		endpoints: endpoints,
		resolver:  opts.Resolver,
		builder:   opts.Builder,
		starter:   opts.Starter,
		prober:    opts.Prober,
		windows:   opts.Windows,
		sup:       opts.Supervisor,
		bridge:    opts.Bridge,
		observer:  opts.Observer,
		logger:    opts.Logger,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.builder == nil {
		if o.builder, err = NewCommandBuilder(o.mode, endpoints); err != nil {
			return nil, err
		}
	}
	if o.prober == nil {
		p := ports.NewProber()
		if opts.Blueprint.Probe.Interval > 0 {
			p.Interval = opts.Blueprint.Probe.Interval
		}
		o.prober = p
	}
	return o, nil
}

// Start provisions paths, launches both services in order and presents the
// window. Only a provisioning failure is returned as an error; spawn
// failures and timeouts are recorded in the report and startup carries on.
func (o *Orchestrator) Start(ctx context.Context) (Report, error) {
	log := o.logger.With(zap.Stringer("mode", o.mode))

	paths, err := o.resolver.Resolve(o.mode)
	if err != nil {
		log.Error("provisioning failed", zap.Error(err))
		return Report{}, err
	}
	log.Info("runtime paths resolved",
		zap.String("data_dir", paths.DataServiceDir),
		zap.String("data_file", paths.DataFile),
		zap.String("log_dir", paths.LogDir),
		zap.String("temp_dir", paths.TempDir),
	)

	report := Report{Paths: paths, DataReady: ports.TimedOut, UIReady: ports.TimedOut}

	if o.launch(ctx, &report, ServiceData, o.builder.DataService) {
		report.DataReady = o.await(ctx, ServiceData, o.endpoints.Data, o.bp.Services.Data.Timeout)
	}
	o.launch(ctx, &report, ServiceUI, o.builder.UIService)

	if ctx.Err() != nil {
		o.setReport(report)
		return report, nil
	}

	if _, err := o.windows.Create(); err != nil {
		log.Error("failed to create window", zap.Error(err))
	}
	res, err := o.windows.Present(ctx, o.endpoints.UI.URL, o.prober, o.bp.Services.UI.Timeout)
	report.UIReady = res
	o.observer.ServiceReady(ServiceUI, res == ports.Ready)
	switch {
	case ctx.Err() != nil:
		log.Info("shutdown began before the window was shown")
	case err != nil:
		log.Error("failed to show window", zap.String("url", o.endpoints.UI.URL), zap.Error(err))
	default:
		log.Info("window shown", zap.String("url", o.endpoints.UI.URL), zap.Stringer("ui", res))
	}

	o.setReport(report)
	return report, nil
}

// launch builds and starts one service, recording a failure in report.
func (o *Orchestrator) launch(ctx context.Context, report *Report, name string, build func(provisioner.RuntimePaths) (ServiceSpec, error)) bool {
	o.observer.ServiceStarting(name)

	spec, err := build(report.Paths)
	if err == nil {
		var proc supervisor.RunningProcess
		if proc, err = o.starter.Start(ctx, spec); err == nil {
			o.observer.ServiceStarted(name, proc.PID)
			return true
		}
	}

	var se *SpawnError
	if !errors.As(err, &se) {
		err = &SpawnError{Service: name, Err: err}
	}
	o.logger.Error("service not started", zap.String("service", name), zap.Error(err))
	o.observer.ServiceFailed(name, err)
	report.SpawnFailures = append(report.SpawnFailures, err)
	return false
}

func (o *Orchestrator) await(ctx context.Context, name string, target ports.Target, timeout time.Duration) ports.Result {
	res := o.prober.WaitFor(ctx, target, timeout)
	if res == ports.TimedOut {
		o.logger.Warn("service not ready, continuing",
			zap.String("service", name),
			zap.Stringer("target", target),
			zap.Duration("timeout", timeout),
		)
	} else {
		o.logger.Info("service ready", zap.String("service", name), zap.Stringer("target", target))
	}
	o.observer.ServiceReady(name, res == ports.Ready)
	return res
}

// LastReport returns the most recent startup report.
func (o *Orchestrator) LastReport() Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.report
}

func (o *Orchestrator) setReport(r Report) {
	o.mu.Lock()
	o.report = r
	o.mu.Unlock()
}

// Run starts the shell and blocks until it quits. The startup sequence, the
// status bridge and the event loop run side by side; whichever ends the
// shell, every registered process tree is terminated before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, quitSignals...)
	defer signal.Stop(quit)

	activate := make(chan os.Signal, 1)
	if len(activateSignals) > 0 {
		signal.Notify(activate, activateSignals...)
		defer signal.Stop(activate)
	}

	allClosed := make(chan struct{}, 1)
	o.windows.OnAllClosed(func() {
		select {
		case allClosed <- struct{}{}:
		default:
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	if o.bridge != nil {
		g.Go(func() error {
			return o.bridge.Serve(gctx, o.bp.Bridge.Listen, o.logger)
		})
	}

	g.Go(func() error {
		if _, err := o.Start(gctx); err != nil {
			return err
		}
		if gctx.Err() != nil {
			// Shutdown began mid-startup; catch anything registered after the drain.
			o.terminate()
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		o.loop(gctx, quit, activate, allClosed)
		return nil
	})

	err := g.Wait()
	o.terminate()
	return err
}

// loop handles shell events until the shell should quit.
func (o *Orchestrator) loop(ctx context.Context, quit, activate <-chan os.Signal, allClosed <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			o.beforeQuit("context done")
			return
		case sig := <-quit:
			o.beforeQuit(sig.String())
			return
		case <-activate:
			o.logger.Info("activate")
			if err := o.windows.Activate(); err != nil {
				o.logger.Error("failed to recreate window", zap.Error(err))
			}
		case <-allClosed:
			o.logger.Info("all windows closed")
			o.terminate()
			if o.bp.Window.ShouldQuitOnClose() {
				o.beforeQuit("all windows closed")
				return
			}
		}
	}
}

func (o *Orchestrator) beforeQuit(reason string) {
	o.logger.Info("quitting", zap.String("reason", reason))
	o.terminate()
	if err := o.windows.CloseAll(); err != nil {
		o.logger.Warn("failed to close windows", zap.Error(err))
	}
}

func (o *Orchestrator) terminate() {
	if err := o.sup.TerminateAll(); err != nil {
		o.logger.Warn("some processes could not be terminated", zap.Error(err))
	}
}
