package cli

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/charliek/evergreen/internal/api"
	"github.com/charliek/evergreen/internal/config"
	"github.com/charliek/evergreen/internal/console"
	"github.com/charliek/evergreen/internal/constants"
	"github.com/charliek/evergreen/internal/logging"
	"github.com/charliek/evergreen/internal/registry"
	"github.com/charliek/evergreen/internal/supervisor"
	"github.com/charliek/evergreen/internal/updater"
)

// loadConfig resolves the config file, overlays flags and validates
func (o *rootOptions) loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Resolve(o.configPath)
	if err != nil {
		return nil, err
	}
	o.applyFlags(cfg, flags)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newStopper builds the graceful stopper. A "dotnet ..." template runs
// through the located muxer; "signal" opts out of the helper.
func newStopper(cfg *config.Config, dotnet string) supervisor.Stopper {
	if cfg.StopCommand == constants.SignalStopCommand {
		return supervisor.SignalStopper{}
	}
	stopper := supervisor.NewCommandStopper(cfg.StopCommand, "")
	if stopper.UsesStopTool() {
		stopper.Executable = dotnet
	}
	return stopper
}

// run supervises packageID until shutdown and returns the exit code
func run(o *rootOptions, flags *pflag.FlagSet, packageID string, args []string) int {
	cfg, err := o.loadConfig(flags)
	if err != nil {
		fmt.Fprintf(o.stderr, "Error: %v\n", err)
		return constants.ExitFailure
	}
	if err := config.ValidateToolID(packageID); err != nil {
		fmt.Fprintf(o.stderr, "Error: %v\n", err)
		return constants.ExitFailure
	}
	if err := logging.InitLog(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(o.stderr, "Error: %v\n", err)
		return constants.ExitFailure
	}

	printer := console.NewPrinter(o.stdout, cfg.Quiet)

	env, err := cfg.ChildEnv()
	if err != nil {
		printer.Error("%v", err)
		return constants.ExitFailure
	}

	dotnet, err := registry.LocateDotnet()
	if err != nil {
		printer.Error("Failed to locate dotnet")
		return constants.ExitFailure
	}
	log.WithField("path", dotnet).Debug("located dotnet")

	sctx := supervisor.NewContext(supervisor.Settings{
		StopTimeout: cfg.StopTimeout,
		ExitOnExit:  cfg.ExitOnExit,
		Singleton:   cfg.Singleton,
	}, printer)
	stopper := newStopper(cfg, dotnet)
	sup := supervisor.New(sctx, nil, stopper, nil)

	tools := registry.New(&registry.DotnetExecutor{Path: dotnet}, printer, sup.Reaper(), registry.Options{
		Source:     cfg.Source,
		Prerelease: cfg.Prerelease,
	})

	// Interrupts stay ours for the whole run, including while the child
	// is being stopped.
	stopSignals := sup.HandleSignals(context.Background())
	defer stopSignals()

	ctx := sctx.Shutdown.Context()

	// failed maps a startup failure to the exit code. An interrupt during
	// startup is a clean exit.
	failed := func() int {
		if sctx.Shutdown.Requested() {
			return sctx.Shutdown.ExitCode()
		}
		return constants.ExitFailure
	}

	if cs, ok := stopper.(*supervisor.CommandStopper); ok && cs.UsesStopTool() {
		if err := tools.InstallOrUpdate(ctx, constants.StopToolPackage, false); err != nil {
			printer.Error("%v", err)
			return failed()
		}
	}

	if err := tools.InstallOrUpdate(ctx, packageID, cfg.Force); err != nil {
		printer.Error("%v", err)
		return failed()
	}

	sched := updater.New(sup, tools, updater.Config{
		PackageID: packageID,
		Args:      args,
		Env:       env,
		Interval:  cfg.Interval,
		Force:     cfg.Force,
		Singleton: cfg.Singleton,
	})

	var server *api.Server
	if cfg.StatusAddr != "" {
		server = api.NewServer(api.ServerConfig{Addr: cfg.StatusAddr}, api.NewHandlers(sup, sched, packageID))
		if err := server.Listen(); err != nil {
			printer.Error("Failed to start status API on %s: %v", cfg.StatusAddr, err)
			return constants.ExitFailure
		}
		go func() {
			if err := server.Serve(); err != nil {
				log.WithError(err).Error("status API stopped")
			}
		}()
		log.WithField("addr", server.Addr()).Info("status API listening")
	}

	if err := sched.Launch(); err != nil {
		printer.Error("%v", err)
		shutdownServer(server)
		return failed()
	}

	if !sctx.Shutdown.Requested() {
		printer.Lifecycle("Press Ctrl+C to exit.")
	}

	go sched.Run(ctx)

	<-sctx.Shutdown.Done()

	waitCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := sched.Wait(waitCtx); err != nil {
		log.WithError(err).Warn("update scheduler did not stop in time")
	}
	if err := sup.Wait(waitCtx); err != nil {
		log.WithError(err).Warn("tool did not stop in time")
	}
	shutdownServer(server)

	if err := sctx.Shutdown.Err(); err != nil {
		log.WithError(err).Error("shutting down after failure")
	}
	return sctx.Shutdown.ExitCode()
}

func shutdownServer(server *api.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("status API shutdown")
	}
}
