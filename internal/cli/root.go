package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/charliek/evergreen/internal/config"
	"github.com/charliek/evergreen/internal/constants"
)

// Version is set during build
var Version = "dev"

// rootOptions holds the parsed flags. Flags override the config file only
// when set explicitly.
type rootOptions struct {
	configPath string
	source     string
	interval   int
	singleton  bool
	quiet      bool
	exitOnExit bool
	force      bool
	prerelease bool
	statusAddr string
	logLevel   string
	logFile    string

	stdout io.Writer
	stderr io.Writer

	// run is replaced in tests
	run      func(o *rootOptions, flags *pflag.FlagSet, packageID string, args []string) int
	exitCode int
}

func newRootCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evergreen [flags] <tool> [args...]",
		Short: "Run an evergreen version of a tool",
		Long: `evergreen runs a .NET global tool and keeps it up to date. It checks the
package feed periodically and, when a newer version is published, stops the
tool, updates it and starts it again with the same arguments.

Everything after the tool's package id is passed to the tool unchanged.`,
		Example: `  evergreen dotnet-serve -p 8080
  evergreen -i 30 --singleton dotnet-serve
  evergreen --exit=false -s https://pkgs.example.com/nuget/v3/index.json my-tool`,
		Args:          cobra.ArbitraryArgs,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			o.exitCode = o.run(o, cmd.Flags(), args[0], args[1:])
			return nil
		},
	}

	flags := cmd.Flags()
	// Parsing stops at the tool id so that the tool's own flags reach it
	flags.SetInterspersed(false)

	flags.StringVarP(&o.source, "source", "s", constants.DefaultPackageFeed, "NuGet feed to check for updates")
	flags.IntVarP(&o.interval, "interval", "i", int(constants.DefaultInterval/time.Second), "Time interval in seconds for the update checks")
	flags.BoolVar(&o.singleton, "singleton", false, "Stop other running instances of the tool before starting it")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "Hide the output of dotnet tool commands")
	flags.BoolVar(&o.exitOnExit, "exit", true, "Exit when the tool exits on its own")
	flags.BoolVarP(&o.force, "force", "f", false, "Stop running instances of the tool when an update fails, then retry")
	flags.BoolVar(&o.prerelease, "prerelease", false, "Update to prerelease versions")
	flags.StringVarP(&o.configPath, "config", "c", "", "Config file (default: .evergreen.yaml in the working or home directory)")
	flags.StringVar(&o.statusAddr, "status-addr", "", "Serve a local status API on host:port")
	flags.StringVar(&o.logLevel, "log-level", constants.DefaultLogLevel, "Diagnostic log level")
	flags.StringVar(&o.logFile, "log-file", "", "Write diagnostic logs to this file instead of stderr")

	cmd.SetOut(o.stdout)
	cmd.SetErr(o.stderr)
	cmd.SetVersionTemplate("evergreen version {{.Version}}\n")

	return cmd
}

// applyFlags overlays explicitly set flags on cfg
func (o *rootOptions) applyFlags(cfg *config.Config, flags *pflag.FlagSet) {
	if flags.Changed("source") {
		cfg.Source = o.source
	}
	if flags.Changed("interval") {
		cfg.Interval = time.Duration(o.interval) * time.Second
	}
	if flags.Changed("singleton") {
		cfg.Singleton = o.singleton
	}
	if flags.Changed("quiet") {
		cfg.Quiet = o.quiet
	}
	if flags.Changed("exit") {
		cfg.ExitOnExit = o.exitOnExit
	}
	if flags.Changed("force") {
		cfg.Force = o.force
	}
	if flags.Changed("prerelease") {
		cfg.Prerelease = o.prerelease
	}
	if flags.Changed("status-addr") {
		cfg.StatusAddr = o.statusAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
}

// execute runs the command line and returns the process exit code
func execute(args []string, stdout, stderr io.Writer) int {
	o := &rootOptions{stdout: stdout, stderr: stderr, run: run}
	cmd := newRootCmd(o)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return constants.ExitFailure
	}
	return o.exitCode
}

// Execute runs the root command
func Execute() int {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}
