// Package constants provides shared configuration values used across the evergreen application.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = ".evergreen.yaml"

	// DefaultPackageFeed is the public NuGet v3 service index
	DefaultPackageFeed = "https://api.nuget.org/v3/index.json"

	// DefaultLogLevel keeps diagnostics out of the child's console output
	DefaultLogLevel = "warn"
)

// Timeout and duration defaults
const (
	// DefaultInterval is the default time between update checks
	DefaultInterval = 5 * time.Second

	// DefaultStopTimeout is how long a graceful stop may take before the child is killed
	DefaultStopTimeout = 2000 * time.Millisecond

	// SingletonStopTimeout is the fixed timeout used when stopping other instances
	SingletonStopTimeout = 2000 * time.Millisecond

	// KillWaitTimeout bounds the wait for exit after a hard kill
	KillWaitTimeout = time.Second

	// RetireGracePeriod is added to the stop timeout when waiting for a launch to retire
	RetireGracePeriod = 3 * time.Second

	// ShutdownTimeout bounds the orderly shutdown of the whole program
	ShutdownTimeout = 10 * time.Second

	// RegistryCommandTimeout bounds the quick "dotnet tool list" invocation
	RegistryCommandTimeout = 5 * time.Second

	// FeedRequestTimeout bounds a single HTTP request to the package feed
	FeedRequestTimeout = 30 * time.Second

	// FeedMaxElapsed bounds all retries of a single feed query
	FeedMaxElapsed = 10 * time.Second

	// ForeignPollInterval is how often a process we did not spawn is polled for exit
	ForeignPollInterval = 50 * time.Millisecond
)

// Registry
const (
	// StopToolPackage is the dotnet global tool used for cooperative stops
	StopToolPackage = "dotnet-stop"

	// DefaultStopCommand asks a process to quit via dotnet-stop
	DefaultStopCommand = "dotnet stop {pid} -t {timeout} -q"

	// SignalStopCommand selects a plain interrupt signal instead of a helper command
	SignalStopCommand = "signal"
)

// Exit codes
const (
	// ExitOK is returned on clean shutdown
	ExitOK = 0

	// ExitFailure is returned for supervisor-level failures
	ExitFailure = 1
)
