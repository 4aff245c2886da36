package config

import (
	"github.com/urfave/cli/v3"
)

// Watch holds the flags of a single watch pass. Values given here override
// the watch list file.
type Watch struct {
	ConfigPath  string
	State       string
	Timeout     string
	Concurrency int
	DryRun      bool
	Sources     []string
}

// Flags returns CLI flags for a watch pass
func (c *Watch) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the watch list file (.yaml, .yml or .toml)",
			Required:    true,
			Destination: &c.ConfigPath,
			Sources:     cli.EnvVars("HERALD_CONFIG"),
		},
		&cli.StringFlag{
			Name:        "state",
			Usage:       "State location override (path, gs://... or firestore://...)",
			Destination: &c.State,
			Sources:     cli.EnvVars("HERALD_STATE"),
		},
		&cli.StringFlag{
			Name:        "timeout",
			Usage:       "Per-source fetch timeout override (e.g. 30s)",
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("HERALD_TIMEOUT"),
		},
		&cli.IntFlag{
			Name:        "concurrency",
			Usage:       "Number of sources fetched in parallel",
			Destination: &c.Concurrency,
			Sources:     cli.EnvVars("HERALD_CONCURRENCY"),
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Detect and log, but deliver nothing and keep state untouched",
			Destination: &c.DryRun,
			Sources:     cli.EnvVars("HERALD_DRY_RUN"),
		},
		&cli.StringSliceFlag{
			Name:        "source",
			Usage:       "Process only the named source (repeatable)",
			Destination: &c.Sources,
			Sources:     cli.EnvVars("HERALD_SOURCE"),
		},
	}
}

// Apply overlays the non-empty override flags onto a loaded watch list.
func (c *Watch) Apply(wl *WatchList) {
	if c.State != "" {
		wl.State = c.State
	}
	if c.Timeout != "" {
		wl.Timeout = c.Timeout
	}
	if c.Concurrency > 0 {
		wl.Concurrency = c.Concurrency
	}
}
