package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/herald/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

var (
	checkHeader = color.New(color.FgCyan, color.Bold)
	checkOK     = color.New(color.FgGreen)
	checkWarn   = color.New(color.FgYellow)
	checkDim    = color.New(color.Faint)
)

// cmdCheck validates the watch list without touching the network or the
// state store, and prints what a pass would watch.
func cmdCheck() *cli.Command {
	var watchCfg config.Watch

	return &cli.Command{
		Name:    "check",
		Aliases: []string{"c"},
		Usage:   "Validate the watch list and show the resolved sources",
		Flags:   watchCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			wl, err := config.LoadWatchList(watchCfg.ConfigPath)
			if err != nil {
				return err
			}
			watchCfg.Apply(wl)
			if err := wl.Validate(); err != nil {
				return err
			}
			if err := wl.Narrow(watchCfg.Sources); err != nil {
				return err
			}

			checkHeader.Printf("Watch list: %s\n", watchCfg.ConfigPath)
			fmt.Printf("  state:   %s\n", wl.State)
			fmt.Printf("  timeout: %s\n", wl.FetchTimeout())
			fmt.Printf("  sinks:   %s\n", sinkSummary(wl))

			checkHeader.Printf("Sources (%d):\n", len(wl.Tracked()))
			for _, src := range wl.Tracked() {
				fmt.Printf("  %s\n", src.ID)
				checkDim.Printf("    feed:   %s\n", src.URL)
				if src.Filter != nil {
					checkDim.Printf("    filter: %s\n", src.Filter.String())
				}
			}

			if wl.SMTP == nil && wl.Slack == nil {
				checkWarn.Println("No notification sinks configured: new releases will be tracked but never announced")
			}

			checkOK.Println("Configuration OK")
			return nil
		},
	}
}

func sinkSummary(wl *config.WatchList) string {
	var sinks []string
	if wl.SMTP != nil {
		sinks = append(sinks, "smtp")
	}
	if wl.Slack != nil {
		sinks = append(sinks, "slack")
	}
	if len(sinks) == 0 {
		return "none"
	}
	return strings.Join(sinks, ", ")
}
