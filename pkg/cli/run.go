package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/herald/pkg/cli/config"
	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/infra/feed"
	"github.com/m-mizutani/herald/pkg/infra/mail"
	"github.com/m-mizutani/herald/pkg/infra/slack"
	"github.com/m-mizutani/herald/pkg/infra/state"
	"github.com/m-mizutani/herald/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdRun() *cli.Command {
	var watchCfg config.Watch

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run one watch pass over the configured sources",
		Flags:   watchCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

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

			store, err := state.New(ctx, wl.State)
			if err != nil {
				return err
			}

			var notifiers []interfaces.Notifier
			if wl.SMTP != nil {
				notifiers = append(notifiers, mail.New(*wl.SMTP))
			}
			if wl.Slack != nil {
				notifiers = append(notifiers, slack.New(*wl.Slack))
			}

			logger.Info("Starting herald",
				slog.String("config", watchCfg.ConfigPath),
				slog.String("state", wl.State),
				slog.Int("sinks", len(notifiers)),
			)

			uc := usecase.NewWatch(feed.New(), store,
				usecase.WithNotifiers(notifiers...),
				usecase.WithConcurrency(wl.Concurrency),
				usecase.WithFetchTimeout(wl.FetchTimeout()),
				usecase.WithDryRun(watchCfg.DryRun),
			)

			report, err := uc.Run(ctx, wl.Tracked())
			if err != nil {
				return err
			}

			logger.Info("Watch pass complete",
				slog.String("run_id", report.RunID),
				slog.Int("updated", report.Count(model.StatusUpdated)),
				slog.Int("unchanged", report.Count(model.StatusUnchanged)),
				slog.Int("empty", report.Count(model.StatusEmpty)),
				slog.Int("failed", report.Count(model.StatusFailed)),
				slog.Int("notified", report.NotifiedCount()),
			)

			return nil
		},
	}
}
