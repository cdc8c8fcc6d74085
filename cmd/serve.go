package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/dailyshuffle/internal/formatter"
	"github.com/desertthunder/dailyshuffle/internal/server"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// Serve runs the HTTP server and, unless --no-scheduler is set, the shuffle scheduler until ctx is done.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	return r.withDeps(cmd, func(config *shared.Config, d *deps) error {
		api := server.NewAPI(d.authorizer, d.sessions, d.jobService, d.runner, config.Server, config.Session, r.logger)
		srv := server.New(config.Server.Addr(), server.NewHandler(api, d.db, r.logger), r.logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(gctx) })
		if !cmd.Bool("no-scheduler") {
			g.Go(func() error { return d.runner.Start(gctx) })
		} else {
			r.logger.Warn("scheduler disabled; expired verifiers are not swept")
		}

		r.logger.Info("sign in to register jobs", "url", fmt.Sprintf("http://%s/auth", config.Server.Addr()))
		return g.Wait()
	})
}

type jobOutcome struct {
	Owner       string `json:"owner"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Tracks      int    `json:"tracks"`
	SnapshotID  string `json:"snapshotId,omitempty"`
	Error       string `json:"error,omitempty"`
}

type passOutcome struct {
	Successes  int          `json:"successes"`
	Errors     int          `json:"errors"`
	DurationMS int64        `json:"durationMs"`
	Jobs       []jobOutcome `json:"jobs"`
}

// Run shuffles every job once. It fails when any job failed, so schedulers see a non-zero exit.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	return r.withDeps(cmd, func(_ *shared.Config, d *deps) error {
		result, err := d.runner.RunAll(ctx)
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			out := passOutcome{
				Successes:  result.Successes,
				Errors:     result.Errors,
				DurationMS: result.Duration.Milliseconds(),
				Jobs:       make([]jobOutcome, 0, len(result.Results)),
			}
			for _, res := range result.Results {
				o := jobOutcome{
					Owner:       res.Job.OwnerID,
					Source:      res.Job.SourcePlaylistID,
					Destination: res.Job.DestinationPlaylistID,
					Tracks:      res.Tracks,
					SnapshotID:  res.SnapshotID,
				}
				if res.Err != nil {
					o.Error = res.Err.Error()
				}
				out.Jobs = append(out.Jobs, o)
			}
			if err := r.writeJSON(out, true); err != nil {
				return err
			}
		} else if err := r.writePlain("%s", formatter.RunReport(result, r.palette)); err != nil {
			return err
		}

		if result.Errors > 0 {
			return fmt.Errorf("%d of %d jobs failed", result.Errors, len(result.Results))
		}
		return nil
	})
}
