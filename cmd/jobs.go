package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/dailyshuffle/internal/formatter"
	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/repositories"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"github.com/urfave/cli/v3"
)

// JobsList prints jobs. Names are looked up on Spotify only for a single owner.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var list []models.JobWithNames
	if owner := cmd.String("owner"); owner != "" {
		err = r.withDeps(cmd, func(_ *shared.Config, d *deps) error {
			jobs, err := d.jobService.UserJobs(ctx, owner)
			if err != nil {
				return err
			}
			list = jobs.Jobs
			return nil
		})
	} else {
		list, err = r.allJobs(ctx, cmd)
	}
	if err != nil {
		return err
	}

	data, err := formatter.FormatJobs(list, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

func (r *Runner) allJobs(ctx context.Context, cmd *cli.Command) ([]models.JobWithNames, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	jobs, err := repositories.NewJobRepository(db).List(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]models.JobWithNames, 0, len(jobs))
	for _, job := range jobs {
		list = append(list, models.JobWithNames{Job: *job})
	}
	return list, nil
}

// JobsAdd creates a destination playlist for --owner and registers a job that shuffles --source into it.
func (r *Runner) JobsAdd(ctx context.Context, cmd *cli.Command) error {
	return r.withDeps(cmd, func(_ *shared.Config, d *deps) error {
		job, err := d.jobService.CreateJob(ctx, cmd.String("owner"), cmd.String("source"), cmd.String("name"))
		if err != nil {
			return err
		}
		return r.writePlain("%s created job %s -> %s\n", r.palette.OK("✓"), job.SourcePlaylistID, job.DestinationPlaylistID)
	})
}

// JobsRemove deletes the job for --destination.
func (r *Runner) JobsRemove(ctx context.Context, cmd *cli.Command) error {
	return r.withDeps(cmd, func(_ *shared.Config, d *deps) error {
		destination := cmd.String("destination")
		if err := d.jobService.DeleteJob(ctx, cmd.String("owner"), destination); err != nil {
			return err
		}
		return r.writePlain("%s deleted job %s\n%s\n", r.palette.OK("✓"), destination,
			r.palette.Help("the destination playlist was left on Spotify"))
	})
}

// Sweep clears expired browser sessions.
func (r *Runner) Sweep(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	cleared, err := repositories.NewCredentialRepository(db).ClearExpiredSessions(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to sweep sessions: %w", err)
	}

	r.logger.Info("swept sessions", "cleared", cleared)
	if cleared == 0 {
		return r.writePlain("%s\n", r.palette.Warn("no expired sessions"))
	}
	return r.writePlain("%s cleared %d expired sessions\n", r.palette.OK("✓"), cleared)
}
