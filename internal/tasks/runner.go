package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/services"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"golang.org/x/sync/singleflight"
)

// TokenSource yields a valid access token for a user. [auth.TokenManager] implements it.
type TokenSource interface {
	ValidAccessToken(ctx context.Context, userID string, window time.Duration) (string, error)
}

// Sweeper removes expired state on the scheduler's sweep interval.
type Sweeper interface {
	Sweep() int
}

// JobResult is the outcome of shuffling one job.
type JobResult struct {
	Job        models.Job
	Tracks     int
	SnapshotID string
	Duration   time.Duration
	Err        error
}

// RunResult summarizes one pass over all jobs.
//
// Shared is true when the caller joined a pass another caller had already started.
type RunResult struct {
	Successes int
	Errors    int
	Duration  time.Duration
	Results   []JobResult
	Shared    bool
}

// Runner executes shuffle jobs.
//
// Runs that target the same destination playlist never overlap, whether they come from a pass
// or from [Runner.RunJob].
type Runner struct {
	jobs         models.JobStore
	tokens       TokenSource
	client       services.PlaylistClient
	sweeper      Sweeper
	cfg          shared.SchedulerConfig
	logger       *log.Logger
	group        singleflight.Group
	destinations shared.KeyedMutex
	intn         func(n int) int
	now          func() time.Time
}

// NewRunner creates a [Runner]. sweeper may be nil.
func NewRunner(
	jobs models.JobStore,
	tokens TokenSource,
	client services.PlaylistClient,
	sweeper Sweeper,
	cfg shared.SchedulerConfig,
	logger *log.Logger,
) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{
		jobs:    jobs,
		tokens:  tokens,
		client:  client,
		sweeper: sweeper,
		cfg:     cfg,
		logger:  shared.WithLogger(logger, "component", "runner"),
		now:     time.Now,
	}
}

// RunAll shuffles every registered job.
//
// Job failures are reported in the result, not as an error; the error is non-nil only when the
// job list could not be loaded.
func (r *Runner) RunAll(ctx context.Context) (*RunResult, error) {
	v, err, joined := r.group.Do("run-all", func() (any, error) {
		return r.runAll(ctx)
	})
	if err != nil {
		return nil, err
	}

	result := *v.(*RunResult)
	result.Results = append([]JobResult(nil), result.Results...)
	result.Shared = joined
	return &result, nil
}

func (r *Runner) runAll(ctx context.Context) (*RunResult, error) {
	start := r.now()

	jobs, err := r.jobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}

	r.logger.Info("starting shuffle pass", "jobs", len(jobs), "workers", r.cfg.Workers)

	result := &RunResult{Results: r.runJobs(ctx, jobs)}
	for _, res := range result.Results {
		if res.Err != nil {
			result.Errors++
		} else {
			result.Successes++
		}
	}
	result.Duration = r.now().Sub(start)

	if r.cfg.Budget > 0 && result.Duration > r.cfg.Budget {
		r.logger.Warn("shuffle pass exceeded time budget", "duration", result.Duration, "budget", r.cfg.Budget, "jobs", len(jobs))
	}
	r.logger.Info("finished shuffle pass", "successes", result.Successes, "errors", result.Errors, "duration", result.Duration)

	return result, nil
}

// runJobs runs jobs on a bounded worker pool and returns results in job order.
func (r *Runner) runJobs(ctx context.Context, jobs []*models.Job) []JobResult {
	results := make([]JobResult, len(jobs))

	if r.cfg.Workers == 1 {
		for i, job := range jobs {
			results[i] = r.run(ctx, job)
		}
		return results
	}

	queue := make(chan int, len(jobs))
	for i := range jobs {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for range min(r.cfg.Workers, len(jobs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = r.run(ctx, jobs[i])
			}
		}()
	}
	wg.Wait()

	return results
}

func (r *Runner) run(ctx context.Context, job *models.Job) JobResult {
	unlock := r.destinations.Lock(job.DestinationPlaylistID)
	defer unlock()

	start := r.now()
	res := JobResult{Job: *job}

	res.Tracks, res.SnapshotID, res.Err = r.shuffle(ctx, job)
	res.Duration = r.now().Sub(start)

	if res.Err != nil {
		r.logger.Error("shuffle job failed",
			"owner", job.OwnerID,
			"source", job.SourcePlaylistID,
			"destination", job.DestinationPlaylistID,
			"error", res.Err,
		)
	} else {
		r.logger.Debug("shuffled playlist", "destination", job.DestinationPlaylistID, "tracks", res.Tracks)
	}
	return res
}

// RunJob shuffles a single job immediately.
func (r *Runner) RunJob(ctx context.Context, job *models.Job) (*JobResult, error) {
	res := r.run(ctx, job)
	return &res, res.Err
}

func (r *Runner) shuffle(ctx context.Context, job *models.Job) (int, string, error) {
	if r.client == nil || r.tokens == nil {
		return 0, "", shared.ErrServiceNotConfig
	}

	token, err := r.tokens.ValidAccessToken(ctx, job.OwnerID, r.cfg.ExpiryWindow)
	if err != nil {
		return 0, "", fmt.Errorf("failed to get access token: %w", err)
	}

	uris, err := r.client.PlaylistTrackURIs(ctx, token, job.SourcePlaylistID)
	if err != nil {
		return 0, "", fmt.Errorf("failed to fetch source tracks: %w", err)
	}

	Shuffle(uris, r.intn)

	snapshot, err := r.client.ReplaceTracks(ctx, token, job.DestinationPlaylistID, uris)
	if err != nil {
		return 0, "", fmt.Errorf("failed to write destination tracks: %w", err)
	}
	return len(uris), snapshot, nil
}

// Start runs a pass every interval and sweeps on the sweep interval until ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("%w: scheduler interval must be positive", shared.ErrInvalidConfig)
	}

	runTicker := time.NewTicker(r.cfg.Interval)
	defer runTicker.Stop()

	var sweep <-chan time.Time
	if r.sweeper != nil && r.cfg.SweepInterval > 0 {
		sweepTicker := time.NewTicker(r.cfg.SweepInterval)
		defer sweepTicker.Stop()
		sweep = sweepTicker.C
	}

	r.logger.Info("scheduler started", "interval", r.cfg.Interval, "sweep_interval", r.cfg.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopped")
			return nil
		case <-runTicker.C:
			if _, err := r.RunAll(ctx); err != nil {
				r.logger.Error("scheduled shuffle pass failed", "error", err)
			}
		case <-sweep:
			r.sweeper.Sweep()
		}
	}
}
