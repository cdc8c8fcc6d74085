package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/services"
	"github.com/desertthunder/dailyshuffle/internal/shared"
)

// UserJobs lists a user's jobs with their playlist names.
type UserJobs struct {
	Email string                `json:"email"`
	Jobs  []models.JobWithNames `json:"jobs"`
}

// JobService manages shuffle jobs on behalf of a signed-in user.
type JobService struct {
	jobs   models.JobStore
	creds  models.CredentialStore
	tokens TokenSource
	client services.PlaylistClient
	runner *Runner
	logger *log.Logger
}

// NewJobService creates a [JobService].
func NewJobService(
	jobs models.JobStore,
	creds models.CredentialStore,
	tokens TokenSource,
	client services.PlaylistClient,
	runner *Runner,
	logger *log.Logger,
) *JobService {
	return &JobService{
		jobs:   jobs,
		creds:  creds,
		tokens: tokens,
		client: client,
		runner: runner,
		logger: shared.WithLogger(logger, "component", "jobs"),
	}
}

// CreateJob creates a private destination playlist named destinationName, registers a job that
// shuffles sourceID into it and runs the job once.
//
// An empty destinationName is derived from the source playlist's name.
func (s *JobService) CreateJob(ctx context.Context, userID, sourceID, destinationName string) (*models.Job, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("%w: source playlist", shared.ErrMissingArgument)
	}

	token, err := s.tokens.ValidAccessToken(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	source, err := s.client.Playlist(ctx, token, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up source playlist: %w", err)
	}
	if destinationName == "" {
		destinationName = source.Name + " (Daily Shuffle)"
	}

	description := fmt.Sprintf("A daily shuffle of %s. Do not edit; tracks are replaced every day.", source.Name)
	dest, err := s.client.CreatePlaylist(ctx, token, userID, destinationName, description, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination playlist: %w", err)
	}

	job := &models.Job{OwnerID: userID, SourcePlaylistID: sourceID, DestinationPlaylistID: dest.ID}
	if err := s.jobs.Upsert(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("created job", "owner", userID, "source", sourceID, "destination", dest.ID)
	s.runNow(ctx, job)
	return job, nil
}

// UpdateJobSource points the job for destinationID at sourceID and runs it once.
func (s *JobService) UpdateJobSource(ctx context.Context, userID, destinationID, sourceID string) (*models.Job, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("%w: source playlist", shared.ErrMissingArgument)
	}

	job, err := s.owned(ctx, userID, destinationID)
	if err != nil {
		return nil, err
	}

	job.SourcePlaylistID = sourceID
	if err := s.jobs.Upsert(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("updated job source", "owner", userID, "source", sourceID, "destination", destinationID)
	s.runNow(ctx, job)
	return job, nil
}

// DeleteJob removes the job for destinationID. The destination playlist is left upstream.
func (s *JobService) DeleteJob(ctx context.Context, userID, destinationID string) error {
	if _, err := s.owned(ctx, userID, destinationID); err != nil {
		return err
	}
	if err := s.jobs.Delete(ctx, destinationID); err != nil {
		return err
	}

	s.logger.Info("deleted job", "owner", userID, "destination", destinationID)
	return nil
}

// UserJobs returns the user's jobs annotated with playlist names.
//
// A playlist that can no longer be read upstream gets an empty name.
func (s *JobService) UserJobs(ctx context.Context, userID string) (*UserJobs, error) {
	c, err := s.creds.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.jobs.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &UserJobs{Email: c.Email, Jobs: make([]models.JobWithNames, 0, len(jobs))}
	if len(jobs) == 0 {
		return out, nil
	}

	token, err := s.tokens.ValidAccessToken(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	for _, job := range jobs {
		out.Jobs = append(out.Jobs, models.JobWithNames{
			Job:             *job,
			SourceName:      s.playlistName(ctx, token, job.SourcePlaylistID),
			DestinationName: s.playlistName(ctx, token, job.DestinationPlaylistID),
		})
	}
	return out, nil
}

// UserPlaylists returns the playlists visible to the user.
func (s *JobService) UserPlaylists(ctx context.Context, userID string) ([]models.Playlist, error) {
	token, err := s.tokens.ValidAccessToken(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	return s.client.UserPlaylists(ctx, token)
}

func (s *JobService) owned(ctx context.Context, userID, destinationID string) (*models.Job, error) {
	if destinationID == "" {
		return nil, fmt.Errorf("%w: destination playlist", shared.ErrMissingArgument)
	}

	job, err := s.jobs.Get(ctx, destinationID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != userID {
		return nil, fmt.Errorf("%w: %s", shared.ErrWrongOwner, destinationID)
	}
	return job, nil
}

func (s *JobService) playlistName(ctx context.Context, token, playlistID string) string {
	p, err := s.client.Playlist(ctx, token, playlistID)
	if err != nil {
		s.logger.Warn("failed to look up playlist", "playlist", playlistID, "error", err)
		return ""
	}
	return p.Name
}

// runNow runs job immediately. Failures are logged by the runner, not returned.
func (s *JobService) runNow(ctx context.Context, job *models.Job) {
	if s.runner == nil {
		return
	}
	s.runner.RunJob(ctx, job)
}
