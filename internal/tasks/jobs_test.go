package tasks

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	tu "github.com/desertthunder/dailyshuffle/internal/testing"
)

func (fx *fixture) service(t *testing.T) *JobService {
	t.Helper()
	runner := fx.runner(t, allTokens)
	return NewJobService(fx.jobs, fx.creds, allTokens, fx.client, runner, tu.NewTestLogger(t))
}

func TestJobService(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateJob", func(t *testing.T) {
		fx := newFixture(t)
		fx.fake.AddPlaylist(&tu.FakePlaylist{ID: "src", Name: "Favorites", OwnerID: "alice", URIs: []string{"a", "b", "c"}})
		svc := fx.service(t)

		job, err := svc.CreateJob(ctx, "alice", "src", "")
		if err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
		if job.OwnerID != "alice" || job.SourcePlaylistID != "src" || job.DestinationPlaylistID == "" {
			t.Errorf("unexpected job %+v", job)
		}

		dest := fx.fake.Playlist(job.DestinationPlaylistID)
		if dest == nil {
			t.Fatal("destination playlist was not created")
		}
		if dest.Name != "Favorites (Daily Shuffle)" {
			t.Errorf("unexpected destination name %q", dest.Name)
		}
		if len(dest.URIs) != 3 {
			t.Errorf("expected the new job to run immediately, destination has %d tracks", len(dest.URIs))
		}

		if _, err := fx.jobs.Get(ctx, job.DestinationPlaylistID); err != nil {
			t.Errorf("job not persisted: %v", err)
		}
	})

	t.Run("CreateJob Missing Source", func(t *testing.T) {
		fx := newFixture(t)
		svc := fx.service(t)

		if _, err := svc.CreateJob(ctx, "alice", "", "x"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := svc.CreateJob(ctx, "alice", "ghost", "x"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest for unknown source, got %v", err)
		}
		if jobs, _ := fx.jobs.List(ctx); len(jobs) != 0 {
			t.Error("no job should be stored when the source is missing")
		}
	})

	t.Run("CreateJob Run Failure Still Saves", func(t *testing.T) {
		fx := newFixture(t)
		fx.fake.AddPlaylist(&tu.FakePlaylist{ID: "src", Name: "Favorites", OwnerID: "alice", URIs: []string{"a"}})
		fx.fake.FailNext("GET /v1/playlists/src/tracks", http.StatusForbidden)
		svc := fx.service(t)

		job, err := svc.CreateJob(ctx, "alice", "src", "Mine")
		if err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
		if _, err := fx.jobs.Get(ctx, job.DestinationPlaylistID); err != nil {
			t.Errorf("job must persist even if the first run fails: %v", err)
		}
	})

	t.Run("UpdateJobSource", func(t *testing.T) {
		fx := newFixture(t)
		fx.addJob(t, "alice", "src1", "dst1", 2)
		fx.fake.AddPlaylist(&tu.FakePlaylist{ID: "src2", OwnerID: "alice", URIs: []string{"x", "y", "z", "w"}})
		svc := fx.service(t)

		job, err := svc.UpdateJobSource(ctx, "alice", "dst1", "src2")
		if err != nil {
			t.Fatalf("UpdateJobSource() error = %v", err)
		}
		if job.SourcePlaylistID != "src2" {
			t.Errorf("expected src2, got %s", job.SourcePlaylistID)
		}
		if got := len(fx.fake.Playlist("dst1").URIs); got != 4 {
			t.Errorf("expected immediate run with the new source, got %d tracks", got)
		}
	})

	t.Run("Ownership", func(t *testing.T) {
		fx := newFixture(t)
		fx.addJob(t, "alice", "src1", "dst1", 2)
		svc := fx.service(t)

		tests := []struct {
			name string
			call func() error
			want error
		}{
			{"update wrong owner", func() error { _, err := svc.UpdateJobSource(ctx, "bob", "dst1", "src9"); return err }, shared.ErrWrongOwner},
			{"update not found", func() error { _, err := svc.UpdateJobSource(ctx, "alice", "nope", "src9"); return err }, shared.ErrJobNotFound},
			{"update missing source", func() error { _, err := svc.UpdateJobSource(ctx, "alice", "dst1", ""); return err }, shared.ErrMissingArgument},
			{"delete wrong owner", func() error { return svc.DeleteJob(ctx, "bob", "dst1") }, shared.ErrWrongOwner},
			{"delete not found", func() error { return svc.DeleteJob(ctx, "alice", "nope") }, shared.ErrJobNotFound},
			{"delete missing destination", func() error { return svc.DeleteJob(ctx, "alice", "") }, shared.ErrMissingArgument},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.call(); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}

		job, _ := fx.jobs.Get(ctx, "dst1")
		if job.SourcePlaylistID != "src1" {
			t.Error("rejected update must not modify the job")
		}
	})

	t.Run("DeleteJob", func(t *testing.T) {
		fx := newFixture(t)
		fx.addJob(t, "alice", "src1", "dst1", 2)
		svc := fx.service(t)

		if err := svc.DeleteJob(ctx, "alice", "dst1"); err != nil {
			t.Fatalf("DeleteJob() error = %v", err)
		}
		if _, err := fx.jobs.Get(ctx, "dst1"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected job to be gone, got %v", err)
		}
		if fx.fake.Playlist("dst1") == nil {
			t.Error("destination playlist must be left upstream")
		}
	})

	t.Run("UserJobs", func(t *testing.T) {
		fx := newFixture(t)
		fx.addJob(t, "alice", "src1", "dst1", 2)
		fx.addJob(t, "bob", "src2", "dst2", 2)
		if err := fx.jobs.Upsert(ctx, &models.Job{OwnerID: "alice", SourcePlaylistID: "src1", DestinationPlaylistID: "gone"}); err != nil {
			t.Fatalf("failed to add job: %v", err)
		}
		svc := fx.service(t)

		got, err := svc.UserJobs(ctx, "alice")
		if err != nil {
			t.Fatalf("UserJobs() error = %v", err)
		}
		if got.Email != "alice@example.com" {
			t.Errorf("expected email, got %q", got.Email)
		}
		if len(got.Jobs) != 2 {
			t.Fatalf("expected 2 jobs, got %d", len(got.Jobs))
		}
		if got.Jobs[0].SourceName != "Source src1" || got.Jobs[0].DestinationName != "Dest dst1" {
			t.Errorf("unexpected names %+v", got.Jobs[0])
		}
		if got.Jobs[1].DestinationName != "" {
			t.Errorf("expected empty name for missing playlist, got %q", got.Jobs[1].DestinationName)
		}
	})

	t.Run("UserPlaylists", func(t *testing.T) {
		fx := newFixture(t)
		fx.addJob(t, "alice", "src1", "dst1", 2)
		svc := fx.service(t)

		got, err := svc.UserPlaylists(ctx, "alice")
		if err != nil {
			t.Fatalf("UserPlaylists() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 playlists, got %d", len(got))
		}

		if _, err := svc.UserPlaylists(ctx, "carol"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}
