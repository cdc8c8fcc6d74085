package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, repo *CredentialRepository, id string) *models.Credential {
	t.Helper()

	c := &models.Credential{
		UserID:            id,
		Email:             id + "@example.com",
		AccessToken:       "access-" + id,
		AccessTokenExpiry: time.Now().Add(time.Hour),
		RefreshToken:      "refresh-" + id,
	}
	if err := repo.Upsert(context.Background(), c); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return c
}

func TestCredentialRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Upsert And Get", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))
		seeded := seedUser(t, repo, "alice")

		got, err := repo.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if got.Email != seeded.Email {
			t.Errorf("expected email %s, got %s", seeded.Email, got.Email)
		}
		if got.AccessToken != "access-alice" || got.RefreshToken != "refresh-alice" {
			t.Errorf("unexpected tokens %q / %q", got.AccessToken, got.RefreshToken)
		}
		if !got.AccessTokenExpiry.Equal(seeded.AccessTokenExpiry) {
			t.Errorf("expected expiry %v, got %v", seeded.AccessTokenExpiry, got.AccessTokenExpiry)
		}
		if got.SessionToken != "" || !got.SessionTokenExpiry.IsZero() {
			t.Error("expected absent session fields to read back as zero values")
		}
	})

	t.Run("Upsert Replaces And Keeps CreatedAt", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))
		seedUser(t, repo, "alice")

		first, err := repo.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		updated := &models.Credential{UserID: "alice", Email: "new@example.com", RefreshToken: "r2"}
		if err := repo.Upsert(ctx, updated); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		got, err := repo.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Email != "new@example.com" || got.RefreshToken != "r2" || got.AccessToken != "" {
			t.Errorf("upsert did not replace columns: %+v", got)
		}
		if !got.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("created_at changed from %v to %v", first.CreatedAt, got.CreatedAt)
		}
	})

	t.Run("Upsert Rejects Token Without Expiry", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))

		err := repo.Upsert(ctx, &models.Credential{UserID: "bob", AccessToken: "a"})
		if err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("Get Unknown", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))

		_, err := repo.Get(ctx, "nobody")
		if !errors.Is(err, shared.ErrUnknownUser) {
			t.Errorf("expected ErrUnknownUser, got %v", err)
		}
	})

	t.Run("UpdateTokens", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))
		seedUser(t, repo, "alice")

		expiry := time.Now().Add(time.Hour).Truncate(time.Second)
		if err := repo.UpdateTokens(ctx, "alice", "new-access", expiry, "new-refresh"); err != nil {
			t.Fatalf("UpdateTokens() error = %v", err)
		}

		got, _ := repo.Get(ctx, "alice")
		if got.AccessToken != "new-access" || got.RefreshToken != "new-refresh" {
			t.Errorf("tokens not updated: %+v", got)
		}
		if !got.AccessTokenExpiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, got.AccessTokenExpiry)
		}

		if err := repo.UpdateTokens(ctx, "nobody", "a", expiry, "r"); !errors.Is(err, shared.ErrUnknownUser) {
			t.Errorf("expected ErrUnknownUser, got %v", err)
		}
		if err := repo.UpdateTokens(ctx, "alice", "a", time.Time{}, "r"); err == nil {
			t.Error("expected error for token without expiry")
		}
	})

	t.Run("UpdateSession", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))
		seedUser(t, repo, "alice")

		expiry := time.Now().Add(6 * time.Hour)
		if err := repo.UpdateSession(ctx, "alice", "current", "previous", expiry); err != nil {
			t.Fatalf("UpdateSession() error = %v", err)
		}

		got, _ := repo.Get(ctx, "alice")
		if got.SessionToken != "current" || got.SessionTokenPrevious != "previous" {
			t.Errorf("session not updated: %+v", got)
		}
		if got.AccessToken != "access-alice" {
			t.Error("session update must not touch OAuth fields")
		}

		if err := repo.UpdateSession(ctx, "alice", "", "", time.Time{}); err != nil {
			t.Fatalf("clearing session failed: %v", err)
		}
		got, _ = repo.Get(ctx, "alice")
		if got.SessionToken != "" || got.SessionTokenPrevious != "" || !got.SessionTokenExpiry.IsZero() {
			t.Errorf("expected cleared session, got %+v", got)
		}
	})

	t.Run("ClearExpiredSessions", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))
		now := time.Now()

		sessions := map[string]time.Time{
			"alice": now.Add(-time.Minute),
			"bob":   now.Add(time.Hour),
			"carol": now,
		}
		for id, expiry := range sessions {
			seedUser(t, repo, id)
			if err := repo.UpdateSession(ctx, id, "tok-"+id, "prev-"+id, expiry); err != nil {
				t.Fatalf("UpdateSession() error = %v", err)
			}
		}
		seedUser(t, repo, "dave")

		cleared, err := repo.ClearExpiredSessions(ctx, now)
		if err != nil {
			t.Fatalf("ClearExpiredSessions() error = %v", err)
		}
		if cleared != 2 {
			t.Errorf("cleared = %d, want 2", cleared)
		}

		for id, want := range map[string]string{"alice": "", "bob": "tok-bob", "carol": "", "dave": ""} {
			got, _ := repo.Get(ctx, id)
			if got.SessionToken != want {
				t.Errorf("%s session token = %q, want %q", id, got.SessionToken, want)
			}
			if got.RefreshToken != "refresh-"+id {
				t.Errorf("%s lost its refresh token", id)
			}
		}
	})
}

func TestJobRepository(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*JobRepository, *CredentialRepository) {
		db := setupTestDB(t)
		creds := NewCredentialRepository(db)
		seedUser(t, creds, "alice")
		seedUser(t, creds, "bob")
		return NewJobRepository(db), creds
	}

	t.Run("Upsert And Get", func(t *testing.T) {
		repo, _ := setup(t)

		job := &models.Job{OwnerID: "alice", SourcePlaylistID: "src1", DestinationPlaylistID: "dst1"}
		if err := repo.Upsert(ctx, job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		got, err := repo.Get(ctx, "dst1")
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if got.OwnerID != "alice" || got.SourcePlaylistID != "src1" {
			t.Errorf("unexpected job %+v", got)
		}
	})

	t.Run("Upsert Updates Source", func(t *testing.T) {
		repo, _ := setup(t)

		job := &models.Job{OwnerID: "alice", SourcePlaylistID: "src1", DestinationPlaylistID: "dst1"}
		if err := repo.Upsert(ctx, job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		job.SourcePlaylistID = "src2"
		if err := repo.Upsert(ctx, job); err != nil {
			t.Fatalf("failed to update job: %v", err)
		}

		got, _ := repo.Get(ctx, "dst1")
		if got.SourcePlaylistID != "src2" {
			t.Errorf("expected src2, got %s", got.SourcePlaylistID)
		}

		all, _ := repo.List(ctx)
		if len(all) != 1 {
			t.Errorf("destination must identify a single job, got %d", len(all))
		}
	})

	t.Run("Upsert Unknown Owner", func(t *testing.T) {
		repo, _ := setup(t)

		err := repo.Upsert(ctx, &models.Job{OwnerID: "nobody", SourcePlaylistID: "s", DestinationPlaylistID: "d"})
		if err == nil {
			t.Fatal("expected foreign key violation for unknown owner")
		}
	})

	t.Run("Upsert Invalid", func(t *testing.T) {
		repo, _ := setup(t)

		if err := repo.Upsert(ctx, &models.Job{OwnerID: "alice"}); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("ListByOwner And List", func(t *testing.T) {
		repo, _ := setup(t)

		for _, j := range []*models.Job{
			{OwnerID: "alice", SourcePlaylistID: "s1", DestinationPlaylistID: "d1"},
			{OwnerID: "alice", SourcePlaylistID: "s2", DestinationPlaylistID: "d2"},
			{OwnerID: "bob", SourcePlaylistID: "s3", DestinationPlaylistID: "d3"},
		} {
			if err := repo.Upsert(ctx, j); err != nil {
				t.Fatalf("failed to create job: %v", err)
			}
		}

		alice, err := repo.ListByOwner(ctx, "alice")
		if err != nil {
			t.Fatalf("ListByOwner() error = %v", err)
		}
		if len(alice) != 2 {
			t.Errorf("expected 2 jobs for alice, got %d", len(alice))
		}

		all, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 jobs, got %d", len(all))
		}

		none, err := repo.ListByOwner(ctx, "carol")
		if err != nil {
			t.Fatalf("ListByOwner() error = %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no jobs, got %d", len(none))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo, _ := setup(t)

		if err := repo.Upsert(ctx, &models.Job{OwnerID: "alice", SourcePlaylistID: "s", DestinationPlaylistID: "d"}); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		if err := repo.Delete(ctx, "d"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.Get(ctx, "d"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound after delete, got %v", err)
		}
		if err := repo.Delete(ctx, "d"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound deleting twice, got %v", err)
		}
	})
}
