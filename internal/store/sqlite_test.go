package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/firstprinciples/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestUserRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	user, err := repo.GetUser(ctx, "anon_missing")
	require.NoError(t, err)
	assert.Nil(t, user)

	now := time.Unix(1700000000, 0)
	require.NoError(t, repo.UpsertUser(ctx, &domain.User{
		UserID:     "anon_1",
		Username:   "anon-00000001",
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	later := now.Add(time.Hour)
	require.NoError(t, repo.UpdateLastSeen(ctx, "anon_1", later))

	user, err = repo.GetUser(ctx, "anon_1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "anon-00000001", user.Username)
	assert.True(t, user.LastSeenAt.Equal(later))
	assert.True(t, user.CreatedAt.Equal(now))

	// Unknown users are not an error.
	require.NoError(t, repo.UpdateLastSeen(ctx, "anon_missing", later))
}

func TestReportsNewestFirstPerUser(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	save := func(id, user string, offset time.Duration) {
		t.Helper()
		require.NoError(t, repo.SaveReport(ctx, &domain.Report{
			ID:        id,
			UserID:    user,
			SessionID: "tab",
			Filename:  id + ".txt",
			Path:      "/reports/" + id + ".txt",
			Content:   "content " + id,
			CreatedAt: base.Add(offset),
		}))
	}
	save("01A", "anon_1", 0)
	save("01B", "anon_2", time.Minute)
	save("01C", "anon_1", 2*time.Minute)
	save("01D", "anon_1", time.Minute)

	reports, err := repo.ListReports(ctx, "anon_1", 0)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "01C", reports[0].ID)
	assert.Equal(t, "01D", reports[1].ID)
	assert.Equal(t, "01A", reports[2].ID)
	for _, r := range reports {
		assert.Equal(t, "anon_1", r.UserID)
		assert.Empty(t, r.Content, "listing omits content")
	}

	limited, err := repo.ListReports(ctx, "anon_1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "01C", limited[0].ID)
}

func TestGetReportScopedToUser(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveReport(ctx, &domain.Report{
		ID:        "01X",
		UserID:    "anon_1",
		SessionID: "tab-1",
		Filename:  "first_principles_session_20250730_172046.txt",
		Content:   "body",
		Degraded:  []string{"analyze", "solutions"},
		SaveError: "permission denied",
		CreatedAt: time.Unix(1700000000, 0),
	}))

	report, err := repo.GetReport(ctx, "anon_1", "01X")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "body", report.Content)
	assert.Equal(t, []string{"analyze", "solutions"}, report.Degraded)
	assert.Equal(t, "permission denied", report.SaveError)
	assert.Empty(t, report.Path)
	assert.False(t, report.Saved())

	other, err := repo.GetReport(ctx, "anon_2", "01X")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestPing(t *testing.T) {
	repo := newTestStore(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
