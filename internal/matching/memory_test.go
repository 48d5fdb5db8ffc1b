package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedRequest(status Status, now time.Time) *MatchRequest {
	r := &MatchRequest{
		ID:        uuid.New(),
		ParentID:  uuid.New(),
		StudentID: uuid.New(),
		SubjectID: mathsID,
		GradeID:   grade9,
		Status:    status,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
	switch status {
	case StatusMatched:
		r.Assignment = &Assignment{TutorID: uuid.New(), MatchedAt: now.Add(-100 * time.Hour)}
	case StatusConfirmed:
		confirmed := now.Add(-time.Hour)
		r.Assignment = &Assignment{TutorID: uuid.New(), MatchedAt: now.Add(-100 * time.Hour), ConfirmedAt: &confirmed}
	}
	return r
}

func TestMemoryRepository_NeverStoresIllegalTransition(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	build := func(r *MatchRequest) (*Session, error) {
		return &Session{ID: uuid.New(), MatchRequestID: r.ID, ParentID: r.ParentID}, nil
	}

	operations := map[string]func(repo Repository, r *MatchRequest, at time.Time){
		"accept": func(repo Repository, r *MatchRequest, at time.Time) {
			_, _ = repo.AcceptRequest(ctx, r.ID, uuid.New(), at)
		},
		"confirm": func(repo Repository, r *MatchRequest, at time.Time) {
			_, _, _ = repo.ConfirmRequest(ctx, r.ID, r.ParentID, at, build)
		},
		"cancel": func(repo Repository, r *MatchRequest, at time.Time) {
			_, _ = repo.CancelRequest(ctx, r.ID, r.ParentID, at)
		},
		"expire pending": func(repo Repository, r *MatchRequest, at time.Time) {
			_, _ = repo.ExpirePending(ctx, at)
		},
		"expire matched": func(repo Repository, r *MatchRequest, at time.Time) {
			_, _ = repo.ExpireMatched(ctx, at.Add(-72*time.Hour), at)
		},
	}
	starts := []Status{StatusPending, StatusMatched, StatusConfirmed, StatusExpired, StatusCancelled}
	// before and after the request's expiry
	instants := []time.Time{now, now.Add(2 * time.Hour)}

	for _, start := range starts {
		for name, op := range operations {
			for _, at := range instants {
				repo := NewMemoryRepository()
				r := storedRequest(start, now)
				require.NoError(t, repo.CreateRequest(ctx, r))

				op(repo, r, at)

				got, err := repo.GetRequest(ctx, r.ID)
				require.NoError(t, err)
				if got.Status != start {
					assert.True(t, start.CanTransition(got.Status),
						"%s on %s stored illegal move to %s", name, start, got.Status)
				}
				assert.NoError(t, got.CheckInvariants(), "%s on %s", name, start)
			}
		}
	}
}

func TestMemoryRepository_GetSessionByRequest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()

	r := storedRequest(StatusMatched, now)
	require.NoError(t, repo.CreateRequest(ctx, r))

	_, err := repo.GetSessionByRequest(ctx, r.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, session, err := repo.ConfirmRequest(ctx, r.ID, r.ParentID, now, func(m *MatchRequest) (*Session, error) {
		return &Session{ID: uuid.New(), MatchRequestID: m.ID}, nil
	})
	require.NoError(t, err)

	got, err := repo.GetSessionByRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
}
