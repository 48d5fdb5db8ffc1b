package matching

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending: {StatusMatched, StatusExpired, StatusCancelled},
		StatusMatched: {StatusConfirmed, StatusExpired},
	}
	all := []Status{StatusPending, StatusMatched, StatusConfirmed, StatusExpired, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestMatchRequest_EffectiveStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &MatchRequest{Status: StatusPending, ExpiresAt: now.Add(time.Hour)}

	assert.Equal(t, StatusPending, r.EffectiveStatus(now))
	assert.True(t, r.Offerable(now))

	assert.Equal(t, StatusExpired, r.EffectiveStatus(now.Add(time.Hour)))
	assert.False(t, r.Offerable(now.Add(2*time.Hour)))
	assert.Equal(t, StatusPending, r.Status)

	r.Status = StatusMatched
	r.Assignment = &Assignment{TutorID: uuid.New(), MatchedAt: now}
	assert.Equal(t, StatusMatched, r.EffectiveStatus(now.Add(48*time.Hour)))
}

func TestMatchRequest_CheckInvariants(t *testing.T) {
	now := time.Now()

	pending := &MatchRequest{Status: StatusPending}
	require.NoError(t, pending.CheckInvariants())

	pending.Assignment = &Assignment{TutorID: uuid.New(), MatchedAt: now}
	assert.Error(t, pending.CheckInvariants())

	matched := &MatchRequest{Status: StatusMatched}
	assert.Error(t, matched.CheckInvariants())

	matched.Assignment = &Assignment{TutorID: uuid.New(), MatchedAt: now}
	require.NoError(t, matched.CheckInvariants())

	matched.Status = StatusConfirmed
	assert.Error(t, matched.CheckInvariants())
	matched.Assignment.ConfirmedAt = &now
	require.NoError(t, matched.CheckInvariants())

	assert.Error(t, (&MatchRequest{Status: "UNKNOWN"}).CheckInvariants())
}

func TestMatchRequest_CloneIsDeep(t *testing.T) {
	now := time.Now()
	r := &MatchRequest{
		Status:         StatusConfirmed,
		PreferredTimes: []TimeSlot{{DayOfWeek: 1}},
		Assignment:     &Assignment{TutorID: uuid.New(), MatchedAt: now, ConfirmedAt: &now},
	}

	c := r.Clone()
	c.PreferredTimes[0].DayOfWeek = 4
	c.Assignment.TutorID = uuid.New()
	*c.Assignment.ConfirmedAt = now.Add(time.Hour)

	assert.Equal(t, 1, r.PreferredTimes[0].DayOfWeek)
	assert.NotEqual(t, c.Assignment.TutorID, r.Assignment.TutorID)
	assert.Equal(t, now, *r.Assignment.ConfirmedAt)
	assert.Nil(t, (*MatchRequest)(nil).Clone())
}

func TestErrors_KindHelpers(t *testing.T) {
	assert.True(t, IsNotFound(ErrRequestNotFound))
	assert.True(t, IsConflict(ErrOfferTaken))
	assert.True(t, IsConflict(ErrOfferExpired))
	assert.True(t, IsExpired(ErrOfferExpired))
	assert.True(t, IsValidation(NewValidationError("bad")))
	assert.True(t, IsUnauthorized(ErrNotOwner))
	assert.Equal(t, ErrorKind(""), KindOf(assert.AnError))

	wrapped := &Error{Kind: KindConflict, Message: ErrOfferTaken.Message, Err: assert.AnError}
	assert.ErrorIs(t, wrapped, ErrOfferTaken)
	assert.ErrorIs(t, wrapped, assert.AnError)
}

func TestFeePolicy(t *testing.T) {
	p := FeePolicy{TotalAmount: 4000, TutorAmount: 2000}
	require.NoError(t, p.Validate())
	assert.Equal(t, int64(2000), p.PlatformAmount())

	assert.Error(t, FeePolicy{TotalAmount: 100, TutorAmount: 200}.Validate())
	assert.Error(t, FeePolicy{TotalAmount: -1}.Validate())
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule(ConfirmMatchDTO{SessionDate: "2025-03-10", StartTime: "16:00", EndTime: "18:00"}, 120)
	require.NoError(t, err)
	assert.Equal(t, 120, s.Duration)
	assert.Equal(t, time.March, s.Date.Month())

	s, err = ParseSchedule(ConfirmMatchDTO{SessionDate: "2025-03-10", StartTime: "16:00", EndTime: "17:00", Duration: 60}, 120)
	require.NoError(t, err)
	assert.Equal(t, 60, s.Duration)

	_, err = ParseSchedule(ConfirmMatchDTO{SessionDate: "2025-03-10", StartTime: "18:00", EndTime: "16:00"}, 120)
	assert.True(t, IsValidation(err))

	_, err = ParseSchedule(ConfirmMatchDTO{SessionDate: "10/03/2025", StartTime: "16:00", EndTime: "18:00"}, 120)
	assert.True(t, IsValidation(err))
}

func TestOfferRecipients_ChannelsByRank(t *testing.T) {
	ranked := NewScoringEngine().Rank([]*Candidate{tutorA(), tutorB()}, colomboRequest())

	recipients := offerRecipients(ranked, 1)

	require.Len(t, recipients, 2)
	assert.True(t, recipients[0].HasChannel(ChannelEmail))
	assert.True(t, recipients[0].HasChannel(ChannelSMS))
	assert.True(t, recipients[1].HasChannel(ChannelInApp))
	assert.True(t, recipients[1].HasChannel(ChannelPush))
	assert.False(t, recipients[1].HasChannel(ChannelEmail))
	assert.False(t, recipients[1].HasChannel(ChannelSMS))
}

func TestMatchRequest_TransitionFollowsStateMachine(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	all := []Status{StatusPending, StatusMatched, StatusConfirmed, StatusExpired, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			r := &MatchRequest{Status: from}
			err := r.transition(to, now)
			if from.CanTransition(to) {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, r.Status)
				assert.Equal(t, now, r.UpdatedAt)
				continue
			}
			assert.Error(t, err, "%s -> %s", from, to)
			assert.Equal(t, from, r.Status, "illegal move must leave the status alone")
			assert.True(t, r.UpdatedAt.IsZero())
		}
	}
}

func TestPostgresStatusChanges_AreLegal(t *testing.T) {
	for _, change := range postgresStatusChanges {
		assert.True(t, change.from.CanTransition(change.to), "%s -> %s", change.from, change.to)
	}
	assert.Panics(t, func() { mustChange(StatusConfirmed, StatusExpired) })
	assert.Panics(t, func() { mustChange(StatusCancelled, StatusPending) })
}
