// internal/matching/session.go
// Session materialization for confirmed matches

package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeePolicy is the fixed price split of a session
type FeePolicy struct {
	TotalAmount int64
	TutorAmount int64
}

// PlatformAmount is whatever the tutor share leaves of the total
func (p FeePolicy) PlatformAmount() int64 {
	return p.TotalAmount - p.TutorAmount
}

// Validate rejects splits that do not add up
func (p FeePolicy) Validate() error {
	if p.TotalAmount < 0 || p.TutorAmount < 0 {
		return fmt.Errorf("fee amounts must not be negative")
	}
	if p.TutorAmount > p.TotalAmount {
		return fmt.Errorf("tutor amount %d exceeds total %d", p.TutorAmount, p.TotalAmount)
	}
	return nil
}

// Schedule is the parsed date and time window of a session
type Schedule struct {
	Date      time.Time
	StartTime string
	EndTime   string
	Duration  int
	Location  string
}

// ParseSchedule converts a validated confirm payload into a schedule.
// A zero duration falls back to defaultDuration.
func ParseSchedule(dto ConfirmMatchDTO, defaultDuration int) (Schedule, error) {
	date, err := time.Parse("2006-01-02", dto.SessionDate)
	if err != nil {
		return Schedule{}, NewValidationError("sessionDate must be YYYY-MM-DD")
	}
	start, err := time.Parse("15:04", dto.StartTime)
	if err != nil {
		return Schedule{}, NewValidationError("startTime must be HH:MM")
	}
	end, err := time.Parse("15:04", dto.EndTime)
	if err != nil {
		return Schedule{}, NewValidationError("endTime must be HH:MM")
	}
	if !end.After(start) {
		return Schedule{}, NewValidationError("endTime must be after startTime")
	}

	duration := dto.Duration
	if duration == 0 {
		duration = defaultDuration
	}

	return Schedule{
		Date:      date,
		StartTime: dto.StartTime,
		EndTime:   dto.EndTime,
		Duration:  duration,
		Location:  dto.Location,
	}, nil
}

// SessionFactory turns a confirmed match into a scheduled session
type SessionFactory struct {
	fees            FeePolicy
	defaultDuration int
	profiles        ProfileStore
	dispatcher      NotificationDispatcher
	events          EventPublisher
	logger          *zap.Logger
}

func NewSessionFactory(fees FeePolicy, defaultDuration int, profiles ProfileStore, dispatcher NotificationDispatcher, events EventPublisher, logger *zap.Logger) *SessionFactory {
	return &SessionFactory{
		fees:            fees,
		defaultDuration: defaultDuration,
		profiles:        profiles,
		dispatcher:      dispatcher,
		events:          events,
		logger:          logger,
	}
}

// DefaultDuration is used when the confirm payload has none, in minutes
func (f *SessionFactory) DefaultDuration() int {
	return f.defaultDuration
}

// CreateFromMatch builds the session for a request being confirmed.
// It only runs inside the repository's confirm guard, so at most once per request.
func (f *SessionFactory) CreateFromMatch(r *MatchRequest, schedule Schedule, now time.Time) (*Session, error) {
	tutorID, ok := r.MatchedTutorID()
	if !ok {
		return nil, errInvalidState("confirming a request without a matched tutor")
	}

	return &Session{
		ID:             uuid.New(),
		MatchRequestID: r.ID,
		TutorID:        tutorID,
		ParentID:       r.ParentID,
		StudentID:      r.StudentID,
		SubjectID:      r.SubjectID,
		GradeID:        r.GradeID,
		SessionDate:    schedule.Date,
		StartTime:      schedule.StartTime,
		EndTime:        schedule.EndTime,
		Duration:       schedule.Duration,
		Location:       schedule.Location,
		Status:         SessionScheduled,
		TotalAmount:    f.fees.TotalAmount,
		TutorAmount:    f.fees.TutorAmount,
		PlatformAmount: f.fees.PlatformAmount(),
		CreatedAt:      now,
	}, nil
}

// Announce emits the confirmation event and tells the tutor. Failures are logged only.
// Events are stamped with now, the caller's clock.
func (f *SessionFactory) Announce(ctx context.Context, r *MatchRequest, s *Session, now time.Time) {
	ctx = context.WithoutCancel(ctx)

	event := NewEvent(EventOfferConfirmed, r.ID, now, map[string]string{
		"session_id": s.ID.String(),
		"tutor_id":   s.TutorID.String(),
		"parent_id":  s.ParentID.String(),
	})
	if err := f.events.Publish(ctx, event); err != nil {
		f.logger.Warn("failed to publish confirmation event",
			zap.String("request_id", r.ID.String()),
			zap.Error(err),
		)
	}

	tutor, err := f.profiles.GetTutor(ctx, s.TutorID)
	if err != nil {
		f.logger.Warn("cannot resolve tutor for confirmation notice",
			zap.String("session_id", s.ID.String()),
			zap.Error(err),
		)
		recordNotifyFailure(string(NotificationSessionConfirmed))
		return
	}

	payload := map[string]string{
		"sessionId":   s.ID.String(),
		"requestId":   r.ID.String(),
		"sessionDate": s.SessionDate.Format("2006-01-02"),
		"startTime":   s.StartTime,
		"endTime":     s.EndTime,
	}
	err = safeCall(func() error {
		return f.dispatcher.NotifySingle(ctx, tutor.UserID, NotificationSessionConfirmed, payload)
	})
	if err != nil {
		f.logger.Warn("session confirmation notice failed",
			zap.String("session_id", s.ID.String()),
			zap.Error(err),
		)
		recordNotifyFailure(string(NotificationSessionConfirmed))
		failed := NewEvent(EventOfferNotifyFailed, r.ID, now, map[string]string{
			"kind":  string(NotificationSessionConfirmed),
			"error": err.Error(),
		})
		if err := f.events.Publish(ctx, failed); err != nil {
			f.logger.Warn("failed to publish notify-failed event", zap.Error(err))
		}
	}
}

// safeCall runs fn and turns a panic into an error
func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notification dispatcher panicked: %v", p)
		}
	}()
	return fn()
}
