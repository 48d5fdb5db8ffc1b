// internal/matching/service.go
// OfferCoordinator: request creation, offer fan-out, race-safe accept and confirmation

package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/common/utils"
)

// Service is the matching API consumed by the HTTP layer
type Service interface {
	CreateOffer(ctx context.Context, parentID uuid.UUID, dto CreateMatchRequestDTO) (*MatchRequestView, error)
	Accept(ctx context.Context, requestID, tutorID uuid.UUID) (*MatchRequestView, error)
	Confirm(ctx context.Context, requestID, parentID uuid.UUID, dto ConfirmMatchDTO) (*Session, error)
	Cancel(ctx context.Context, requestID, parentID uuid.UUID) (*MatchRequestView, error)
	GetRequest(ctx context.Context, requestID uuid.UUID, viewer Viewer) (*MatchRequestView, error)
	ListOpenOffers(ctx context.Context, tutorID uuid.UUID) ([]*MatchRequestView, error)
	GetSession(ctx context.Context, sessionID uuid.UUID, viewer Viewer) (*Session, error)
	Sweep(ctx context.Context) (*SweepResult, error)
}

// CoordinatorConfig holds the offer policy
type CoordinatorConfig struct {
	OfferTTL       time.Duration // how long a PENDING request stays offerable
	MatchedTTL     time.Duration // how long a MATCHED request waits for confirmation; 0 keeps it forever
	MaxNotify      int           // K: tutors notified in-app and by push
	PriorityNotify int           // at most K: tutors also reached by email and SMS
}

// SweepResult counts what one sweep rewrote
type SweepResult struct {
	ExpiredPending int `json:"expiredPending"`
	ExpiredMatched int `json:"expiredMatched"`
}

// OfferCoordinator owns every MatchRequest state transition
type OfferCoordinator struct {
	repo       Repository
	profiles   ProfileStore
	selector   *CandidateSelector
	scorer     *ScoringEngine
	sessions   *SessionFactory
	dispatcher NotificationDispatcher
	events     EventPublisher
	config     CoordinatorConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewOfferCoordinator(
	repo Repository,
	profiles ProfileStore,
	dispatcher NotificationDispatcher,
	events EventPublisher,
	sessions *SessionFactory,
	config CoordinatorConfig,
	logger *zap.Logger,
) *OfferCoordinator {
	if config.PriorityNotify > config.MaxNotify {
		config.PriorityNotify = config.MaxNotify
	}
	return &OfferCoordinator{
		repo:       repo,
		profiles:   profiles,
		selector:   NewCandidateSelector(profiles, logger),
		scorer:     NewScoringEngine(),
		sessions:   sessions,
		dispatcher: dispatcher,
		events:     events,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the wall clock, mainly for tests
func (c *OfferCoordinator) SetClock(now func() time.Time) {
	c.now = now
}

// CreateOffer persists a PENDING request and notifies the best-ranked tutors.
// The request is returned even when no tutor qualifies or no notification goes out.
func (c *OfferCoordinator) CreateOffer(ctx context.Context, parentID uuid.UUID, dto CreateMatchRequestDTO) (*MatchRequestView, error) {
	// 1. Validate payload and ownership
	if err := utils.ValidateStruct(dto); err != nil {
		return nil, NewValidationError(err.Error())
	}
	studentID, err := uuid.Parse(dto.StudentID)
	if err != nil {
		return nil, NewValidationError("studentId must be a valid UUID")
	}
	subjectID, err := uuid.Parse(dto.SubjectID)
	if err != nil {
		return nil, NewValidationError("subjectId must be a valid UUID")
	}
	gradeID, err := uuid.Parse(dto.GradeID)
	if err != nil {
		return nil, NewValidationError("gradeId must be a valid UUID")
	}

	parent, err := c.profiles.GetParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.OwnsStudent(studentID) {
		return nil, ErrStudentNotOwned
	}
	curriculum, err := c.profiles.GetCurriculum(ctx, subjectID, gradeID)
	if err != nil {
		return nil, err
	}

	// 2. Persist as PENDING
	now := c.now()
	times := dto.PreferredTimes
	if times == nil {
		times = []TimeSlot{}
	}
	req := &MatchRequest{
		ID:             uuid.New(),
		ParentID:       parentID,
		StudentID:      studentID,
		SubjectID:      subjectID,
		GradeID:        gradeID,
		PreferredCity:  dto.PreferredCity,
		PreferredTimes: times,
		Notes:          dto.AdditionalNotes,
		Status:         StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(c.config.OfferTTL),
		UpdatedAt:      now,
	}
	if err := c.repo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	c.logger.Info("match request created",
		zap.String("request_id", req.ID.String()),
		zap.String("parent_id", parentID.String()),
		zap.String("subject", curriculum.SubjectName),
		zap.String("grade", curriculum.GradeName),
	)
	c.publish(ctx, NewEvent(EventOfferCreated, req.ID, now, map[string]string{
		"parent_id":  parentID.String(),
		"subject_id": subjectID.String(),
		"grade_id":   gradeID.String(),
	}))

	// 3. Select, rank and fan out
	notified := c.fanOut(ctx, req, curriculum)

	view := NewMatchRequestView(req, curriculum, now)
	view.CandidatesNotified = &notified
	return view, nil
}

// fanOut ranks eligible tutors and hands the top-K to the dispatcher.
// It returns how many tutors were offered the request.
func (c *OfferCoordinator) fanOut(ctx context.Context, req *MatchRequest, curriculum *Curriculum) int {
	candidates, err := c.selector.Select(ctx, req)
	if err != nil {
		c.logger.Error("candidate selection failed",
			zap.String("request_id", req.ID.String()),
			zap.Error(err),
		)
		recordOfferCreated(0)
		return 0
	}

	ranked := c.scorer.Rank(candidates, req)
	top := TopK(ranked, c.config.MaxNotify)
	recordOfferCreated(len(candidates))
	for _, sc := range top {
		recordScore(sc.Score)
	}
	if len(top) == 0 {
		c.logger.Info("no eligible tutors for request", zap.String("request_id", req.ID.String()))
		return 0
	}

	summary := OfferSummary{
		RequestID:     req.ID,
		SubjectName:   curriculum.SubjectName,
		GradeName:     curriculum.GradeName,
		PreferredCity: req.PreferredCity,
		ExpiresAt:     req.ExpiresAt,
	}
	recipients := offerRecipients(top, c.config.PriorityNotify)
	c.dispatch(ctx, req.ID, NotificationOffer, func(ctx context.Context) error {
		return c.dispatcher.NotifyOffer(ctx, recipients, summary)
	})

	c.logger.Info("offer fanned out",
		zap.String("request_id", req.ID.String()),
		zap.Int("eligible", len(candidates)),
		zap.Int("notified", len(top)),
		zap.Float64("top_score", top[0].Score),
	)
	return len(top)
}

// Accept lets a tutor claim a PENDING request. Exactly one concurrent caller wins;
// the guard runs inside the repository's atomic update.
func (c *OfferCoordinator) Accept(ctx context.Context, requestID, tutorID uuid.UUID) (view *MatchRequestView, err error) {
	defer func() { recordAccept(err) }()

	tutor, err := c.profiles.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	current, err := c.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !Eligible(tutor, current.SubjectID, current.GradeID) {
		return nil, ErrTutorNotEligible
	}

	now := c.now()
	matched, err := c.repo.AcceptRequest(ctx, requestID, tutorID, now)
	if err != nil {
		c.logger.Info("accept rejected",
			zap.String("request_id", requestID.String()),
			zap.String("tutor_id", tutorID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Info("match request accepted",
		zap.String("request_id", requestID.String()),
		zap.String("tutor_id", tutorID.String()),
	)
	c.publish(ctx, NewEvent(EventOfferAccepted, requestID, now, map[string]string{
		"tutor_id":  tutorID.String(),
		"parent_id": matched.ParentID.String(),
	}))

	curriculum := c.curriculum(ctx, matched)
	payload := map[string]string{
		"requestId": matched.ID.String(),
		"tutorId":   tutor.ID.String(),
		"tutorName": tutor.FullName,
	}
	if curriculum != nil {
		payload["subject"] = curriculum.SubjectName
		payload["grade"] = curriculum.GradeName
	}
	c.notifyParent(ctx, matched, NotificationMatchFound, payload)

	return NewMatchRequestView(matched, curriculum, now), nil
}

// Confirm turns a MATCHED request into a scheduled session for its owner
func (c *OfferCoordinator) Confirm(ctx context.Context, requestID, parentID uuid.UUID, dto ConfirmMatchDTO) (session *Session, err error) {
	defer func() { recordConfirm(err) }()

	// Ownership is settled before the payload, whatever the request's status.
	// ParentID never changes, and the repository re-checks it under lock.
	current, err := c.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.ParentID != parentID {
		return nil, ErrNotOwner
	}

	if err := utils.ValidateStruct(dto); err != nil {
		return nil, NewValidationError(err.Error())
	}
	schedule, err := ParseSchedule(dto, c.sessions.DefaultDuration())
	if err != nil {
		return nil, err
	}

	now := c.now()
	confirmed, session, err := c.repo.ConfirmRequest(ctx, requestID, parentID, now, func(r *MatchRequest) (*Session, error) {
		return c.sessions.CreateFromMatch(r, schedule, now)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("match confirmed",
		zap.String("request_id", requestID.String()),
		zap.String("session_id", session.ID.String()),
	)
	c.sessions.Announce(ctx, confirmed, session, now)
	return session, nil
}

// Cancel withdraws a PENDING request on behalf of its owner
func (c *OfferCoordinator) Cancel(ctx context.Context, requestID, parentID uuid.UUID) (*MatchRequestView, error) {
	now := c.now()
	cancelled, err := c.repo.CancelRequest(ctx, requestID, parentID, now)
	if err != nil {
		return nil, err
	}
	c.logger.Info("match request cancelled", zap.String("request_id", requestID.String()))
	return NewMatchRequestView(cancelled, c.curriculum(ctx, cancelled), now), nil
}

// GetRequest returns a request to its owner, its matched tutor, or an eligible
// tutor while it is still on offer. Everyone else sees NotFound.
func (c *OfferCoordinator) GetRequest(ctx context.Context, requestID uuid.UUID, viewer Viewer) (*MatchRequestView, error) {
	r, err := c.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	now := c.now()
	if !c.canView(ctx, r, viewer, now) {
		return nil, ErrRequestNotFound
	}
	return NewMatchRequestView(r, c.curriculum(ctx, r), now), nil
}

func (c *OfferCoordinator) canView(ctx context.Context, r *MatchRequest, viewer Viewer, now time.Time) bool {
	if viewer.ParentID != uuid.Nil {
		return r.ParentID == viewer.ParentID
	}
	if viewer.TutorID == uuid.Nil {
		return false
	}
	if tutorID, ok := r.MatchedTutorID(); ok {
		return tutorID == viewer.TutorID
	}
	if !r.Offerable(now) {
		return false
	}
	tutor, err := c.profiles.GetTutor(ctx, viewer.TutorID)
	return err == nil && Eligible(tutor, r.SubjectID, r.GradeID)
}

// ListOpenOffers is the tutor's inbox: offerable requests for any of their offerings, newest first
func (c *OfferCoordinator) ListOpenOffers(ctx context.Context, tutorID uuid.UUID) ([]*MatchRequestView, error) {
	tutor, err := c.profiles.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	requests, err := c.repo.ListOpenRequests(ctx, tutor.Offerings, now)
	if err != nil {
		return nil, err
	}

	names := make(map[Offering]*Curriculum)
	views := make([]*MatchRequestView, 0, len(requests))
	for _, r := range requests {
		key := Offering{SubjectID: r.SubjectID, GradeID: r.GradeID}
		cur, ok := names[key]
		if !ok {
			cur = c.curriculum(ctx, r)
			names[key] = cur
		}
		views = append(views, NewMatchRequestView(r, cur, now))
	}
	return views, nil
}

// GetSession returns a session to the parent or tutor on it
func (c *OfferCoordinator) GetSession(ctx context.Context, sessionID uuid.UUID, viewer Viewer) (*Session, error) {
	s, err := c.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if (viewer.ParentID != uuid.Nil && s.ParentID == viewer.ParentID) ||
		(viewer.TutorID != uuid.Nil && s.TutorID == viewer.TutorID) {
		return s, nil
	}
	return nil, ErrSessionNotFound
}

// Sweep rewrites lapsed PENDING requests and stale MATCHED requests to EXPIRED.
// Accept and confirm re-check expiry on their own, so this only tidies storage
// and releases requests a parent never confirmed.
func (c *OfferCoordinator) Sweep(ctx context.Context) (*SweepResult, error) {
	now := c.now()
	result := &SweepResult{}

	pending, err := c.repo.ExpirePending(ctx, now)
	if err != nil {
		return nil, err
	}
	result.ExpiredPending = len(pending)
	recordSwept(StatusPending, len(pending))
	for _, r := range pending {
		c.publish(ctx, NewEvent(EventOfferExpired, r.ID, now, map[string]string{"from": string(StatusPending)}))
	}

	if c.config.MatchedTTL > 0 {
		stale, err := c.repo.ExpireMatched(ctx, now.Add(-c.config.MatchedTTL), now)
		if err != nil {
			return result, err
		}
		result.ExpiredMatched = len(stale)
		recordSwept(StatusMatched, len(stale))
		for _, m := range stale {
			c.releaseStaleMatch(ctx, m, now)
		}
	}

	if result.ExpiredPending > 0 || result.ExpiredMatched > 0 {
		c.logger.Info("expiry sweep finished",
			zap.Int("expired_pending", result.ExpiredPending),
			zap.Int("expired_matched", result.ExpiredMatched),
		)
	}
	return result, nil
}

func (c *OfferCoordinator) releaseStaleMatch(ctx context.Context, m ExpiredMatch, now time.Time) {
	r := m.Request
	c.publish(ctx, NewEvent(EventOfferExpired, r.ID, now, map[string]string{
		"from":              string(StatusMatched),
		"previous_tutor_id": m.PreviousTutorID.String(),
	}))

	payload := map[string]string{
		"requestId": r.ID.String(),
		"reason":    "not confirmed in time",
	}
	c.notifyParent(ctx, r, NotificationMatchExpired, payload)

	tutor, err := c.profiles.GetTutor(ctx, m.PreviousTutorID)
	if err != nil {
		c.logger.Warn("cannot resolve tutor of expired match",
			zap.String("request_id", r.ID.String()),
			zap.Error(err),
		)
		return
	}
	c.dispatch(ctx, r.ID, NotificationMatchExpired, func(ctx context.Context) error {
		return c.dispatcher.NotifySingle(ctx, tutor.UserID, NotificationMatchExpired, payload)
	})
}

func (c *OfferCoordinator) notifyParent(ctx context.Context, r *MatchRequest, kind NotificationKind, payload map[string]string) {
	parent, err := c.profiles.GetParent(ctx, r.ParentID)
	if err != nil {
		c.logger.Warn("cannot resolve parent for notification",
			zap.String("request_id", r.ID.String()),
			zap.Error(err),
		)
		recordNotifyFailure(string(kind))
		return
	}
	c.dispatch(ctx, r.ID, kind, func(ctx context.Context) error {
		return c.dispatcher.NotifySingle(ctx, parent.UserID, kind, payload)
	})
}

// dispatch hands work to the dispatcher and swallows any failure.
// The state transition that triggered it has already committed.
func (c *OfferCoordinator) dispatch(ctx context.Context, requestID uuid.UUID, kind NotificationKind, send func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	err := safeCall(func() error { return send(ctx) })
	if err == nil {
		return
	}

	c.logger.Warn("notification dispatch failed",
		zap.String("request_id", requestID.String()),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	recordNotifyFailure(string(kind))
	c.publish(ctx, NewEvent(EventOfferNotifyFailed, requestID, c.now(), map[string]string{
		"kind":  string(kind),
		"error": err.Error(),
	}))
}

func (c *OfferCoordinator) publish(ctx context.Context, e Event) {
	if err := c.events.Publish(context.WithoutCancel(ctx), e); err != nil {
		c.logger.Warn("failed to publish event",
			zap.String("type", string(e.Type)),
			zap.String("request_id", e.RequestID.String()),
			zap.Error(err),
		)
	}
}

// curriculum resolves display names; a lookup failure only blanks them
func (c *OfferCoordinator) curriculum(ctx context.Context, r *MatchRequest) *Curriculum {
	cur, err := c.profiles.GetCurriculum(ctx, r.SubjectID, r.GradeID)
	if err != nil {
		c.logger.Warn("curriculum lookup failed",
			zap.String("request_id", r.ID.String()),
			zap.Error(err),
		)
		return nil
	}
	return cur
}

var _ Service = (*OfferCoordinator)(nil)

// String is used in logs
func (c CoordinatorConfig) String() string {
	return fmt.Sprintf("ttl=%s matched_ttl=%s k=%d n2=%d", c.OfferTTL, c.MatchedTTL, c.MaxNotify, c.PriorityNotify)
}
