// internal/matching/memory.go
// In-memory repository for development mode and tests.
// One mutex guards every read-check-write, which gives the same
// compare-and-swap contract as the Postgres repository within one process.

package matching

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu               sync.Mutex
	requests         map[uuid.UUID]*MatchRequest
	sessions         map[uuid.UUID]*Session
	sessionByRequest map[uuid.UUID]uuid.UUID
}

// NewMemoryRepository creates an empty in-process repository
func NewMemoryRepository() Repository {
	return &memoryRepository{
		requests:         make(map[uuid.UUID]*MatchRequest),
		sessions:         make(map[uuid.UUID]*Session),
		sessionByRequest: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *memoryRepository) CreateRequest(ctx context.Context, r *MatchRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[r.ID]; exists {
		return errInvalidState("duplicate request id " + r.ID.String())
	}
	m.requests[r.ID] = r.Clone()
	return nil
}

func (m *memoryRepository) GetRequest(ctx context.Context, id uuid.UUID) (*MatchRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return r.Clone(), nil
}

func (m *memoryRepository) ListOpenRequests(ctx context.Context, offerings []Offering, now time.Time) ([]*MatchRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[Offering]bool, len(offerings))
	for _, o := range offerings {
		wanted[o] = true
	}

	out := make([]*MatchRequest, 0)
	for _, r := range m.requests {
		if r.Offerable(now) && wanted[Offering{SubjectID: r.SubjectID, GradeID: r.GradeID}] {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryRepository) AcceptRequest(ctx context.Context, id, tutorID uuid.UUID, now time.Time) (*MatchRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if err := acceptGuard(r, now); err != nil {
		return nil, err
	}

	next := r.Clone()
	next.Assignment = &Assignment{TutorID: tutorID, MatchedAt: now}
	if err := m.commit(next, StatusMatched, now); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (m *memoryRepository) ConfirmRequest(ctx context.Context, id, parentID uuid.UUID, now time.Time, build SessionBuilder) (*MatchRequest, *Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, nil, ErrRequestNotFound
	}
	if err := confirmGuard(r, parentID, now); err != nil {
		return nil, nil, err
	}
	if _, exists := m.sessionByRequest[id]; exists {
		return nil, nil, ErrAlreadyConfirmed
	}

	session, err := build(r.Clone())
	if err != nil {
		return nil, nil, err
	}

	next := r.Clone()
	confirmedAt := now
	next.Assignment.ConfirmedAt = &confirmedAt
	if err := m.commit(next, StatusConfirmed, now); err != nil {
		return nil, nil, err
	}

	stored := *session
	m.sessions[session.ID] = &stored
	m.sessionByRequest[id] = session.ID
	return next.Clone(), session, nil
}

func (m *memoryRepository) CancelRequest(ctx context.Context, id, parentID uuid.UUID, now time.Time) (*MatchRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if err := cancelGuard(r, parentID, now); err != nil {
		return nil, err
	}

	next := r.Clone()
	if err := m.commit(next, StatusCancelled, now); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (m *memoryRepository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

func (m *memoryRepository) GetSessionByRequest(ctx context.Context, requestID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.sessionByRequest[requestID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *m.sessions[id]
	return &out, nil
}

func (m *memoryRepository) ExpirePending(ctx context.Context, now time.Time) ([]*MatchRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := make([]*MatchRequest, 0)
	for _, r := range m.requests {
		if r.Status != StatusPending || now.Before(r.ExpiresAt) {
			continue
		}
		next := r.Clone()
		if err := m.commit(next, StatusExpired, now); err != nil {
			return expired, err
		}
		expired = append(expired, next.Clone())
	}
	return expired, nil
}

func (m *memoryRepository) ExpireMatched(ctx context.Context, matchedBefore, now time.Time) ([]ExpiredMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := make([]ExpiredMatch, 0)
	for _, r := range m.requests {
		if r.Status != StatusMatched || r.Assignment.MatchedAt.After(matchedBefore) {
			continue
		}
		previous := r.Assignment.TutorID
		next := r.Clone()
		next.Assignment = nil
		if err := m.commit(next, StatusExpired, now); err != nil {
			return expired, err
		}
		expired = append(expired, ExpiredMatch{Request: next.Clone(), PreviousTutorID: previous})
	}
	return expired, nil
}

// commit moves next to the target status and replaces the stored request.
// Nothing is written when the move is illegal or breaks the assignment invariant.
// The caller holds m.mu.
func (m *memoryRepository) commit(next *MatchRequest, to Status, now time.Time) error {
	if err := next.transition(to, now); err != nil {
		return err
	}
	if err := next.CheckInvariants(); err != nil {
		return err
	}
	m.requests[next.ID] = next
	return nil
}
