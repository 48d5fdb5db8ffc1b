// internal/matching/selector.go
// Candidate selection against the profile store

package matching

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileStore is read access to tutor and parent profiles
type ProfileStore interface {
	// ListTutorsTeaching returns tutors with an offering for the subject+grade.
	// Implementations may pre-filter on eligibility; the selector re-checks.
	ListTutorsTeaching(ctx context.Context, subjectID, gradeID uuid.UUID) ([]*Candidate, error)
	GetTutor(ctx context.Context, tutorID uuid.UUID) (*Candidate, error)
	GetParent(ctx context.Context, parentID uuid.UUID) (*Parent, error)
	GetCurriculum(ctx context.Context, subjectID, gradeID uuid.UUID) (*Curriculum, error)
}

// Eligible reports whether a tutor may receive offers for the subject+grade.
// Location plays no part here; it only affects the score.
func Eligible(c *Candidate, subjectID, gradeID uuid.UUID) bool {
	return c.VerificationStatus == VerificationApproved &&
		c.AccountActive &&
		c.IsAvailable &&
		c.Teaches(subjectID, gradeID)
}

// CandidateSelector finds the tutors a request can be offered to
type CandidateSelector struct {
	profiles ProfileStore
	logger   *zap.Logger
}

func NewCandidateSelector(profiles ProfileStore, logger *zap.Logger) *CandidateSelector {
	return &CandidateSelector{profiles: profiles, logger: logger}
}

// Select returns the eligible tutors for a request. An empty result is not an error.
func (s *CandidateSelector) Select(ctx context.Context, r *MatchRequest) ([]*Candidate, error) {
	tutors, err := s.profiles.ListTutorsTeaching(ctx, r.SubjectID, r.GradeID)
	if err != nil {
		return nil, fmt.Errorf("list tutors: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(tutors))
	eligible := make([]*Candidate, 0, len(tutors))
	for _, t := range tutors {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		if Eligible(t, r.SubjectID, r.GradeID) {
			eligible = append(eligible, t)
		}
	}

	s.logger.Debug("candidates selected",
		zap.String("request_id", r.ID.String()),
		zap.Int("fetched", len(tutors)),
		zap.Int("eligible", len(eligible)),
	)
	return eligible, nil
}
