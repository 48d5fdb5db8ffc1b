// internal/profile/memory.go
// In-memory profile store for local runs and tests

package profile

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
)

// MemoryStore holds profiles in process. Reads return copies.
type MemoryStore struct {
	mu       sync.RWMutex
	tutors   map[uuid.UUID]*matching.Candidate
	parents  map[uuid.UUID]*matching.Parent
	subjects map[uuid.UUID]string
	grades   map[uuid.UUID]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tutors:   make(map[uuid.UUID]*matching.Candidate),
		parents:  make(map[uuid.UUID]*matching.Parent),
		subjects: make(map[uuid.UUID]string),
		grades:   make(map[uuid.UUID]string),
	}
}

// PutTutor inserts or replaces a tutor
func (s *MemoryStore) PutTutor(t *matching.Candidate) error {
	if t == nil {
		return errNilTutor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tutors[t.ID] = copyCandidate(t)
	return nil
}

// PutParent inserts or replaces a parent
func (s *MemoryStore) PutParent(p *matching.Parent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.StudentIDs = append([]uuid.UUID(nil), p.StudentIDs...)
	s.parents[p.ID] = &cp
}

func (s *MemoryStore) PutSubject(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[id] = name
}

func (s *MemoryStore) PutGrade(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grades[id] = name
}

func (s *MemoryStore) ListTutorsTeaching(ctx context.Context, subjectID, gradeID uuid.UUID) ([]*matching.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tutors := make([]*matching.Candidate, 0)
	for _, t := range s.tutors {
		if t.Teaches(subjectID, gradeID) {
			tutors = append(tutors, copyCandidate(t))
		}
	}
	return tutors, nil
}

func (s *MemoryStore) GetTutor(ctx context.Context, tutorID uuid.UUID) (*matching.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tutors[tutorID]
	if !ok {
		return nil, matching.ErrTutorNotFound
	}
	return copyCandidate(t), nil
}

func (s *MemoryStore) GetParent(ctx context.Context, parentID uuid.UUID) (*matching.Parent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parents[parentID]
	if !ok {
		return nil, matching.ErrParentNotFound
	}
	cp := *p
	cp.StudentIDs = append([]uuid.UUID(nil), p.StudentIDs...)
	return &cp, nil
}

func (s *MemoryStore) GetCurriculum(ctx context.Context, subjectID, gradeID uuid.UUID) (*matching.Curriculum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subject, ok := s.subjects[subjectID]
	if !ok {
		return nil, matching.ErrCurriculumNotFound
	}
	grade, ok := s.grades[gradeID]
	if !ok {
		return nil, matching.ErrCurriculumNotFound
	}
	return &matching.Curriculum{
		SubjectID:   subjectID,
		SubjectName: subject,
		GradeID:     gradeID,
		GradeName:   grade,
	}, nil
}

func copyCandidate(t *matching.Candidate) *matching.Candidate {
	cp := *t
	cp.Availability = append([]matching.AvailabilitySlot{}, t.Availability...)
	cp.Offerings = append([]matching.Offering{}, t.Offerings...)
	cp.Badges = append([]string{}, t.Badges...)
	return &cp
}
