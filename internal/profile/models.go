// internal/profile/models.go
// Row shapes for tutor and parent profile reads

package profile

import (
	"errors"

	"github.com/google/uuid"

	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
)

var (
	errNilTutor = errors.New("tutor is nil")
)

// tutorRow is the flat part of a tutor profile
type tutorRow struct {
	ID                 uuid.UUID `db:"id"`
	UserID             uuid.UUID `db:"user_id"`
	FullName           string    `db:"full_name"`
	City               string    `db:"city"`
	Province           string    `db:"province"`
	PerformanceScore   float64   `db:"performance_score"`
	AverageRating      float64   `db:"average_rating"`
	TotalClasses       int       `db:"total_classes"`
	CompletedClasses   int       `db:"completed_classes"`
	VerificationStatus string    `db:"verification_status"`
	UserStatus         string    `db:"user_status"`
	IsAvailable        bool      `db:"is_available"`
}

func (row *tutorRow) toCandidate() *matching.Candidate {
	return &matching.Candidate{
		ID:                 row.ID,
		UserID:             row.UserID,
		FullName:           row.FullName,
		City:               row.City,
		Province:           row.Province,
		PerformanceScore:   row.PerformanceScore,
		AverageRating:      row.AverageRating,
		TotalClasses:       row.TotalClasses,
		CompletedClasses:   row.CompletedClasses,
		VerificationStatus: matching.VerificationStatus(row.VerificationStatus),
		AccountActive:      row.UserStatus == UserStatusActive,
		IsAvailable:        row.IsAvailable,
		Availability:       []matching.AvailabilitySlot{},
		Offerings:          []matching.Offering{},
		Badges:             []string{},
	}
}

// UserStatusActive marks an account allowed to take part in matching
const UserStatusActive = "ACTIVE"

type offeringRow struct {
	TutorID   uuid.UUID `db:"tutor_id"`
	SubjectID uuid.UUID `db:"subject_id"`
	GradeID   uuid.UUID `db:"grade_id"`
}

type availabilityRow struct {
	TutorID   uuid.UUID `db:"tutor_id"`
	DayOfWeek int       `db:"day_of_week"`
	StartTime string    `db:"start_time"`
	EndTime   string    `db:"end_time"`
	IsActive  bool      `db:"is_active"`
}

type badgeRow struct {
	TutorID   uuid.UUID `db:"tutor_id"`
	BadgeType string    `db:"badge_type"`
}

type curriculumRow struct {
	SubjectID   uuid.UUID `db:"subject_id"`
	SubjectName string    `db:"subject_name"`
	GradeID     uuid.UUID `db:"grade_id"`
	GradeName   string    `db:"grade_name"`
}
