// internal/profile/repository.go
// PostgreSQL read model of tutors, parents and the curriculum used by matching

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
)

// postgresStore implements matching.ProfileStore using PostgreSQL
type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a profile store backed by PostgreSQL
func NewPostgresStore(db *sqlx.DB) matching.ProfileStore {
	return &postgresStore{db: db}
}

const tutorColumns = `
	t.id, t.user_id, u.full_name, t.city, t.province,
	t.performance_score, t.average_rating, t.total_classes, t.completed_classes,
	t.verification_status, u.status AS user_status, t.is_available`

// ListTutorsTeaching pre-filters on the eligibility columns; the selector re-checks
func (r *postgresStore) ListTutorsTeaching(ctx context.Context, subjectID, gradeID uuid.UUID) ([]*matching.Candidate, error) {
	query := `
		SELECT DISTINCT ` + tutorColumns + `
		FROM tutors t
		JOIN users u ON u.id = t.user_id
		JOIN tutor_subjects ts ON ts.tutor_id = t.id
		WHERE ts.subject_id = $1
		  AND ts.grade_id = $2
		  AND t.verification_status = $3
		  AND u.status = $4
		  AND t.is_available = TRUE`

	var rows []tutorRow
	err := r.db.SelectContext(ctx, &rows, query, subjectID, gradeID,
		string(matching.VerificationApproved), UserStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list tutors: %w", err)
	}

	return r.hydrate(ctx, rows)
}

// GetTutor retrieves one tutor snapshot regardless of eligibility
func (r *postgresStore) GetTutor(ctx context.Context, tutorID uuid.UUID) (*matching.Candidate, error) {
	query := `
		SELECT ` + tutorColumns + `
		FROM tutors t
		JOIN users u ON u.id = t.user_id
		WHERE t.id = $1`

	var row tutorRow
	if err := r.db.GetContext(ctx, &row, query, tutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, matching.ErrTutorNotFound
		}
		return nil, fmt.Errorf("failed to get tutor: %w", err)
	}

	tutors, err := r.hydrate(ctx, []tutorRow{row})
	if err != nil {
		return nil, err
	}
	return tutors[0], nil
}

// GetParent retrieves a parent with the IDs of their students
func (r *postgresStore) GetParent(ctx context.Context, parentID uuid.UUID) (*matching.Parent, error) {
	var parent struct {
		ID     uuid.UUID `db:"id"`
		UserID uuid.UUID `db:"user_id"`
	}
	err := r.db.GetContext(ctx, &parent, `SELECT id, user_id FROM parents WHERE id = $1`, parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, matching.ErrParentNotFound
		}
		return nil, fmt.Errorf("failed to get parent: %w", err)
	}

	var studentIDs []uuid.UUID
	err = r.db.SelectContext(ctx, &studentIDs, `SELECT id FROM students WHERE parent_id = $1`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get students: %w", err)
	}
	if studentIDs == nil {
		studentIDs = []uuid.UUID{}
	}

	return &matching.Parent{
		ID:         parent.ID,
		UserID:     parent.UserID,
		StudentIDs: studentIDs,
	}, nil
}

// GetCurriculum resolves subject and grade names
func (r *postgresStore) GetCurriculum(ctx context.Context, subjectID, gradeID uuid.UUID) (*matching.Curriculum, error) {
	query := `
		SELECT s.id AS subject_id, s.name AS subject_name, g.id AS grade_id, g.name AS grade_name
		FROM subjects s, grades g
		WHERE s.id = $1 AND g.id = $2`

	var row curriculumRow
	if err := r.db.GetContext(ctx, &row, query, subjectID, gradeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, matching.ErrCurriculumNotFound
		}
		return nil, fmt.Errorf("failed to get curriculum: %w", err)
	}

	return &matching.Curriculum{
		SubjectID:   row.SubjectID,
		SubjectName: row.SubjectName,
		GradeID:     row.GradeID,
		GradeName:   row.GradeName,
	}, nil
}

// hydrate loads offerings, availability and badges for all rows in three queries
func (r *postgresStore) hydrate(ctx context.Context, rows []tutorRow) ([]*matching.Candidate, error) {
	tutors := make([]*matching.Candidate, len(rows))
	byID := make(map[uuid.UUID]*matching.Candidate, len(rows))
	ids := make([]string, len(rows))
	for i := range rows {
		tutors[i] = rows[i].toCandidate()
		byID[rows[i].ID] = tutors[i]
		ids[i] = rows[i].ID.String()
	}
	if len(rows) == 0 {
		return tutors, nil
	}

	var offerings []offeringRow
	err := r.db.SelectContext(ctx, &offerings,
		`SELECT tutor_id, subject_id, grade_id FROM tutor_subjects WHERE tutor_id = ANY($1::uuid[])`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load offerings: %w", err)
	}
	for _, o := range offerings {
		if t := byID[o.TutorID]; t != nil {
			t.Offerings = append(t.Offerings, matching.Offering{SubjectID: o.SubjectID, GradeID: o.GradeID})
		}
	}

	var slots []availabilityRow
	err = r.db.SelectContext(ctx, &slots, `
		SELECT tutor_id, day_of_week, start_time, end_time, is_active
		FROM tutor_availability
		WHERE tutor_id = ANY($1::uuid[])
		ORDER BY day_of_week, start_time`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}
	for _, s := range slots {
		if t := byID[s.TutorID]; t != nil {
			t.Availability = append(t.Availability, matching.AvailabilitySlot{
				DayOfWeek: s.DayOfWeek,
				StartTime: s.StartTime,
				EndTime:   s.EndTime,
				IsActive:  s.IsActive,
			})
		}
	}

	var badges []badgeRow
	err = r.db.SelectContext(ctx, &badges,
		`SELECT tutor_id, badge_type FROM tutor_badges WHERE tutor_id = ANY($1::uuid[])`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load badges: %w", err)
	}
	for _, b := range badges {
		if t := byID[b.TutorID]; t != nil {
			t.Badges = append(t.Badges, b.BadgeType)
		}
	}

	return tutors, nil
}
