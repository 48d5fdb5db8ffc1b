// internal/matching/dto.go
// Request payloads and read models for the matching API

package matching

import (
	"time"

	"github.com/google/uuid"
)

// CreateMatchRequestDTO is the parent's request payload
type CreateMatchRequestDTO struct {
	StudentID       string     `json:"studentId" validate:"required,uuid"`
	SubjectID       string     `json:"subjectId" validate:"required,uuid"`
	GradeID         string     `json:"gradeId" validate:"required,uuid"`
	PreferredCity   string     `json:"preferredCity" validate:"required,min=2,max=100"`
	PreferredTimes  []TimeSlot `json:"preferredTimes" validate:"omitempty,max=21,dive"`
	AdditionalNotes string     `json:"additionalNotes" validate:"omitempty,max=1000"`
}

// ConfirmMatchDTO schedules the session for a matched request
type ConfirmMatchDTO struct {
	SessionDate string `json:"sessionDate" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime     string `json:"endTime" validate:"required,datetime=15:04"`
	Duration    int    `json:"duration" validate:"omitempty,min=15,max=600"`
	Location    string `json:"location" validate:"omitempty,max=255"`
}

// Viewer identifies who is reading a request or session.
// At most one of the ids is set, depending on the caller's role.
type Viewer struct {
	ParentID uuid.UUID
	TutorID  uuid.UUID
}

// MatchRequestView is the read model exposed to the API layer
type MatchRequestView struct {
	ID                 uuid.UUID  `json:"id"`
	Status             Status     `json:"status"`
	SubjectID          uuid.UUID  `json:"subjectId"`
	SubjectName        string     `json:"subjectName"`
	GradeID            uuid.UUID  `json:"gradeId"`
	GradeName          string     `json:"gradeName"`
	PreferredCity      string     `json:"preferredCity"`
	PreferredTimes     []TimeSlot `json:"preferredTimes"`
	AdditionalNotes    string     `json:"additionalNotes,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	MatchedTutorID     *uuid.UUID `json:"matchedTutorId,omitempty"`
	MatchedAt          *time.Time `json:"matchedAt,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
	CandidatesNotified *int       `json:"candidatesNotified,omitempty"`
}

// NewMatchRequestView builds the read model, deriving EXPIRED from the clock
func NewMatchRequestView(r *MatchRequest, c *Curriculum, now time.Time) *MatchRequestView {
	v := &MatchRequestView{
		ID:              r.ID,
		Status:          r.EffectiveStatus(now),
		SubjectID:       r.SubjectID,
		GradeID:         r.GradeID,
		PreferredCity:   r.PreferredCity,
		PreferredTimes:  r.PreferredTimes,
		AdditionalNotes: r.Notes,
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
	if c != nil {
		v.SubjectName = c.SubjectName
		v.GradeName = c.GradeName
	}
	if a := r.Assignment; a != nil {
		tutorID := a.TutorID
		matchedAt := a.MatchedAt
		v.MatchedTutorID = &tutorID
		v.MatchedAt = &matchedAt
		v.ConfirmedAt = a.ConfirmedAt
	}
	return v
}
