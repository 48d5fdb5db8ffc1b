// internal/matching/models.go
// Match request state machine, tutor snapshots and sessions

package matching

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a match request
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusMatched   Status = "MATCHED"
	StatusConfirmed Status = "CONFIRMED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is one of the known states
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusMatched, StatusConfirmed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving from s to to.
// PENDING, MATCHED, CONFIRMED is the success path; EXPIRED and CANCELLED are terminal exits.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		switch to {
		case StatusMatched, StatusExpired, StatusCancelled:
			return true
		}
	case StatusMatched:
		switch to {
		case StatusConfirmed, StatusExpired:
			return true
		}
	case StatusConfirmed, StatusExpired, StatusCancelled:
		return false
	}
	return false
}

// hasAssignment reports whether a request in this state carries a matched tutor
func (s Status) hasAssignment() bool {
	return s == StatusMatched || s == StatusConfirmed
}

// TimeSlot is a preferred weekly slot on a request (0 = Sunday)
type TimeSlot struct {
	DayOfWeek int    `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime string `json:"startTime,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"endTime,omitempty" validate:"omitempty,datetime=15:04"`
}

// Assignment is the tutor a request was matched to. Present only while
// the request is MATCHED or CONFIRMED.
type Assignment struct {
	TutorID     uuid.UUID  `json:"tutorId"`
	MatchedAt   time.Time  `json:"matchedAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

// MatchRequest is a parent's request for a tutor
type MatchRequest struct {
	ID             uuid.UUID   `json:"id"`
	ParentID       uuid.UUID   `json:"parentId"`
	StudentID      uuid.UUID   `json:"studentId"`
	SubjectID      uuid.UUID   `json:"subjectId"`
	GradeID        uuid.UUID   `json:"gradeId"`
	PreferredCity  string      `json:"preferredCity"`
	PreferredTimes []TimeSlot  `json:"preferredTimes"`
	Notes          string      `json:"additionalNotes,omitempty"`
	Status         Status      `json:"status"`
	Assignment     *Assignment `json:"assignment,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	ExpiresAt      time.Time   `json:"expiresAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// EffectiveStatus derives EXPIRED for a PENDING request whose TTL has passed.
// The stored status is left untouched.
func (r *MatchRequest) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusPending && !now.Before(r.ExpiresAt) {
		return StatusExpired
	}
	return r.Status
}

// transition moves the stored status to to and stamps the update time.
// A move the state machine does not allow leaves r untouched.
func (r *MatchRequest) transition(to Status, now time.Time) error {
	if !r.Status.CanTransition(to) {
		return errInvalidState("cannot move from " + string(r.Status) + " to " + string(to))
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}

// Offerable reports whether tutors may still accept the request
func (r *MatchRequest) Offerable(now time.Time) bool {
	return r.EffectiveStatus(now) == StatusPending
}

// MatchedTutorID returns the assigned tutor, if any
func (r *MatchRequest) MatchedTutorID() (uuid.UUID, bool) {
	if r.Assignment == nil {
		return uuid.Nil, false
	}
	return r.Assignment.TutorID, true
}

// CheckInvariants verifies the assignment is present exactly when the status requires one
func (r *MatchRequest) CheckInvariants() error {
	if !r.Status.Valid() {
		return errInvalidState("unknown status " + string(r.Status))
	}
	if r.Status.hasAssignment() != (r.Assignment != nil) {
		return errInvalidState("assignment does not match status " + string(r.Status))
	}
	if r.Status == StatusConfirmed && r.Assignment.ConfirmedAt == nil {
		return errInvalidState("confirmed request has no confirmation time")
	}
	return nil
}

// Clone returns a deep copy so stored values are never shared with callers
func (r *MatchRequest) Clone() *MatchRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.PreferredTimes = append([]TimeSlot(nil), r.PreferredTimes...)
	if r.Assignment != nil {
		a := *r.Assignment
		if r.Assignment.ConfirmedAt != nil {
			t := *r.Assignment.ConfirmedAt
			a.ConfirmedAt = &t
		}
		out.Assignment = &a
	}
	return &out
}

// VerificationStatus of a tutor profile
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// BadgePriority gives a tutor the full bonus when ranking
const BadgePriority = "PRIORITY"

// AvailabilitySlot is one weekly availability entry of a tutor
type AvailabilitySlot struct {
	DayOfWeek int    `json:"dayOfWeek" db:"day_of_week"`
	StartTime string `json:"startTime" db:"start_time"`
	EndTime   string `json:"endTime" db:"end_time"`
	IsActive  bool   `json:"isActive" db:"is_active"`
}

// Offering is a subject+grade pair a tutor teaches
type Offering struct {
	SubjectID uuid.UUID `json:"subjectId" db:"subject_id"`
	GradeID   uuid.UUID `json:"gradeId" db:"grade_id"`
}

// Candidate is a read-only tutor snapshot used for eligibility and scoring
type Candidate struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             uuid.UUID          `json:"userId"`
	FullName           string             `json:"fullName"`
	City               string             `json:"city"`
	Province           string             `json:"province"`
	Availability       []AvailabilitySlot `json:"availability"`
	Offerings          []Offering         `json:"offerings"`
	PerformanceScore   float64            `json:"performanceScore"`
	AverageRating      float64            `json:"averageRating"`
	TotalClasses       int                `json:"totalClasses"`
	CompletedClasses   int                `json:"completedClasses"`
	Badges             []string           `json:"badges"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	AccountActive      bool               `json:"accountActive"`
	IsAvailable        bool               `json:"isAvailable"`
}

// HasBadge reports whether the tutor holds the given badge
func (c *Candidate) HasBadge(badge string) bool {
	for _, b := range c.Badges {
		if b == badge {
			return true
		}
	}
	return false
}

// Teaches reports whether the tutor has an offering for exactly this subject and grade
func (c *Candidate) Teaches(subjectID, gradeID uuid.UUID) bool {
	for _, o := range c.Offerings {
		if o.SubjectID == subjectID && o.GradeID == gradeID {
			return true
		}
	}
	return false
}

// ScoredCandidate is a candidate with its match score and position
type ScoredCandidate struct {
	Candidate *Candidate `json:"candidate"`
	Score     float64    `json:"score"`
	Rank      int        `json:"rank"`
}

// Parent is the requesting side of a match
type Parent struct {
	ID         uuid.UUID   `json:"id"`
	UserID     uuid.UUID   `json:"userId"`
	StudentIDs []uuid.UUID `json:"studentIds"`
}

// OwnsStudent reports whether the student belongs to this parent
func (p *Parent) OwnsStudent(studentID uuid.UUID) bool {
	for _, id := range p.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// Curriculum holds the display names of a subject+grade pair
type Curriculum struct {
	SubjectID   uuid.UUID `json:"subjectId"`
	SubjectName string    `json:"subjectName"`
	GradeID     uuid.UUID `json:"gradeId"`
	GradeName   string    `json:"gradeName"`
}

// SessionStatus of a scheduled class
type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// Session is created exactly once per confirmed request
type Session struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	MatchRequestID uuid.UUID     `json:"matchRequestId" db:"match_request_id"`
	TutorID        uuid.UUID     `json:"tutorId" db:"tutor_id"`
	ParentID       uuid.UUID     `json:"parentId" db:"parent_id"`
	StudentID      uuid.UUID     `json:"studentId" db:"student_id"`
	SubjectID      uuid.UUID     `json:"subjectId" db:"subject_id"`
	GradeID        uuid.UUID     `json:"gradeId" db:"grade_id"`
	SessionDate    time.Time     `json:"sessionDate" db:"session_date"`
	StartTime      string        `json:"startTime" db:"start_time"`
	EndTime        string        `json:"endTime" db:"end_time"`
	Duration       int           `json:"duration" db:"duration"`
	Location       string        `json:"location,omitempty" db:"location"`
	Status         SessionStatus `json:"status" db:"status"`
	TotalAmount    int64         `json:"totalAmount" db:"total_amount"`
	TutorAmount    int64         `json:"tutorAmount" db:"tutor_amount"`
	PlatformAmount int64         `json:"platformAmount" db:"platform_amount"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
}
