// internal/matching/repository.go
// Storage contract and PostgreSQL implementation for match requests and sessions.
// State changes are conditional updates so concurrent callers cannot both win.

package matching

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SessionBuilder produces the session for a request that is being confirmed
type SessionBuilder func(r *MatchRequest) (*Session, error)

// ExpiredMatch is a MATCHED request that timed out, with the tutor it was held for
type ExpiredMatch struct {
	Request         *MatchRequest
	PreviousTutorID uuid.UUID
}

// Repository persists match requests and sessions
type Repository interface {
	CreateRequest(ctx context.Context, r *MatchRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*MatchRequest, error)
	ListOpenRequests(ctx context.Context, offerings []Offering, now time.Time) ([]*MatchRequest, error)

	// AcceptRequest moves a PENDING, unexpired request to MATCHED in one atomic step.
	AcceptRequest(ctx context.Context, id, tutorID uuid.UUID, now time.Time) (*MatchRequest, error)
	// ConfirmRequest moves a MATCHED request owned by parentID to CONFIRMED and
	// stores the session from build in the same atomic unit.
	ConfirmRequest(ctx context.Context, id, parentID uuid.UUID, now time.Time, build SessionBuilder) (*MatchRequest, *Session, error)
	CancelRequest(ctx context.Context, id, parentID uuid.UUID, now time.Time) (*MatchRequest, error)

	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	GetSessionByRequest(ctx context.Context, requestID uuid.UUID) (*Session, error)

	// ExpirePending rewrites PENDING requests past their expiry to EXPIRED
	ExpirePending(ctx context.Context, now time.Time) ([]*MatchRequest, error)
	// ExpireMatched rewrites requests MATCHED at or before matchedBefore to EXPIRED
	ExpireMatched(ctx context.Context, matchedBefore, now time.Time) ([]ExpiredMatch, error)
}

// acceptGuard checks the request may move to MATCHED at now
func acceptGuard(r *MatchRequest, now time.Time) error {
	status := r.EffectiveStatus(now)
	if status.CanTransition(StatusMatched) {
		return nil
	}
	if status == StatusExpired {
		return ErrOfferExpired
	}
	return ErrOfferTaken
}

// confirmGuard checks ownership first, then that the request may move to CONFIRMED
func confirmGuard(r *MatchRequest, parentID uuid.UUID, now time.Time) error {
	if r.ParentID != parentID {
		return ErrNotOwner
	}
	status := r.EffectiveStatus(now)
	if status.CanTransition(StatusConfirmed) {
		return nil
	}
	switch status {
	case StatusPending:
		return ErrNotMatched
	case StatusExpired:
		return ErrOfferExpired
	case StatusConfirmed:
		return ErrAlreadyConfirmed
	default:
		return ErrOfferTaken
	}
}

func cancelGuard(r *MatchRequest, parentID uuid.UUID, now time.Time) error {
	if r.ParentID != parentID {
		return ErrNotOwner
	}
	status := r.EffectiveStatus(now)
	if status.CanTransition(StatusCancelled) {
		return nil
	}
	if status == StatusExpired {
		return ErrOfferExpired
	}
	return ErrNotCancellable
}

// statusChange is a guarded UPDATE from one stored status to another.
// Every change the Postgres repository issues is declared here.
type statusChange struct {
	from, to Status
}

var (
	acceptChange          = mustChange(StatusPending, StatusMatched)
	confirmChange         = mustChange(StatusMatched, StatusConfirmed)
	cancelChange          = mustChange(StatusPending, StatusCancelled)
	expirePendingChange   = mustChange(StatusPending, StatusExpired)
	expireMatchedChange   = mustChange(StatusMatched, StatusExpired)
	postgresStatusChanges = []statusChange{acceptChange, confirmChange, cancelChange, expirePendingChange, expireMatchedChange}
)

func mustChange(from, to Status) statusChange {
	if !from.CanTransition(to) {
		panic("matching: illegal status change " + string(from) + " to " + string(to))
	}
	return statusChange{from: from, to: to}
}

// TimeSlots is the JSONB form of preferred times
type TimeSlots []TimeSlot

func (t TimeSlots) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

func (t *TimeSlots) Scan(value interface{}) error {
	if value == nil {
		*t = TimeSlots{}
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TimeSlots", value)
	}
	return json.Unmarshal(b, t)
}

type matchRequestRow struct {
	ID             uuid.UUID     `db:"id"`
	ParentID       uuid.UUID     `db:"parent_id"`
	StudentID      uuid.UUID     `db:"student_id"`
	SubjectID      uuid.UUID     `db:"subject_id"`
	GradeID        uuid.UUID     `db:"grade_id"`
	PreferredCity  string        `db:"preferred_city"`
	PreferredTimes TimeSlots     `db:"preferred_times"`
	Notes          string        `db:"additional_notes"`
	Status         Status        `db:"status"`
	MatchedTutorID uuid.NullUUID `db:"matched_tutor_id"`
	MatchedAt      sql.NullTime  `db:"matched_at"`
	ConfirmedAt    sql.NullTime  `db:"confirmed_at"`
	CreatedAt      time.Time     `db:"created_at"`
	ExpiresAt      time.Time     `db:"expires_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

func (row *matchRequestRow) toModel() *MatchRequest {
	r := &MatchRequest{
		ID:             row.ID,
		ParentID:       row.ParentID,
		StudentID:      row.StudentID,
		SubjectID:      row.SubjectID,
		GradeID:        row.GradeID,
		PreferredCity:  row.PreferredCity,
		PreferredTimes: []TimeSlot(row.PreferredTimes),
		Notes:          row.Notes,
		Status:         row.Status,
		CreatedAt:      row.CreatedAt,
		ExpiresAt:      row.ExpiresAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if r.PreferredTimes == nil {
		r.PreferredTimes = []TimeSlot{}
	}
	if row.MatchedTutorID.Valid {
		r.Assignment = &Assignment{
			TutorID:   row.MatchedTutorID.UUID,
			MatchedAt: row.MatchedAt.Time,
		}
		if row.ConfirmedAt.Valid {
			t := row.ConfirmedAt.Time
			r.Assignment.ConfirmedAt = &t
		}
	}
	return r
}

const matchRequestColumns = `id, parent_id, student_id, subject_id, grade_id, preferred_city,
	preferred_times, additional_notes, status, matched_tutor_id, matched_at, confirmed_at,
	created_at, expires_at, updated_at`

const sessionColumns = `id, match_request_id, tutor_id, parent_id, student_id, subject_id, grade_id,
	session_date, start_time, end_time, duration, location, status,
	total_amount, tutor_amount, platform_amount, created_at`

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a repository backed by PostgreSQL
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateRequest(ctx context.Context, req *MatchRequest) error {
	query := `
		INSERT INTO match_requests (
			id, parent_id, student_id, subject_id, grade_id, preferred_city,
			preferred_times, additional_notes, status, created_at, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.ParentID, req.StudentID, req.SubjectID, req.GradeID, req.PreferredCity,
		TimeSlots(req.PreferredTimes), req.Notes, req.Status, req.CreatedAt, req.ExpiresAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match request: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetRequest(ctx context.Context, id uuid.UUID) (*MatchRequest, error) {
	var row matchRequestRow
	query := `SELECT ` + matchRequestColumns + ` FROM match_requests WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get match request: %w", err)
	}
	return row.toModel(), nil
}

func (r *postgresRepository) ListOpenRequests(ctx context.Context, offerings []Offering, now time.Time) ([]*MatchRequest, error) {
	if len(offerings) == 0 {
		return []*MatchRequest{}, nil
	}

	subjects := make([]string, len(offerings))
	grades := make([]string, len(offerings))
	for i, o := range offerings {
		subjects[i] = o.SubjectID.String()
		grades[i] = o.GradeID.String()
	}

	query := `
		SELECT ` + matchRequestColumns + `
		FROM match_requests
		WHERE status = $4
		  AND expires_at > $1
		  AND (subject_id, grade_id) IN (
			SELECT s, g FROM unnest($2::uuid[], $3::uuid[]) AS o(s, g)
		  )
		ORDER BY created_at DESC`

	var rows []matchRequestRow
	if err := r.db.SelectContext(ctx, &rows, query, now, pq.Array(subjects), pq.Array(grades), StatusPending); err != nil {
		return nil, fmt.Errorf("list open match requests: %w", err)
	}
	return toModels(rows), nil
}

func (r *postgresRepository) AcceptRequest(ctx context.Context, id, tutorID uuid.UUID, now time.Time) (*MatchRequest, error) {
	query := `
		UPDATE match_requests
		SET status = $4, matched_tutor_id = $2, matched_at = $3, updated_at = $3
		WHERE id = $1 AND status = $5 AND expires_at > $3
		RETURNING ` + matchRequestColumns

	var row matchRequestRow
	err := r.db.QueryRowxContext(ctx, query, id, tutorID, now, acceptChange.to, acceptChange.from).StructScan(&row)
	if err == nil {
		return row.toModel(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("accept match request: %w", err)
	}

	// The guard failed; read the row only to report why
	current, err := r.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := acceptGuard(current, now); err != nil {
		return nil, err
	}
	return nil, ErrOfferTaken
}

func (r *postgresRepository) ConfirmRequest(ctx context.Context, id, parentID uuid.UUID, now time.Time, build SessionBuilder) (*MatchRequest, *Session, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var row matchRequestRow
	query := `SELECT ` + matchRequestColumns + ` FROM match_requests WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrRequestNotFound
		}
		return nil, nil, fmt.Errorf("lock match request: %w", err)
	}

	current := row.toModel()
	if err := confirmGuard(current, parentID, now); err != nil {
		return nil, nil, err
	}

	session, err := build(current)
	if err != nil {
		return nil, nil, err
	}

	update := `
		UPDATE match_requests
		SET status = $3, confirmed_at = $2, updated_at = $2
		WHERE id = $1 AND status = $4
		RETURNING ` + matchRequestColumns
	if err := tx.QueryRowxContext(ctx, update, id, now, confirmChange.to, confirmChange.from).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrAlreadyConfirmed
		}
		return nil, nil, fmt.Errorf("confirm match request: %w", err)
	}

	insert := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (:id, :match_request_id, :tutor_id, :parent_id, :student_id, :subject_id, :grade_id,
			:session_date, :start_time, :end_time, :duration, :location, :status,
			:total_amount, :tutor_amount, :platform_amount, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, session); err != nil {
		if isUniqueViolation(err) {
			return nil, nil, ErrAlreadyConfirmed
		}
		return nil, nil, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit confirm: %w", err)
	}
	return row.toModel(), session, nil
}

func (r *postgresRepository) CancelRequest(ctx context.Context, id, parentID uuid.UUID, now time.Time) (*MatchRequest, error) {
	query := `
		UPDATE match_requests
		SET status = $4, updated_at = $3
		WHERE id = $1 AND parent_id = $2 AND status = $5 AND expires_at > $3
		RETURNING ` + matchRequestColumns

	var row matchRequestRow
	err := r.db.QueryRowxContext(ctx, query, id, parentID, now, cancelChange.to, cancelChange.from).StructScan(&row)
	if err == nil {
		return row.toModel(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cancel match request: %w", err)
	}

	current, err := r.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cancelGuard(current, parentID, now); err != nil {
		return nil, err
	}
	return nil, ErrNotCancellable
}

func (r *postgresRepository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var s Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

func (r *postgresRepository) GetSessionByRequest(ctx context.Context, requestID uuid.UUID) (*Session, error) {
	var s Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE match_request_id = $1`
	if err := r.db.GetContext(ctx, &s, query, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session by request: %w", err)
	}
	return &s, nil
}

func (r *postgresRepository) ExpirePending(ctx context.Context, now time.Time) ([]*MatchRequest, error) {
	query := `
		UPDATE match_requests
		SET status = $2, updated_at = $1
		WHERE status = $3 AND expires_at <= $1
		RETURNING ` + matchRequestColumns

	var rows []matchRequestRow
	if err := r.db.SelectContext(ctx, &rows, query, now, expirePendingChange.to, expirePendingChange.from); err != nil {
		return nil, fmt.Errorf("expire pending requests: %w", err)
	}
	return toModels(rows), nil
}

func (r *postgresRepository) ExpireMatched(ctx context.Context, matchedBefore, now time.Time) ([]ExpiredMatch, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var stale []matchRequestRow
	query := `
		SELECT ` + matchRequestColumns + `
		FROM match_requests
		WHERE status = $2 AND matched_at <= $1
		FOR UPDATE SKIP LOCKED`
	if err := tx.SelectContext(ctx, &stale, query, matchedBefore, expireMatchedChange.from); err != nil {
		return nil, fmt.Errorf("select stale matches: %w", err)
	}
	if len(stale) == 0 {
		return []ExpiredMatch{}, nil
	}

	ids := make([]string, len(stale))
	previous := make(map[uuid.UUID]uuid.UUID, len(stale))
	for i, row := range stale {
		ids[i] = row.ID.String()
		previous[row.ID] = row.MatchedTutorID.UUID
	}

	update := `
		UPDATE match_requests
		SET status = $3, matched_tutor_id = NULL, matched_at = NULL, updated_at = $2
		WHERE id = ANY($1::uuid[]) AND status = $4
		RETURNING ` + matchRequestColumns
	var rows []matchRequestRow
	if err := tx.SelectContext(ctx, &rows, update, pq.Array(ids), now, expireMatchedChange.to, expireMatchedChange.from); err != nil {
		return nil, fmt.Errorf("expire matched requests: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit expire matched: %w", err)
	}

	out := make([]ExpiredMatch, 0, len(rows))
	for i := range rows {
		out = append(out, ExpiredMatch{
			Request:         rows[i].toModel(),
			PreviousTutorID: previous[rows[i].ID],
		})
	}
	return out, nil
}

func toModels(rows []matchRequestRow) []*MatchRequest {
	out := make([]*MatchRequest, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
