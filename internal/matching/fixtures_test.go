package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeProfiles struct {
	mu        sync.Mutex
	list      []*Candidate
	listErr   error
	tutors    map[uuid.UUID]*Candidate
	parents   map[uuid.UUID]*Parent
	curricula map[Offering]*Curriculum
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		tutors:    make(map[uuid.UUID]*Candidate),
		parents:   make(map[uuid.UUID]*Parent),
		curricula: make(map[Offering]*Curriculum),
	}
}

func (f *fakeProfiles) addTutor(c *Candidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tutors[c.ID] = c
	f.list = append(f.list, c)
}

func (f *fakeProfiles) ListTutorsTeaching(ctx context.Context, subjectID, gradeID uuid.UUID) ([]*Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*Candidate(nil), f.list...), nil
}

func (f *fakeProfiles) GetTutor(ctx context.Context, tutorID uuid.UUID) (*Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tutors[tutorID]
	if !ok {
		return nil, ErrTutorNotFound
	}
	return t, nil
}

func (f *fakeProfiles) GetParent(ctx context.Context, parentID uuid.UUID) (*Parent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.parents[parentID]
	if !ok {
		return nil, ErrParentNotFound
	}
	return p, nil
}

func (f *fakeProfiles) GetCurriculum(ctx context.Context, subjectID, gradeID uuid.UUID) (*Curriculum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.curricula[Offering{SubjectID: subjectID, GradeID: gradeID}]
	if !ok {
		return nil, ErrCurriculumNotFound
	}
	return c, nil
}

type singleCall struct {
	UserID  uuid.UUID
	Kind    NotificationKind
	Payload map[string]string
}

type recordingDispatcher struct {
	mu      sync.Mutex
	offers  [][]OfferRecipient
	singles []singleCall
	err     error
	panics  bool
}

func (d *recordingDispatcher) NotifyOffer(ctx context.Context, recipients []OfferRecipient, summary OfferSummary) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panics {
		panic("dispatcher exploded")
	}
	d.offers = append(d.offers, recipients)
	return d.err
}

func (d *recordingDispatcher) NotifySingle(ctx context.Context, userID uuid.UUID, kind NotificationKind, payload map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panics {
		panic("dispatcher exploded")
	}
	d.singles = append(d.singles, singleCall{UserID: userID, Kind: kind, Payload: payload})
	return d.err
}

func (d *recordingDispatcher) singlesFor(userID uuid.UUID) []NotificationKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	var kinds []NotificationKind
	for _, s := range d.singles {
		if s.UserID == userID {
			kinds = append(kinds, s.Kind)
		}
	}
	return kinds
}

type recordingEvents struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingEvents) Publish(ctx context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingEvents) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errDispatch = errors.New("queue full")

// fixture is a coordinator over the in-memory repository with a Colombo parent,
// tutors A and B, and a controllable clock
type fixture struct {
	coordinator *OfferCoordinator
	repo        Repository
	profiles    *fakeProfiles
	dispatcher  *recordingDispatcher
	events      *recordingEvents

	parent  *Parent
	student uuid.UUID
	a, b    *Candidate

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:       NewMemoryRepository(),
		profiles:   newFakeProfiles(),
		dispatcher: &recordingDispatcher{},
		events:     &recordingEvents{},
		student:    uuid.New(),
		a:          tutorA(),
		b:          tutorB(),
		now:        time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.parent = &Parent{ID: uuid.New(), UserID: uuid.New(), StudentIDs: []uuid.UUID{f.student}}
	f.profiles.parents[f.parent.ID] = f.parent
	f.profiles.curricula[Offering{SubjectID: mathsID, GradeID: grade9}] = &Curriculum{
		SubjectID: mathsID, SubjectName: "Mathematics",
		GradeID: grade9, GradeName: "Grade 9",
	}
	f.profiles.addTutor(f.a)
	f.profiles.addTutor(f.b)

	logger := zap.NewNop()
	sessions := NewSessionFactory(FeePolicy{TotalAmount: 4000, TutorAmount: 2000}, 120, f.profiles, f.dispatcher, f.events, logger)
	f.coordinator = NewOfferCoordinator(f.repo, f.profiles, f.dispatcher, f.events, sessions, CoordinatorConfig{
		OfferTTL:       24 * time.Hour,
		MatchedTTL:     72 * time.Hour,
		MaxNotify:      10,
		PriorityNotify: 1,
	}, logger)
	f.coordinator.SetClock(f.clock)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) requestDTO() CreateMatchRequestDTO {
	return CreateMatchRequestDTO{
		StudentID:     f.student.String(),
		SubjectID:     mathsID.String(),
		GradeID:       grade9.String(),
		PreferredCity: "Colombo",
	}
}

func (f *fixture) create(t *testing.T) *MatchRequestView {
	t.Helper()
	view, err := f.coordinator.CreateOffer(context.Background(), f.parent.ID, f.requestDTO())
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return view
}

func confirmDTO() ConfirmMatchDTO {
	return ConfirmMatchDTO{SessionDate: "2025-03-10", StartTime: "16:00", EndTime: "18:00"}
}
