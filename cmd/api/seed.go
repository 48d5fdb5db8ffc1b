// cmd/api/seed.go
// Demo data for the in-memory store driver

package main

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
	notifications "github.com/imadgeboyega/tutormatch-backend/internal/notification"
	"github.com/imadgeboyega/tutormatch-backend/internal/profile"
)

// Fixed IDs so tokens minted with the token command stay valid across restarts
var (
	demoSubjectMaths = uuid.MustParse("5b0c2a4e-1f7d-4c4e-9a51-000000000101")
	demoGrade10      = uuid.MustParse("5b0c2a4e-1f7d-4c4e-9a51-000000000201")

	demoParentUser   = uuid.MustParse("5b0c2a4e-1f7d-4c4e-9a51-000000000301")
	demoParent       = uuid.MustParse("5b0c2a4e-1f7d-4c4e-9a51-000000000302")
	demoStudent      = uuid.MustParse("5b0c2a4e-1f7d-4c4e-9a51-000000000303")
	demoTutorAUser   = uuid.MustParse("5b0c2a4e-1f7d-4c4e-9a51-000000000401")
	demoTutorA       = uuid.MustParse("5b0c2a4e-1f7d-4c4e-9a51-000000000402")
	demoTutorBUser   = uuid.MustParse("5b0c2a4e-1f7d-4c4e-9a51-000000000501")
	demoTutorB       = uuid.MustParse("5b0c2a4e-1f7d-4c4e-9a51-000000000502")
	demoWeekdayHours = []matching.AvailabilitySlot{
		{DayOfWeek: 1, StartTime: "16:00", EndTime: "20:00", IsActive: true},
		{DayOfWeek: 3, StartTime: "16:00", EndTime: "20:00", IsActive: true},
	}
)

func seedDemo(profiles *profile.MemoryStore, contacts *notifications.MemoryRepository, logger *zap.Logger) {
	profiles.PutSubject(demoSubjectMaths, "Mathematics")
	profiles.PutGrade(demoGrade10, "Grade 10")

	profiles.PutParent(&matching.Parent{
		ID:         demoParent,
		UserID:     demoParentUser,
		StudentIDs: []uuid.UUID{demoStudent},
	})

	offering := []matching.Offering{{SubjectID: demoSubjectMaths, GradeID: demoGrade10}}
	tutors := []*matching.Candidate{
		{
			ID:                 demoTutorA,
			UserID:             demoTutorAUser,
			FullName:           "Nimal Perera",
			City:               "Colombo",
			Province:           "Western",
			Availability:       demoWeekdayHours,
			Offerings:          offering,
			PerformanceScore:   4.5,
			AverageRating:      4.6,
			TotalClasses:       50,
			CompletedClasses:   45,
			Badges:             []string{matching.BadgePriority},
			VerificationStatus: matching.VerificationApproved,
			AccountActive:      true,
			IsAvailable:        true,
		},
		{
			ID:                 demoTutorB,
			UserID:             demoTutorBUser,
			FullName:           "Kasun Silva",
			City:               "Kandy",
			Province:           "Central",
			Availability:       demoWeekdayHours[:1],
			Offerings:          offering,
			PerformanceScore:   3.5,
			AverageRating:      4.0,
			TotalClasses:       10,
			CompletedClasses:   8,
			VerificationStatus: matching.VerificationApproved,
			AccountActive:      true,
			IsAvailable:        true,
		},
	}
	for _, t := range tutors {
		if err := profiles.PutTutor(t); err != nil {
			logger.Warn("seed tutor failed", zap.Error(err))
		}
	}

	contacts.PutContact(&notifications.Contact{UserID: demoParentUser, FullName: "Demo Parent", Email: "parent@example.com", PhoneNumber: "+94770000001"})
	contacts.PutContact(&notifications.Contact{UserID: demoTutorAUser, FullName: "Nimal Perera", Email: "nimal@example.com", PhoneNumber: "+94770000002"})
	contacts.PutContact(&notifications.Contact{UserID: demoTutorBUser, FullName: "Kasun Silva", Email: "kasun@example.com"})

	logger.Info("seeded demo profiles",
		zap.Stringer("parent", demoParent),
		zap.Stringer("student", demoStudent),
		zap.Stringer("subject", demoSubjectMaths),
		zap.Stringer("grade", demoGrade10),
		zap.Stringers("tutors", []uuid.UUID{demoTutorA, demoTutorB}),
	)
}
