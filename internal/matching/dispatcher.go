// internal/matching/dispatcher.go
// Outbound notification contract. Delivery, retries and transports live
// behind this interface; the coordinator never waits on them.

package matching

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery channel for a notification
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// NotificationKind identifies the message template
type NotificationKind string

const (
	NotificationOffer            NotificationKind = "MATCH_OFFER"
	NotificationMatchFound       NotificationKind = "MATCH_FOUND"
	NotificationSessionConfirmed NotificationKind = "SESSION_CONFIRMED"
	NotificationMatchExpired     NotificationKind = "MATCH_EXPIRED"
)

// OfferRecipient is one ranked tutor receiving an offer
type OfferRecipient struct {
	TutorID  uuid.UUID
	UserID   uuid.UUID
	Rank     int
	Score    float64
	Channels []Channel
}

// HasChannel reports whether the recipient should be reached on ch
func (r OfferRecipient) HasChannel(ch Channel) bool {
	for _, c := range r.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// OfferSummary is what tutors see about a request
type OfferSummary struct {
	RequestID     uuid.UUID
	SubjectName   string
	GradeName     string
	PreferredCity string
	ExpiresAt     time.Time
}

// NotificationDispatcher delivers notifications on behalf of the engine.
// Implementations must tolerate repeated calls for the same logical event.
type NotificationDispatcher interface {
	NotifyOffer(ctx context.Context, recipients []OfferRecipient, summary OfferSummary) error
	NotifySingle(ctx context.Context, userID uuid.UUID, kind NotificationKind, payload map[string]string) error
}

// offerRecipients assigns channels by rank: everyone in the top-K gets in-app
// and push, the first n also get email and SMS.
func offerRecipients(top []ScoredCandidate, n int) []OfferRecipient {
	recipients := make([]OfferRecipient, 0, len(top))
	for i, sc := range top {
		channels := []Channel{ChannelInApp, ChannelPush}
		if i < n {
			channels = append(channels, ChannelEmail, ChannelSMS)
		}
		recipients = append(recipients, OfferRecipient{
			TutorID:  sc.Candidate.ID,
			UserID:   sc.Candidate.UserID,
			Rank:     sc.Rank,
			Score:    sc.Score,
			Channels: channels,
		})
	}
	return recipients
}
