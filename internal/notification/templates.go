// internal/notification/templates.go

package notifications

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
)

const brandName = "Business Master"

// websocket event names per notification kind
var wsEvents = map[matching.NotificationKind]string{
	matching.NotificationOffer:            "match:new",
	matching.NotificationMatchFound:       "match:found",
	matching.NotificationSessionConfirmed: "match:confirmed",
	matching.NotificationMatchExpired:     "match:expired",
}

// Render builds the channel texts for a notification kind
func Render(kind matching.NotificationKind, data map[string]string) (*Message, error) {
	msg := &Message{Kind: kind, Priority: PriorityHigh, Data: data}

	var lines []string
	switch kind {
	case matching.NotificationOffer:
		subject := getStringValue(data, "subject", "a subject")
		grade := getStringValue(data, "grade", "")
		city := getStringValue(data, "city", "your area")
		msg.Title = "New Student Request"
		msg.Body = fmt.Sprintf("New student looking for %s tutor in %s", subject, city)
		msg.SMS = fmt.Sprintf("New student request! Grade %s, Subject: %s. Check your dashboard to accept.", grade, subject)
		lines = []string{
			"A new student is looking for a tutor matching your profile.",
			"Subject: " + subject,
			"Grade: " + grade,
			"Location: " + city,
			"Login to your dashboard to accept this request.",
		}

	case matching.NotificationMatchFound:
		tutor := getStringValue(data, "tutorName", "A tutor")
		msg.Title = "Tutor Matched!"
		msg.Body = fmt.Sprintf("%s has accepted your request. Please confirm to schedule.", tutor)
		msg.SMS = msg.Body
		lines = []string{msg.Body}

	case matching.NotificationSessionConfirmed:
		date := getStringValue(data, "sessionDate", "")
		msg.Title = "Session Confirmed"
		msg.Body = fmt.Sprintf("Your session has been scheduled for %s", date)
		msg.SMS = msg.Body
		lines = []string{msg.Body}
		if start, end := data["startTime"], data["endTime"]; start != "" && end != "" {
			lines = append(lines, fmt.Sprintf("Time: %s - %s", start, end))
		}

	case matching.NotificationMatchExpired:
		msg.Title = "Match Request Expired"
		msg.Body = "A tutor match was not confirmed in time and has expired."
		msg.SMS = msg.Body
		msg.Priority = PriorityMedium
		lines = []string{msg.Body}

	default:
		return nil, fmt.Errorf("unknown notification kind: %s", kind)
	}

	html, err := renderEmail(msg.Title, lines)
	if err != nil {
		return nil, err
	}
	msg.HTML = html
	return msg, nil
}

// EmailSubject is the subject line used for a rendered message
func EmailSubject(msg *Message) string {
	return msg.Title + " - " + brandName
}

const baseEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
</head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
    <h1>{{.Title}}</h1>
    {{range .Lines}}<p>{{.}}</p>
    {{end}}
    <p style="color: #666; font-size: 14px;">{{.Brand}}</p>
</body>
</html>
`

var emailTemplate = template.Must(template.New("email").Parse(baseEmailTemplate))

func renderEmail(title string, lines []string) (string, error) {
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, map[string]interface{}{
		"Title": title,
		"Lines": lines,
		"Brand": brandName,
	})
	if err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

// getStringValue safely gets a string value from map
func getStringValue(data map[string]string, key, defaultValue string) string {
	if v, ok := data[key]; ok && v != "" {
		return v
	}
	return defaultValue
}
