// Package slack sends reminder messages to Slack and verifies inbound
// webhook payloads.
package slack

import "context"

// Message is a chat message bound for a Slack channel. When ReminderID is
// set the message carries Done and Snooze action buttons.
type Message struct {
	Channel    string
	Text       string
	ReminderID int64
}

// Sender posts messages to Slack.
type Sender interface {
	// PostMessage delivers a message to its channel.
	PostMessage(ctx context.Context, msg Message) error

	// PostToResponseURL replies to an interaction via its response_url,
	// replacing the original message.
	PostToResponseURL(ctx context.Context, responseURL, text string) error
}

// Interaction action ids carried in Block Kit buttons.
const (
	ActionReminderDone   = "reminder_done"
	ActionReminderSnooze = "reminder_snooze_10m"
)
