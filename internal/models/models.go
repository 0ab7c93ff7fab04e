package models

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the second-resolution layout used on every log line
const TimestampLayout = "2006-01-02 15:04:05"

// UnknownRecipient is recorded when an open arrives without an id parameter
const UnknownRecipient = "unknown"

// Kind identifies the simulation interaction an event records
type Kind string

const (
	KindOpen        Kind = "OPEN"
	KindCredentials Kind = "CREDENTIALS"
)

// Event is one simulation interaction. It lives only for the duration of a
// request: built, serialized to a single line, appended, then discarded.
type Event struct {
	Kind        Kind      `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	SourceIP    string    `json:"source_ip"`
	RecipientID string    `json:"recipient_id,omitempty"` // OPEN only
	Username    string    `json:"username,omitempty"`     // CREDENTIALS only
	Password    string    `json:"password,omitempty"`     // CREDENTIALS only
}

// NewOpenEvent builds an OPEN event
func NewOpenEvent(at time.Time, recipientID, sourceIP string) Event {
	return Event{
		Kind:        KindOpen,
		Timestamp:   at,
		SourceIP:    sourceIP,
		RecipientID: recipientID,
	}
}

// NewCredentialsEvent builds a CREDENTIALS event
func NewCredentialsEvent(at time.Time, sourceIP, username, password string) Event {
	return Event{
		Kind:      KindCredentials,
		Timestamp: at,
		SourceIP:  sourceIP,
		Username:  username,
		Password:  password,
	}
}

// FormattedTime returns the timestamp in TimestampLayout
func (e Event) FormattedTime() string {
	return e.Timestamp.Format(TimestampLayout)
}

// Line serializes the event to a single log line without the terminator.
// Field values have embedded line breaks escaped so a record never spans
// more than one line.
func (e Event) Line() string {
	if e.Kind == KindCredentials {
		return fmt.Sprintf("%s - IP: %s - Username: %s - Password: %s",
			e.FormattedTime(), escapeLineBreaks(e.SourceIP), escapeLineBreaks(e.Username), escapeLineBreaks(e.Password))
	}
	return fmt.Sprintf("%s - Opened by recipient ID: %s - IP: %s",
		e.FormattedTime(), escapeLineBreaks(e.RecipientID), escapeLineBreaks(e.SourceIP))
}

// Subject returns the identifier an operator cares about: the recipient id
// for opens, the submitted username for credentials
func (e Event) Subject() string {
	if e.Kind == KindCredentials {
		return e.Username
	}
	return e.RecipientID
}

var lineBreakReplacer = strings.NewReplacer("\r", `\r`, "\n", `\n`)

func escapeLineBreaks(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return lineBreakReplacer.Replace(s)
}
