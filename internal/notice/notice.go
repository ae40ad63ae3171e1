// Package notice queues user-visible messages across the redirects of an
// authentication flow. Notices are flash-style: stored in the session and
// gone after the first read.
package notice

import "context"

type Severity string

const (
	SeverityStatus  Severity = "status"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Notice struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// Sink accepts user-visible text for later presentation.
type Sink interface {
	Queue(ctx context.Context, sessionID string, severity Severity, text string) error
}
