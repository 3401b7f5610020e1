// Package alert defines the immutable alert record produced by the
// detection pipeline, the bounded in-memory store backing the dashboard,
// and the forwarders that mirror alerts to external systems.
package alert

import (
	"time"

	"github.com/google/uuid"
)

type Class string

const (
	ClassRule Class = "rule-based"
	ClassML   Class = "ml-based"
	ClassXSS  Class = "xss"
	ClassInfo Class = "info"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is a single detected condition. Alerts are never mutated after
// creation; producers build one with New and hand it to a Store.
type Alert struct {
	ID         string         `json:"id"`
	TS         time.Time      `json:"ts"`
	Class      Class          `json:"class"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	AttackType string         `json:"attack_type,omitempty"`
}

// New builds an alert with a fresh ID and the current timestamp.
func New(class Class, severity Severity, message string, details map[string]any) Alert {
	return Alert{
		ID:       uuid.NewString(),
		TS:       time.Now().UTC(),
		Class:    class,
		Severity: severity,
		Message:  message,
		Details:  details,
	}
}
