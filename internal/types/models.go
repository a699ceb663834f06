package types

import "strings"

// CallEvent is the payload Acefone delivers when a call ends.
type CallEvent struct {
	CallID       string `json:"call_id"`
	ClientNumber string `json:"client_number,omitempty"`
	DIDNumber    string `json:"did_number,omitempty"`
	Status       string `json:"status,omitempty"`
}

// Completed reports whether the event describes a finished call. Acefone
// sends other statuses (missed, busy, failed) on the same hook.
func (e CallEvent) Completed() bool {
	return strings.EqualFold(strings.TrimSpace(e.Status), "completed")
}

// Phone returns the number to resolve against the CRM: the client number
// when present, otherwise the DID the call landed on.
func (e CallEvent) Phone() string {
	if p := strings.TrimSpace(e.ClientNumber); p != "" {
		return p
	}
	return strings.TrimSpace(e.DIDNumber)
}

// CallRecord is the call metadata snapshot from Acefone's records listing.
// RecordingURL stays empty until the provider has finalized the artifact.
type CallRecord struct {
	CallID       string `json:"call_id"`
	RecordingURL string `json:"recording_url"`
	Duration     int    `json:"call_duration"`
	AgentName    string `json:"agent_name"`
	ClientNumber string `json:"client_number"`
	DIDNumber    string `json:"did_number"`
	Date         string `json:"date"`
	Time         string `json:"time"`
}

// StartedAt joins the provider's split date/time fields for display.
func (r CallRecord) StartedAt() string {
	return strings.TrimSpace(r.Date + " " + r.Time)
}

// Phone mirrors CallEvent.Phone for the record's own number fields.
func (r CallRecord) Phone() string {
	if p := strings.TrimSpace(r.ClientNumber); p != "" {
		return p
	}
	return strings.TrimSpace(r.DIDNumber)
}

type EntityKind string

const (
	KindLead    EntityKind = "lead"
	KindContact EntityKind = "contact"
)

// CrmEntity is a reference to a Bitrix lead or contact. The pipeline only
// ever holds the id and kind; the record itself lives in the CRM.
type CrmEntity struct {
	ID   int64      `json:"id"`
	Kind EntityKind `json:"kind"`
}
