package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

var metadataKnownKeys = map[string]struct{}{
	"medicineId":   {},
	"voucherId":    {},
	"points":       {},
	"submissionId": {},
	"feedbackId":   {},
}

// Metadata carries the well-known notification attributes plus any extra keys
// producers attach. Extra keys survive a JSON or database round trip untouched.
type Metadata struct {
	MedicineID   string                     `json:"medicineId,omitempty"`
	VoucherID    string                     `json:"voucherId,omitempty"`
	Points       *int                       `json:"points,omitempty"`
	SubmissionID string                     `json:"submissionId,omitempty"`
	FeedbackID   string                     `json:"feedbackId,omitempty"`
	Extra        map[string]json.RawMessage `json:"-"`
}

type metadataKnown struct {
	MedicineID   string `json:"medicineId,omitempty"`
	VoucherID    string `json:"voucherId,omitempty"`
	Points       *int   `json:"points,omitempty"`
	SubmissionID string `json:"submissionId,omitempty"`
	FeedbackID   string `json:"feedbackId,omitempty"`
}

func (m Metadata) IsZero() bool {
	return m.MedicineID == "" && m.VoucherID == "" && m.Points == nil &&
		m.SubmissionID == "" && m.FeedbackID == "" && len(m.Extra) == 0
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+5)
	for k, v := range m.Extra {
		if _, known := metadataKnownKeys[k]; known {
			continue
		}
		out[k] = v
	}

	known, err := json.Marshal(metadataKnown{
		MedicineID:   m.MedicineID,
		VoucherID:    m.VoucherID,
		Points:       m.Points,
		SubmissionID: m.SubmissionID,
		FeedbackID:   m.FeedbackID,
	})
	if err != nil {
		return nil, err
	}
	var knownFields map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownFields); err != nil {
		return nil, err
	}
	for k, v := range knownFields {
		out[k] = v
	}

	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metadata{}
		return nil
	}

	var known metadataKnown
	if err := json.Unmarshal(data, &known); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}

	*m = Metadata{
		MedicineID:   known.MedicineID,
		VoucherID:    known.VoucherID,
		Points:       known.Points,
		SubmissionID: known.SubmissionID,
		FeedbackID:   known.FeedbackID,
	}
	for k, v := range all {
		if _, ok := metadataKnownKeys[k]; ok {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[k] = v
	}
	return nil
}

// Value stores metadata as JSONB.
func (m Metadata) Value() (driver.Value, error) {
	if m.IsZero() {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan reads metadata from a JSONB column.
func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
}
