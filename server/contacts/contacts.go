// Package contacts converts the heterogeneous emergency-contact encodings
// found in stored profiles into one canonical shape. Early profiles stored a
// bare array of phone-number strings; current profiles store
// {number, label} objects. Both are accepted on every read & write.
package contacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyContactSet = errors.New("at least one emergency number is required")

// Contact is the canonical contact shape, as stored and as served.
type Contact struct {
	Number string `json:"number"`
	Label  string `json:"label"`
}

// rawContact is the ingestion-boundary tagged union: a JSON string(legacy)
// or a {number, label} object.
type rawContact struct {
	number string
	label  string
	legacy bool
}

func (rc *rawContact) UnmarshalJSON(data []byte) error {
	var legacyNumber string
	if err := json.Unmarshal(data, &legacyNumber); err == nil {
		rc.number = legacyNumber
		rc.legacy = true
		return nil
	}

	entry := struct {
		Number string `json:"number"`
		Label  string `json:"label"`
	}{}
	if err := json.Unmarshal(data, &entry); err != nil {
		return err
	}

	rc.number = entry.Number
	rc.label = entry.Label

	return nil
}

// Decode parses a serialized contact sequence into canonical form. Legacy
// string entries are upgraded to objects labelled by their 1-based position.
func Decode(raw []byte) ([]Contact, error) {
	rawContacts := []rawContact{}
	if err := json.Unmarshal(raw, &rawContacts); err != nil {
		return nil, err
	}

	decoded := make([]Contact, 0, len(rawContacts))
	for i, rc := range rawContacts {
		label := rc.label
		if rc.legacy {
			label = fmt.Sprintf("Contact %v", i+1)
		}
		decoded = append(decoded, Contact{Number: rc.number, Label: label})
	}

	return decoded, nil
}

// Encode serializes canonical contacts for storage.
func Encode(contacts []Contact) (string, error) {
	encoded, err := json.Marshal(contacts)
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// Normalize prepares a stored contact sequence for an editing surface.
// Unparseable input degrades to "no contacts yet" rather than failing the
// read, and the result is padded so the editor always has at least 2 slots
// to present - without ever fabricating phone numbers.
func Normalize(raw []byte) []Contact {
	normalized, err := Decode(raw)
	if err != nil {
		normalized = []Contact{}
	}

	switch len(normalized) {
	case 0:
		normalized = []Contact{{}, {}}
	case 1:
		normalized = append(normalized, Contact{})
	}

	return normalized
}

// ForPublicDisplay prepares a stored contact sequence for the public QR
// page: legacy entries are upgraded, blank slots are dropped.
func ForPublicDisplay(raw []byte) []Contact {
	decoded, err := Decode(raw)
	if err != nil {
		decoded = []Contact{}
	}

	displayable := []Contact{}
	for _, contact := range decoded {
		if strings.TrimSpace(contact.Number) == "" {
			continue
		}
		displayable = append(displayable, contact)
	}

	return displayable
}

// ValidateForSave drops entries without a phone number & fails if none
// remain. Number syntax is not validated - international formats are
// accepted as opaque strings.
func ValidateForSave(contacts []Contact) ([]Contact, error) {
	valid := []Contact{}
	for _, contact := range contacts {
		if strings.TrimSpace(contact.Number) == "" {
			continue
		}
		valid = append(valid, contact)
	}

	if len(valid) == 0 {
		return nil, ErrEmptyContactSet
	}

	return valid, nil
}
