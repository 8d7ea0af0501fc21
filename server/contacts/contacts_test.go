package contacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUpgradesLegacyStrings(t *testing.T) {
	raw := []byte(`["+15551234567", "+15559876543", "911"]`)

	normalized := Normalize(raw)

	assert.Len(t, normalized, 3)
	assert.Equal(t, Contact{Number: "+15551234567", Label: "Contact 1"}, normalized[0])
	assert.Equal(t, Contact{Number: "+15559876543", Label: "Contact 2"}, normalized[1])
	assert.Equal(t, Contact{Number: "911", Label: "Contact 3"}, normalized[2])
}

func TestNormalizeMixedLegacyAndCanonicalEntries(t *testing.T) {
	raw := []byte(`["+15551234567", {"number": "+15559876543", "label": "Mom"}, {"number": "+15550001111"}]`)

	normalized := Normalize(raw)

	assert.Len(t, normalized, 3)
	assert.Equal(t, Contact{Number: "+15551234567", Label: "Contact 1"}, normalized[0])
	assert.Equal(t, Contact{Number: "+15559876543", Label: "Mom"}, normalized[1])
	assert.Equal(t, Contact{Number: "+15550001111", Label: ""}, normalized[2])
}

func TestNormalizePadsEmptySequenceToTwoSlots(t *testing.T) {
	for _, raw := range []string{`[]`, `not json at all`, ``} {
		normalized := Normalize([]byte(raw))

		assert.Len(t, normalized, 2, "raw=%q", raw)
		assert.Equal(t, Contact{}, normalized[0])
		assert.Equal(t, Contact{}, normalized[1])
	}
}

func TestNormalizePadsSingleEntryWithOneBlankSlot(t *testing.T) {
	raw := []byte(`[{"number": "+15551234567", "label": "Dad"}]`)

	normalized := Normalize(raw)

	assert.Len(t, normalized, 2)
	assert.Equal(t, Contact{Number: "+15551234567", Label: "Dad"}, normalized[0])
	assert.Equal(t, Contact{}, normalized[1])
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := []byte(`["+15551234567", {"number": "+15559876543", "label": "Mom"}]`)

	assert.Equal(t, Normalize(raw), Normalize(raw))
}

func TestForPublicDisplayDropsBlankSlots(t *testing.T) {
	raw := []byte(`[{"number": "+15551234567", "label": "Mom"}, {"number": "", "label": ""}, {"number": "   "}]`)

	displayable := ForPublicDisplay(raw)

	assert.Len(t, displayable, 1)
	assert.Equal(t, Contact{Number: "+15551234567", Label: "Mom"}, displayable[0])
}

func TestForPublicDisplayDegradesToEmptyOnMalformedInput(t *testing.T) {
	assert.Empty(t, ForPublicDisplay([]byte(`{"oops": true}`)))
}

func TestValidateForSaveFiltersBlankNumbers(t *testing.T) {
	valid, err := ValidateForSave([]Contact{
		{Number: "+15551234567", Label: "Mom"},
		{Number: "  ", Label: "ignored"},
		{Number: ""},
	})

	assert.Nil(t, err)
	assert.Equal(t, []Contact{{Number: "+15551234567", Label: "Mom"}}, valid)
}

func TestValidateForSaveFailsWithoutAnyValidNumber(t *testing.T) {
	_, err := ValidateForSave([]Contact{{Number: "", Label: "x"}})
	assert.ErrorIs(t, err, ErrEmptyContactSet)

	_, err = ValidateForSave(nil)
	assert.ErrorIs(t, err, ErrEmptyContactSet)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	contacts := []Contact{{Number: "+15551234567", Label: "Mom"}}

	encoded, err := Encode(contacts)
	assert.Nil(t, err)

	decoded, err := Decode([]byte(encoded))
	assert.Nil(t, err)
	assert.Equal(t, contacts, decoded)
}
