package dataset

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAppendsMarker(t *testing.T) {
	tests := []struct {
		name   string
		texts  []string
		marker string
	}{
		{"eos tag", []string{"a", "b", "c", "d", "e"}, "</s>"},
		{"empty marker", []string{"phishing", "ransomware"}, ""},
		{"empty text", []string{"", "x"}, "<|end_of_text|>"},
		{"unicode", []string{"café", "日本語"}, "</s>"},
		{"empty batch", []string{}, "</s>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Format(RecordsFromTexts(tt.texts), tt.marker)
			require.NoError(t, err)
			require.Len(t, out, len(tt.texts))
			for i, r := range out {
				assert.Equal(t, tt.texts[i], r.Text, "order must be preserved")
				assert.Equal(t, tt.texts[i]+tt.marker, r.TextCustom)
			}
		})
	}
}

func TestFormatAppendsExactlyOnce(t *testing.T) {
	records := RecordsFromTexts([]string{"alpha", "beta"})

	first, err := Format(records, "</s>")
	require.NoError(t, err)
	second, err := Format(records, "</s>")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "alpha</s>", first[0].TextCustom)
}

func TestFormatTerminatedSourceTextGetsSecondMarker(t *testing.T) {
	out, err := Format([]Record{NewTextRecord("done</s>")}, "</s>")
	require.NoError(t, err)
	assert.Equal(t, "done</s></s>", out[0].TextCustom)
}

func TestFormatNilBatch(t *testing.T) {
	_, err := Format(nil, "</s>")
	assert.ErrorIs(t, err, ErrNilBatch)
}

func TestFormatMalformedRecordFailsFast(t *testing.T) {
	records := []Record{NewTextRecord("ok"), {}, NewTextRecord("never reached")}

	out, err := Format(records, "</s>")
	assert.Nil(t, out)
	require.ErrorIs(t, err, ErrMalformedRecord)

	var mre *MalformedRecordError
	require.True(t, errors.As(err, &mre))
	assert.Equal(t, 1, mre.Index)
	assert.Empty(t, mre.Field)
	assert.Equal(t, "malformed record 1: has no text", mre.Error())
}

func TestNewRecord(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]any
		want    string
		wantErr bool
	}{
		{"string text", map[string]any{"text": "CVE-2024-0001"}, "CVE-2024-0001", false},
		{"empty string", map[string]any{"text": ""}, "", false},
		{"extra fields ignored", map[string]any{"text": "x", "label": 3}, "x", false},
		{"missing", map[string]any{"body": "x"}, "", true},
		{"null", map[string]any{"text": nil}, "", true},
		{"number", map[string]any{"text": 12.5}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRecord(tt.fields, "text")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRecord)
				assert.Equal(t, Record{}, r)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Text())
		})
	}
}

func TestNormalizeComposes(t *testing.T) {
	decomposed := NewTextRecord("cafe\u0301")
	assert.Equal(t, "caf\u00e9", decomposed.Normalize().Text())

	var zero Record
	assert.Equal(t, Record{}, zero.Normalize())
}

func TestMalformedRecordErrorMessage(t *testing.T) {
	err := &MalformedRecordError{Index: 4, Field: "text", Reason: "is null"}
	assert.Equal(t, `malformed record 4: field "text" is null`, err.Error())
	assert.True(t, errors.Is(fmt.Errorf("load: %w", err), ErrMalformedRecord))
}
