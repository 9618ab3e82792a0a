package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDocumentNumber(t *testing.T) {
	assert.Equal(t, "MP-WAV-2024-00001", FormatDocumentNumber(DocPrefixWave, 2024, 1))
	assert.Equal(t, "MP-OUT-2025-12345", FormatDocumentNumber(DocPrefixOrderIssue, 2025, 12345))
	assert.Equal(t, "MP-OTR-2025-123456", FormatDocumentNumber(DocPrefixOutboundReturn, 2025, 123456))
}

func TestDocumentNumberPattern(t *testing.T) {
	assert.Equal(t, "MP-DOC-2024-%", DocumentNumberPattern(DocPrefixManual, 2024))
}

func TestNextDocumentNumber(t *testing.T) {
	tests := []struct {
		name    string
		last    string
		want    string
		wantErr bool
	}{
		{name: "first of the year", last: "", want: "MP-OTR-2024-00001"},
		{name: "increments", last: "MP-OTR-2024-00041", want: "MP-OTR-2024-00042"},
		{name: "grows past padding", last: "MP-OTR-2024-99999", want: "MP-OTR-2024-100000"},
		{name: "other prefix", last: "MP-OUT-2024-00003", wantErr: true},
		{name: "other year", last: "MP-OTR-2023-00003", wantErr: true},
		{name: "garbage sequence", last: "MP-OTR-2024-abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDocumentNumber(DocPrefixOutboundReturn, 2024, tt.last)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDocumentSequence(t *testing.T) {
	seq, err := ParseDocumentSequence("MP-WAV-2024-00017", DocPrefixWave, 2024)
	require.NoError(t, err)
	assert.Equal(t, 17, seq)

	_, err = ParseDocumentSequence("MP-WAV-2024--1", DocPrefixWave, 2024)
	assert.Error(t, err)
}
