package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Document number prefixes used across the ledger and waves.
const (
	DocPrefixOutboundReturn = "MP-OTR"
	DocPrefixOrderIssue     = "MP-OUT"
	DocPrefixWave           = "MP-WAV"
	DocPrefixManual         = "MP-DOC"
)

// DocumentNumberSeqWidth is the zero padding of the sequence part.
const DocumentNumberSeqWidth = 5

// DocumentNumberPattern returns the LIKE pattern matching every number of prefix+year.
func DocumentNumberPattern(prefix string, year int) string {
	return fmt.Sprintf("%s-%d-%%", prefix, year)
}

// FormatDocumentNumber builds PREFIX-YEAR-SEQUENCE.
func FormatDocumentNumber(prefix string, year int, seq int) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, DocumentNumberSeqWidth, seq)
}

// ParseDocumentSequence extracts the sequence of a number belonging to prefix+year.
func ParseDocumentSequence(number, prefix string, year int) (int, error) {
	head := fmt.Sprintf("%s-%d-", prefix, year)
	if !strings.HasPrefix(number, head) {
		return 0, fmt.Errorf("document number %q does not belong to %s", number, strings.TrimSuffix(head, "-"))
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(number, head))
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("document number %q has an invalid sequence", number)
	}
	return seq, nil
}

// NextDocumentNumber returns the number following last within prefix+year.
// An empty last starts the sequence at 1.
func NextDocumentNumber(prefix string, year int, last string) (string, error) {
	if last == "" {
		return FormatDocumentNumber(prefix, year, 1), nil
	}
	seq, err := ParseDocumentSequence(last, prefix, year)
	if err != nil {
		return "", err
	}
	return FormatDocumentNumber(prefix, year, seq+1), nil
}
