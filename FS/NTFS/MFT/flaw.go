package MFT

import "strings"

// Flaw annotates a record or candidate with the damage met while decoding it.
type Flaw uint8

const (
	FixupMismatch Flaw = 1 << iota
	MalformedRecord
	TruncatedAttributeList
	IncompleteRunlist
	PartiallyRecovered
)

var flawNames = []struct {
	flaw Flaw
	name string
}{
	{FixupMismatch, "fixup-mismatch"},
	{MalformedRecord, "malformed"},
	{TruncatedAttributeList, "truncated-attributes"},
	{IncompleteRunlist, "incomplete-runlist"},
	{PartiallyRecovered, "partial"},
}

func (flaw Flaw) Has(other Flaw) bool {
	return flaw&other == other
}

// LowConfidence is set when the record bytes themselves are suspect.
func (flaw Flaw) LowConfidence() bool {
	return flaw&(FixupMismatch|MalformedRecord) != 0
}

func (flaw Flaw) String() string {
	if flaw == 0 {
		return "none"
	}
	var names []string
	for _, entry := range flawNames {
		if flaw&entry.flaw != 0 {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, ",")
}
