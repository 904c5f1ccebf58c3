package reference

import (
	"regexp"
	"strings"
)

// Format groups a reference as "dd ddddd ddddd ddddd ddddd ddddd d", the
// layout printed on payment slips. Input that is not 27 characters after
// cleaning is returned cleaned but ungrouped.
func Format(ref string) string {
	ref = Clean(ref)
	if len(ref) != Length {
		return ref
	}
	var b strings.Builder
	b.WriteString(ref[:2])
	for i := 2; i < Length; i += 5 {
		end := i + 5
		if end > Length {
			end = Length
		}
		b.WriteByte(' ')
		b.WriteString(ref[i:end])
	}
	return b.String()
}

var candidateRe = regexp.MustCompile(`\b(?:\d ?){26}\d\b`)

// FindReferences returns the checksum-valid references contained in text,
// in order of appearance and without duplicates. Grouped and contiguous
// spellings are both recognized. Digit runs with a wrong check digit are
// ignored.
func FindReferences(text string) []string {
	var found []string
	seen := make(map[string]bool)
	for _, m := range candidateRe.FindAllString(text, -1) {
		ref := Clean(m)
		if seen[ref] || !IsValid(ref) {
			continue
		}
		seen[ref] = true
		found = append(found, ref)
	}
	return found
}
