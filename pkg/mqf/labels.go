package mqf

import "strings"

// LabelsVersion is the on-disk version of the labels payload.
const LabelsVersion uint32 = 1

// EncodeLabels serializes class names as newline-delimited UTF-8, one name
// per line in index order.
func EncodeLabels(names []string) []byte {
	if len(names) == 0 {
		return nil
	}
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// ParseLabels decodes a labels section back into index-ordered class names.
func ParseLabels(sec []byte) []string {
	s := strings.TrimRight(string(sec), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
