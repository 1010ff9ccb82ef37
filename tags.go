package rediswork

import (
	"strings"
	"unicode"
)

// Tag encoding constants shared by the mapper, the compiler and the index definition.
const (
	// NullSentinel stands in for a nil string when tagging.
	NullSentinel = "___|null|___"

	// EmptySentinel stands in for the empty string when tagging.
	EmptySentinel = "___|empty|___"

	// TagSeparator separates values inside a TAG field.
	TagSeparator = "~"

	// MinSubsetLength is the shortest substring materialized in a subset tag.
	MinSubsetLength = 3

	TagSuffix        = "_tag"
	ReverseTagSuffix = "_reverse_tag"
	SubsetTagSuffix  = "_subset_tag"
)

// TagField returns the name of the exact-match tag field for a string field.
func TagField(field string) string { return field + TagSuffix }

// ReverseTagField returns the name of the suffix-match tag field for a string field.
func ReverseTagField(field string) string { return field + ReverseTagSuffix }

// SubsetTagField returns the name of the substring-match tag field for a string field.
func SubsetTagField(field string) string { return field + SubsetTagSuffix }

// Tag lower-cases s. The null sentinel tags as the empty string.
func Tag(s string) string {
	if s == NullSentinel {
		return ""
	}
	return strings.ToLower(s)
}

// Reverse returns the tagged form of s with its runes reversed.
// The null sentinel reverses to the empty string.
func Reverse(s string) string {
	if s == NullSentinel {
		return ""
	}
	return reverseRunes(Tag(s))
}

// Subset returns every distinct contiguous substring of the tagged form of s
// whose length is at least MinSubsetLength, ordered by length then offset and
// joined with TagSeparator. The null sentinel has no subsets.
func Subset(s string) string {
	if s == NullSentinel {
		return ""
	}
	return strings.Join(Substrings(Tag(s)), TagSeparator)
}

// Substrings lists the distinct substrings of s of length MinSubsetLength..len(s),
// counted in runes. The first occurrence of a duplicate wins.
func Substrings(s string) []string {
	runes := []rune(s)
	n := len(runes)
	if n < MinSubsetLength {
		return nil
	}

	seen := make(map[string]struct{}, n*n/2)
	out := make([]string, 0, n*n/2)
	for length := MinSubsetLength; length <= n; length++ {
		for start := 0; start+length <= n; start++ {
			sub := string(runes[start : start+length])
			if _, ok := seen[sub]; ok {
				continue
			}
			seen[sub] = struct{}{}
			out = append(out, sub)
		}
	}
	return out
}

// TagTriple holds the three derived representations stored for a string field.
type TagTriple struct {
	Tag     string
	Reverse string
	Subset  string
}

// EncodeTags builds the tag triple for a possibly nil string.
// nil uses NullSentinel and "" uses EmptySentinel.
func EncodeTags(value *string) TagTriple {
	s := SentinelFor(value)
	return TagTriple{
		Tag:     Tag(s),
		Reverse: Reverse(s),
		Subset:  Subset(s),
	}
}

// SentinelFor substitutes the sentinels for nil and empty strings.
func SentinelFor(value *string) string {
	switch {
	case value == nil:
		return NullSentinel
	case *value == "":
		return EmptySentinel
	default:
		return *value
	}
}

// EscapeTag backslash-escapes query syntax characters and whitespace so s can be
// embedded in a tag or text clause.
func EscapeTag(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if needsEscape(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func needsEscape(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';', '!', '@', '#',
		'$', '%', '^', '&', '*', '(', ')', '-', '+', '=', '~', '|', '\\', '/', '?':
		return true
	}
	return false
}

func reverseRunes(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
