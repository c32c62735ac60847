package sentinel

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sanitization neutralizes recognized attack markers without altering
// benign content. The transform is idempotent: applying it to its own
// output returns the same string, so a field can be sanitized at every
// layer without drift.

const (
	// tagPlaceholder replaces structured role tags. Chosen so it never
	// re-matches any scanner pattern.
	tagPlaceholder = "[filtered]"

	// fencePlaceholder replaces triple-quote and triple-backtick runs
	// with a marker no parser treats as a fence.
	fencePlaceholder = "[fence]"
)

var (
	sanitizeTagPattern   = regexp.MustCompile(`(?i)<\s*/?\s*(system|assistant|user|prompt|instruction)\b[^>]{0,64}>|\[\s*(system|assistant|user)\s*\]|<\|?(system|im_start|im_end|endoftext)\|?>`)
	sanitizeFencePattern = regexp.MustCompile("`{3,}|\"{3,}|'{3,}")
	newlineRunPattern    = regexp.MustCompile(`\n{4,}`)
	spaceRunPattern      = regexp.MustCompile(`[ \t]{10,}`)
)

// invisibleRunes are zero-width and bidirectional control code points
// stripped outright: they carry no content and are a common vehicle for
// hiding instructions from human review.
var invisibleRunes = map[rune]bool{
	'\u200b': true, // zero width space
	'\u200c': true, // zero width non-joiner
	'\u200d': true, // zero width joiner
	'\u2060': true, // word joiner
	'\ufeff': true, // byte order mark
	'\u200e': true, // left-to-right mark
	'\u200f': true, // right-to-left mark
	'\u202a': true, // left-to-right embedding
	'\u202b': true, // right-to-left embedding
	'\u202c': true, // pop directional formatting
	'\u202d': true, // left-to-right override
	'\u202e': true, // right-to-left override
	'\u2066': true, // left-to-right isolate
	'\u2067': true, // right-to-left isolate
	'\u2068': true, // first strong isolate
	'\u2069': true, // pop directional isolate
}

// Sanitize returns the neutralized form of text, truncated to maxLength
// code points. It is applied to every sensitive field regardless of the
// scan verdict, so clean fields are normalized the same way.
func Sanitize(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 10000
	}

	// Strip before normalizing: removing a zero-width joiner can expose
	// a composable sequence, and normalizing afterwards keeps the result
	// a fixed point of the whole transform.
	out := stripInvisible(text)
	out = norm.NFC.String(out)
	out = sanitizeTagPattern.ReplaceAllString(out, tagPlaceholder)
	out = sanitizeFencePattern.ReplaceAllString(out, fencePlaceholder)
	out = newlineRunPattern.ReplaceAllString(out, "\n\n\n")
	out = spaceRunPattern.ReplaceAllString(out, " ")
	out = truncateRunes(out, maxLength)
	return strings.TrimSpace(out)
}

func stripInvisible(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if invisibleRunes[r] {
			continue
		}
		// Control characters other than common whitespace are dropped too.
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
