package channels

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// unitCounter returns the width of r in the unit a platform measures
// message length in.
type unitCounter func(r rune) int

// countRunes counts code points (Discord).
func countRunes(rune) int { return 1 }

// countUTF16 counts UTF-16 code units (Telegram). Characters outside the
// Basic Multilingual Plane, most emoji among them, count twice.
func countUTF16(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func measure(s string, count unitCounter) int {
	n := 0
	for _, r := range s {
		n += count(r)
	}
	return n
}

// splitText cuts text into chunks of at most limit units as measured by
// count. Cuts fall on line boundaries when possible; a single line longer
// than limit is cut hard, never inside a character.
func splitText(text string, limit int, count unitCounter) []string {
	if limit <= 0 || measure(text, count) <= limit {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if chunk := strings.TrimRight(cur.String(), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		cur.Reset()
		curLen = 0
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		n := measure(line, count)
		if curLen+n > limit {
			flush()
		}
		for n > limit {
			head, tail := cutUnits(line, limit, count)
			chunks = append(chunks, head)
			line, n = tail, measure(tail, count)
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}

// cutUnits splits s after the longest prefix of at most limit units. The
// head always holds at least one character.
func cutUnits(s string, limit int, count unitCounter) (string, string) {
	used := 0
	for pos, r := range s {
		w := count(r)
		if used+w > limit {
			if pos == 0 {
				_, size := utf8.DecodeRuneInString(s)
				return s[:size], s[size:]
			}
			return s[:pos], s[pos:]
		}
		used += w
	}
	return s, ""
}
