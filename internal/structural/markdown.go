package structural

import (
	"strings"
	"unicode"
)

// Heuristic header detection over raw extracted PDF text. PDF text layers
// carry no markup, so likely headers are recognized by shape and rewritten
// as markdown headings before the goldmark pass splits on them.

var structuralKeywords = []string{"chapter", "section", "part", "introduction", "conclusion"}

// IsHeaderLine reports whether a line looks like a heading. At least two
// independent signals must agree, which keeps ordinary prose lines out.
func IsHeaderLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 100 {
		return false
	}

	signals := 0
	if isAllCaps(line) {
		signals++
	}
	if strings.HasSuffix(line, ":") {
		signals++
	}
	if len(strings.Fields(line)) <= 8 {
		signals++
	}
	if startsUpper(line) && !strings.HasSuffix(line, ".") {
		signals++
	}
	if containsKeyword(line) {
		signals++
	}
	return signals >= 2
}

// HeaderDepth assigns a heading level 1-3. Chapter/part markers outrank
// sections; ALL CAPS lines read as section-level emphasis.
func HeaderDepth(line string) int {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "chapter") || strings.Contains(lower, "part"):
		return 1
	case strings.Contains(lower, "section"):
		return 2
	case isAllCaps(line):
		return 2
	default:
		return 3
	}
}

// ToMarkdown rewrites header-looking lines as markdown headings and leaves
// everything else untouched.
func ToMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out = append(out, "")
			continue
		}
		if IsHeaderLine(trimmed) {
			out = append(out, strings.Repeat("#", HeaderDepth(trimmed))+" "+trimmed)
		} else {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

func isAllCaps(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func startsUpper(line string) bool {
	for _, r := range line {
		return unicode.IsUpper(r)
	}
	return false
}

func containsKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range structuralKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
