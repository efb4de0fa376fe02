package analyzer

import (
	"regexp"
	"strings"
	"unicode"
)

// Pure text predicates and scorers. These are deliberately free of I/O so
// they can be exercised directly in tests.

const (
	specialCharRatioMax = 0.3
	singleCharWordMax   = 0.4
	minWordsForText     = 5
	avgWordLenMin       = 2.0
	avgWordLenMax       = 15.0
)

// hasRepeatedRun reports whether text contains a run of 5 or more identical
// characters (equivalent to the backreference pattern `(.)\1{4,}`, which Go's
// RE2 regexp engine cannot compile). Newlines do not count, matching `.`.
func hasRepeatedRun(text string) bool {
	var prev rune
	count := 0
	for _, r := range text {
		if r != '\n' && r == prev {
			count++
			if count >= 5 {
				return true
			}
		} else {
			prev = r
			count = 1
		}
	}
	return false
}

// MeaningfulText reports whether extracted page text looks like real,
// machine-readable content rather than an empty layer or OCR residue.
func MeaningfulText(text string, minLength int) bool {
	if len(text) < minLength {
		return false
	}
	if LooksLikeOCRArtifact(text) {
		return false
	}
	words := strings.Fields(text)
	if len(words) < minWordsForText {
		return false
	}
	total := 0
	for _, w := range words {
		total += len(w)
	}
	avg := float64(total) / float64(len(words))
	return avg >= avgWordLenMin && avg <= avgWordLenMax
}

// LooksLikeOCRArtifact detects gibberish patterns typical of a bad text
// layer: heavy special characters, long repeated-character runs, or a flood
// of single-letter tokens.
func LooksLikeOCRArtifact(text string) bool {
	if text == "" {
		return false
	}

	special := 0
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if float64(special)/float64(len([]rune(text))) > specialCharRatioMax {
		return true
	}

	if hasRepeatedRun(text) {
		return true
	}

	words := strings.Fields(text)
	if len(words) > 0 {
		singles := 0
		for _, w := range words {
			if len([]rune(w)) == 1 && isAlphaWord(w) {
				singles++
			}
		}
		if float64(singles) > float64(len(words))*singleCharWordMax {
			return true
		}
	}

	return false
}

func isAlphaWord(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return w != ""
}

var sentenceEndRe = regexp.MustCompile(`[.!?]+`)

// Readability estimates how text-like a page's content is, in [0,1].
// Weighted signals: sentence segmentation (+0.3, +0.2 for plausible mean
// sentence length), capitalization ratio (+0.2), punctuation variety
// (+0.15), and vowel distribution for longer texts (+0.15).
func Readability(text string) float64 {
	if text == "" {
		return 0
	}

	score := 0.0

	var sentences []string
	for _, s := range sentenceEndRe.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, strings.TrimSpace(s))
		}
	}
	if len(sentences) > 0 {
		score += 0.3
		totalWords := 0
		for _, s := range sentences {
			totalWords += len(strings.Fields(s))
		}
		avg := float64(totalWords) / float64(len(sentences))
		if avg >= 5 && avg <= 30 {
			score += 0.2
		}
	}

	words := strings.Fields(text)
	if len(words) > 0 {
		capitalized := 0
		for _, w := range words {
			r := []rune(w)[0]
			if unicode.IsUpper(r) {
				capitalized++
			}
		}
		ratio := float64(capitalized) / float64(len(words))
		if ratio >= 0.1 && ratio <= 0.4 {
			score += 0.2
		}
	}

	punct := map[rune]struct{}{}
	for _, r := range text {
		if strings.ContainsRune(`.,!?;:()[]{}`, r) {
			punct[r] = struct{}{}
		}
	}
	if len(punct) >= 3 {
		score += 0.15
	}

	if plausibleVowelRatio(text) {
		score += 0.15
	}

	if score > 1 {
		score = 1
	}
	return score
}

// plausibleVowelRatio checks the vowel share of alphabetic characters.
// Random character soup rarely lands in the natural-language band. Short
// texts pass by default; there is not enough signal to judge them.
func plausibleVowelRatio(text string) bool {
	if len([]rune(text)) < 100 {
		return true
	}
	vowels := 0
	alpha := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			alpha++
			switch unicode.ToLower(r) {
			case 'a', 'e', 'i', 'o', 'u':
				vowels++
			}
		}
	}
	if alpha == 0 {
		return true
	}
	ratio := float64(vowels) / float64(alpha)
	return ratio >= 0.2 && ratio <= 0.6
}
