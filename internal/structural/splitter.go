package structural

import "strings"

// Splitter breaks text into pieces of approximately ChunkSize characters,
// trying coarse separators first (paragraph, line, sentence, word) and
// recursing with finer ones for oversized pieces. Adjacent chunks share an
// overlap tail so context spanning a boundary is not lost.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// DefaultSeparators orders splits from paragraph down to word level.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

func (s Splitter) Split(text string) []string {
	seps := s.Separators
	if seps == nil {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s Splitter) split(text string, seps []string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.ChunkSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return s.hardSplit(text)
	}

	sep := seps[0]
	pieces := strings.Split(text, sep)
	if len(pieces) == 1 {
		return s.split(text, seps[1:])
	}

	var out []string
	var cur strings.Builder

	flush := func() string {
		c := strings.TrimSpace(cur.String())
		cur.Reset()
		if c != "" {
			out = append(out, c)
		}
		return c
	}

	for _, p := range pieces {
		if strings.TrimSpace(p) == "" {
			continue
		}
		// A single piece larger than the target recurses with finer
		// separators on its own.
		if len(p) > s.ChunkSize {
			flush()
			out = append(out, s.split(p, seps[1:])...)
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(sep)+len(p) > s.ChunkSize {
			prev := flush()
			if tail := overlapTail(prev, s.Overlap); tail != "" {
				cur.WriteString(tail)
			}
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(p)
	}
	flush()

	return out
}

// hardSplit cuts at fixed offsets, the last resort for text with no usable
// separators.
func (s Splitter) hardSplit(text string) []string {
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}
	var out []string
	for start := 0; start < len(text); start += step {
		end := start + s.ChunkSize
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		out = append(out, text[start:end])
	}
	return out
}

// overlapTail returns trailing whole words of text totalling at most target
// characters.
func overlapTail(text string, target int) string {
	if target <= 0 || text == "" {
		return ""
	}
	words := strings.Fields(text)
	size := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		size += len(words[i]) + 1
		if size > target {
			break
		}
		start = i
	}
	if start == len(words) {
		return ""
	}
	return strings.Join(words[start:], " ")
}
