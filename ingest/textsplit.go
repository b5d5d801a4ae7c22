package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// splitText splits text into chunks of at most maxChars characters with
// approximately overlapChars of shared text between consecutive chunks.
// Splitting prefers natural boundaries: paragraphs first, then sentences,
// then words, falling back to a hard character cut only for a single token
// longer than maxChars.
func splitText(text string, maxChars, overlapChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChars {
		return []string{text}
	}

	// Segments are budgeted below maxChars so that the overlap prefix plus
	// the joining newline always fit when a segment opens a new chunk.
	segMax := maxChars
	if overlapChars > 0 {
		segMax = maxChars - overlapChars - 1
		if segMax < 1 {
			segMax = 1
		}
	}

	segments := segmentText(text, segMax)
	return mergeOverlap(segments, maxChars, overlapChars)
}

// segmentText breaks text into natural segments no longer than maxChars.
func segmentText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChars {
		return []string{text}
	}

	// Paragraph boundaries first.
	paragraphs := strings.Split(text, "\n\n")
	if len(paragraphs) > 1 {
		var segments []string
		for _, p := range paragraphs {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if len(p) <= maxChars {
				segments = append(segments, p)
			} else {
				segments = append(segments, sentenceSegments(p, maxChars)...)
			}
		}
		return segments
	}

	// Then sentences.
	if segments := sentenceSegments(text, maxChars); len(segments) > 1 {
		return segments
	}

	// Then words.
	return wordSegments(text, maxChars)
}

func sentenceSegments(text string, maxChars int) []string {
	boundaries := sentenceBoundaries(text)
	if len(boundaries) == 0 {
		return wordSegments(text, maxChars)
	}

	var segments []string
	emit := func(seg string) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return
		}
		if len(seg) <= maxChars {
			segments = append(segments, seg)
		} else {
			segments = append(segments, wordSegments(seg, maxChars)...)
		}
	}

	start := 0
	lastGood := -1
	for _, boundary := range boundaries {
		if len(text[start:boundary]) <= maxChars {
			lastGood = boundary
			continue
		}
		if lastGood > start {
			emit(text[start:lastGood])
			start = lastGood
			if len(text[start:boundary]) <= maxChars {
				lastGood = boundary
			} else {
				lastGood = -1
			}
		} else {
			emit(text[start:boundary])
			start = boundary
			lastGood = -1
		}
	}
	if lastGood > start {
		emit(text[start:lastGood])
		start = lastGood
	}
	emit(text[start:])

	return segments
}

// abbreviations that should not end a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true,
	"prof": true, "sr": true, "jr": true,
	"vs": true, "etc": true, "inc": true, "ltd": true,
	"e.g": true, "i.e": true, "viz": true, "al": true,
	"approx": true, "dept": true, "est": true,
	"fig": true, "no": true, "vol": true,
}

func isAbbreviation(text string, dotPos int) bool {
	start := dotPos
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start -= size
	}
	return abbreviations[strings.ToLower(text[start:dotPos])]
}

func isDecimalDot(text string, dotPos int) bool {
	if dotPos == 0 || dotPos+1 >= len(text) {
		return false
	}
	prev, next := text[dotPos-1], text[dotPos+1]
	return prev >= '0' && prev <= '9' && next >= '0' && next <= '9'
}

// sentenceBoundaries returns byte positions where text may be split between
// sentences. Handles ASCII terminators (.!?) with abbreviation and decimal
// awareness, plus CJK terminators (。！？).
func sentenceBoundaries(text string) []int {
	var boundaries []int
	runes := []rune(text)
	n := len(runes)

	byteOffsets := make([]int, n+1)
	off := 0
	for i, r := range runes {
		byteOffsets[i] = off
		off += utf8.RuneLen(r)
	}
	byteOffsets[n] = off

	for i := 0; i < n; i++ {
		r := runes[i]

		if r == '。' || r == '！' || r == '？' {
			boundaries = append(boundaries, byteOffsets[i+1])
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		pos := byteOffsets[i]
		if r == '.' && (isDecimalDot(text, pos) || isAbbreviation(text, pos)) {
			continue
		}

		// Terminator must be followed by whitespace to count.
		if i+1 < n && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			if runes[i+1] == '\n' {
				boundaries = append(boundaries, byteOffsets[i+1])
			} else if i+2 < n && unicode.IsUpper(runes[i+2]) {
				boundaries = append(boundaries, byteOffsets[i+2])
			} else if i+2 >= n {
				boundaries = append(boundaries, byteOffsets[n])
			}
		}
	}
	return boundaries
}

func wordSegments(text string, maxChars int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var segments []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}

	for _, word := range words {
		// A single token longer than maxChars gets a hard cut on rune
		// boundaries so multibyte text is never split mid-rune.
		if len(word) > maxChars {
			flush()
			for len(word) > maxChars {
				cut := maxChars
				for cut > 0 && !utf8.RuneStart(word[cut]) {
					cut--
				}
				if cut == 0 {
					// A rune wider than maxChars; emit it whole rather
					// than corrupt it.
					_, cut = utf8.DecodeRuneInString(word)
				}
				segments = append(segments, word[:cut])
				word = word[cut:]
			}
			if word != "" {
				segments = append(segments, word)
			}
			continue
		}

		needed := len(word)
		if current.Len() > 0 {
			needed += current.Len() + 1
		}
		if needed > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	flush()

	return segments
}

// mergeOverlap packs segments into chunks of at most maxChars, carrying a
// word-aligned suffix of each emitted chunk into the next as overlap.
func mergeOverlap(segments []string, maxChars, overlapChars int) []string {
	if len(segments) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	for _, seg := range segments {
		needed := len(seg)
		if current.Len() > 0 {
			needed += current.Len() + 1
		}

		if needed <= maxChars {
			if current.Len() > 0 {
				current.WriteByte('\n')
			}
			current.WriteString(seg)
			continue
		}

		if current.Len() > 0 {
			chunk := current.String()
			chunks = append(chunks, chunk)

			current.Reset()
			overlap := overlapSuffix(chunk, overlapChars)
			if overlap != "" && len(overlap)+1+len(seg) <= maxChars {
				current.WriteString(overlap)
				current.WriteByte('\n')
			}
		}
		current.WriteString(seg)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	var result []string
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			result = append(result, c)
		}
	}
	return result
}

// overlapSuffix returns the last n characters of text, trimmed forward to
// the next word boundary so the overlap never starts mid-word.
func overlapSuffix(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(text) <= n {
		return text
	}
	suffix := text[len(text)-n:]
	if idx := strings.Index(suffix, " "); idx >= 0 {
		return strings.TrimSpace(suffix[idx+1:])
	}
	// No word boundary in range; advance to a rune boundary instead.
	for len(suffix) > 0 && !utf8.RuneStart(suffix[0]) {
		suffix = suffix[1:]
	}
	return strings.TrimSpace(suffix)
}
