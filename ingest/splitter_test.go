package ingest

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	voynich "github.com/voynich-dev/voynich"
)

func normalizeWS(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// wordsText builds deterministic text of count five-byte words.
func wordsText(count int) string {
	words := make([]string, count)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	return strings.Join(words, " ")
}

func TestParseHeading(t *testing.T) {
	tests := []struct {
		line  string
		depth int
		text  string
		ok    bool
	}{
		{"# Title", 1, "Title", true},
		{"## Sub", 2, "Sub", true},
		{"###### Deep", 6, "Deep", true},
		{"####### TooDeep", 0, "", false},
		{"#NoSpace", 0, "", false},
		{"  ## Indented", 2, "Indented", true},
		{"## Closed ##", 2, "Closed", true},
		{"plain text", 0, "", false},
		{"", 0, "", false},
	}
	for _, tt := range tests {
		depth, text, ok := parseHeading(tt.line)
		if ok != tt.ok || depth != tt.depth || text != tt.text {
			t.Errorf("parseHeading(%q) = (%d, %q, %v), want (%d, %q, %v)",
				tt.line, depth, text, ok, tt.depth, tt.text, tt.ok)
		}
	}
}

func TestSplitSectionsLineage(t *testing.T) {
	md := "# A\ntext1\n## B\ntext2"
	sections := SplitSections(md)
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}

	if sections[0].Levels[0] != "A" || sections[0].Levels[1] != "" {
		t.Errorf("section 0 levels = %v, want [A]", sections[0].Levels)
	}
	if strings.TrimSpace(sections[0].Content) != "text1" {
		t.Errorf("section 0 content = %q", sections[0].Content)
	}

	if sections[1].Levels[0] != "A" || sections[1].Levels[1] != "B" {
		t.Errorf("section 1 levels = %v, want [A B]", sections[1].Levels)
	}
	if strings.TrimSpace(sections[1].Content) != "text2" {
		t.Errorf("section 1 content = %q", sections[1].Content)
	}
}

func TestSplitSectionsSiblingResetsDeeperLevels(t *testing.T) {
	md := "# A\n## B\nb text\n## C\nc text"
	sections := SplitSections(md)

	last := sections[len(sections)-1]
	if last.Levels[0] != "A" || last.Levels[1] != "C" {
		t.Errorf("last section levels = %v, want [A C]", last.Levels)
	}

	// A deeper heading under B must not leak into C's lineage.
	md = "# A\n## B\n### D\nd text\n## C\nc text"
	sections = SplitSections(md)
	last = sections[len(sections)-1]
	if last.Levels[2] != "" {
		t.Errorf("level 3 = %q, want empty after sibling reset", last.Levels[2])
	}
}

func TestSplitSectionsPreamble(t *testing.T) {
	md := "intro before any heading\n# A\nbody"
	sections := SplitSections(md)
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if sections[0].Levels[0] != "" {
		t.Errorf("preamble should have empty lineage, got %v", sections[0].Levels)
	}
	if strings.TrimSpace(sections[0].Content) != "intro before any heading" {
		t.Errorf("preamble content = %q", sections[0].Content)
	}
}

func TestSplitSectionsIgnoresHeadingsInFences(t *testing.T) {
	md := "# A\n```\n# not a heading\n```\nafter"
	sections := SplitSections(md)
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if !strings.Contains(sections[0].Content, "# not a heading") {
		t.Error("fenced heading line should stay in content")
	}
}

func TestSplitSectionsMixedFenceMarkers(t *testing.T) {
	// A backtick fence inside a tilde block must not close it.
	md := "# A\n~~~\n```\n# not a heading\n~~~\nafter"
	sections := SplitSections(md)
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if !strings.Contains(sections[0].Content, "# not a heading") {
		t.Error("fenced heading line should stay in content")
	}
	if !strings.Contains(sections[0].Content, "after") {
		t.Error("content after the closing fence is missing")
	}
}

func TestSplitSectionsBlankDocument(t *testing.T) {
	sections := SplitSections("")
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1 empty section", len(sections))
	}
	if sections[0].Content != "" {
		t.Errorf("content = %q, want empty", sections[0].Content)
	}
}

func TestHierarchicalSplitSmallDoc(t *testing.T) {
	s, err := NewHierarchicalSplitter(DefaultSplitterConfig())
	if err != nil {
		t.Fatal(err)
	}
	chunks := s.Split("# A\ntext1\n## B\ntext2")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	if chunks[0].Text != "text1" || chunks[0].Levels[0] != "A" || chunks[0].SectionPath != "A" || chunks[0].SectionLevel != 1 {
		t.Errorf("chunk 0 = %+v", chunks[0])
	}
	if chunks[1].Text != "text2" || chunks[1].Levels[1] != "B" || chunks[1].SectionPath != "A > B" || chunks[1].SectionLevel != 2 {
		t.Errorf("chunk 1 = %+v", chunks[1])
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
	}
}

func TestHierarchicalSplitLargeSection(t *testing.T) {
	cfg := SplitterConfig{ChunkSize: 1000, OverlapRatio: 0.1}
	s, err := NewHierarchicalSplitter(cfg)
	if err != nil {
		t.Fatal(err)
	}

	body := wordsText(500) // 2499 chars
	chunks := s.Split("# Long\n" + body)

	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3 for 2500 chars at size 1000", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > cfg.ChunkSize {
			t.Errorf("chunk %d length %d exceeds %d", i, len(c.Text), cfg.ChunkSize)
		}
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.Levels[0] != "Long" {
			t.Errorf("chunk %d lineage = %v", i, c.Levels)
		}
	}

	// Consecutive chunks must share roughly the configured overlap, trimmed
	// down only to the nearest word boundary.
	overlap := cfg.overlapChars()
	for i := 1; i < len(chunks); i++ {
		shared := sharedOverlap(normalizeWS(chunks[i-1].Text), normalizeWS(chunks[i].Text))
		if shared < overlap/2 || shared > overlap {
			t.Errorf("chunks %d/%d share %d chars, want roughly %d", i-1, i, shared, overlap)
		}
	}
}

// sharedOverlap returns the length of the longest prefix of cur that is a
// suffix of prev.
func sharedOverlap(prev, cur string) int {
	shared := 0
	for k := 1; k <= len(cur) && k <= len(prev); k++ {
		if strings.HasSuffix(prev, cur[:k]) {
			shared = k
		}
	}
	return shared
}

func TestSplitChunksAreContiguousSpans(t *testing.T) {
	cfg := SplitterConfig{ChunkSize: 200, OverlapRatio: 0.1}
	s, err := NewFlatSplitter(cfg)
	if err != nil {
		t.Fatal(err)
	}

	text := wordsText(300)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	normalized := normalizeWS(text)
	for i, c := range chunks {
		if !strings.Contains(normalized, normalizeWS(c.Text)) {
			t.Errorf("chunk %d is not a contiguous span of the input", i)
		}
	}
	if !strings.HasPrefix(normalized, normalizeWS(chunks[0].Text)) {
		t.Error("first chunk does not start at the beginning of the input")
	}
	if !strings.HasSuffix(normalized, normalizeWS(chunks[len(chunks)-1].Text)[len(normalizeWS(chunks[len(chunks)-1].Text))-20:]) {
		t.Error("last chunk does not reach the end of the input")
	}
}

func TestSplitOverlapSharedBetweenChunks(t *testing.T) {
	cfg := SplitterConfig{ChunkSize: 100, OverlapRatio: 0.2}
	s, err := NewFlatSplitter(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Distinct short sentences so segments are small enough for the overlap
	// suffix to be carried into the next chunk.
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "Number %03d is here. ", i)
	}
	chunks := s.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := normalizeWS(chunks[i-1].Text)
		cur := normalizeWS(chunks[i].Text)
		prefix := cur
		if len(prefix) > 10 {
			prefix = prefix[:10]
		}
		if !strings.Contains(prev, prefix) {
			t.Errorf("chunk %d does not begin inside chunk %d's tail: %q not in %q", i, i-1, prefix, prev)
		}
	}
}

func TestSplitIdempotent(t *testing.T) {
	s, err := NewHierarchicalSplitter(SplitterConfig{ChunkSize: 150, OverlapRatio: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	md := "# A\n" + wordsText(80) + "\n## B\n" + wordsText(60)

	first := s.Split(md)
	second := s.Split(md)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text || first[i].Levels != second[i].Levels {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestFlatMatchesHierarchicalWithoutHeadings(t *testing.T) {
	cfg := SplitterConfig{ChunkSize: 200, OverlapRatio: 0.1}
	flat, err := NewFlatSplitter(cfg)
	if err != nil {
		t.Fatal(err)
	}
	hier, err := NewHierarchicalSplitter(cfg)
	if err != nil {
		t.Fatal(err)
	}

	text := wordsText(150)
	fc := flat.Split(text)
	hc := hier.Split(text)
	if len(fc) != len(hc) {
		t.Fatalf("chunk counts differ: flat %d, hierarchical %d", len(fc), len(hc))
	}
	for i := range fc {
		if fc[i].Text != hc[i].Text {
			t.Errorf("chunk %d differs without headings", i)
		}
		if hc[i].SectionLevel != 0 || hc[i].SectionPath != "" {
			t.Errorf("chunk %d should have empty lineage, got %+v", i, hc[i])
		}
	}
}

func TestFlatSplitEmptyDocument(t *testing.T) {
	s, err := NewFlatSplitter(DefaultSplitterConfig())
	if err != nil {
		t.Fatal(err)
	}
	if chunks := s.Split(""); len(chunks) != 0 {
		t.Errorf("got %d chunks for empty input, want 0", len(chunks))
	}
	if chunks := s.Split("   \n\n  "); len(chunks) != 0 {
		t.Errorf("got %d chunks for whitespace input, want 0", len(chunks))
	}
}

func TestSplitterConfigValidation(t *testing.T) {
	cases := []SplitterConfig{
		{ChunkSize: 0, OverlapRatio: 0.1},
		{ChunkSize: -5, OverlapRatio: 0.1},
		{ChunkSize: 100, OverlapRatio: -0.1},
		{ChunkSize: 100, OverlapRatio: 1.0},
	}
	for _, cfg := range cases {
		if _, err := NewHierarchicalSplitter(cfg); err == nil {
			t.Errorf("expected error for config %+v", cfg)
		}
		var splitErr *voynich.SplitError
		_, err := NewFlatSplitter(cfg)
		if err == nil {
			t.Errorf("expected error for config %+v", cfg)
			continue
		}
		if !errorsAs(err, &splitErr) {
			t.Errorf("error for %+v is not a SplitError: %v", cfg, err)
		}
	}
}

// errorsAs avoids importing errors just for one assertion helper.
func errorsAs(err error, target *(*voynich.SplitError)) bool {
	e, ok := err.(*voynich.SplitError)
	if ok {
		*target = e
	}
	return ok
}

func TestSentenceBoundaries(t *testing.T) {
	text := "Dr. Smith went home. He slept well. The price was 3.14 dollars."
	bounds := sentenceBoundaries(text)
	// "Dr." and "3.14" must not split; the two real boundaries remain.
	if len(bounds) != 2 {
		t.Fatalf("got %d boundaries (%v), want 2", len(bounds), bounds)
	}
}

func TestSentenceBoundariesCJK(t *testing.T) {
	text := "これは文です。次の文です。"
	bounds := sentenceBoundaries(text)
	if len(bounds) != 2 {
		t.Fatalf("got %d boundaries, want 2", len(bounds))
	}
}

func TestWordSegmentsHardCut(t *testing.T) {
	long := strings.Repeat("x", 250)
	segments := wordSegments(long, 100)
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	for i, seg := range segments[:2] {
		if len(seg) != 100 {
			t.Errorf("segment %d length %d, want 100", i, len(seg))
		}
	}
}

func TestWordSegmentsHardCutMultibyte(t *testing.T) {
	long := strings.Repeat("あ", 400) // 1200 bytes, no word boundaries
	segments := wordSegments(long, 1000)
	if len(segments) < 2 {
		t.Fatalf("got %d segments, want at least 2", len(segments))
	}
	var rejoined strings.Builder
	for i, seg := range segments {
		if !utf8.ValidString(seg) {
			t.Errorf("segment %d is not valid UTF-8 (len %d)", i, len(seg))
		}
		if len(seg) > 1000 {
			t.Errorf("segment %d length %d exceeds 1000", i, len(seg))
		}
		rejoined.WriteString(seg)
	}
	if rejoined.String() != long {
		t.Error("hard cut lost or altered text")
	}
}

func TestFlatSplitMultibyteChunksValid(t *testing.T) {
	s, err := NewFlatSplitter(SplitterConfig{ChunkSize: 1000, OverlapRatio: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	chunks := s.Split(strings.Repeat("あ", 400))
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	runes := 0
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d is not valid UTF-8 (len %d)", i, len(c.Text))
		}
		if len(c.Text) > 1000 {
			t.Errorf("chunk %d length %d exceeds 1000", i, len(c.Text))
		}
		runes += strings.Count(c.Text, "あ")
	}
	// Overlap repeats runes between chunks but never drops them.
	if runes < 400 {
		t.Errorf("chunks cover %d runes of 400", runes)
	}
}

func TestOverlapSuffixWordAligned(t *testing.T) {
	text := "alpha beta gamma delta"
	got := overlapSuffix(text, 11)
	if strings.Contains(got, "gam") && !strings.HasPrefix(got, "delta") {
		t.Errorf("overlap %q should not start mid-word", got)
	}
	if got != "delta" {
		t.Errorf("overlapSuffix = %q, want %q", got, "delta")
	}
	if overlapSuffix(text, 0) != "" {
		t.Error("zero overlap should be empty")
	}
	if overlapSuffix("short", 100) != "short" {
		t.Error("overlap longer than text should return the whole text")
	}
}
