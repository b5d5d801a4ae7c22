package voynich

import "testing"

func TestDeriveSection(t *testing.T) {
	tests := []struct {
		name      string
		levels    [HeadingDepth]string
		wantPath  string
		wantLevel int
	}{
		{"no headings", [HeadingDepth]string{}, "", 0},
		{"single", [HeadingDepth]string{"Intro"}, "Intro", 1},
		{"nested", [HeadingDepth]string{"Guide", "Install"}, "Guide > Install", 2},
		{"deep", [HeadingDepth]string{"A", "B", "C", "D", "E", "F"}, "A > B > C > D > E > F", 6},
		{"sparse lineage", [HeadingDepth]string{"A", "", "C"}, "A > C", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Chunk{Levels: tt.levels}
			c.DeriveSection()
			if c.SectionPath != tt.wantPath {
				t.Errorf("SectionPath = %q, want %q", c.SectionPath, tt.wantPath)
			}
			if c.SectionLevel != tt.wantLevel {
				t.Errorf("SectionLevel = %d, want %d", c.SectionLevel, tt.wantLevel)
			}
		})
	}
}
