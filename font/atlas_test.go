package font

import "testing"

func TestBuildRejectsNonPositivePixelHeight(t *testing.T) {
	if _, err := Build([]byte{}, 0, 0, nil); err == nil {
		t.Fatalf("expected error for pixelHeight <= 0")
	}
}

func TestBuildRejectsInvalidTTF(t *testing.T) {
	if _, err := Build([]byte("not a font"), 16, 0, nil); err == nil {
		t.Fatalf("expected parse error for garbage TTF bytes")
	}
}

func TestAtlasGlyphFallsBackToQuestionMark(t *testing.T) {
	fallback := Glyph{Advance: 7}
	a := &Atlas{
		glyphs:   map[rune]Glyph{'?': fallback, 'A': {Advance: 9}},
		fallback: fallback,
	}

	if got := a.Glyph('A'); got.Advance != 9 {
		t.Fatalf("expected direct glyph hit for 'A', got %+v", got)
	}
	if got := a.Glyph(0x1F600); got != fallback {
		t.Fatalf("expected fallback glyph for unmapped codepoint, got %+v", got)
	}
}

func TestShelfPackerFillsRowsLeftToRightThenWraps(t *testing.T) {
	p := newShelfPacker(10, 10)

	x1, y1, ok := p.place(4, 3)
	if !ok || x1 != 0 || y1 != 0 {
		t.Fatalf("first placement = (%d,%d,%v), want (0,0,true)", x1, y1, ok)
	}

	x2, y2, ok := p.place(4, 2)
	if !ok || x2 != 4 || y2 != 0 {
		t.Fatalf("second placement = (%d,%d,%v), want (4,0,true)", x2, y2, ok)
	}

	// Doesn't fit in remaining row width (10-8=2 < 4): wraps to a new row
	// below the tallest glyph placed so far in the current row (3).
	x3, y3, ok := p.place(4, 3)
	if !ok || x3 != 0 || y3 != 3 {
		t.Fatalf("third placement = (%d,%d,%v), want (0,3,true)", x3, y3, ok)
	}
}

func TestShelfPackerReportsFullWhenExhausted(t *testing.T) {
	p := newShelfPacker(4, 4)
	if _, _, ok := p.place(4, 4); !ok {
		t.Fatalf("expected first exact-fit placement to succeed")
	}
	if _, _, ok := p.place(1, 1); ok {
		t.Fatalf("expected placement to fail once atlas is full")
	}
}
