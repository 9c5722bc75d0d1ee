package coords

import "testing"

func TestTerminalToBrowserPixelMode(t *testing.T) {
	m := New(Config{
		TermWidthPx:     1280,
		TermHeightPx:    760,
		ToolbarHeightPx: 40,
		ContentHeightPx: 720,
		ChromeWidthPx:   1280,
		ChromeHeightPx:  720,
	})

	tests := []struct {
		name       string
		tx, ty     float64
		wantX      float64
		wantY      float64
		wantOK     bool
	}{
		{"centre of content area", 640, 400, 640, 360, true},
		{"top-left of content area", 0, 40, 0, 0, true},
		{"above toolbar rejected", 100, 10, 0, 0, false},
		{"below content area rejected", 100, 800, 0, 0, false},
		{"exactly at toolbar boundary", 0, 40, 0, 0, true},
		{"exactly at content bottom boundary", 0, 760, 0, 719, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, ok := m.TerminalToBrowser(tt.tx, tt.ty)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("TerminalToBrowser(%v, %v) = (%v, %v), want (%v, %v)", tt.tx, tt.ty, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestTerminalToBrowserCellMode(t *testing.T) {
	m := New(Config{
		TermWidthPx:     800,
		TermHeightPx:    440,
		TermWidthCells:  80,
		TermHeightCells: 44,
		CellCoordinates: true,
		ToolbarHeightPx: 20,
		ContentHeightPx: 400,
		ChromeWidthPx:   800,
		ChromeHeightPx:  400,
	})

	// Cell (0,0) -> pixel centre (5, 5), above the 20px toolbar.
	if _, _, ok := m.TerminalToBrowser(0, 0); ok {
		t.Fatal("cell (0,0) should fall above the toolbar")
	}

	// Cell (39, 22): pixel centre x = 39.5*10 = 395, y = 22.5*10 = 225.
	// y is within [20, 420], so it should map.
	x, y, ok := m.TerminalToBrowser(39, 22)
	if !ok {
		t.Fatal("cell (39,22) should map inside the content area")
	}
	wantX := 395.0 // chrome_w == term_w, so identity scale
	wantY := 205.0 // (225-20) * 400/400
	if x != wantX || y != wantY {
		t.Errorf("TerminalToBrowser(39,22) = (%v, %v), want (%v, %v)", x, y, wantX, wantY)
	}
}

func TestTerminalToBrowserClampsToViewportEdges(t *testing.T) {
	m := New(Config{
		TermWidthPx:     100,
		TermHeightPx:    100,
		ToolbarHeightPx: 0,
		ContentHeightPx: 100,
		ChromeWidthPx:   50,
		ChromeHeightPx:  50,
	})

	x, y, ok := m.TerminalToBrowser(99, 99)
	if !ok {
		t.Fatal("bottom-right corner should map")
	}
	if x != 49 || y != 49 {
		t.Errorf("TerminalToBrowser(99,99) = (%v, %v), want clamped to (49, 49)", x, y)
	}
}

func TestTerminalToBrowserRejectsDegenerateConfig(t *testing.T) {
	m := New(Config{})
	if _, _, ok := m.TerminalToBrowser(0, 0); ok {
		t.Fatal("a zero-sized mapper should never report a valid mapping")
	}
}
