// Package coords implements CoordinateMapper: the pure, stateless
// translation from a terminal's notion of where the pointer is (cell or
// pixel coordinates, in the terminal's own surface) to the pixel
// coordinates Chromium's Input.dispatchMouseEvent expects in its
// viewport's coordinate space.
package coords

import "math"

// Config is CoordinateMapper's construction-time geometry. All fields
// are set once; the mapper never mutates them.
type Config struct {
	// TermWidthPx, TermHeightPx is the terminal surface size in pixels.
	TermWidthPx, TermHeightPx float64
	// TermWidthCells, TermHeightCells is the terminal surface size in
	// character cells. Used only when CellCoordinates is true.
	TermWidthCells, TermHeightCells int
	// CellCoordinates reports whether TerminalToBrowser's input is given
	// in cell indices rather than pixels; the mapper converts using each
	// cell's centre.
	CellCoordinates bool
	// ToolbarHeightPx is the pixel height of any chrome (browser toolbar
	// the terminal renders) above the content area. Coordinates above
	// this are rejected.
	ToolbarHeightPx float64
	// ContentHeightPx is the pixel height of the rendered browser content
	// area, i.e. what's below the toolbar. Coordinates below
	// ToolbarHeightPx+ContentHeightPx are rejected.
	ContentHeightPx float64
	// ChromeWidthPx, ChromeHeightPx is Chromium's own viewport size, the
	// output coordinate space.
	ChromeWidthPx, ChromeHeightPx float64
}

// CoordinateMapper translates terminal pointer coordinates into
// Chromium viewport pixel coordinates. It holds no mutable state past
// construction.
type CoordinateMapper struct {
	cfg Config
}

// New constructs a CoordinateMapper from cfg.
func New(cfg Config) *CoordinateMapper {
	return &CoordinateMapper{cfg: cfg}
}

// TerminalToBrowser converts a terminal-space coordinate (cell or pixel,
// per Config.CellCoordinates) into Chromium viewport pixels. ok is false
// when the point falls above the toolbar or below the content area.
func (m *CoordinateMapper) TerminalToBrowser(tx, ty float64) (x, y float64, ok bool) {
	px, py := tx, ty
	if m.cfg.CellCoordinates && m.cfg.TermWidthCells > 0 && m.cfg.TermHeightCells > 0 {
		cellW := m.cfg.TermWidthPx / float64(m.cfg.TermWidthCells)
		cellH := m.cfg.TermHeightPx / float64(m.cfg.TermHeightCells)
		px = (tx + 0.5) * cellW
		py = (ty + 0.5) * cellH
	}

	if py < m.cfg.ToolbarHeightPx {
		return 0, 0, false
	}
	if py > m.cfg.ToolbarHeightPx+m.cfg.ContentHeightPx {
		return 0, 0, false
	}
	if m.cfg.TermWidthPx <= 0 || m.cfg.ContentHeightPx <= 0 {
		return 0, 0, false
	}

	bx := math.Round(px * m.cfg.ChromeWidthPx / m.cfg.TermWidthPx)
	by := math.Round((py - m.cfg.ToolbarHeightPx) * m.cfg.ChromeHeightPx / m.cfg.ContentHeightPx)

	bx = clamp(bx, 0, m.cfg.ChromeWidthPx-1)
	by = clamp(by, 0, m.cfg.ChromeHeightPx-1)
	return bx, by, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
