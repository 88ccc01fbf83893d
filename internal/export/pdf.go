// Package export renders the current shape list to PDF.
package export

import (
	"io"

	"github.com/jung-kurt/gofpdf"

	"CollabCanvas/internal/board"
)

// World units to millimetres on the page.
const scale = 4.0

// PDF writes the shapes to w as a landscape A4 page. Positions are scaled
// down and shifted so negative world coordinates stay on the page.
func PDF(w io.Writer, shapes []board.Shape) error {
	p := gofpdf.New("L", "mm", "A4", "")
	p.AddPage()
	p.SetFont("Helvetica", "", 12)

	minX, minY := 0.0, 0.0
	for _, s := range shapes {
		if s.X < minX {
			minX = s.X
		}
		if s.Y < minY {
			minY = s.Y
		}
	}

	for _, s := range shapes {
		x := (s.X - minX) / scale
		y := (s.Y - minY) / scale
		r, g, b, a := board.ParseFill(s.Fill)
		p.SetFillColor(int(r), int(g), int(b))
		p.SetAlpha(a, "Normal")

		switch s.Type {
		case board.ShapeRect:
			p.Rect(x, y, board.RectSize/scale, board.RectSize/scale, "F")
		case board.ShapeCircle:
			p.Circle(x, y, board.CircleRadius/scale, "F")
		case board.ShapeText:
			p.SetTextColor(int(r), int(g), int(b))
			p.Text(x, y, board.TextContent)
		}
	}
	p.SetAlpha(1, "Normal")
	return p.Output(w)
}
