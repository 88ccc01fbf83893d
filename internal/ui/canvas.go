// Package ui is the fyne front end: the canvas surface, the toolbar, the
// presence bar and the sign-in form. All shared state lives in the sync
// components; the widgets here only render it and translate gestures into
// component calls.
package ui

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"CollabCanvas/internal/board"
	"CollabCanvas/internal/cursor"
	"CollabCanvas/internal/identity"
	"CollabCanvas/internal/shapelock"
	"CollabCanvas/internal/viewport"
)

const gridStep = 50.0 // world units

// CanvasWidget renders the shared canvas and turns pointer gestures into
// engine, lock and cursor calls.
type CanvasWidget struct {
	widget.BaseWidget
	engine  *board.Engine
	locks   *shapelock.Manager
	cursors *cursor.Broadcaster
	view    *viewport.Viewport
	self    identity.User

	mu       sync.Mutex
	tool     board.ShapeType // pending placement, "" when selecting
	dragID   string
	dragX    float64 // transient world position while dragging
	dragY    float64
	grabDX   float64 // pointer offset inside the grabbed shape
	grabDY   float64
	panning  bool
	showGrid bool

	status func(string)
}

var _ fyne.Widget = (*CanvasWidget)(nil)
var _ fyne.Draggable = (*CanvasWidget)(nil)
var _ desktop.Mouseable = (*CanvasWidget)(nil)
var _ desktop.Hoverable = (*CanvasWidget)(nil)

func NewCanvasWidget(engine *board.Engine, locks *shapelock.Manager, cursors *cursor.Broadcaster, view *viewport.Viewport, self identity.User) *CanvasWidget {
	c := &CanvasWidget{
		engine:   engine,
		locks:    locks,
		cursors:  cursors,
		view:     view,
		self:     self,
		showGrid: true,
	}
	c.ExtendBaseWidget(c)
	return c
}

// SetStatus installs the status-line callback.
func (c *CanvasWidget) SetStatus(fn func(string)) {
	c.mu.Lock()
	c.status = fn
	c.mu.Unlock()
}

func (c *CanvasWidget) setStatus(text string) {
	c.mu.Lock()
	fn := c.status
	c.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

// SetTool arms shape placement; the next primary click places the shape.
func (c *CanvasWidget) SetTool(t board.ShapeType) {
	c.mu.Lock()
	c.tool = t
	c.mu.Unlock()
}

// ToggleGrid flips grid rendering.
func (c *CanvasWidget) ToggleGrid() {
	c.mu.Lock()
	c.showGrid = !c.showGrid
	c.mu.Unlock()
	c.Refresh()
}

// ResetView recenters the viewport at zoom 1.
func (c *CanvasWidget) ResetView() {
	size := c.Size()
	c.view.SetPosition(viewport.Point{X: float64(size.Width) / 2, Y: float64(size.Height) / 2})
	c.view.SetZoom(1)
	c.Refresh()
}

// hitTest returns the topmost shape containing the world point.
func (c *CanvasWidget) hitTest(wx, wy float64) (board.Shape, bool) {
	shapes := c.engine.Shapes()
	for i := len(shapes) - 1; i >= 0; i-- {
		s := shapes[i]
		switch s.Type {
		case board.ShapeRect:
			if wx >= s.X && wx <= s.X+board.RectSize && wy >= s.Y && wy <= s.Y+board.RectSize {
				return s, true
			}
		case board.ShapeCircle:
			dx, dy := wx-s.X, wy-s.Y
			if dx*dx+dy*dy <= board.CircleRadius*board.CircleRadius {
				return s, true
			}
		case board.ShapeText:
			if wx >= s.X && wx <= s.X+60 && wy >= s.Y && wy <= s.Y+24 {
				return s, true
			}
		}
	}
	return board.Shape{}, false
}

func (c *CanvasWidget) MouseDown(e *desktop.MouseEvent) {
	wx, wy := c.view.ScreenToWorld(float64(e.Position.X), float64(e.Position.Y))

	if e.Button == desktop.MouseButtonSecondary {
		c.deleteAt(wx, wy)
		return
	}
	if e.Button != desktop.MouseButtonPrimary {
		return
	}

	c.mu.Lock()
	tool := c.tool
	c.tool = ""
	c.mu.Unlock()
	if tool != "" {
		c.engine.AddShape(tool, wx, wy)
		c.setStatus("Added " + string(tool))
		c.Refresh()
		return
	}

	shape, ok := c.hitTest(wx, wy)
	if !ok {
		c.mu.Lock()
		c.panning = true
		c.mu.Unlock()
		return
	}
	// The lock is an advisory claim. The drag proceeds even when another
	// user holds it; the holder's stroke highlight is the only contention
	// signal, and concurrent moves resolve last-write-wins.
	c.locks.Lock(shape.ID)
	c.engine.SetDragging(shape.ID)
	c.mu.Lock()
	c.dragID = shape.ID
	c.dragX = shape.X
	c.dragY = shape.Y
	c.grabDX = wx - shape.X
	c.grabDY = wy - shape.Y
	c.mu.Unlock()
}

func (c *CanvasWidget) deleteAt(wx, wy float64) {
	shape, ok := c.hitTest(wx, wy)
	if !ok {
		return
	}
	// Advisory claim only; the delete is not blocked by a foreign holder.
	c.locks.Lock(shape.ID)
	defer c.locks.Unlock(shape.ID)
	if err := c.engine.DeleteShape(shape.ID); err != nil {
		c.setStatus("Shape is still saving, try again")
		return
	}
	c.Refresh()
}

func (c *CanvasWidget) Dragged(e *fyne.DragEvent) {
	c.mu.Lock()
	dragID := c.dragID
	panning := c.panning
	grabDX, grabDY := c.grabDX, c.grabDY
	c.mu.Unlock()

	if dragID != "" {
		wx, wy := c.view.ScreenToWorld(float64(e.Position.X), float64(e.Position.Y))
		x, y := wx-grabDX, wy-grabDY
		c.mu.Lock()
		c.dragX, c.dragY = x, y
		c.mu.Unlock()
		c.engine.BroadcastPosition(dragID, x, y)
		c.Refresh()
		return
	}
	if panning {
		c.view.Pan(float64(e.Dragged.DX), float64(e.Dragged.DY))
		c.Refresh()
	}
}

func (c *CanvasWidget) DragEnd() {
	c.mu.Lock()
	dragID := c.dragID
	x, y := c.dragX, c.dragY
	c.dragID = ""
	c.panning = false
	c.mu.Unlock()
	if dragID == "" {
		return
	}
	// Clear suppression before the durable update so its own feed echo
	// is applied normally.
	c.engine.SetDragging("")
	if err := c.engine.UpdateShape(dragID, x, y); err != nil {
		c.setStatus("Shape is still saving, move not stored")
	}
	c.locks.Unlock(dragID)
	c.Refresh()
}

func (c *CanvasWidget) MouseUp(e *desktop.MouseEvent) {
	// A click without motion never produces DragEnd, so release here too.
	c.DragEnd()
}

func (c *CanvasWidget) MouseMoved(e *desktop.MouseEvent) {
	wx, wy := c.view.ScreenToWorld(float64(e.Position.X), float64(e.Position.Y))
	c.cursors.Broadcast(wx, wy)
}

func (c *CanvasWidget) MouseIn(*desktop.MouseEvent) {}
func (c *CanvasWidget) MouseOut()                   {}

func (c *CanvasWidget) Scrolled(e *fyne.ScrollEvent) {
	if e.Scrolled.DY > 0 {
		c.view.ZoomIn()
	} else {
		c.view.ZoomOut()
	}
	c.Refresh()
}

func (c *CanvasWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &canvasRenderer{widget: c}
	r.background = canvas.NewRectangle(color.NRGBA{R: 245, G: 246, B: 248, A: 255})
	return r
}

type canvasRenderer struct {
	widget     *CanvasWidget
	background *canvas.Rectangle
}

func (r *canvasRenderer) Objects() []fyne.CanvasObject {
	c := r.widget
	objects := []fyne.CanvasObject{r.background}

	size := c.Size()
	if c.engine.Loading() {
		label := canvas.NewText("Loading canvas...", color.Gray{Y: 120})
		label.Move(fyne.NewPos(size.Width/2-50, size.Height/2))
		return append(objects, label)
	}

	c.mu.Lock()
	showGrid := c.showGrid
	dragID := c.dragID
	dragX, dragY := c.dragX, c.dragY
	c.mu.Unlock()

	if showGrid {
		objects = append(objects, r.gridLines(size)...)
	}

	locks := c.locks.Locks()
	for _, s := range c.engine.Shapes() {
		if s.ID == dragID {
			s.X, s.Y = dragX, dragY
		}
		var stroke color.Color
		if l, ok := locks[s.ID]; ok {
			cr, cg, cb, _ := board.ParseFill(l.Color)
			stroke = color.NRGBA{R: cr, G: cg, B: cb, A: 255}
		}
		objects = append(objects, r.shapeObject(s, stroke))
	}

	objects = append(objects, r.cursorObjects()...)
	return objects
}

func (r *canvasRenderer) gridLines(size fyne.Size) []fyne.CanvasObject {
	c := r.widget
	gridColor := color.NRGBA{R: 220, G: 220, B: 220, A: 100}
	minX, minY, maxX, maxY := c.view.VisibleWorldBounds(float64(size.Width), float64(size.Height))

	var lines []fyne.CanvasObject
	startX := float64(int(minX/gridStep)-1) * gridStep
	for x := startX; x <= maxX; x += gridStep {
		sx, _ := c.view.WorldToScreen(x, 0)
		line := canvas.NewLine(gridColor)
		line.StrokeWidth = 0.5
		line.Position1 = fyne.NewPos(float32(sx), 0)
		line.Position2 = fyne.NewPos(float32(sx), size.Height)
		lines = append(lines, line)
	}
	startY := float64(int(minY/gridStep)-1) * gridStep
	for y := startY; y <= maxY; y += gridStep {
		_, sy := c.view.WorldToScreen(0, y)
		line := canvas.NewLine(gridColor)
		line.StrokeWidth = 0.5
		line.Position1 = fyne.NewPos(0, float32(sy))
		line.Position2 = fyne.NewPos(size.Width, float32(sy))
		lines = append(lines, line)
	}
	return lines
}

func (r *canvasRenderer) shapeObject(s board.Shape, stroke color.Color) fyne.CanvasObject {
	c := r.widget
	zoom := float32(c.view.Zoom())
	fr, fg, fb, fa := board.ParseFill(s.Fill)
	fill := color.NRGBA{R: fr, G: fg, B: fb, A: uint8(fa * 255)}

	switch s.Type {
	case board.ShapeCircle:
		sx, sy := c.view.WorldToScreen(s.X, s.Y)
		radius := float32(board.CircleRadius) * zoom
		circle := canvas.NewCircle(fill)
		if stroke != nil {
			circle.StrokeColor = stroke
			circle.StrokeWidth = 3
		}
		circle.Move(fyne.NewPos(float32(sx)-radius, float32(sy)-radius))
		circle.Resize(fyne.NewSize(radius*2, radius*2))
		return circle
	case board.ShapeText:
		sx, sy := c.view.WorldToScreen(s.X, s.Y)
		text := canvas.NewText(board.TextContent, fill)
		text.TextSize = 16 * zoom
		text.Move(fyne.NewPos(float32(sx), float32(sy)))
		if stroke == nil {
			return text
		}
		box := canvas.NewRectangle(color.Transparent)
		box.StrokeColor = stroke
		box.StrokeWidth = 2
		box.Move(fyne.NewPos(float32(sx)-2, float32(sy)-2))
		box.Resize(fyne.NewSize(60*zoom+4, 24*zoom+4))
		return container.NewWithoutLayout(box, text)
	default:
		sx, sy := c.view.WorldToScreen(s.X, s.Y)
		side := float32(board.RectSize) * zoom
		rect := canvas.NewRectangle(fill)
		if stroke != nil {
			rect.StrokeColor = stroke
			rect.StrokeWidth = 3
		}
		rect.Move(fyne.NewPos(float32(sx), float32(sy)))
		rect.Resize(fyne.NewSize(side, side))
		return rect
	}
}

func (r *canvasRenderer) cursorObjects() []fyne.CanvasObject {
	c := r.widget
	var objects []fyne.CanvasObject
	for _, cur := range c.cursors.Cursors() {
		sx, sy := c.view.WorldToScreen(cur.X, cur.Y)
		cr, cg, cb, _ := board.ParseFill(cur.Color)
		tint := color.NRGBA{R: cr, G: cg, B: cb, A: 255}

		dot := canvas.NewCircle(tint)
		dot.Move(fyne.NewPos(float32(sx)-4, float32(sy)-4))
		dot.Resize(fyne.NewSize(8, 8))
		objects = append(objects, dot)

		name := canvas.NewText(cur.Username, tint)
		name.TextSize = 12
		name.Move(fyne.NewPos(float32(sx)+8, float32(sy)+8))
		objects = append(objects, name)
	}
	return objects
}

func (r *canvasRenderer) Layout(size fyne.Size) { r.background.Resize(size) }
func (r *canvasRenderer) MinSize() fyne.Size    { return fyne.NewSize(300, 300) }
func (r *canvasRenderer) Refresh()              { canvas.Refresh(r.widget) }
func (r *canvasRenderer) Destroy()              {}
