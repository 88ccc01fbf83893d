package ui

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"CollabCanvas/internal/board"
	"CollabCanvas/internal/presence"
)

// PresenceBar shows who is online, each name next to a swatch in that
// user's color. It re-renders from every membership snapshot.
type PresenceBar struct {
	tracker *presence.Tracker
	box     *fyne.Container
}

// NewPresenceBar subscribes to the tracker. Snapshot callbacks arrive on
// the read-loop goroutine, so the refresh hops onto the UI thread.
func NewPresenceBar(tracker *presence.Tracker) *PresenceBar {
	p := &PresenceBar{tracker: tracker, box: container.NewHBox()}
	tracker.OnChange(func() {
		fyne.Do(p.rebuild)
	})
	p.rebuild()
	return p
}

// Object returns the renderable container.
func (p *PresenceBar) Object() fyne.CanvasObject { return p.box }

func (p *PresenceBar) rebuild() {
	users := p.tracker.OnlineUsers()

	items := []fyne.CanvasObject{}
	if p.tracker.IsConnected() {
		items = append(items, widget.NewLabel(fmt.Sprintf("Online (%d):", len(users))))
	} else {
		items = append(items, widget.NewLabel("Offline"))
	}
	for _, u := range users {
		r, g, b, _ := board.ParseFill(u.Color)
		swatch := canvas.NewRectangle(color.NRGBA{R: r, G: g, B: b, A: 255})
		swatch.SetMinSize(fyne.NewSize(12, 12))
		items = append(items,
			container.NewCenter(swatch),
			widget.NewLabel(u.Username),
		)
	}
	p.box.Objects = items
	p.box.Refresh()
}
