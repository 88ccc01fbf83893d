package ui

import (
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"CollabCanvas/internal/board"
	"CollabCanvas/internal/cursor"
	"CollabCanvas/internal/export"
	"CollabCanvas/internal/identity"
	"CollabCanvas/internal/presence"
	"CollabCanvas/internal/shapelock"
	"CollabCanvas/internal/viewport"
)

// Workspace bundles the per-identity sync components. Close tears them all
// down; a new Workspace is built on the next sign-in.
type Workspace struct {
	Self     identity.User
	Engine   *board.Engine
	Locks    *shapelock.Manager
	Cursors  *cursor.Broadcaster
	Presence *presence.Tracker
	Close    func()
}

// Run opens the main window and drives the sign-in/sign-out lifecycle.
// connect is called once per sign-in to dial the hub and assemble the
// workspace.
func Run(session *identity.Session, connect func(identity.User) (*Workspace, error)) {
	a := app.New()
	win := a.NewWindow("Collaborative Canvas")
	win.Resize(fyne.NewSize(1024, 768))

	var current *Workspace
	apply := func(u *identity.User) {
		if current != nil {
			current.Close()
			current = nil
		}
		if u == nil {
			win.SetContent(NewLoginForm(session))
			return
		}
		ws, err := connect(*u)
		if err != nil {
			log.Printf("[ui] connect failed: %v", err)
			win.SetContent(container.NewCenter(container.NewVBox(
				widget.NewLabel("Could not reach the canvas server: "+err.Error()),
				widget.NewButton("Back to sign in", session.SignOut),
			)))
			return
		}
		current = ws
		win.SetContent(buildWorkspace(win, session, ws))
	}

	// The immediate callback runs before the event loop; later ones come
	// from auth goroutines and must hop onto the UI thread.
	first := true
	cancel := session.Subscribe(func(u *identity.User) {
		if first {
			first = false
			apply(u)
			return
		}
		fyne.Do(func() { apply(u) })
	})
	defer cancel()

	win.ShowAndRun()
	if current != nil {
		current.Close()
	}
}

func buildWorkspace(win fyne.Window, session *identity.Session, ws *Workspace) fyne.CanvasObject {
	view := viewport.New(1024, 768)
	surface := NewCanvasWidget(ws.Engine, ws.Locks, ws.Cursors, view, ws.Self)

	status := widget.NewLabel("Connected as " + ws.Self.Username)
	surface.SetStatus(func(text string) {
		fyne.Do(func() { status.SetText(text) })
	})

	// Shape, lock and cursor changes arrive on network goroutines.
	redraw := func() { fyne.Do(surface.Refresh) }
	ws.Engine.OnChange(redraw)
	ws.Locks.OnChange(redraw)
	ws.Cursors.OnChange(redraw)

	onExport := func() {
		dialog.ShowFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil || writer == nil {
				return
			}
			defer writer.Close()
			if err := export.PDF(writer, ws.Engine.Shapes()); err != nil {
				log.Printf("[ui] export failed: %v", err)
				status.SetText("Export failed: " + err.Error())
				return
			}
			status.SetText("Exported to " + writer.URI().Name())
		}, win)
	}

	toolbar := NewToolbar(surface, onExport, session.SignOut)
	presenceBar := NewPresenceBar(ws.Presence)
	bottom := container.NewVBox(presenceBar.Object(), status)

	return container.NewBorder(toolbar, bottom, nil, nil, surface)
}
