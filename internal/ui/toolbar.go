package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"CollabCanvas/internal/board"
)

// NewToolbar builds the top bar: shape placement, view controls, export and
// sign out.
func NewToolbar(c *CanvasWidget, onExport func(), onSignOut func()) fyne.CanvasObject {
	shapes := container.NewHBox(
		widget.NewButton("Rectangle", func() { c.SetTool(board.ShapeRect) }),
		widget.NewButton("Circle", func() { c.SetTool(board.ShapeCircle) }),
		widget.NewButton("Text", func() { c.SetTool(board.ShapeText) }),
	)

	viewTools := widget.NewToolbar(
		widget.NewToolbarAction(theme.ZoomInIcon(), func() {
			c.view.ZoomIn()
			c.Refresh()
		}),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() {
			c.view.ZoomOut()
			c.Refresh()
		}),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), c.ResetView),
		widget.NewToolbarAction(theme.GridIcon(), c.ToggleGrid),
	)

	return container.NewHBox(
		widget.NewLabel("Add:"),
		shapes,
		widget.NewSeparator(),
		viewTools,
		layout.NewSpacer(),
		widget.NewButton("Export PDF", onExport),
		widget.NewButton("Sign out", onSignOut),
	)
}
