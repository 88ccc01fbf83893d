package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"CollabCanvas/internal/identity"
)

// NewLoginForm builds the sign-in / sign-up form. Auth requests run off the
// UI thread; failures land in the error label and leave the form editable.
func NewLoginForm(session *identity.Session) fyne.CanvasObject {
	email := widget.NewEntry()
	email.SetPlaceHolder("Email")
	password := widget.NewPasswordEntry()
	password.SetPlaceHolder("Password")
	username := widget.NewEntry()
	username.SetPlaceHolder("Username (sign up only)")

	errLabel := widget.NewLabel("")
	errLabel.Wrapping = fyne.TextWrapWord

	var signIn, signUp *widget.Button
	setBusy := func(busy bool) {
		if busy {
			signIn.Disable()
			signUp.Disable()
		} else {
			signIn.Enable()
			signUp.Enable()
		}
	}

	submit := func(do func() error) {
		errLabel.SetText("")
		setBusy(true)
		go func() {
			err := do()
			fyne.Do(func() {
				setBusy(false)
				if err != nil {
					errLabel.SetText(err.Error())
				}
			})
		}()
	}

	signIn = widget.NewButton("Sign in", func() {
		e, p := email.Text, password.Text
		submit(func() error { return session.SignIn(e, p) })
	})
	signUp = widget.NewButton("Sign up", func() {
		e, p, u := email.Text, password.Text, username.Text
		submit(func() error { return session.SignUp(e, p, u) })
	})

	form := container.NewVBox(
		widget.NewLabelWithStyle("Collaborative Canvas", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		email,
		password,
		username,
		signIn,
		signUp,
		errLabel,
	)
	return container.NewCenter(container.NewGridWrap(fyne.NewSize(320, 300), form))
}
