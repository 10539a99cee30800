package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	authmodel "linkvault/internal/auth/domain/model"
	authusecase "linkvault/internal/auth/usecase"
)

type loginMode int

const (
	modeSignIn loginMode = iota
	modeSignUp
)

type loginField int

const (
	fieldEmail loginField = iota
	fieldPassword
	numLoginFields
)

// -- messages --

// sessionEstablishedMsg reports a successful sign-in or sign-up. The root
// model switches to the list view on it.
type sessionEstablishedMsg struct {
	session *authmodel.Session
}

type loginFailedMsg struct {
	err error
}

// -- model --

type loginModel struct {
	sessions   authusecase.SessionStoreInterface
	fields     [numLoginFields]string
	focus      loginField
	mode       loginMode
	submitting bool
	err        string
}

func newLoginModel(sessions authusecase.SessionStoreInterface) loginModel {
	return loginModel{sessions: sessions}
}

func (m loginModel) Init() tea.Cmd {
	return nil
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case loginFailedMsg:
		m.submitting = false
		m.err = errorText(msg.err)
		return m, nil

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m loginModel) handleKey(msg tea.KeyMsg) (loginModel, tea.Cmd) {
	m.err = ""

	switch msg.String() {
	case "tab", "down":
		m.focus = (m.focus + 1) % numLoginFields
	case "shift+tab", "up":
		m.focus = (m.focus - 1 + numLoginFields) % numLoginFields
	case "ctrl+s":
		if m.mode == modeSignIn {
			m.mode = modeSignUp
		} else {
			m.mode = modeSignIn
		}
	case "enter":
		if m.focus == fieldEmail {
			m.focus = fieldPassword
			return m, nil
		}
		return m.submit()
	default:
		m.fields[m.focus] = editRune(m.fields[m.focus], msg.String())
	}
	return m, nil
}

func (m loginModel) submit() (loginModel, tea.Cmd) {
	email := strings.TrimSpace(m.fields[fieldEmail])
	password := m.fields[fieldPassword]

	if email == "" {
		m.err = "email is required"
		m.focus = fieldEmail
		return m, nil
	}
	if password == "" {
		m.err = "password is required"
		m.focus = fieldPassword
		return m, nil
	}

	m.submitting = true
	sessions := m.sessions
	mode := m.mode
	return m, func() tea.Msg {
		var (
			sess *authmodel.Session
			err  error
		)
		if mode == modeSignUp {
			sess, err = sessions.SignUp(context.Background(), email, password)
		} else {
			sess, err = sessions.SignIn(context.Background(), email, password)
		}
		if err != nil {
			return loginFailedMsg{err: err}
		}
		return sessionEstablishedMsg{session: sess}
	}
}

// reset clears credentials and errors, keeping the mode.
func (m loginModel) reset() loginModel {
	m.fields = [numLoginFields]string{}
	m.focus = fieldEmail
	m.submitting = false
	m.err = ""
	return m
}

func (m loginModel) View() string {
	var b strings.Builder

	title := "sign in"
	if m.mode == modeSignUp {
		title = "create account"
	}
	b.WriteString("\n " + accentStyle.Render(title) + "\n\n")

	labels := [numLoginFields]string{"email   ", "password"}
	for i := loginField(0); i < numLoginFields; i++ {
		cursor := " "
		style := metaStyle
		if i == m.focus {
			cursor = accentStyle.Render(">")
			style = selectedStyle
		}

		value := m.fields[i]
		if i == fieldPassword {
			value = maskString(value)
		}
		if i == m.focus && !m.submitting {
			value += accentStyle.Render("█")
		}
		if value == "" && i != m.focus {
			value = inputPlaceholderStyle.Render("...")
		}
		b.WriteString(" " + cursor + " " + style.Render(labels[i]) + "  " + value + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.submitting:
		b.WriteString(" " + dimStyle.Render("signing in..."))
	case m.err != "":
		b.WriteString(" " + errorStyle.Render(m.err))
	default:
		toggle := "ctrl+s to create an account instead"
		if m.mode == modeSignUp {
			toggle = "ctrl+s to sign in instead"
		}
		b.WriteString(" " + metaStyle.Render(toggle))
	}
	b.WriteString("\n")

	return b.String()
}

func (m loginModel) helpKeys() string {
	return helpEntry("tab", "next field") + "  " + helpEntry("enter", "submit") + "  " + helpEntry("ctrl+s", "switch mode") + "  " + helpEntry("ctrl+c", "quit")
}
