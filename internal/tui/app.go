// Package tui is the terminal client: a login form and a live bookmark list
// kept in sync by the realtime subscriber.
package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	authusecase "linkvault/internal/auth/usecase"
	bmusecase "linkvault/internal/bookmarks/usecase"
)

type view int

const (
	viewLogin view = iota
	viewList
)

// chromeLines is the fixed vertical budget: header(2) + status(1) + help(1).
const chromeLines = 4

// -- messages --

// updatesAvailableMsg signals that the subscriber's snapshot changed.
type updatesAvailableMsg struct{}

type signedOutMsg struct{ err error }

// waitForUpdates blocks on the subscriber's update channel. Re-armed after
// every receive, so each tick produces exactly one snapshot.
func waitForUpdates(sub *bmusecase.Subscriber) tea.Cmd {
	if sub == nil {
		return nil
	}
	updates := sub.Updates()
	return func() tea.Msg {
		<-updates
		return updatesAvailableMsg{}
	}
}

// App is the root Bubbletea model.
type App struct {
	sessions   authusecase.SessionStoreInterface
	subscriber *bmusecase.Subscriber

	view  view
	login loginModel
	list  listModel

	width  int
	height int
}

// NewApp creates the TUI application. A persisted session skips the login
// view.
func NewApp(sessions authusecase.SessionStoreInterface, service bmusecase.BookmarkServiceInterface, subscriber *bmusecase.Subscriber) App {
	a := App{
		sessions:   sessions,
		subscriber: subscriber,
		login:      newLoginModel(sessions),
		list:       newListModel(service),
	}
	if sessions != nil && sessions.Current() != nil {
		a.view = viewList
	}
	a.applySnapshot()
	return a
}

func (a App) Init() tea.Cmd {
	return waitForUpdates(a.subscriber)
}

// applySnapshot feeds the subscriber's current state into the list model.
func (a *App) applySnapshot() {
	if a.subscriber == nil {
		return
	}
	items, state, err := a.subscriber.Snapshot()
	a.list, _ = a.list.Update(snapshotMsg{items: items, state: state, err: err})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - chromeLines}
		a.list, _ = a.list.Update(bodyMsg)
		return a, nil

	case updatesAvailableMsg:
		a.applySnapshot()
		// A dead session sends the user back to the login form.
		if a.view == viewList && a.sessions != nil && a.sessions.Current() == nil {
			a.view = viewLogin
			a.login = a.login.reset()
		}
		return a, waitForUpdates(a.subscriber)

	case sessionEstablishedMsg:
		a.view = viewList
		a.applySnapshot()
		return a, nil

	case refreshRequestedMsg:
		if a.subscriber != nil {
			a.subscriber.Refresh()
		}
		return a, nil

	case logoutRequestedMsg:
		sessions := a.sessions
		return a, func() tea.Msg {
			return signedOutMsg{err: sessions.SignOut(context.Background())}
		}

	case signedOutMsg:
		a.view = viewLogin
		a.login = a.login.reset()
		a.applySnapshot()
		return a, nil

	case insertResultMsg:
		// The change feed refreshes attached subscribers on its own; the
		// explicit poke covers the offline path.
		if msg.err == nil && a.subscriber != nil {
			a.subscriber.Refresh()
		}

	case deleteResultMsg:
		if msg.err == nil && a.subscriber != nil {
			a.subscriber.Refresh()
		}

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.view == viewList && a.list.mode == listNormal && msg.String() == "q" {
			return a, tea.Quit
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewList:
		a.list, cmd = a.list.Update(msg)
	}
	return a, cmd
}

func (a App) View() string {
	header := a.headerLine()

	var body, status, help string
	switch a.view {
	case viewLogin:
		body = a.login.View()
		help = " " + a.login.helpKeys()
	case viewList:
		body = a.list.View()
		status = a.statusLine()
		help = " " + a.list.helpKeys()
	}

	body = strings.TrimRight(truncateToHeight(body, a.height-chromeLines), "\n")

	return header + "\n\n" + body + "\n" + status + "\n" + help
}

func (a App) headerLine() string {
	left := " " + accentStyle.Render("linkvault")
	if a.view == viewList {
		left += "  " + connIndicator(a.list.state)
	}

	email := ""
	if a.sessions != nil {
		if sess := a.sessions.Current(); sess != nil {
			email = metaStyle.Render(sess.User.Email)
		}
	}
	if email == "" {
		return left
	}

	pad := a.width - lipgloss.Width(left) - lipgloss.Width(email) - 1
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + email
}

func (a App) statusLine() string {
	if a.list.status != "" {
		return " " + okStyle.Render(a.list.status)
	}
	if a.list.syncErr != "" {
		return " " + errorStyle.Render("sync: "+a.list.syncErr)
	}
	return ""
}

// connIndicator renders the subscription state as a colored dot and word.
func connIndicator(state bmusecase.SubscriberState) string {
	switch state {
	case bmusecase.StateAttached:
		return liveDotStyle.Render("●") + " " + okStyle.Render("live")
	case bmusecase.StateAttaching:
		return connectingDotStyle.Render("●") + " " + warnStyle.Render("connecting")
	default:
		return offlineDotStyle.Render("●") + " " + dimStyle.Render("offline")
	}
}
