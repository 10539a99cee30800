package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"linkvault/internal/bookmarks/domain/model"
	bmusecase "linkvault/internal/bookmarks/usecase"
	"linkvault/internal/browser"
	apperrors "linkvault/internal/shared/errors"
)

// listMode is the state machine for list interactions.
type listMode int

const (
	listNormal  listMode = iota
	listAdding           // add form (title + url fields)
	listConfirm          // delete confirmation on selected row
)

type addField int

const (
	addTitle addField = iota
	addURL
	numAddFields
)

// -- messages --

// snapshotMsg carries the subscriber's latest cached rows and state.
type snapshotMsg struct {
	items []model.Bookmark
	state bmusecase.SubscriberState
	err   error
}

type insertResultMsg struct {
	bookmark *model.Bookmark
	err      error
}

type deleteResultMsg struct {
	id  string
	err error
}

type copyResultMsg struct{ err error }

type openResultMsg struct{ err error }

// refreshRequestedMsg asks the root model to poke the subscriber.
type refreshRequestedMsg struct{}

// logoutRequestedMsg asks the root model to sign out.
type logoutRequestedMsg struct{}

// -- model --

type listModel struct {
	service bmusecase.BookmarkServiceInterface

	items  []model.Bookmark
	state  bmusecase.SubscriberState
	cursor int

	mode       listMode
	addFields  [numAddFields]string
	addFocus   addField
	submitting bool
	formErr    string

	status  string
	syncErr string

	width  int
	height int
}

func newListModel(service bmusecase.BookmarkServiceInterface) listModel {
	return listModel{service: service}
}

func (m listModel) Init() tea.Cmd {
	return nil
}

func (m listModel) Update(msg tea.Msg) (listModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case snapshotMsg:
		m.items = msg.items
		m.state = msg.state
		m.syncErr = errorText(msg.err)
		if m.cursor >= len(m.items) {
			m.cursor = len(m.items) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		// A row deleted under an open confirmation invalidates the answer.
		if m.mode == listConfirm && len(m.items) == 0 {
			m.mode = listNormal
		}

	case insertResultMsg:
		m.submitting = false
		if msg.err != nil {
			m.formErr = errorText(msg.err)
			return m, nil
		}
		m.mode = listNormal
		m.status = fmt.Sprintf("added %q", msg.bookmark.Title)

	case deleteResultMsg:
		if msg.err != nil {
			if apperrors.IsNotFound(msg.err) {
				m.status = "already gone"
			} else {
				m.status = errorText(msg.err)
			}
			return m, nil
		}
		m.status = "bookmark deleted"

	case copyResultMsg:
		if msg.err != nil {
			m.status = "copy failed: " + errorText(msg.err)
		} else {
			m.status = "url copied"
		}

	case openResultMsg:
		if msg.err != nil {
			m.status = "open failed: " + errorText(msg.err)
		} else {
			m.status = "opened in browser"
		}

	case tea.KeyMsg:
		switch m.mode {
		case listAdding:
			return m.updateAdding(msg)
		case listConfirm:
			return m.updateConfirm(msg)
		default:
			return m.updateNormal(msg)
		}
	}
	return m, nil
}

func (m listModel) updateNormal(msg tea.KeyMsg) (listModel, tea.Cmd) {
	m.status = ""

	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "a":
		m.mode = listAdding
		m.addFields = [numAddFields]string{}
		m.addFocus = addTitle
		m.formErr = ""
	case "d":
		if m.selected() != nil {
			m.mode = listConfirm
		}
	case "c":
		if bm := m.selected(); bm != nil {
			url := bm.URL
			return m, func() tea.Msg {
				return copyResultMsg{err: clipboard.WriteAll(url)}
			}
		}
	case "o":
		if bm := m.selected(); bm != nil {
			url := bm.URL
			return m, func() tea.Msg {
				return openResultMsg{err: browser.Open(url)}
			}
		}
	case "r":
		m.status = "refreshing..."
		return m, func() tea.Msg { return refreshRequestedMsg{} }
	case "L":
		return m, func() tea.Msg { return logoutRequestedMsg{} }
	}
	return m, nil
}

func (m listModel) updateAdding(msg tea.KeyMsg) (listModel, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	m.formErr = ""

	switch msg.String() {
	case "esc":
		m.mode = listNormal
	case "tab", "down":
		m.addFocus = (m.addFocus + 1) % numAddFields
	case "shift+tab", "up":
		m.addFocus = (m.addFocus - 1 + numAddFields) % numAddFields
	case "enter":
		if m.addFocus == addTitle {
			m.addFocus = addURL
			return m, nil
		}
		return m.submitAdd()
	case "ctrl+s":
		return m.submitAdd()
	default:
		m.addFields[m.addFocus] = editRune(m.addFields[m.addFocus], msg.String())
	}
	return m, nil
}

func (m listModel) submitAdd() (listModel, tea.Cmd) {
	title := strings.TrimSpace(m.addFields[addTitle])
	rawURL := strings.TrimSpace(m.addFields[addURL])

	if title == "" {
		m.formErr = "title is required"
		m.addFocus = addTitle
		return m, nil
	}
	if rawURL == "" {
		m.formErr = "url is required"
		m.addFocus = addURL
		return m, nil
	}

	m.submitting = true
	service := m.service
	return m, func() tea.Msg {
		bm, err := service.Insert(context.Background(), title, rawURL)
		return insertResultMsg{bookmark: bm, err: err}
	}
}

func (m listModel) updateConfirm(msg tea.KeyMsg) (listModel, tea.Cmd) {
	switch msg.String() {
	case "y":
		bm := m.selected()
		m.mode = listNormal
		if bm == nil {
			return m, nil
		}
		id := bm.ID
		service := m.service
		m.status = "deleting..."
		return m, func() tea.Msg {
			return deleteResultMsg{id: id, err: service.Delete(context.Background(), id)}
		}
	case "n", "esc":
		m.mode = listNormal
	}
	return m, nil
}

// selected returns the bookmark under the cursor, or nil.
func (m listModel) selected() *model.Bookmark {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	return &m.items[m.cursor]
}

func (m listModel) View() string {
	if m.mode == listAdding {
		return m.viewAddForm()
	}

	var b strings.Builder

	if len(m.items) == 0 {
		b.WriteString("\n " + dimStyle.Render("no bookmarks yet — press a to add your first link") + "\n")
		return b.String()
	}

	titleWidth := 32
	urlWidth := m.width - titleWidth - 16
	if urlWidth < 16 {
		urlWidth = 16
	}

	for i, bm := range m.items {
		cursor := " "
		titleStyle := normalStyle
		if i == m.cursor {
			cursor = accentStyle.Render("▸")
			titleStyle = selectedStyle
		}

		title := titleStyle.Render(fmt.Sprintf("%-*s", titleWidth, truncStr(bm.Title, titleWidth)))
		url := dimStyle.Render(fmt.Sprintf("%-*s", urlWidth, truncStr(bm.URL, urlWidth)))
		age := metaStyle.Render(formatTime(bm.CreatedAt))

		fmt.Fprintf(&b, " %s %s  %s  %s\n", cursor, title, url, age)
	}

	if m.mode == listConfirm {
		if bm := m.selected(); bm != nil {
			b.WriteString("\n " + warnStyle.Render(fmt.Sprintf("delete %q? y/n", truncStr(bm.Title, 40))) + "\n")
		}
	}

	return b.String()
}

func (m listModel) viewAddForm() string {
	var b strings.Builder

	b.WriteString("\n " + accentStyle.Render("add bookmark") + "\n\n")

	labels := [numAddFields]string{"title", "url  "}
	for i := addField(0); i < numAddFields; i++ {
		cursor := " "
		style := metaStyle
		if i == m.addFocus {
			cursor = accentStyle.Render(">")
			style = selectedStyle
		}

		value := m.addFields[i]
		if i == m.addFocus && !m.submitting {
			value += accentStyle.Render("█")
		}
		if value == "" && i != m.addFocus {
			value = inputPlaceholderStyle.Render("...")
		}
		b.WriteString(" " + cursor + " " + style.Render(labels[i]) + "  " + value + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.submitting:
		b.WriteString(" " + dimStyle.Render("saving..."))
	case m.formErr != "":
		b.WriteString(" " + errorStyle.Render(m.formErr))
	default:
		b.WriteString(" " + metaStyle.Render("bare domains are fine; https is assumed"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m listModel) helpKeys() string {
	switch m.mode {
	case listAdding:
		return helpEntry("tab", "next field") + "  " + helpEntry("enter", "save") + "  " + helpEntry("esc", "cancel")
	case listConfirm:
		return helpEntry("y", "confirm") + "  " + helpEntry("n", "cancel")
	default:
		return helpEntry("j/k", "nav") + "  " + helpEntry("a", "add") + "  " + helpEntry("d", "delete") + "  " + helpEntry("c", "copy") + "  " + helpEntry("o", "open") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("L", "logout") + "  " + helpEntry("q", "quit")
	}
}
