package tui

import (
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	bmusecase "linkvault/internal/bookmarks/usecase"
	"linkvault/internal/shared/logger"
)

func newTestSubscriber() *bmusecase.Subscriber {
	return bmusecase.NewSubscriber(nil, nil, logger.NewLoggerWithOutput("error", "text", io.Discard))
}

func newTestApp(sessions *fakeSessions) App {
	a := NewApp(sessions, &fakeService{}, newTestSubscriber())
	model, _ := a.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return model.(App)
}

func TestAppStartsAtLoginWithoutSession(t *testing.T) {
	a := newTestApp(&fakeSessions{})

	if a.view != viewLogin {
		t.Errorf("expected login view without a session, got %d", a.view)
	}
	if !strings.Contains(a.View(), "sign in") {
		t.Errorf("expected sign-in form, got:\n%s", a.View())
	}
}

func TestAppStartsAtListWithPersistedSession(t *testing.T) {
	a := newTestApp(&fakeSessions{current: testSession("ada@example.com")})

	if a.view != viewList {
		t.Errorf("expected list view with a persisted session, got %d", a.view)
	}
	if !strings.Contains(a.View(), "ada@example.com") {
		t.Errorf("expected session email in header, got:\n%s", a.View())
	}
}

func TestAppSwitchesToListOnSession(t *testing.T) {
	sessions := &fakeSessions{}
	a := newTestApp(sessions)

	sessions.current = testSession("ada@example.com")
	model, _ := a.Update(sessionEstablishedMsg{session: sessions.current})
	a = model.(App)

	if a.view != viewList {
		t.Errorf("expected list view after session established, got %d", a.view)
	}
}

func TestAppReturnsToLoginOnSignOut(t *testing.T) {
	sessions := &fakeSessions{current: testSession("ada@example.com")}
	a := newTestApp(sessions)

	model, cmd := a.Update(logoutRequestedMsg{})
	a = model.(App)
	if cmd == nil {
		t.Fatal("expected sign-out command")
	}

	msg := cmd()
	if _, ok := msg.(signedOutMsg); !ok {
		t.Fatalf("expected signedOutMsg, got %T", msg)
	}
	if sessions.signOuts != 1 {
		t.Errorf("expected one SignOut call, got %d", sessions.signOuts)
	}

	model, _ = a.Update(msg)
	a = model.(App)
	if a.view != viewLogin {
		t.Errorf("expected login view after sign-out, got %d", a.view)
	}
}

func TestAppReturnsToLoginWhenSessionDies(t *testing.T) {
	sessions := &fakeSessions{current: testSession("ada@example.com")}
	a := newTestApp(sessions)

	// Session lost (refresh token rejected): next update tick drops to login.
	sessions.current = nil
	model, cmd := a.Update(updatesAvailableMsg{})
	a = model.(App)

	if a.view != viewLogin {
		t.Errorf("expected login view after session loss, got %d", a.view)
	}
	if cmd == nil {
		t.Error("expected update wait to re-arm")
	}
}

func TestAppQuitKeys(t *testing.T) {
	a := newTestApp(&fakeSessions{current: testSession("ada@example.com")})

	_, cmd := a.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("expected quit command on q in list view")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected QuitMsg from q, got %T", cmd())
	}

	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command on ctrl+c")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected QuitMsg from ctrl+c, got %T", cmd())
	}
}

func TestAppQTypesIntoLoginForm(t *testing.T) {
	a := newTestApp(&fakeSessions{})

	model, cmd := a.Update(keyRunes("q"))
	a = model.(App)
	if cmd != nil {
		t.Error("expected q to type, not quit, in login view")
	}
	if a.login.fields[fieldEmail] != "q" {
		t.Errorf("expected q typed into email field, got %q", a.login.fields[fieldEmail])
	}
}

func TestAppQDoesNotQuitWhileAdding(t *testing.T) {
	a := newTestApp(&fakeSessions{current: testSession("ada@example.com")})

	model, _ := a.Update(keyRunes("a"))
	a = model.(App)
	model, cmd := a.Update(keyRunes("q"))
	a = model.(App)

	if cmd != nil {
		t.Error("expected q to type into the form, not quit")
	}
	if a.list.addFields[addTitle] != "q" {
		t.Errorf("expected q in title field, got %q", a.list.addFields[addTitle])
	}
}

func TestAppConnIndicatorWords(t *testing.T) {
	tests := []struct {
		state bmusecase.SubscriberState
		want  string
	}{
		{bmusecase.StateAttached, "live"},
		{bmusecase.StateAttaching, "connecting"},
		{bmusecase.StateDetached, "offline"},
	}

	for _, tc := range tests {
		got := connIndicator(tc.state)
		if !strings.Contains(got, tc.want) {
			t.Errorf("connIndicator(%v) = %q, want containing %q", tc.state, got, tc.want)
		}
	}
}

func TestAppStatusLinePrefersStatusOverSyncError(t *testing.T) {
	a := newTestApp(&fakeSessions{current: testSession("ada@example.com")})
	a.list.status = "url copied"
	a.list.syncErr = "connection refused"

	line := a.statusLine()
	if !strings.Contains(line, "url copied") {
		t.Errorf("expected status to win, got %q", line)
	}

	a.list.status = ""
	line = a.statusLine()
	if !strings.Contains(line, "connection refused") {
		t.Errorf("expected sync error shown, got %q", line)
	}
}

func TestAppRefreshRequestDoesNotCrashWithIdleSubscriber(t *testing.T) {
	a := newTestApp(&fakeSessions{current: testSession("ada@example.com")})

	// Refresh on a subscriber that was never started is a no-op.
	model, _ := a.Update(refreshRequestedMsg{})
	a = model.(App)
	if a.view != viewList {
		t.Errorf("expected list view unchanged, got %d", a.view)
	}
}
