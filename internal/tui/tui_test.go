package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hackclub/slack-emoji-dl/internal/config"
	"github.com/hackclub/slack-emoji-dl/internal/download"
	"github.com/hackclub/slack-emoji-dl/internal/model"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_TogglesOptions(t *testing.T) {
	m := NewModel(config.DefaultSettings())

	if !m.skipExisting || m.createIndex || m.verbose {
		t.Fatalf("unexpected initial options: skip=%v index=%v verbose=%v", m.skipExisting, m.createIndex, m.verbose)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})

	if m.skipExisting || !m.createIndex || !m.verbose {
		t.Errorf("options not toggled: skip=%v index=%v verbose=%v", m.skipExisting, m.createIndex, m.verbose)
	}
}

func TestModel_PrefillsListingURL(t *testing.T) {
	settings := config.DefaultSettings()
	settings.APIURL = "https://emoji.test/api"

	m := NewModel(settings)

	if got := m.textInput.Value(); got != "https://emoji.test/api" {
		t.Errorf("input = %q", got)
	}
	if !strings.Contains(m.View(), "Emoji listing URL") {
		t.Error("input view should ask for the listing URL")
	}
}

func TestModel_VerboseEventsHidden(t *testing.T) {
	m := NewModel(nil)

	m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "Downloaded: wave.gif", Level: download.LevelVerbose}})
	m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "Found 3 emoji", Level: download.LevelInfo}})

	if len(m.logs) != 1 || m.logs[0].Message != "Found 3 emoji" {
		t.Errorf("logs = %+v, want only the info line", m.logs)
	}
}

func TestModel_KeepsLastLogs(t *testing.T) {
	m := NewModel(nil)

	for i := 0; i < maxLogs+5; i++ {
		m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "line", Level: download.LevelInfo}})
	}

	if len(m.logs) != maxLogs {
		t.Errorf("kept %d logs, want %d", len(m.logs), maxLogs)
	}
}

func TestModel_DownloadDone(t *testing.T) {
	tests := []struct {
		name      string
		msg       DownloadDoneMsg
		wantState State
		wantView  string
	}{
		{
			name:      "all succeeded",
			msg:       DownloadDoneMsg{Summary: model.Summary{Attempted: 2, Succeeded: 2, Bytes: 2048}},
			wantState: StateComplete,
			wantView:  "Download Complete!",
		},
		{
			name:      "some failed",
			msg:       DownloadDoneMsg{Summary: model.Summary{Attempted: 2, Succeeded: 1, Failed: 1, FailedNames: []string{"broken"}}},
			wantState: StateComplete,
			wantView:  "broken",
		},
		{
			name:      "error",
			msg:       DownloadDoneMsg{Err: errors.New("disk on fire")},
			wantState: StateError,
			wantView:  "disk on fire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(nil)
			m.state = StateDownloading

			m = update(t, m, tt.msg)

			if m.state != tt.wantState {
				t.Errorf("state = %v, want %v", m.state, tt.wantState)
			}
			if !strings.Contains(m.View(), tt.wantView) {
				t.Errorf("view should contain %q:\n%s", tt.wantView, m.View())
			}
		})
	}
}

func TestModel_ResetAfterCompletion(t *testing.T) {
	m := NewModel(nil)
	m.state = StateComplete
	m.summary = model.Summary{Succeeded: 3}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})

	if m.state != StateInput || m.summary.Succeeded != 0 {
		t.Errorf("state = %v summary = %+v, want a fresh input state", m.state, m.summary)
	}
}

func TestPercentOf(t *testing.T) {
	if got := percentOf(download.Progress{}); got != 0 {
		t.Errorf("percentOf(empty) = %v", got)
	}
	if got := percentOf(download.Progress{TasksDone: 1, TasksTotal: 4}); got != 0.25 {
		t.Errorf("percentOf(1/4) = %v", got)
	}
}

func TestTruncateList(t *testing.T) {
	if got := truncateList([]string{"a", "b"}, 3); got != "a, b" {
		t.Errorf("got %q", got)
	}
	if got := truncateList([]string{"a", "b", "c", "d"}, 2); got != "a, b and 2 more" {
		t.Errorf("got %q", got)
	}
}
