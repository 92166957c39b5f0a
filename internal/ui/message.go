package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/session"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSessionEvent MsgKind = iota
	MsgSubmitted
	MsgStemSaved
	MsgPlayed
	MsgCopied
	MsgFlashExpired
	MsgHistoryLoaded
)

type stemSaved struct {
	stem  services.Stem
	jobID string
	path  string
	play  bool
	err   error
}

type historyLoaded struct {
	jobs []*models.Job
	err  error
}

// sessionEventMsg is the constructor for [MsgSessionEvent]
func sessionEventMsg(ev session.Event) Msg {
	return Msg{kind: MsgSessionEvent, data: ev}
}

// submittedMsg is the constructor for [MsgSubmitted]
func submittedMsg(ev session.Event) Msg {
	return Msg{kind: MsgSubmitted, data: ev}
}

// stemSavedMsg is the constructor for [MsgStemSaved]
func stemSavedMsg(stem services.Stem, jobID, path string, play bool, err error) Msg {
	return Msg{kind: MsgStemSaved, data: stemSaved{stem: stem, jobID: jobID, path: path, play: play, err: err}}
}

// playedMsg is the constructor for [MsgPlayed]
func playedMsg(err error) Msg {
	return Msg{kind: MsgPlayed, data: err}
}

// copiedMsg is the constructor for [MsgCopied]
func copiedMsg(err error) Msg {
	return Msg{kind: MsgCopied, data: err}
}

// flashExpiredMsg is the constructor for [MsgFlashExpired]
func flashExpiredMsg(seq int) Msg {
	return Msg{kind: MsgFlashExpired, data: seq}
}

// historyLoadedMsg is the constructor for [MsgHistoryLoaded]
func historyLoadedMsg(jobs []*models.Job, err error) Msg {
	return Msg{kind: MsgHistoryLoaded, data: historyLoaded{jobs: jobs, err: err}}
}
