package ui

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/session"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/desertthunder/stemx/internal/tasks"
)

const flashDuration = 2 * time.Second

// History is the job history the TUI lists and updates with saved stem paths.
type History interface {
	List(criteria map[string]any) ([]*models.Job, error)
	RecordStem(ctx context.Context, jobID, stem, path string) error
}

// Options configures the TUI.
type Options struct {
	DownloadDir string
	Player      string
	Limits      shared.LimitsConfig
	History     History // nil hides the history view
	Logger      *log.Logger
}

// Model represents the TUI application state.
//
// The session itself lives in the [tasks.Tracker]; the model keeps the last snapshot returned by Apply plus
// presentation-only state (input, spinner, download notices).
type Model struct {
	ctx     context.Context
	tracker *tasks.Tracker
	sep     services.Separator
	opts    Options
	logger  *log.Logger

	state     session.State
	uploading bool
	saving    map[services.Stem]bool
	saved     map[services.Stem]string
	notice    string
	flash     string
	flashSeq  int

	showHistory bool
	historyList list.Model

	width   int
	height  int
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	copyText func(string) error
	openFile func(player, path string) error
}

// NewModel creates a new TUI model driving tracker. The caller owns the tracker and closes it after the program
// exits.
func NewModel(ctx context.Context, tracker *tasks.Tracker, sep services.Separator, opts Options) *Model {
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}
	if opts.Limits.MaxUploadMB == 0 {
		opts.Limits = shared.DefaultConfig().Limits
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	input := textinput.New()
	input.Placeholder = "/path/to/song.mp3"
	input.Prompt = "› "
	input.CharLimit = 4096
	input.Width = 60
	input.Focus()

	return &Model{
		ctx:      ctx,
		tracker:  tracker,
		sep:      sep,
		opts:     opts,
		logger:   opts.Logger.With("component", "ui"),
		state:    tracker.State(),
		saving:   map[services.Stem]bool{},
		saved:    map[services.Stem]string{},
		input:    input,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		help:     help.New(),
		keys:     newKeyMap(),
		copyText: clipboard.WriteAll,
		openFile: shared.OpenFile,
	}
}

// Init starts listening to the tracker's event stream.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), textinput.Blink, m.spinner.Tick)
}

// State returns the last session snapshot the model rendered.
func (m *Model) State() session.State {
	return m.state
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(20, msg.Width-8)
		if m.showHistory {
			m.historyList.SetSize(msg.Width-4, msg.Height-6)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateFocused(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSessionEvent:
		m.apply(msg.data.(session.Event))
		return m, m.waitForEvent()

	case MsgSubmitted:
		m.uploading = false
		ev := msg.data.(session.Event)
		m.apply(ev)
		if ev.Kind == session.Submitted {
			m.input.Reset()
		}
		return m, nil

	case MsgStemSaved:
		data := msg.data.(stemSaved)
		// A save can finish after a restart; it belongs to the job it started for.
		current := data.jobID == m.state.JobID
		if current {
			delete(m.saving, data.stem)
		}
		if data.err != nil {
			m.logger.Warn("stem download failed", "job_id", data.jobID, "stem", data.stem, "err", data.err)
			if current {
				m.notice = fmt.Sprintf("%s download failed: %s", data.stem.Title(), services.Message(data.err))
			}
			return m, nil
		}
		m.recordStem(data.jobID, data.stem, data.path)
		if !current {
			return m, nil
		}
		m.saved[data.stem] = data.path
		if data.play {
			return m, m.play(data.path)
		}
		return m, m.setFlash("Downloaded " + filepath.Base(data.path))

	case MsgPlayed:
		if err, _ := msg.data.(error); err != nil {
			m.notice = "Playback failed: " + err.Error()
		}
		return m, nil

	case MsgCopied:
		if err, _ := msg.data.(error); err != nil {
			m.logger.Warn("clipboard unavailable", "err", err)
			return m, m.setFlash("Clipboard unavailable; job id: " + m.state.JobID)
		}
		return m, m.setFlash("Copied job id")

	case MsgFlashExpired:
		if msg.data.(int) == m.flashSeq {
			m.flash = ""
		}
		return m, nil

	case MsgHistoryLoaded:
		data := msg.data.(historyLoaded)
		if data.err != nil {
			m.notice = "Could not load history: " + data.err.Error()
			return m, nil
		}
		items := make([]list.Item, len(data.jobs))
		for i, job := range data.jobs {
			items[i] = jobItem{job: job}
		}
		m.historyList = list.New(items, list.NewDefaultDelegate(), max(20, m.width-4), max(10, m.height-6))
		m.historyList.Title = "Separation history"
		m.showHistory = true
		return m, nil
	}

	return m, nil
}

// apply runs ev through the tracker and resets per-job presentation state when a new result arrives.
func (m *Model) apply(ev session.Event) {
	prev := m.state
	m.state = m.tracker.Apply(ev)
	if m.state.View == session.Results && (prev.View != session.Results || prev.JobID != m.state.JobID) {
		m.saving = map[services.Stem]bool{}
		m.saved = map[services.Stem]string{}
	}
	if m.state.View == session.Upload && prev.View != session.Upload {
		m.input.Focus()
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.forceQuit) {
		return m, tea.Quit
	}

	if m.notice != "" {
		if key.Matches(msg, m.keys.dismiss) {
			m.notice = ""
		}
		return m, nil
	}

	if m.showHistory {
		if key.Matches(msg, m.keys.back) && m.historyList.FilterState() != list.Filtering {
			m.showHistory = false
			return m, nil
		}
		var cmd tea.Cmd
		m.historyList, cmd = m.historyList.Update(msg)
		return m, cmd
	}

	switch m.state.View {
	case session.Upload:
		return m.handleUploadKeys(msg)
	case session.Processing:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
	case session.Results:
		return m.handleResultKeys(msg)
	}
	return m, nil
}

func (m *Model) handleUploadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.submit):
		path := cleanPath(m.input.Value())
		if path == "" || m.uploading {
			return m, nil
		}
		m.uploading = true
		return m, m.submit(path)

	case key.Matches(msg, m.keys.clear):
		m.input.Reset()
		return m, nil

	case key.Matches(msg, m.keys.history):
		if m.opts.History == nil {
			return m, nil
		}
		return m, m.loadHistory()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.vocals):
		return m, m.save(services.Vocals, false)
	case key.Matches(msg, m.keys.accompaniment):
		return m, m.save(services.Accompaniment, false)
	case key.Matches(msg, m.keys.both):
		return m, tea.Batch(m.save(services.Vocals, false), m.save(services.Accompaniment, false))
	case key.Matches(msg, m.keys.playVocals):
		return m, m.playStem(services.Vocals)
	case key.Matches(msg, m.keys.playAccomp):
		return m, m.playStem(services.Accompaniment)
	case key.Matches(msg, m.keys.copy):
		return m, m.copyJobID()
	case key.Matches(msg, m.keys.restart):
		m.state = m.tracker.Reset()
		m.saving = map[services.Stem]bool{}
		m.saved = map[services.Stem]string{}
		m.flash = ""
		m.input.Reset()
		m.input.Focus()
		return m, nil
	}
	return m, nil
}

func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.showHistory:
		m.historyList, cmd = m.historyList.Update(msg)
	case m.state.View == session.Upload:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.tracker.Events():
			return sessionEventMsg(ev)
		case <-m.tracker.Done():
			return nil
		}
	}
}

func (m *Model) submit(path string) tea.Cmd {
	return func() tea.Msg {
		return submittedMsg(m.tracker.Submit(m.ctx, path))
	}
}

// save downloads a stem unless it is already saved or in flight.
func (m *Model) save(stem services.Stem, play bool) tea.Cmd {
	if path, ok := m.saved[stem]; ok {
		if play {
			return m.play(path)
		}
		return m.setFlash("Already saved " + filepath.Base(path))
	}
	if m.saving[stem] {
		return nil
	}
	m.saving[stem] = true

	jobID, filename, dir := m.state.JobID, m.state.Filename, m.opts.DownloadDir
	return func() tea.Msg {
		path, err := services.SaveStem(m.ctx, m.sep, stem, jobID, filename, dir)
		return stemSavedMsg(stem, jobID, path, play, err)
	}
}

func (m *Model) playStem(stem services.Stem) tea.Cmd {
	return m.save(stem, true)
}

func (m *Model) play(path string) tea.Cmd {
	player := m.opts.Player
	open := m.openFile
	return func() tea.Msg {
		return playedMsg(open(player, path))
	}
}

func (m *Model) copyJobID() tea.Cmd {
	jobID := m.state.JobID
	copyText := m.copyText
	return func() tea.Msg {
		return copiedMsg(copyText(jobID))
	}
}

func (m *Model) loadHistory() tea.Cmd {
	h := m.opts.History
	return func() tea.Msg {
		jobs, err := h.List(map[string]any{"limit": 100})
		return historyLoadedMsg(jobs, err)
	}
}

func (m *Model) recordStem(jobID string, stem services.Stem, path string) {
	if m.opts.History == nil {
		return
	}
	if err := m.opts.History.RecordStem(m.ctx, jobID, string(stem), path); err != nil {
		m.logger.Debug("stem path not recorded", "job_id", jobID, "err", err)
	}
}

func (m *Model) setFlash(text string) tea.Cmd {
	m.flashSeq++
	m.flash = text
	seq := m.flashSeq
	return tea.Tick(flashDuration, func(time.Time) tea.Msg { return flashExpiredMsg(seq) })
}

// cleanPath turns what a terminal pastes for a dropped file into a path: surrounding quotes, backslash-escaped
// spaces and file:// URLs are all unwrapped.
func cleanPath(raw string) string {
	p := strings.TrimSpace(raw)
	if len(p) >= 2 && (p[0] == '\'' || p[0] == '"') && p[len(p)-1] == p[0] {
		p = p[1 : len(p)-1]
	} else {
		p = strings.ReplaceAll(p, `\ `, " ")
	}

	if strings.HasPrefix(p, "file://") {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	return p
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.notice != "" {
		return m.renderNotice()
	}
	if m.showHistory {
		return m.renderHistory()
	}

	switch m.state.View {
	case session.Processing:
		return m.renderProcessing()
	case session.Results:
		return m.renderResults()
	default:
		return m.renderUpload()
	}
}

func (m *Model) header() string {
	return styles.title.Render("stemx · vocal separation")
}

func (m *Model) renderUpload() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	exts := make([]string, len(m.opts.Limits.Extensions))
	for i, e := range m.opts.Limits.Extensions {
		exts[i] = strings.ToUpper(strings.TrimPrefix(e, "."))
	}

	var body strings.Builder
	body.WriteString("Drop an audio file here or type its path\n\n")
	body.WriteString(m.input.View())
	body.WriteString("\n\n")
	body.WriteString(styles.help.Render(fmt.Sprintf("%s · max %dMB", strings.Join(exts, ", "), m.opts.Limits.MaxUploadMB)))
	b.WriteString(styles.box.Render(body.String()))
	b.WriteString("\n\n")

	if m.uploading {
		b.WriteString(m.spinner.View() + " Uploading...\n\n")
	}
	if m.state.HasError() {
		b.WriteString(styles.err.Render(m.state.Error))
		b.WriteString("\n\n")
	}

	bindings := []key.Binding{m.keys.submit, m.keys.clear}
	if m.opts.History != nil {
		bindings = append(bindings, m.keys.history)
	}
	bindings = append(bindings, m.keys.forceQuit)
	b.WriteString(m.help.ShortHelpView(bindings))
	return b.String()
}

func (m *Model) renderProcessing() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	var body strings.Builder
	body.WriteString(fmt.Sprintf("%s Processing %s\n\n", m.spinner.View(), m.state.Filename))
	body.WriteString(m.state.StatusMessage)
	body.WriteString("\n\n")
	body.WriteString(styles.help.Render("This may take a few minutes"))
	b.WriteString(styles.box.Render(body.String()))
	b.WriteString("\n")
	b.WriteString(styles.help.Render("job " + m.state.JobID))
	b.WriteString("\n\n")

	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderResults() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(styles.ok.Render("✓ Separation complete"))
	if m.state.Filename != "" {
		b.WriteString(" · " + m.state.Filename)
	}
	b.WriteString("\n\n")

	for _, stem := range services.Stems {
		status := styles.help.Render("not saved")
		switch {
		case m.saving[stem]:
			status = m.spinner.View() + " downloading..."
		case m.saved[stem] != "":
			status = styles.ok.Render(m.saved[stem])
		}
		b.WriteString(fmt.Sprintf("  %-14s %s\n", stem.Title(), status))
	}
	b.WriteString("\n")

	if m.flash != "" {
		b.WriteString(styles.warn.Render(m.flash))
		b.WriteString("\n\n")
	}

	b.WriteString(m.help.ShortHelpView([]key.Binding{
		m.keys.vocals, m.keys.accompaniment, m.keys.both,
		m.keys.playVocals, m.keys.playAccomp,
		m.keys.copy, m.keys.restart, m.keys.quit,
	}))
	return b.String()
}

func (m *Model) renderHistory() string {
	return fmt.Sprintf("%s\n\n%s", m.historyList.View(), m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.forceQuit}))
}

func (m *Model) renderNotice() string {
	body := styles.err.Render(m.notice) + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.dismiss})
	return fmt.Sprintf("%s\n%s", m.header(), styles.alert.Render(body))
}
