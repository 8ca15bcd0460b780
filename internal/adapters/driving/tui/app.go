package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/SWHsz/LocalKnowledge/internal/adapters/driving/tui/components/input"
	"github.com/SWHsz/LocalKnowledge/internal/adapters/driving/tui/components/status"
	"github.com/SWHsz/LocalKnowledge/internal/adapters/driving/tui/keymap"
	"github.com/SWHsz/LocalKnowledge/internal/adapters/driving/tui/messages"
	"github.com/SWHsz/LocalKnowledge/internal/adapters/driving/tui/styles"
	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// excerptLength bounds find-mode excerpts in the transcript.
const excerptLength = 200

// Rows reserved outside the transcript: header, input box and status bar.
const chromeHeight = 6

// errNotLoaded is shown when a prompt arrives before the backends are ready.
var errNotLoaded = errors.New("models are still loading")

// role identifies who produced a transcript entry.
type role int

const (
	roleUser role = iota
	roleAssistant
	roleError
)

// entry is one turn in the transcript.
type entry struct {
	role role
	text string
}

// App is the chat TUI following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	input      *input.PromptInput
	statusBar  *status.Bar
	transcript viewport.Model
	spinner    spinner.Model

	// query is nil until the backends have loaded.
	query   driving.QueryService
	loadErr error

	mode    messages.Mode
	entries []entry
	busy    bool
	err     error
	stats   *domain.LibraryStats

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new chat application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	bar := status.NewBar(s, km)
	bar.SetState(status.StateLoading)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = s.Subtitle

	return &App{
		ports:      ports,
		ctx:        context.Background(),
		styles:     s,
		keymap:     km,
		input:      input.NewPromptInput(s),
		statusBar:  bar,
		transcript: viewport.New(80, 20),
		spinner:    sp,
		mode:       messages.ModeAsk,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
// It starts loading the backends and library statistics.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("LocalKnowledge - Chat"),
		a.input.Init(),
		a.spinner.Tick,
		a.loadSession(),
		a.loadStats(),
	)
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message handler
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		a.statusBar.SetSpinner(a.spinner.View())
		return a, cmd

	case messages.SessionLoaded:
		if msg.Err != nil {
			a.loadErr = msg.Err
			a.setError(msg.Err)
			return a, nil
		}
		a.query = msg.Query
		a.statusBar.SetState(status.StateReady)
		return a, nil

	case messages.StatsLoaded:
		if msg.Err == nil {
			a.stats = msg.Stats
		}
		return a, nil

	case messages.PromptSubmitted:
		return a, a.submit(msg)

	case messages.AnswerCompleted:
		a.busy = false
		if msg.Err != nil {
			a.setError(msg.Err)
			return a, nil
		}
		a.statusBar.SetState(status.StateReady)
		a.appendEntry(roleAssistant, msg.Answer.Markdown())
		return a, nil

	case messages.PapersFound:
		a.busy = false
		if msg.Err != nil {
			a.setError(msg.Err)
			return a, nil
		}
		a.statusBar.SetState(status.StateReady)
		a.appendEntry(roleAssistant, renderPapers(msg.Keyword, msg.Groups))
		return a, nil

	case messages.ErrorOccurred:
		a.busy = false
		a.setError(msg.Err)
		return a, nil
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch {
	case keymap.Matches(key, a.keymap.Quit):
		return a, tea.Quit

	case keymap.Matches(key, a.keymap.Clear):
		a.entries = nil
		a.err = nil
		a.statusBar.Clear()
		if a.query == nil && a.loadErr == nil {
			a.statusBar.SetState(status.StateLoading)
		}
		a.refresh()
		return a, nil

	case keymap.Matches(key, a.keymap.ToggleMode):
		a.mode = a.mode.Toggle()
		a.input.SetFindMode(a.mode == messages.ModeFind)
		return a, nil

	case keymap.Matches(key, a.keymap.ScrollUp), keymap.Matches(key, a.keymap.ScrollDown):
		var cmd tea.Cmd
		a.transcript, cmd = a.transcript.Update(msg)
		return a, cmd

	case keymap.Matches(key, a.keymap.Send):
		text := strings.TrimSpace(a.input.Value())
		if text == "" || a.busy {
			return a, nil
		}
		a.input.Reset()
		mode := a.mode
		return a, func() tea.Msg {
			return messages.PromptSubmitted{Text: text, Mode: mode}
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit records the prompt and starts the matching backend call.
func (a *App) submit(msg messages.PromptSubmitted) tea.Cmd {
	a.appendEntry(roleUser, msg.Text)

	if a.query == nil {
		err := a.loadErr
		if err == nil {
			err = errNotLoaded
		}
		a.setError(err)
		return nil
	}

	a.busy = true
	a.err = nil
	a.statusBar.SetMessage("")
	a.statusBar.SetState(status.StateThinking)

	query, ctx, text := a.query, a.ctx, msg.Text
	if msg.Mode == messages.ModeFind {
		return func() tea.Msg {
			groups, err := query.FindPaper(ctx, text)
			return messages.PapersFound{Keyword: text, Groups: groups, Err: err}
		}
	}
	return func() tea.Msg {
		answer, err := query.Answer(ctx, text)
		return messages.AnswerCompleted{Answer: answer, Err: err}
	}
}

func (a *App) loadSession() tea.Cmd {
	loader, ctx := a.ports.Query, a.ctx
	return func() tea.Msg {
		q, err := loader.Query(ctx)
		return messages.SessionLoaded{Query: q, Err: err}
	}
}

func (a *App) loadStats() tea.Cmd {
	library, ctx := a.ports.Library, a.ctx
	return func() tea.Msg {
		stats, err := library.Stats(ctx)
		return messages.StatsLoaded{Stats: stats, Err: err}
	}
}

func (a *App) setError(err error) {
	a.err = err
	a.statusBar.SetState(status.StateError)
	a.statusBar.SetMessage(err.Error())
	a.appendEntry(roleError, err.Error())
}

func (a *App) appendEntry(r role, text string) {
	a.entries = append(a.entries, entry{role: r, text: text})
	a.refresh()
}

// refresh re-renders the transcript and scrolls to the latest entry.
func (a *App) refresh() {
	width := a.transcript.Width
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for i, e := range a.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case roleUser:
			b.WriteString(a.styles.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(e.text))
		case roleAssistant:
			b.WriteString(a.styles.AssistantLabel.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(a.renderAnswer(e.text, wrap))
		case roleError:
			b.WriteString(a.styles.Error.Render(wrap.Render("Error: " + e.text)))
		}
	}

	a.transcript.SetContent(b.String())
	a.transcript.GotoBottom()
}

// renderAnswer dims the reference list that follows an answer.
func (a *App) renderAnswer(text string, wrap lipgloss.Style) string {
	body, refs, found := strings.Cut(text, "\n---\n")
	if !found {
		return wrap.Render(text)
	}
	return wrap.Render(strings.TrimRight(body, "\n")) + "\n" +
		a.styles.Reference.Render(wrap.Render(strings.TrimSpace(refs)))
}

// renderPapers formats find-mode results as a grouped listing.
func renderPapers(keyword string, groups []domain.PaperGroup) string {
	if len(groups) == 0 {
		return fmt.Sprintf("No papers matching %q.", keyword)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d paper(s) matching %q:", len(groups), keyword)
	for _, g := range groups {
		fmt.Fprintf(&b, "\n\n%s (%s, %s)", g.Title, g.Authors, g.Year)
		if g.TotalPages > 0 {
			fmt.Fprintf(&b, ", %d pages", g.TotalPages)
		}
		for _, ex := range g.Excerpts {
			fmt.Fprintf(&b, "\n  p.%d [%.3f] %s", ex.Page, domain.RoundScore(ex.Score),
				domain.Truncate(ex.Text, excerptLength))
		}
	}
	return b.String()
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.viewHeader(),
		a.transcript.View(),
		a.input.View(),
		a.statusBar.View(),
	)
}

func (a *App) viewHeader() string {
	title := a.styles.Title.Render("LocalKnowledge")
	if a.stats == nil {
		return title + "\n"
	}
	summary := a.styles.Muted.Render(fmt.Sprintf("  %d papers, %d chunks",
		a.stats.TotalPapers, a.stats.TotalChunks))
	return title + summary + "\n"
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Mode returns the current prompt mode.
func (a *App) Mode() messages.Mode {
	return a.mode
}

// Busy reports whether a backend call is in flight.
func (a *App) Busy() bool {
	return a.busy
}

// Loaded reports whether the query backends are ready.
func (a *App) Loaded() bool {
	return a.query != nil
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been sized.
func (a *App) Ready() bool {
	return a.ready
}

// Transcript returns the rendered transcript content.
func (a *App) Transcript() string {
	return a.transcript.View()
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	a.transcript.Width = width
	a.transcript.Height = max(height-chromeHeight, 1)
	a.input.SetWidth(width)
	a.statusBar.SetWidth(width)
	a.refresh()
}
