package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/pattern"
	"github.com/vanderheijden86/rolepattern/pkg/session"
	"github.com/vanderheijden86/rolepattern/pkg/watcher"
)

const (
	defaultWidth  = 80
	defaultHeight = 30
	resultsHeight = 8
)

// FileChangedMsg is sent when the watched data file changes on disk
type FileChangedMsg struct {
	Event watcher.Event
}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		ev := <-w.Changed()
		return FileChangedMsg{Event: ev}
	}
}

// applyResultMsg carries the outcome of one apply run.
type applyResultMsg struct {
	outcome session.Outcome
	err     error
}

// removeResultMsg reports the end of a remove-pattern run.
type removeResultMsg struct {
	err error
}

// rolesLoadedMsg carries a reloaded role universe.
type rolesLoadedMsg struct {
	roles []string
	err   error
}

// levelBlock is the selector block for one level: every known role with
// the deselected ones marked removed.
type levelBlock struct {
	roles   []string
	removed map[string]bool
}

// DialogOptions configures a PatternDialog.
type DialogOptions struct {
	// Watcher, when set, triggers a role reload and re-apply on change.
	Watcher *watcher.Watcher
	// StartOpen shows the dialog on the first frame.
	StartOpen bool
	// ApplyOnStart runs one apply from Init.
	ApplyOnStart bool
	// Chart is the terminal chart drawn by the session's renderer.
	Chart *TextChart
}

// PatternDialog is the bubbletea model for the role pattern selector.
type PatternDialog struct {
	session *session.Session
	state   *pattern.State
	theme   Theme
	opts    DialogOptions
	ctx     context.Context

	width  int
	height int
	open   bool

	blocks  []levelBlock
	level   int // 1-based cursor level
	cursor  int // role index within the cursor level
	buttons pattern.Buttons

	applying      bool
	last          session.Outcome
	hasResult     bool
	statusMsg     string
	statusIsError bool
	showHelp      bool

	md      *glamour.TermRenderer
	results viewport.Model

	// copyFn writes to the clipboard; tests replace it.
	copyFn func(string) error
}

// NewPatternDialog returns a dialog driving sess. The dialog registers
// itself as the state's level observer.
func NewPatternDialog(sess *session.Session, theme Theme, opts DialogOptions) *PatternDialog {
	if opts.Chart == nil {
		opts.Chart = NewTextChart(theme)
	}
	d := &PatternDialog{
		session: sess,
		state:   sess.State(),
		theme:   theme,
		opts:    opts,
		ctx:     context.Background(),
		width:   defaultWidth,
		height:  defaultHeight,
		level:   1,
		md:      newMarkdownRenderer(60),
		results: viewport.New(defaultWidth-4, resultsHeight),
		copyFn:  clipboard.WriteAll,
	}
	d.state.SetObserver(d)
	d.syncFromState()
	if opts.StartOpen {
		d.openDialog()
	}
	return d
}

// SetContext sets the context used for apply runs.
func (d *PatternDialog) SetContext(ctx context.Context) {
	d.ctx = ctx
}

// syncFromState rebuilds every block from the state. Used after changes
// that bypass the observer, like a preset pattern or a role reload.
func (d *PatternDialog) syncFromState() {
	roles := d.state.Roles()
	d.blocks = d.blocks[:0]
	for lvl := 1; lvl <= d.state.Level(); lvl++ {
		opts := d.state.Options(lvl)
		b := levelBlock{roles: roles, removed: make(map[string]bool)}
		for _, r := range roles {
			if !opts.Has(r) {
				b.removed[r] = true
			}
		}
		d.blocks = append(d.blocks, b)
	}
	d.buttons = d.state.Buttons()
	d.clampCursor()
}

func (d *PatternDialog) clampCursor() {
	if d.level > len(d.blocks) {
		d.level = len(d.blocks)
	}
	if d.level < 1 {
		d.level = 1
	}
	n := 0
	if d.level <= len(d.blocks) {
		n = len(d.blocks[d.level-1].roles)
	}
	if d.cursor >= n {
		d.cursor = n - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
}

// LevelAdded appends a selector block with every role selected.
func (d *PatternDialog) LevelAdded(level int, roles []string) {
	for len(d.blocks) < level-1 {
		d.blocks = append(d.blocks, levelBlock{removed: make(map[string]bool)})
	}
	d.blocks = append(d.blocks[:level-1], levelBlock{roles: roles, removed: make(map[string]bool)})
}

// LevelRemoved drops the selector block for level and everything after it.
func (d *PatternDialog) LevelRemoved(level int) {
	if level-1 < len(d.blocks) {
		d.blocks = d.blocks[:level-1]
	}
	d.clampCursor()
}

// RoleToggled flips the removed marker of role at level.
func (d *PatternDialog) RoleToggled(level int, role string, selected bool) {
	if level < 1 || level > len(d.blocks) {
		return
	}
	d.blocks[level-1].removed[role] = !selected
}

// IsOpen reports whether the dialog is shown.
func (d *PatternDialog) IsOpen() bool {
	return d.open
}

// Level returns the cursor level.
func (d *PatternDialog) Level() int {
	return d.level
}

// Outcome returns the last applied outcome.
func (d *PatternDialog) Outcome() (session.Outcome, bool) {
	return d.last, d.hasResult
}

// Applying reports whether an apply is in flight.
func (d *PatternDialog) Applying() bool {
	return d.applying
}

// Status returns the status line text.
func (d *PatternDialog) Status() string {
	return d.statusMsg
}

func (d *PatternDialog) openDialog() {
	d.buttons = d.session.Open()
	d.syncFromState()
	d.open = true
}

func (d *PatternDialog) closeDialog() {
	d.session.Close()
	d.open = false
}

func (d *PatternDialog) Init() tea.Cmd {
	var cmds []tea.Cmd
	if d.opts.Watcher != nil {
		cmds = append(cmds, WatchFileCmd(d.opts.Watcher))
	}
	if d.opts.ApplyOnStart {
		cmds = append(cmds, d.startApply())
	}
	return tea.Batch(cmds...)
}

// startApply freezes the pattern now and runs the rest off the UI loop.
func (d *PatternDialog) startApply() tea.Cmd {
	req := d.session.NewRequest()
	d.applying = true
	d.setStatus(fmt.Sprintf("Applying %s…", req.Pattern), false)
	sess, ctx := d.session, d.ctx
	return func() tea.Msg {
		out, err := sess.Run(ctx, req)
		return applyResultMsg{outcome: out, err: err}
	}
}

func (d *PatternDialog) startRemove() tea.Cmd {
	sess := d.session
	return func() tea.Msg {
		return removeResultMsg{err: sess.RemovePattern()}
	}
}

func (d *PatternDialog) reloadRoles() tea.Cmd {
	sess, ctx := d.session, d.ctx
	return func() tea.Msg {
		roles, err := sess.LoadRoles(ctx)
		return rolesLoadedMsg{roles: roles, err: err}
	}
}

func (d *PatternDialog) setStatus(msg string, isErr bool) {
	d.statusMsg = msg
	d.statusIsError = isErr
}

func (d *PatternDialog) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.results.Width = max(msg.Width-4, 20)
		return d, nil

	case applyResultMsg:
		return d, d.handleApplyResult(msg)

	case removeResultMsg:
		if msg.err != nil {
			d.setStatus(fmt.Sprintf("Remove pattern failed: %v", msg.err), true)
		} else {
			d.setStatus("Pattern removed; all elements shown", false)
		}
		return d, nil

	case rolesLoadedMsg:
		if msg.err != nil {
			d.setStatus(fmt.Sprintf("Reload failed: %v", msg.err), true)
			return d, nil
		}
		d.state.SetRoles(msg.roles)
		d.syncFromState()
		if d.open && d.hasResult {
			return d, d.startApply()
		}
		d.setStatus("Data reloaded", false)
		return d, nil

	case FileChangedMsg:
		debug.Log("ui: data changed (%s)", msg.Event.Path)
		var cmds []tea.Cmd
		if d.opts.Watcher != nil {
			cmds = append(cmds, WatchFileCmd(d.opts.Watcher))
		}
		cmds = append(cmds, d.reloadRoles())
		return d, tea.Batch(cmds...)

	case tea.KeyMsg:
		return d, d.handleKey(msg)
	}
	return d, nil
}

func (d *PatternDialog) handleApplyResult(msg applyResultMsg) tea.Cmd {
	if msg.outcome.Stale {
		return nil
	}
	d.applying = false
	if msg.err != nil {
		d.setStatus(fmt.Sprintf("Apply failed: %v", msg.err), true)
		return nil
	}
	d.last = msg.outcome
	d.hasResult = true
	d.results.SetContent(renderMarkdown(d.md, ResultsMarkdown(msg.outcome.Pattern, msg.outcome.Results)))
	d.results.GotoTop()
	if msg.outcome.FetchErr != nil {
		d.setStatus(fmt.Sprintf("No data: %v", msg.outcome.FetchErr), true)
		return nil
	}
	total := 0
	for _, r := range msg.outcome.Results {
		total += r.Count
	}
	d.setStatus(fmt.Sprintf("Applied %s: %d matches over %d versions", msg.outcome.Pattern, total, len(msg.outcome.Results)), false)
	return nil
}

func (d *PatternDialog) handleKey(msg tea.KeyMsg) tea.Cmd {
	if !d.open {
		switch msg.String() {
		case "p", "o", "enter":
			d.openDialog()
		case "q", "ctrl+c":
			return tea.Quit
		}
		return nil
	}

	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "esc", "q":
		if d.showHelp {
			d.showHelp = false
			return nil
		}
		d.closeDialog()
	case "?":
		d.showHelp = !d.showHelp
	case "up", "k":
		if d.level > 1 {
			d.level--
			d.clampCursor()
		}
	case "down", "j":
		if d.level < len(d.blocks) {
			d.level++
			d.clampCursor()
		}
	case "left", "h":
		if d.cursor > 0 {
			d.cursor--
		}
	case "right", "l":
		d.cursor++
		d.clampCursor()
	case " ":
		if role, ok := d.cursorRole(); ok {
			d.state.ToggleRole(d.level, role)
		}
	case "+", "=":
		if d.buttons.Add {
			d.buttons = d.state.ChangeLevel(1)
			d.level = d.state.Level()
			d.clampCursor()
		}
	case "-":
		if d.buttons.Remove {
			d.buttons = d.state.ChangeLevel(-1)
			d.clampCursor()
		}
	case "r":
		d.state.Reset()
		d.syncFromState()
		d.setStatus("Selection reset", false)
	case "enter":
		return d.startApply()
	case "x":
		return d.startRemove()
	case "y":
		d.copyResults()
	case "pgdown", "pgup", "ctrl+d", "ctrl+u":
		var cmd tea.Cmd
		d.results, cmd = d.results.Update(msg)
		return cmd
	}
	return nil
}

func (d *PatternDialog) cursorRole() (string, bool) {
	if d.level < 1 || d.level > len(d.blocks) {
		return "", false
	}
	roles := d.blocks[d.level-1].roles
	if d.cursor < 0 || d.cursor >= len(roles) {
		return "", false
	}
	return roles[d.cursor], true
}

func (d *PatternDialog) copyResults() {
	if !d.hasResult {
		d.setStatus("Nothing to copy: apply a pattern first", true)
		return
	}
	text, err := ResultsCSV(d.last.Results)
	if err != nil {
		d.setStatus(fmt.Sprintf("❌ Copy failed: %v", err), true)
		return
	}
	if err := d.copyFn(text); err != nil {
		d.setStatus(fmt.Sprintf("❌ Clipboard error: %v", err), true)
		return
	}
	d.setStatus(fmt.Sprintf("📋 Copied %d versions to clipboard", len(d.last.Results)), false)
}

func (d *PatternDialog) View() string {
	if !d.open {
		return d.closedView()
	}

	innerW := max(d.width-4, 20)
	var sections []string
	sections = append(sections, d.theme.Header.Render("Role Pattern"))
	sections = append(sections, d.levelRow())
	for i, b := range d.blocks {
		sections = append(sections, d.blockView(i+1, b, innerW))
	}
	sections = append(sections, RenderDivider(innerW))
	sections = append(sections, d.opts.Chart.View(innerW))
	if d.hasResult {
		sections = append(sections, d.results.View())
	}
	if d.statusMsg != "" {
		style := d.theme.StatusOK
		if d.statusIsError {
			style = d.theme.StatusError
		}
		sections = append(sections, style.Render(truncate(d.statusMsg, innerW)))
	}
	if d.showHelp {
		sections = append(sections, d.helpView())
	} else {
		sections = append(sections, RenderKeyHints(d.theme,
			[2]string{"space", "toggle"},
			[2]string{"enter", "apply"},
			[2]string{"x", "remove"},
			[2]string{"?", "help"},
			[2]string{"esc", "close"},
		))
	}

	content := d.theme.Panel.Width(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
	return lipgloss.Place(d.width, d.height, lipgloss.Center, lipgloss.Top, content)
}

// levelRow renders the "1 → 2 → 3" pointer with the add/remove controls
// shown only when allowed.
func (d *PatternDialog) levelRow() string {
	parts := make([]string, 0, len(d.blocks))
	for lvl := 1; lvl <= len(d.blocks); lvl++ {
		style := d.theme.LevelIdle
		if lvl == d.level {
			style = d.theme.LevelActive
		}
		parts = append(parts, style.Render(fmt.Sprintf("%d", lvl)))
	}
	row := strings.Join(parts, d.theme.MutedText.Render(" → "))
	if d.buttons.Remove {
		row += "  " + d.theme.Button.Render("[-]")
	}
	if d.buttons.Add {
		row += " " + d.theme.Button.Render("[+]")
	}
	return row
}

func (d *PatternDialog) blockView(level int, b levelBlock, width int) string {
	label := d.theme.LevelIdle.Render(fmt.Sprintf("Level %d:", level))
	if level == d.level {
		label = d.theme.LevelActive.Render(fmt.Sprintf("Level %d:", level))
	}
	if len(b.roles) == 0 {
		return label + " " + d.theme.MutedText.Render("(no roles)")
	}
	items := make([]string, len(b.roles))
	for i, r := range b.roles {
		style := d.theme.Role
		if b.removed[r] {
			style = d.theme.RoleRemoved
		}
		text := style.Render(truncate(r, 24))
		if level == d.level && i == d.cursor {
			text = d.theme.Cursor.Render("[") + text + d.theme.Cursor.Render("]")
		}
		items[i] = text
	}
	return d.theme.Renderer.NewStyle().Width(width).Render(label + " " + strings.Join(items, " "))
}

func (d *PatternDialog) helpView() string {
	rows := [][2]string{
		{"↑/k ↓/j", "move between levels"},
		{"←/h →/l", "move between roles"},
		{"space", "toggle role"},
		{"+ / -", "add or remove a level"},
		{"enter", "apply pattern"},
		{"x", "remove pattern (show all)"},
		{"y", "copy results as CSV"},
		{"r", "reset selection"},
		{"pgup/pgdn", "scroll results"},
		{"esc / q", "close"},
		{"ctrl+c", "quit"},
	}
	keyStyle := d.theme.Renderer.NewStyle().Foreground(d.theme.Primary).Bold(true)
	var sb strings.Builder
	for i, r := range rows {
		sb.WriteString(keyStyle.Render(padRight(r[0], 12)))
		sb.WriteString(d.theme.MutedText.Render(r[1]))
		if i < len(rows)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (d *PatternDialog) closedView() string {
	var sb strings.Builder
	sb.WriteString(d.theme.MutedText.Render("Pattern dialog closed"))
	if d.statusMsg != "" {
		sb.WriteString("\n")
		sb.WriteString(d.statusMsg)
	}
	sb.WriteString("\n")
	sb.WriteString(RenderKeyHints(d.theme, [2]string{"p", "open"}, [2]string{"q", "quit"}))
	return sb.String()
}
