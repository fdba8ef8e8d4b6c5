package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sensortree/pkg/config"
	"github.com/matzehuels/sensortree/pkg/connector"
	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/pipeline"
	"github.com/matzehuels/sensortree/pkg/session"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

const exploreHelp = "↑/↓ move  ⏎ expand  s spread  +/- level  / search  m mode  r reset  q quit"

// exploreCommand creates the interactive explorer.
func (c *CLI) exploreCommand() *cobra.Command {
	var (
		resume  string
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "explore [payload]",
		Short: "Browse a sensor forest interactively",
		Long: `Browse a sensor forest in the terminal.

Nodes are expanded and collapsed in place; spreading a node focuses the tree
on its subtree and spreading it again returns. The layout and connector
curves are recomputed at most once per frame in the background, and the
status line shows the resulting canvas and scroll offset.

The session is saved on exit and can be resumed with --resume.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && resume == "" {
				return errors.New("a payload or --resume is required")
			}
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return c.runExplore(cmd.Context(), input, resume, opts, noCache)
		},
	}

	cmd.Flags().StringVar(&resume, "resume", "", "session id to resume")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	bindPayloadFlags(cmd, &opts)
	bindStateFlags(cmd, &opts)
	bindLayoutFlags(cmd, &opts)

	return cmd
}

// sessionDir is where the explorer keeps its sessions.
func sessionDir(cfg config.Config) string {
	return filepath.Join(cfg.Storage.Dir, "sessions")
}

func (c *CLI) runExplore(ctx context.Context, input, resume string, opts pipeline.Options, noCache bool) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	store, err := session.NewFileStore(sessionDir(cfg))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	ttl := cfg.Server.SessionTTL.Duration

	opts.Logger = logger
	setCLIDefaults(&opts, cfg, input)
	if err := opts.ValidateForLayout(); err != nil {
		return err
	}

	var sess *session.Session
	if resume != "" {
		sess, err = store.Get(ctx, resume)
		if err != nil {
			return fmt.Errorf("resume %s: %w", resume, err)
		}
	} else {
		payload, err := c.readPayload(input)
		if err != nil {
			return err
		}
		runner, err := c.newRunner(ctx, cfg, noCache)
		if err != nil {
			return fmt.Errorf("initialize runner: %w", err)
		}
		f, err := runner.Normalize(ctx, payload, opts)
		_ = runner.Close()
		if err != nil {
			return fmt.Errorf("normalize %s: %w", input, err)
		}
		sess = session.New(f, ttl)
		sess.Tree = filepath.Base(input)
		sess.Mode = opts.LayoutMode()
		pipeline.ApplyDirectives(sess.State, f, opts)
	}

	m := newExploreModel(ctx, sess, opts.Layout, opts.Viewport(), cfg.Server.FrameInterval.Duration)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("explore: %w", err)
	}

	sess.Touch(ttl)
	if err := store.Set(context.WithoutCancel(ctx), sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	logger.Debug("explorer closed", "frames", m.sched.Runs(), "session", sess.ID)
	printSuccess("Saved session")
	printNextStep("Resume", appName+" explore --resume "+sess.ID)
	return ctx.Err()
}

// =============================================================================
// exploreModel - Interactive forest browser
// =============================================================================

// frameMsg drives the connector scheduler.
type frameMsg time.Time

// exploreModel is the bubbletea model of the explorer. It owns the session
// while the program runs.
type exploreModel struct {
	ctx      context.Context
	sess     *session.Session
	cfg      layout.Config
	viewport layout.Size
	interval time.Duration
	sched    *connector.Scheduler

	rows   []visibility.Visible
	cursor int
	offset int
	height int

	searching bool
	query     string

	// pending is applied to the session scroll once the next layout exists.
	pending visibility.ScrollAction
	result  layout.Result
	curves  int
	trigger connector.Trigger
}

func newExploreModel(ctx context.Context, sess *session.Session, cfg layout.Config, viewport layout.Size, interval time.Duration) *exploreModel {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	m := &exploreModel{
		ctx:      ctx,
		sess:     sess,
		cfg:      cfg.Merge(layout.DefaultConfig()),
		viewport: viewport,
		interval: interval,
		height:   20,
		pending:  visibility.ScrollAction{Kind: visibility.ScrollNone},
	}
	m.sched = connector.NewScheduler(m.recompute)
	m.refresh()
	m.sched.Request(connector.TriggerSettle)
	return m
}

func (m *exploreModel) Init() tea.Cmd {
	return m.tick()
}

func (m *exploreModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.sched.Frame()
		return m, m.tick()
	case tea.WindowSizeMsg:
		m.height = max(5, msg.Height-7)
		m.scrollToCursor()
		m.sched.Request(connector.TriggerResize)
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *exploreModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f, st := m.sess.Forest, m.sess.State

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "enter", " ":
		if id := m.current(); id != "" {
			st.ToggleExpand(f, id)
			m.changed()
		}
	case "s":
		if id := m.current(); id != "" {
			m.pending = st.ToggleSpread(f, id, m.sess.Scroll)
			m.changed()
		}
	case "+", "n":
		if st.ExpandNextLevel(f) {
			m.changed()
		}
	case "-", "p":
		if st.CollapsePrevLevel(f) {
			m.changed()
		}
	case "m":
		m.pending = m.sess.ToggleMode()
		m.changed()
	case "/":
		m.searching = true
		m.query = st.Search()
	case "esc":
		if st.Search() != "" {
			st.SetSearch("")
			m.changed()
		}
	case "r":
		st.Reset()
		m.sess.Scroll = visibility.Scroll{}
		m.changed()
	}
	return m, nil
}

// updateSearch edits the query. The filter follows every keystroke.
func (m *exploreModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		m.searching = false
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.query = ""
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.query += string(msg.Runes)
	default:
		return m, nil
	}
	m.sess.State.SetSearch(m.query)
	m.changed()
	return m, nil
}

// changed refreshes the rows and marks the layout stale.
func (m *exploreModel) changed() {
	m.refresh()
	m.sched.Request(connector.TriggerMutation)
}

// refresh recomputes the visible rows, keeping the cursor on the same node
// when it is still visible.
func (m *exploreModel) refresh() {
	selected := m.current()
	m.rows = m.sess.State.VisibleNodes(m.sess.Forest)
	if active := m.sess.State.Active(); active != "" && selected == "" {
		selected = active
	}
	for i, v := range m.rows {
		if v.ID == selected {
			m.cursor = i
			m.scrollToCursor()
			return
		}
	}
	m.cursor = min(m.cursor, max(0, len(m.rows)-1))
	m.scrollToCursor()
}

// recompute lays out the visible tree and derives its connectors. It runs
// on the scheduler's frame.
func (m *exploreModel) recompute(t connector.Trigger) {
	f, st := m.sess.Forest, m.sess.State
	opts := pipeline.Options{
		Mode:   string(m.sess.Mode),
		Width:  m.viewport.Width,
		Height: m.viewport.Height,
		Layout: m.cfg,
	}
	res := pipeline.Layout(m.ctx, f, st, opts)
	curves := pipeline.Connect(m.ctx, f, st, res, m.cfg)
	m.result, m.curves, m.trigger = res, len(curves), t

	switch {
	case m.pending.Kind == visibility.ScrollCenter && m.pending.NodeID == "":
		m.sess.Scroll = layout.CenterScroll(res, m.viewport)
	default:
		if sc, ok := layout.ScrollTarget(m.pending, res, m.viewport, m.cfg); ok {
			m.sess.Scroll = sc
		}
	}
	m.pending = visibility.ScrollAction{Kind: visibility.ScrollNone}
}

func (m *exploreModel) current() string {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return ""
	}
	return m.rows[m.cursor].ID
}

func (m *exploreModel) move(delta int) {
	m.cursor = max(0, min(len(m.rows)-1, m.cursor+delta))
	m.scrollToCursor()
}

func (m *exploreModel) scrollToCursor() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
	m.offset = max(0, m.offset)
}

func (m *exploreModel) View() string {
	var b strings.Builder
	f, st := m.sess.Forest, m.sess.State

	title := "Sensor tree"
	if m.sess.Tree != "" {
		title += " · " + m.sess.Tree
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("\n")
	if crumb := st.Breadcrumb(f); len(crumb) > 0 {
		b.WriteString(StyleHighlight.Render(formatBreadcrumb(crumb)))
	}
	b.WriteString("\n")
	switch {
	case m.searching:
		b.WriteString("/" + m.query + "▏")
	case st.Search() != "":
		b.WriteString(listDimStyle.Render("search: " + st.Search()))
	}
	b.WriteString("\n\n")

	end := min(m.offset+m.height, len(m.rows))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.row(i))
		b.WriteString("\n")
	}
	if len(m.rows) == 0 {
		if f.Empty() {
			b.WriteString(listDimStyle.Render("  (empty forest)"))
		} else {
			b.WriteString(listDimStyle.Render("  (no matches)"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(m.status()))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(exploreHelp))
	return b.String()
}

func (m *exploreModel) row(i int) string {
	f, st := m.sess.Forest, m.sess.State
	v := m.rows[i]
	n, _ := f.Node(v.ID)

	cursor := "  "
	if i == m.cursor {
		cursor = "▸ "
	}
	marker := "· "
	if f.HasChildren(v.ID) {
		marker = "+ "
		if st.IsExpanded(v.ID) {
			marker = "- "
		}
	}

	style := listNormalStyle
	switch {
	case i == m.cursor:
		style = listSelectedStyle
	case st.Highlighted(v.ID):
		style = StyleHighlight
	}

	line := cursor + strings.Repeat("  ", v.Depth) + marker + style.Render(n.Name)
	if n.IsSensor() {
		status := n.Status
		if status != "" {
			line += " " + statusStyle(status).Render(status)
		}
		if val := n.ValueString(); val != "" {
			line += " " + listDimStyle.Render(val)
		}
	} else if n.Type != "" {
		line += " " + listDimStyle.Render(n.Type)
	}
	return line
}

func (m *exploreModel) status() string {
	parts := []string{
		string(m.sess.Mode),
		plural(len(m.rows), "visible node"),
		plural(m.curves, "curve"),
		fmt.Sprintf("canvas %.0f×%.0f", m.result.Width, m.result.Height),
		fmt.Sprintf("scroll %.0f,%.0f", m.sess.Scroll.Left, m.sess.Scroll.Top),
	}
	return strings.Join(parts, " · ")
}
