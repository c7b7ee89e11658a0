// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-overlay/internal/host"
	"github.com/jeranaias/rigrun-overlay/internal/mode"
	"github.com/jeranaias/rigrun-overlay/internal/overlay"
	"github.com/jeranaias/rigrun-overlay/internal/ui/styles"
)

// maxComposerLines caps the composer height in Card mode.
const maxComposerLines = 6

// dragStep is how far one drag key moves the window, in host pixels.
const dragStep = 40

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for one overlay window.
type Model struct {
	win         *overlay.Window
	drag        *host.Virtual
	theme       *styles.Theme
	keys        KeyMap
	md          *Markdown
	mdWidth     int
	useMarkdown bool

	composer textarea.Model
	search   textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	progress progress.Model

	view       overlay.View
	searching  bool
	selected   int
	lastScroll string
	notice     string
	noticeErr  bool
	width      int
	height     int

	changes chan struct{}
}

// Option configures a Model.
type Option func(*Model)

// WithDrag lets alt+arrows move the virtual window.
func WithDrag(v *host.Virtual) Option {
	return func(m *Model) { m.drag = v }
}

// WithTheme overrides the detected theme.
func WithTheme(th *styles.Theme) Option {
	return func(m *Model) { m.theme = th }
}

// WithMarkdown toggles glamour rendering of answers.
func WithMarkdown(enabled bool) Option {
	return func(m *Model) { m.useMarkdown = enabled }
}

// New creates the model and subscribes to window changes.
func New(win *overlay.Window, opts ...Option) Model {
	composer := textarea.New()
	composer.Prompt = "> "
	composer.Placeholder = "Ask anything..."
	composer.ShowLineNumbers = false
	composer.CharLimit = 0
	composer.SetHeight(1)
	composer.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	search := textinput.New()
	search.Prompt = "Search: "
	search.Placeholder = "type to search..."
	search.CharLimit = 256

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		win:         win,
		keys:        DefaultKeyMap(),
		useMarkdown: true,
		composer:    composer,
		search:      search,
		viewport:    viewport.New(56, 12),
		spinner:     sp,
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		selected:    -1,
		changes:     make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(&m)
	}
	if m.theme == nil {
		m.theme = styles.NewTheme()
	}

	changes := m.changes
	win.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	m.refresh()
	return m
}

// Init starts the cursor blink, the spinner and the change listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, waitForChange(m.changes))
}

// waitForChange blocks until the window reports a change.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// =============================================================================
// LAYOUT
// =============================================================================

// frameSize is the window's size in terminal cells: the virtual window's
// pixel bounds, limited by the terminal.
func (m *Model) frameSize() (int, int) {
	w := m.view.Bounds.Width / host.CellWidth
	h := m.view.Bounds.Height / host.CellHeight
	if m.width > 0 && (w == 0 || w > m.width) {
		w = m.width
	}
	if m.height > 0 && (h == 0 || h > m.height) {
		h = m.height
	}
	if w < 24 {
		w = 24
	}
	if h < 8 {
		h = 8
	}
	return w, h
}

// innerWidth is the usable width inside a frame border and padding.
func (m *Model) innerWidth() int {
	w, _ := m.frameSize()
	return w - 4
}

// refresh re-reads the window and re-lays out every component.
func (m *Model) refresh() {
	m.view = m.win.View()
	v := m.view

	if !m.composer.Focused() && m.composer.Value() != v.ComposerText {
		m.composer.SetValue(v.ComposerText)
	}
	if m.selected >= len(v.Timeline) {
		m.selected = len(v.Timeline) - 1
	}

	inner := m.innerWidth()
	if m.useMarkdown && m.mdWidth != inner {
		m.md = NewMarkdown(inner)
		m.mdWidth = inner
	}
	m.composer.SetWidth(inner)
	lines := strings.Count(m.composer.Value(), "\n") + 1
	if v.Mode != mode.Card {
		lines = 1
	}
	if lines > maxComposerLines {
		lines = maxComposerLines
	}
	m.composer.SetHeight(lines)
	m.search.Width = inner - len(m.search.Prompt)
	m.progress.Width = inner

	_, frameH := m.frameSize()
	chrome := 2 + 2 + lines + 1 // border, header, composer, shortcuts
	for _, extra := range []string{
		renderSuggestions(m.theme, v, inner),
		renderAttachment(m.theme, v),
		renderHint(m.theme, v),
		m.notice,
	} {
		if extra != "" {
			chrome += lipgloss.Height(extra)
		}
	}
	if v.IsThinking || v.IsStreaming {
		chrome++
	}
	vpHeight := frameH - chrome
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = inner
	m.viewport.Height = vpHeight

	atBottom := m.viewport.AtBottom()
	content, offsets := layoutTimeline(m.theme, m.md, v.Timeline, inner, m.selected, v)
	m.viewport.SetContent(content)

	switch {
	case v.ScrollTo != "" && v.ScrollTo != m.lastScroll:
		m.lastScroll = v.ScrollTo
		for i, e := range v.Timeline {
			if e.ID == v.ScrollTo {
				m.viewport.SetYOffset(offsets[i])
				break
			}
		}
	case atBottom:
		m.viewport.GotoBottom()
	}
}
