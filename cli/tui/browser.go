package tui

import (
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/sdlink/listing"
	"github.com/pithecene-io/sdlink/types"
)

// SelectFunc is called when the user presses Enter on a file. The returned
// string is shown in the status line; a returned error is shown instead.
type SelectFunc func(p string, node *types.FileNode) (string, error)

// BrowserModel is a Bubble Tea model for navigating a file tree.
type BrowserModel struct {
	root     *types.FileNode
	stack    []*types.FileNode // directories from root to the current one
	cursors  []int             // cursor position per stack level
	onSelect SelectFunc
	status   string
	statErr  bool
	help     help.Model
	height   int
	quitting bool
}

// NewBrowserModel creates a browser positioned at root.
func NewBrowserModel(root *types.FileNode, onSelect SelectFunc) BrowserModel {
	return BrowserModel{
		root:     root,
		stack:    []*types.FileNode{root},
		cursors:  []int{0},
		onSelect: onSelect,
		help:     help.New(),
	}
}

// Init implements tea.Model.
func (m BrowserModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m BrowserModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.current().Children
	level := len(m.stack) - 1
	cursor := m.cursors[level]

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if cursor > 0 {
			m.setCursor(cursor - 1)
		}
	case key.Matches(msg, keys.Down):
		if cursor < len(entries)-1 {
			m.setCursor(cursor + 1)
		}
	case key.Matches(msg, keys.Top):
		m.setCursor(0)
	case key.Matches(msg, keys.Bottom):
		m.setCursor(max(len(entries)-1, 0))
	case key.Matches(msg, keys.Back):
		if level > 0 {
			m.stack = m.stack[:level]
			m.cursors = m.cursors[:level]
		}
		m.status = ""
	case key.Matches(msg, keys.Open):
		if len(entries) == 0 {
			return m, nil
		}
		node := entries[cursor]
		if node.IsDir() {
			m.stack = append(m.stack, node)
			m.cursors = append(m.cursors, 0)
			m.status = ""
			return m, nil
		}
		m.selectFile(node)
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// setCursor copies cursors so earlier model values keep their position.
func (m *BrowserModel) setCursor(c int) {
	cursors := make([]int, len(m.cursors))
	copy(cursors, m.cursors)
	cursors[len(cursors)-1] = c
	m.cursors = cursors
}

func (m *BrowserModel) selectFile(node *types.FileNode) {
	p := path.Join(m.Path(), node.Name)
	if m.onSelect == nil {
		m.status, m.statErr = p, false
		return
	}
	status, err := m.onSelect(p, node)
	if err != nil {
		m.status, m.statErr = err.Error(), true
		return
	}
	m.status, m.statErr = status, false
}

func (m BrowserModel) current() *types.FileNode {
	return m.stack[len(m.stack)-1]
}

// Cursor returns the cursor index within the current directory.
func (m BrowserModel) Cursor() int {
	return m.cursors[len(m.cursors)-1]
}

// Status returns the status line text.
func (m BrowserModel) Status() string {
	return m.status
}

// Path returns the absolute path of the current directory.
func (m BrowserModel) Path() string {
	p := "/"
	for _, n := range m.stack {
		if n == m.root {
			if n.Name != "" {
				p = path.Clean("/" + n.Name)
			}
			continue
		}
		p = path.Join(p, n.Name)
	}
	return p
}

// View implements tea.Model.
func (m BrowserModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("sdlink") + " " + PathStyle.Render(m.Path()))
	b.WriteString("\n\n")

	entries := m.current().Children
	if len(entries) == 0 {
		b.WriteString(PathStyle.Render("(empty)"))
		b.WriteString("\n")
	}

	first, last := m.window(len(entries))
	for i := first; i < last; i++ {
		b.WriteString(m.renderEntry(entries[i], i == m.Cursor()))
		b.WriteString("\n")
	}

	s := listing.Stats(m.current())
	b.WriteString("\n")
	b.WriteString(PathStyle.Render(fmt.Sprintf("%d files, %d directories, %d bytes", s.Files, s.Directories, s.Bytes)))
	b.WriteString("\n")

	if m.status != "" {
		style := StatusStyle
		if m.statErr {
			style = ErrorStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(keys))
	return b.String()
}

// window returns the visible entry range so the cursor stays on screen.
func (m BrowserModel) window(n int) (int, int) {
	rows := m.height - 8
	if rows <= 0 || n <= rows {
		return 0, n
	}
	first := m.Cursor() - rows/2
	first = max(0, min(first, n-rows))
	return first, first + rows
}

func (m BrowserModel) renderEntry(n *types.FileNode, selected bool) string {
	var line string
	if n.IsDir() {
		line = fmt.Sprintf("%10s  %s", "", DirStyle.Render(n.Name+"/"))
	} else {
		line = SizeStyle.Render(fmt.Sprintf("%d", n.Size)) + "  " + FileStyle.Render(n.Name)
	}
	if selected {
		return CursorStyle.Render("> ") + line
	}
	return "  " + line
}
