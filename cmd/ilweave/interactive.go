package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/il-weaver/il"
	"github.com/wippyai/il-weaver/weave"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	methodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type spliceModel struct {
	err        error
	targetFile string
	sourceFile string
	target     *il.Module
	source     *il.Module

	targetMethods []*il.Method
	sourceMethods []*il.Method

	targetSel int
	sourceSel int
	modeSel   int

	output textinput.Model
	result []string
	state  modelState
}

type modelState int

const (
	stateSelectTarget modelState = iota
	stateSelectSource
	stateSelectMode
	stateOutput
	stateShowResult
)

var modes = []string{"before", "after"}

func newSpliceModel(targetFile, sourceFile string) *spliceModel {
	ti := textinput.New()
	ti.Prompt = "output: "
	ti.Width = 48
	return &spliceModel{
		targetFile: targetFile,
		sourceFile: sourceFile,
		output:     ti,
		state:      stateSelectTarget,
	}
}

type loadedMsg struct {
	err    error
	target *il.Module
	source *il.Module
}

type spliceMsg struct {
	err    error
	output string
	lines  []string
}

func (m *spliceModel) Init() tea.Cmd {
	return m.loadModules
}

func (m *spliceModel) loadModules() tea.Msg {
	target, err := loadModule(m.targetFile)
	if err != nil {
		return loadedMsg{err: err}
	}
	source, err := loadModule(m.sourceFile)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{target: target, source: source}
}

func bodiedMethods(mod *il.Module) []*il.Method {
	var methods []*il.Method
	for _, t := range mod.Types {
		for _, meth := range t.Methods {
			if meth.Body != nil {
				methods = append(methods, meth)
			}
		}
	}
	return methods
}

func (m *spliceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateOutput || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "up", "k":
			m.moveCursor(-1)

		case "down", "j":
			m.moveCursor(1)

		case "enter":
			switch m.state {
			case stateSelectTarget:
				if len(m.targetMethods) > 0 {
					m.state = stateSelectSource
				}
			case stateSelectSource:
				if len(m.sourceMethods) > 0 {
					m.state = stateSelectMode
				}
			case stateSelectMode:
				m.output.SetValue(m.targetFile)
				m.output.Focus()
				m.state = stateOutput
			case stateOutput:
				m.output.Blur()
				return m, m.splice
			case stateShowResult:
				m.state = stateSelectTarget
				m.result = nil
				m.err = nil
			}

		case "esc":
			switch m.state {
			case stateSelectSource:
				m.state = stateSelectTarget
			case stateSelectMode:
				m.state = stateSelectSource
			case stateOutput:
				m.output.Blur()
				m.state = stateSelectMode
			case stateShowResult:
				m.state = stateSelectTarget
				m.result = nil
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.target = msg.target
		m.source = msg.source
		m.targetMethods = bodiedMethods(msg.target)
		m.sourceMethods = bodiedMethods(msg.source)

	case spliceMsg:
		m.err = msg.err
		m.result = msg.lines
		m.state = stateShowResult
	}

	if m.state == stateOutput {
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *spliceModel) moveCursor(delta int) {
	move := func(sel *int, n int) {
		next := *sel + delta
		if next >= 0 && next < n {
			*sel = next
		}
	}
	switch m.state {
	case stateSelectTarget:
		move(&m.targetSel, len(m.targetMethods))
	case stateSelectSource:
		move(&m.sourceSel, len(m.sourceMethods))
	case stateSelectMode:
		move(&m.modeSel, len(modes))
	}
}

func (m *spliceModel) splice() tea.Msg {
	tgt := m.targetMethods[m.targetSel]
	src := m.sourceMethods[m.sourceSel]

	var (
		method *il.Method
		err    error
	)
	switch modes[m.modeSel] {
	case "before":
		method, err = weave.InjectBefore(m.target, tgt.FullName(), m.source, src.FullName(), nil)
	case "after":
		method, err = weave.InjectAfter(m.target, tgt.FullName(), m.source, src.FullName(), nil)
	}
	if err != nil {
		return spliceMsg{err: err}
	}

	output := m.output.Value()
	if err := saveModule(m.target, output); err != nil {
		return spliceMsg{err: err}
	}

	lines := []string{fmt.Sprintf("Wrote %s", output), ""}
	lines = append(lines, il.Disassemble(method.Body)...)
	return spliceMsg{output: output, lines: lines}
}

func (m *spliceModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.target == nil {
		return "Loading modules..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("IL Weaver"))
	b.WriteString(fmt.Sprintf(" %s <- %s\n\n", m.targetFile, m.sourceFile))

	switch m.state {
	case stateSelectTarget:
		b.WriteString("Select the target method:\n\n")
		m.renderMethods(&b, m.targetMethods, m.targetSel)
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter next • q quit"))

	case stateSelectSource:
		b.WriteString("Select the source method to inject:\n\n")
		m.renderMethods(&b, m.sourceMethods, m.sourceSel)
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter next • esc back"))

	case stateSelectMode:
		b.WriteString(fmt.Sprintf("Inject %s into %s:\n\n",
			methodStyle.Render(m.sourceMethods[m.sourceSel].FullName()),
			methodStyle.Render(m.targetMethods[m.targetSel].FullName())))
		for i, mode := range modes {
			cursor := "  "
			if i == m.modeSel {
				b.WriteString(selectedStyle.Render("> " + mode))
			} else {
				b.WriteString(cursor + mode)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter next • esc back"))

	case stateOutput:
		b.WriteString("Output file:\n\n")
		b.WriteString(m.output.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter splice • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render("Splice succeeded"))
			b.WriteString("\n\n")
			for _, line := range m.result {
				b.WriteString("  " + line + "\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *spliceModel) renderMethods(b *strings.Builder, methods []*il.Method, selected int) {
	for i, meth := range methods {
		line := m.formatMethod(meth)
		if i == selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
}

func (m *spliceModel) formatMethod(meth *il.Method) string {
	var params []string
	for _, p := range meth.Params {
		params = append(params, typeStyle.Render(string(p)))
	}
	return methodStyle.Render(meth.FullName()) +
		"(" + strings.Join(params, ", ") + ") -> " +
		typeStyle.Render(string(meth.Return))
}

func runInteractive(targetFile, sourceFile string) error {
	p := tea.NewProgram(newSpliceModel(targetFile, sourceFile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
