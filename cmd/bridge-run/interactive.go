package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/native-bridge/broadcast"
	"github.com/wippyai/native-bridge/scenario"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	targetStyle = lipgloss.NewStyle().
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

type modelState int

const (
	stateSteps modelState = iota
	stateBroadcastInput
)

type interactiveModel struct {
	err      error
	script   *scenario.Script
	runner   *scenario.Runner
	filename string
	message  string
	results  []scenario.StepResult
	input    textinput.Model
	state    modelState
}

func newInteractiveModel(filename string, script *scenario.Script, runner *scenario.Runner) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "int32"
	ti.Prompt = "request code: "
	ti.Width = 20
	return &interactiveModel{
		filename: filename,
		script:   script,
		runner:   runner,
		input:    ti,
		state:    stateSteps,
	}
}

type stepMsg struct {
	result scenario.StepResult
	ok     bool
}

type broadcastMsg struct {
	err  error
	code int32
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) runStep() tea.Msg {
	res, ok := m.runner.Next()
	return stepMsg{result: res, ok: ok}
}

func (m *interactiveModel) sendBroadcast() tea.Msg {
	v, err := strconv.ParseInt(strings.TrimSpace(m.input.Value()), 10, 32)
	if err != nil {
		return broadcastMsg{err: err}
	}
	code := int32(v)
	r := broadcast.NewReceiver(m.runner.Recorder())
	return broadcastMsg{code: code, err: r.OnReceive(broadcast.Intent("console", code))}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateBroadcastInput {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "enter":
				m.state = stateSteps
				return m.Update(m.sendBroadcast())
			case "esc":
				m.state = stateSteps
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		// Steps run on the update goroutine; the runner is not shared.
		case "enter", "n":
			return m.Update(m.runStep())

		case "a":
			for !m.runner.Done() {
				m.Update(m.runStep())
			}

		case "b":
			m.state = stateBroadcastInput
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink
		}

	case stepMsg:
		if msg.ok {
			m.results = append(m.results, msg.result)
			m.message = ""
		}

	case broadcastMsg:
		m.input.Blur()
		m.err = msg.err
		if msg.err == nil {
			m.message = fmt.Sprintf("broadcast %d forwarded", msg.code)
		}
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Bridge Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	if m.script.Name != "" {
		b.WriteString(" · ")
		b.WriteString(m.script.Name)
	}
	b.WriteString("\n\n")

	for i := range m.script.Steps {
		b.WriteString(m.formatStep(i))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Forwards so far: %d\n\n", m.runner.Recorder().Count("")))

	if m.state == stateBroadcastInput {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter send • esc back"))
		return b.String()
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	} else if m.message != "" {
		b.WriteString(resultStyle.Render(m.message))
		b.WriteString("\n\n")
	}
	b.WriteString(helpStyle.Render("enter/n next step • a run all • b broadcast • q quit"))
	return b.String()
}

func (m *interactiveModel) formatStep(i int) string {
	step := &m.script.Steps[i]
	action, target, _ := step.Action()
	label := actionStyle.Render(action)
	if target != "" {
		label += " " + targetStyle.Render(target)
	} else if step.Broadcast != nil {
		label += " " + targetStyle.Render(strconv.Itoa(int(*step.Broadcast)))
	}
	if step.Method != "" {
		label += "." + step.Method
	}

	if i == m.runner.Position() && !m.runner.Done() {
		return selectedStyle.Render("> ") + label
	}
	if i >= len(m.results) {
		return "  " + label
	}

	res := m.results[i]
	line := fmt.Sprintf("  %s  forwards=%d", label, res.Forwards)
	if res.Result != nil {
		line += " " + resultStyle.Render(fmt.Sprintf("→ %v", res.Result))
	}
	if res.Err != nil {
		line += " " + errorStyle.Render(res.Err.Error())
	}
	for _, f := range res.Failures {
		line += "\n      " + errorStyle.Render(f)
	}
	return line
}

func runInteractive(filename string, script *scenario.Script, runner *scenario.Runner) error {
	p := tea.NewProgram(newInteractiveModel(filename, script, runner), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
