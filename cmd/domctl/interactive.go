package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/drivers/rtc"
	"github.com/wippyai/faultdomain/manager"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
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

type consoleModel struct {
	err      error
	mgr      *manager.Manager
	result   string
	domains  []manager.Status
	ops      []opInfo
	inputs   []textinput.Model
	selected int
	opIdx    int
	focusIdx int
	state    modelState
}

type opInfo struct {
	run    func(ctx context.Context, args []uint64) (string, error)
	name   string
	params []paramInfo
}

type paramInfo struct {
	name    string
	typeStr string
}

type modelState int

const (
	stateSelectDomain modelState = iota
	stateSelectOp
	stateInputArgs
	stateShowResult
)

type callResultMsg struct {
	err    error
	result string
}

func newConsoleModel(mgr *manager.Manager) *consoleModel {
	return &consoleModel{
		mgr:     mgr,
		domains: mgr.Status(),
		state:   stateSelectDomain,
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return nil
}

// opsFor lists what the console can do with a domain of the given status.
func (m *consoleModel) opsFor(st manager.Status) []opInfo {
	name := st.Name
	restart := opInfo{
		name: "restart",
		run: func(ctx context.Context, _ []uint64) (string, error) {
			if err := m.mgr.Restart(ctx, name); err != nil {
				return "", err
			}
			return name + " restarted", nil
		},
	}

	var ops []opInfo
	switch st.Kind {
	case domain.KindBlk, domain.KindShadowBlk:
		ops = append(ops,
			opInfo{
				name:   "read_block",
				params: []paramInfo{{"sector", "u32"}},
				run: func(ctx context.Context, args []uint64) (string, error) {
					b, err := readBlock(ctx, m.mgr, name, uint32(args[0]))
					if err != nil {
						return "", err
					}
					return hexPrefix(b, 32), nil
				},
			},
			opInfo{
				name:   "write_block",
				params: []paramInfo{{"sector", "u32"}, {"fill", "u8"}},
				run: func(ctx context.Context, args []uint64) (string, error) {
					n, err := writeBlock(ctx, m.mgr, name, uint32(args[0]), byte(args[1]))
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%d bytes written", n), nil
				},
			},
			opInfo{
				name: "get_capacity",
				run: func(ctx context.Context, _ []uint64) (string, error) {
					c, err := capacityOf(ctx, m.mgr, name)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%d sectors", c), nil
				},
			},
			opInfo{
				name: "flush",
				run: func(ctx context.Context, _ []uint64) (string, error) {
					blk, err := m.mgr.Registry().ResolveBlk(name)
					if err != nil {
						return "", err
					}
					return "flushed", blk.Flush(ctx)
				},
			},
		)
		if st.Kind == domain.KindBlk {
			ops = append(ops, opInfo{
				name:   "inject_crashes",
				params: []paramInfo{{"count", "u32"}},
				run: func(_ context.Context, args []uint64) (string, error) {
					if err := injectCrashes(m.mgr, name, int(args[0])); err != nil {
						return "", err
					}
					return fmt.Sprintf("next %d reads will fault", args[0]), nil
				},
			})
		}
	case domain.KindRtc:
		ops = append(ops, opInfo{
			name: "read_time",
			run: func(ctx context.Context, _ []uint64) (string, error) {
				t, err := readTime(ctx, m.mgr, name)
				if err != nil {
					return "", err
				}
				return rtc.FormatTime(t), nil
			},
		})
	}
	return append(ops, restart)
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateInputArgs || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "up", "k":
			switch m.state {
			case stateSelectDomain:
				if m.selected > 0 {
					m.selected--
				}
			case stateSelectOp:
				if m.opIdx > 0 {
					m.opIdx--
				}
			}

		case "down", "j":
			switch m.state {
			case stateSelectDomain:
				if m.selected < len(m.domains)-1 {
					m.selected++
				}
			case stateSelectOp:
				if m.opIdx < len(m.ops)-1 {
					m.opIdx++
				}
			}

		case "enter":
			switch m.state {
			case stateSelectDomain:
				if len(m.domains) == 0 {
					return m, nil
				}
				m.ops = m.opsFor(m.domains[m.selected])
				m.opIdx = 0
				m.state = stateSelectOp

			case stateSelectOp:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callOp
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callOp

			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateSelectOp:
				m.state = stateSelectDomain
				m.ops = nil
			case stateInputArgs:
				m.state = stateSelectOp
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		m.domains = m.mgr.Status()
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *consoleModel) prepareInputs() {
	op := m.ops[m.opIdx]
	m.inputs = make([]textinput.Model, len(op.params))
	for i, p := range op.params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr
		ti.Prompt = p.name + ": "
		ti.Width = 20
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *consoleModel) callOp() tea.Msg {
	op := m.ops[m.opIdx]
	args := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseArg(input.Value(), op.params[i].typeStr)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("%s: %w", op.params[i].name, err)}
		}
		args[i] = v
	}

	result, err := op.run(context.Background(), args)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: result}
}

func parseArg(value, typeStr string) (uint64, error) {
	bits := 32
	if typeStr == "u8" {
		bits = 8
	}
	return strconv.ParseUint(strings.TrimSpace(value), 0, bits)
}

func (m *consoleModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Fault Domains"))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectDomain:
		b.WriteString("Select a domain:\n\n")
		for i, st := range m.domains {
			line := formatDomain(st)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateSelectOp:
		st := m.domains[m.selected]
		b.WriteString(fmt.Sprintf("%s operations:\n\n", opStyle.Render(st.Name)))
		for i, op := range m.ops {
			if i == m.opIdx {
				b.WriteString(selectedStyle.Render("> " + formatOp(op)))
			} else {
				b.WriteString("  " + formatOp(op))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • esc back • q quit"))

	case stateInputArgs:
		op := m.ops[m.opIdx]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", opStyle.Render(op.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(kindStyle.Render(op.params[i].typeStr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		op := m.ops[m.opIdx]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", opStyle.Render(op.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatDomain(st manager.Status) string {
	s := fmt.Sprintf("%s %s #%d", opStyle.Render(st.Name), kindStyle.Render(st.Kind.String()), st.ID)
	if st.Target != "" {
		s += " -> " + st.Target
	}
	if st.Restarts > 0 {
		s += fmt.Sprintf(" (restarted %d)", st.Restarts)
	}
	return s
}

func formatOp(op opInfo) string {
	var params []string
	for _, p := range op.params {
		params = append(params, p.name+": "+kindStyle.Render(p.typeStr))
	}
	return opStyle.Render(op.name) + "(" + strings.Join(params, ", ") + ")"
}

func runInteractive(mgr *manager.Manager) error {
	p := tea.NewProgram(newConsoleModel(mgr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
