package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.bytecodealliance.org/wit"
	"golang.org/x/term"

	"github.com/nickjmiller/floneum/boundary"
	"github.com/nickjmiller/floneum/host"
	"github.com/nickjmiller/floneum/resource"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Call host functions interactively",
	Long: `Open a terminal UI listing every host function. Selecting one prompts for
its arguments and runs it against a live adapter, so handles created by one
call can be passed to the next.

Handle arguments are written as an id, with a trailing ! for an owned id
(e.g. 4294967296!). Vectors are comma separated, lists of strings are
separated by |, and lists of vectors by ;.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("inspect requires a terminal")
		}
		adapter, err := newAdapter()
		if err != nil {
			return err
		}
		defer adapter.Close()

		p := tea.NewProgram(newInspectModel(adapter), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
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

type inspectState int

const (
	stateSelectFunc inspectState = iota
	stateInputArgs
	stateShowResult
)

type paramInfo struct {
	name    string
	witType wit.Type
	typeStr string
}

type inspectModel struct {
	err      error
	adapter  *host.Adapter
	result   string
	funcs    []*boundary.Function
	params   [][]paramInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    inspectState
}

type callResultMsg struct {
	err    error
	result string
}

func newInspectModel(adapter *host.Adapter) *inspectModel {
	m := &inspectModel{adapter: adapter, state: stateSelectFunc}
	for i := range boundary.Functions {
		fn := &boundary.Functions[i]
		params := make([]paramInfo, len(fn.Params))
		for j, p := range fn.Params {
			t, err := boundary.ParseType(p.Type)
			if err != nil {
				m.err = err
			}
			params[j] = paramInfo{name: p.Name, witType: t, typeStr: p.Type}
		}
		m.funcs = append(m.funcs, fn)
		m.params = append(m.params, params)
	}
	return m
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
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
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
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

func (m *inspectModel) prepareInputs() {
	params := m.params[m.selected]
	m.inputs = make([]textinput.Model, len(params))
	for i, p := range params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *inspectModel) callFunction() tea.Msg {
	fn := m.funcs[m.selected]
	params := m.params[m.selected]

	args := make([]any, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseArg(input.Value(), params[i].witType)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("%s: %w", params[i].name, err)}
		}
		args[i] = v
	}

	result, err := invokeSafely(context.Background(), m.adapter, fn, args)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: formatResult(result)}
}

// invokeSafely runs fn and turns a panic from a bad argument conversion into
// an error so the UI survives it.
func invokeSafely(ctx context.Context, adapter *host.Adapter, fn *boundary.Function, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", fn.Name, r)
		}
	}()
	return fn.Invoke(ctx, adapter, args)
}

// parseArg converts text typed by the user to the Go value Invoke expects
// for t.
func parseArg(value string, t wit.Type) (any, error) {
	value = strings.TrimSpace(value)
	switch v := t.(type) {
	case wit.String:
		return value, nil
	case wit.U32:
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, err
		}
		return uint32(n), nil
	case wit.U64:
		return strconv.ParseUint(value, 10, 64)
	case wit.F32:
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case wit.Bool:
		return value == "true" || value == "1", nil
	case *wit.TypeDef:
		if boundary.TypeString(v) == "handle" {
			owned := strings.HasSuffix(value, "!")
			id, err := strconv.ParseUint(strings.TrimSuffix(value, "!"), 10, 64)
			if err != nil {
				return nil, err
			}
			return host.ID{ID: id, Owned: owned}, nil
		}
		if l, ok := v.Kind.(*wit.List); ok {
			return parseList(value, l.Type)
		}
	}
	return nil, fmt.Errorf("unsupported type %s", boundary.TypeString(t))
}

func parseList(value string, elem wit.Type) (any, error) {
	switch boundary.TypeString(elem) {
	case "f32":
		out := []float32{}
		for _, part := range splitNonEmpty(value, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
			if err != nil {
				return nil, err
			}
			out = append(out, float32(f))
		}
		return out, nil
	case "string":
		out := []string{}
		for _, part := range splitNonEmpty(value, "|") {
			out = append(out, strings.TrimSpace(part))
		}
		return out, nil
	case "list<f32>":
		out := [][]float32{}
		for _, part := range splitNonEmpty(value, ";") {
			vec, err := parseList(part, elem.(*wit.TypeDef).Kind.(*wit.List).Type)
			if err != nil {
				return nil, err
			}
			out = append(out, vec.([]float32))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported list element %s", boundary.TypeString(elem))
}

func splitNonEmpty(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, sep)
}

func formatResult(result any) string {
	switch v := result.(type) {
	case nil:
		return "ok"
	case host.ID:
		return fmt.Sprintf("%d (owned; pass as %d!)", v.ID, v.ID)
	case []host.ID:
		ids := make([]string, len(v))
		for i, id := range v {
			ids[i] = strconv.FormatUint(id.ID, 10) + "!"
		}
		return "[" + strings.Join(ids, " ") + "]"
	case string:
		return strconv.Quote(v)
	case []string:
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (m *inspectModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("floneum inspect"))
	b.WriteString(" ")
	b.WriteString(m.statsLine())
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a host function to call:\n\n")
		for i := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.formatFunc(i)))
			} else {
				b.WriteString("  " + m.formatFunc(i))
			}
			b.WriteString("\n")
		}
		if doc := m.funcs[m.selected].Doc; doc != "" {
			b.WriteString("\n")
			b.WriteString(helpStyle.Render(doc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		fn := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(fn.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(m.params[m.selected][i].typeStr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		fn := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(fn.Name)))
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

func (m *inspectModel) statsLine() string {
	stats := m.adapter.Stats()
	parts := make([]string, 0, len(resource.Kinds))
	for _, k := range resource.Kinds {
		parts = append(parts, fmt.Sprintf("%s:%d", k, stats[k]))
	}
	return helpStyle.Render(strings.Join(parts, " "))
}

func (m *inspectModel) formatFunc(i int) string {
	fn := m.funcs[i]
	var params []string
	for _, p := range m.params[i] {
		params = append(params, p.name+": "+typeStyle.Render(p.typeStr))
	}
	result := ""
	if fn.Result != "" {
		result = " -> " + typeStyle.Render(fn.Result)
	}
	return funcStyle.Render(fn.Name) + "(" + strings.Join(params, ", ") + ")" + result
}
