package settings

import (
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rbright/cyberscribe/internal/config"
	"github.com/rbright/cyberscribe/internal/hotkey"
)

type fieldKind int

const (
	fieldHotkey fieldKind = iota
	fieldLanguage
	fieldModelSize
	fieldDevice
	fieldComputeType
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldHotkey:      "Hotkey",
	fieldLanguage:    "Language",
	fieldModelSize:   "Model size",
	fieldDevice:      "Device",
	fieldComputeType: "Compute type",
}

// choice is a cycling selector over a fixed option list.
type choice struct {
	options []string
	index   int
}

func newChoice(options []string, current string) choice {
	idx := slices.Index(options, current)
	if idx < 0 {
		options = append([]string{current}, options...)
		idx = 0
	}
	return choice{options: options, index: idx}
}

func (c *choice) step(delta int) {
	n := len(c.options)
	c.index = ((c.index+delta)%n + n) % n
}

func (c choice) value() string {
	return c.options[c.index]
}

// model is the settings form.
type model struct {
	base     config.Config
	hotkey   []rune
	choices  [fieldCount]choice
	focus    fieldKind
	selfTest func()

	err      string
	notice   string
	saved    bool
	canceled bool
}

func newModel(cfg config.Config, selfTest func()) model {
	m := model{
		base:     cfg,
		hotkey:   []rune(cfg.Hotkey.Chord),
		selfTest: selfTest,
	}
	m.choices[fieldLanguage] = newChoice(config.Languages, cfg.ASR.Language)
	m.choices[fieldModelSize] = newChoice(config.ModelSizes, cfg.ASR.ModelSize)
	m.choices[fieldDevice] = newChoice(config.Devices, cfg.ASR.Device)
	m.choices[fieldComputeType] = newChoice(config.ComputeTypes, cfg.ASR.ComputeType)
	return m
}

// result returns the edited config.
func (m model) result() config.Config {
	cfg := m.base
	cfg.Hotkey.Chord = strings.TrimSpace(string(m.hotkey))
	cfg.ASR.Language = m.choices[fieldLanguage].value()
	cfg.ASR.ModelSize = m.choices[fieldModelSize].value()
	cfg.ASR.Device = m.choices[fieldDevice].value()
	cfg.ASR.ComputeType = m.choices[fieldComputeType].value()
	return cfg
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "esc", "ctrl+c":
		m.canceled = true
		return m, tea.Quit
	case "enter":
		if _, err := hotkey.ParseChord(string(m.hotkey)); err != nil {
			m.err = err.Error()
			m.focus = fieldHotkey
			return m, nil
		}
		m.saved = true
		return m, tea.Quit
	case "up", "shift+tab":
		m.focus = (m.focus + fieldCount - 1) % fieldCount
		return m, nil
	case "down", "tab":
		m.focus = (m.focus + 1) % fieldCount
		return m, nil
	}

	if m.focus == fieldHotkey {
		return m.editHotkey(key), nil
	}

	switch key.String() {
	case "left", "h":
		m.choices[m.focus].step(-1)
	case "right", "l", " ":
		m.choices[m.focus].step(1)
	case "t":
		if m.selfTest != nil {
			m.selfTest()
			m.notice = "Self-test: toggle sent"
		}
	}
	return m, nil
}

func (m model) editHotkey(key tea.KeyMsg) model {
	switch key.Type {
	case tea.KeyBackspace:
		if len(m.hotkey) > 0 {
			m.hotkey = m.hotkey[:len(m.hotkey)-1]
		}
	case tea.KeyCtrlU:
		m.hotkey = nil
	case tea.KeyRunes, tea.KeySpace:
		m.hotkey = append(append([]rune(nil), m.hotkey...), key.Runes...)
		if key.Type == tea.KeySpace && len(key.Runes) == 0 {
			m.hotkey = append(m.hotkey, ' ')
		}
	default:
		return m
	}
	m.err = ""
	return m
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("CyberScribe Settings"))
	b.WriteString("\n\n")

	for f := fieldKind(0); f < fieldCount; f++ {
		cursor := "  "
		if f == m.focus {
			cursor = selectedStyle.Render("> ")
		}

		var value string
		if f == fieldHotkey {
			value = string(m.hotkey)
			if f == m.focus {
				value += "_"
			}
		} else {
			value = "< " + m.choices[f].value() + " >"
		}
		if f == m.focus {
			value = selectedStyle.Render(value)
		}

		b.WriteString(cursor + labelStyle.Render(fieldLabels[f]) + value + "\n")
	}

	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(errorStyle.Render(m.err) + "\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	b.WriteString(footer())
	return b.String()
}

func footer() string {
	keys := []struct{ key, desc string }{
		{"↑/↓", "field"},
		{"←/→", "change"},
		{"t", "self-test"},
		{"enter", "save"},
		{"esc", "cancel"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+footerDescStyle.Render(k.desc))
	}
	return strings.Join(parts, "  ")
}
