package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/dynamic-dds/config"
	"github.com/wippyai/dynamic-dds/pubsub"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	entityStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// maxSamples bounds the sample list kept on screen.
const maxSamples = 200

type spyModel struct {
	err      error
	status   string
	writer   *pubsub.Writer
	reader   *pubsub.Reader
	typeText string
	samples  []pubsub.Sample
	input    textinput.Model
	selected int
}

// samplesMsg carries samples taken from the reader's callback.
type samplesMsg struct {
	samples []pubsub.Sample
	err     error
}

type publishedMsg struct {
	text string
	err  error
}

func newSpyModel(w *pubsub.Writer, r *pubsub.Reader) *spyModel {
	ti := textinput.New()
	ti.Placeholder = `{sender: "5", message: hello, count: 1}`
	ti.Prompt = "publish> "
	ti.Width = 60
	m := &spyModel{writer: w, reader: r, input: ti}
	if w != nil {
		ti.Focus()
		m.input = ti
		m.typeText = w.Type().String()
	} else if r != nil {
		m.typeText = r.Type().String()
	}
	return m
}

func (m *spyModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *spyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "up":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.selected < len(m.samples)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			if m.writer == nil {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m, m.publish(text)
		}

	case samplesMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.samples = append(m.samples, msg.samples...)
		if over := len(m.samples) - maxSamples; over > 0 {
			m.samples = m.samples[over:]
		}
		m.selected = len(m.samples) - 1
		return m, nil

	case publishedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "published " + msg.text
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *spyModel) publish(text string) tea.Cmd {
	w := m.writer
	return func() tea.Msg {
		value, err := parseValue(text)
		if err != nil {
			return publishedMsg{err: err}
		}
		return publishedMsg{text: text, err: w.Write(value)}
	}
}

func (m *spyModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("DDS Spy"))
	if m.writer != nil {
		b.WriteString(" writer ")
		b.WriteString(entityStyle.Render(m.writer.Name()))
	}
	if m.reader != nil {
		b.WriteString(" reader ")
		b.WriteString(entityStyle.Render(m.reader.Name()))
	}
	b.WriteString("\n\n")
	b.WriteString(typeStyle.Render(m.typeText))
	b.WriteString("\n\n")

	if len(m.samples) == 0 {
		b.WriteString("Waiting for samples...\n")
	}
	for i, s := range m.samples {
		line := fmt.Sprintf("#%-4d %-10s seq %-4d %s",
			i+1, instanceStateName(s.Info), s.Info.PublicationSequenceNumber,
			s.Info.SourceTimestamp.Format("15:04:05.000"))
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.selected >= 0 && m.selected < len(m.samples) {
		b.WriteString("\n")
		if text, err := formatSample(m.samples[m.selected]); err == nil {
			b.WriteString(valueStyle.Render(text))
		}
	}

	if m.writer != nil {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(helpStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter publish • ↑/↓ select sample • esc quit"))
	return b.String()
}

// firstEntities picks the first writer and reader of a participant when
// none were named on the command line.
func firstEntities(lib *config.Library, participant string) (writer, reader string) {
	pc, ok := lib.Participant(participant)
	if !ok {
		return "", ""
	}
	for _, pub := range pc.Publishers {
		if len(pub.Writers) > 0 {
			writer = pub.Name + "::" + pub.Writers[0].Name
			break
		}
	}
	for _, sub := range pc.Subscribers {
		if len(sub.Readers) > 0 {
			reader = sub.Name + "::" + sub.Readers[0].Name
			break
		}
	}
	return writer, reader
}

func runInteractive(session *pubsub.Participant, lib *config.Library, o options) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}

	writerName, readerName := o.writer, o.reader
	if writerName == "" && readerName == "" {
		writerName, readerName = firstEntities(lib, o.participant)
	}

	var (
		w   *pubsub.Writer
		r   *pubsub.Reader
		err error
	)
	if writerName != "" {
		if w, err = session.LookupWriter(writerName); err != nil {
			return err
		}
	}
	if readerName != "" {
		if r, err = session.LookupReader(readerName); err != nil {
			return err
		}
	}
	if w == nil && r == nil {
		return fmt.Errorf("participant %s has no writers or readers", o.participant)
	}

	program := tea.NewProgram(newSpyModel(w, r), tea.WithAltScreen())
	if r != nil {
		id, err := r.AddDataAvailableCallback(func() {
			samples, err := r.Take()
			if err != nil || len(samples) > 0 {
				program.Send(samplesMsg{samples: samples, err: err})
			}
		})
		if err != nil {
			return err
		}
		defer r.RemoveDataAvailableCallback(id)
	}

	_, err = program.Run()
	return err
}
