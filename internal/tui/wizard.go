// internal/tui/wizard.go
//
// Interactive manifest wizard for `airlift create`. It uses bubbletea,
// which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The wizard walks one textinput prompt per answer, then hands the
// collected answers to the scaffold package.

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"

	"github.com/airlift-cli/airlift/internal/scaffold"
)

// ErrAborted reports that the user quit the wizard before finishing.
var ErrAborted = errors.New("tui: wizard aborted")

// step indexes the prompt the wizard is currently showing.
type step int

const (
	stepProjectName step = iota
	stepDescription
	stepJobName
	stepPackageName
	stepPlatform
	// stepTool is only shown for the custom platform.
	stepTool
	stepBinaryType
	stepDone
)

type prompt struct {
	label       string
	placeholder string
	apply       func(*scaffold.Answers, string)
}

var prompts = []prompt{
	{
		label:       "Project name",
		placeholder: "my-pipeline",
		apply:       func(a *scaffold.Answers, v string) { a.ProjectName = v },
	},
	{
		label:       "Description",
		placeholder: "Build and distribute the app",
		apply:       func(a *scaffold.Answers, v string) { a.Description = v },
	},
	{
		label:       "Job name",
		placeholder: "Release build",
		apply:       func(a *scaffold.Answers, v string) { a.JobName = v },
	},
	{
		label:       "Package name",
		placeholder: "com.example.app",
		apply:       func(a *scaffold.Answers, v string) { a.PackageName = v },
	},
	{
		label:       "Platform (android/ios/custom)",
		placeholder: "android",
		apply:       func(a *scaffold.Answers, v string) { a.Platform = v },
	},
	{
		label:       "Build tool",
		placeholder: "make",
		apply:       func(a *scaffold.Answers, v string) { a.Tool = v },
	},
	{
		label:       "Binary type (apk/aab/ipa)",
		placeholder: "apk",
		apply:       func(a *scaffold.Answers, v string) { a.BinaryType = v },
	},
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			MarginTop(1)
)

// Wizard is the bubbletea model collecting manifest answers.
type Wizard struct {
	input   textinput.Model
	step    step
	answers scaffold.Answers
	err     error
	aborted bool
}

// NewWizard builds the wizard at its first prompt.
func NewWizard() *Wizard {
	input := textinput.New()
	input.Placeholder = prompts[stepProjectName].placeholder
	input.Focus()
	input.CharLimit = 120
	input.Width = 48
	return &Wizard{input: input}
}

// Answers returns the collected answers once the wizard finished.
func (w *Wizard) Answers() scaffold.Answers { return w.answers }

// Done reports whether every prompt was answered.
func (w *Wizard) Done() bool { return w.step == stepDone }

// Aborted reports whether the user quit early.
func (w *Wizard) Aborted() bool { return w.aborted }

// Init is called once when the program starts.
func (w *Wizard) Init() tea.Cmd {
	return textinput.Blink
}

// Update is called when a message is received.
func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			w.aborted = true
			return w, tea.Quit
		case "enter":
			return w.accept()
		}
	}
	var cmd tea.Cmd
	w.input, cmd = w.input.Update(msg)
	return w, cmd
}

// accept records the current answer, advances to the next prompt, and
// quits once validation passes on the final one.
func (w *Wizard) accept() (tea.Model, tea.Cmd) {
	if w.step >= stepDone {
		return w, tea.Quit
	}
	value := strings.TrimSpace(w.input.Value())
	if value == "" {
		value = w.input.Placeholder
	}
	prompts[w.step].apply(&w.answers, value)
	w.err = nil

	if w.step == stepBinaryType {
		if err := w.answers.Validate(); err != nil {
			w.err = err
			return w, nil
		}
		w.step = stepDone
		return w, tea.Quit
	}

	w.step++
	if w.step == stepTool && !w.customPlatform() {
		w.step++
	}
	w.input.SetValue("")
	w.input.Placeholder = prompts[w.step].placeholder
	return w, nil
}

func (w *Wizard) customPlatform() bool {
	return strings.EqualFold(strings.TrimSpace(w.answers.Platform), "custom")
}

// View renders the current state to a string.
func (w *Wizard) View() string {
	if w.step == stepDone {
		return ""
	}
	sections := []string{
		headerStyle.Render("airlift · new manifest"),
		labelStyle.Render(prompts[w.step].label),
		w.input.View(),
	}
	if w.err != nil {
		sections = append(sections, errStyle.Render(w.err.Error()))
	}
	sections = append(sections, hintStyle.Render("Enter → next    Esc → cancel"))
	return strings.Join(sections, "\n")
}

// Collect runs the wizard to completion and returns the answers.
func Collect() (scaffold.Answers, error) {
	model, err := tea.NewProgram(NewWizard()).Run()
	if err != nil {
		return scaffold.Answers{}, errors.Wrap(err, "tui: run wizard")
	}
	wizard, ok := model.(*Wizard)
	if !ok || wizard.Aborted() || !wizard.Done() {
		return scaffold.Answers{}, ErrAborted
	}
	return wizard.Answers(), nil
}
