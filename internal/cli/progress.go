package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/service"
)

// stageEventMsg carries one orchestrator event into the UI loop.
type stageEventMsg orchestrator.Event

// analysisDoneMsg carries the final result.
type analysisDoneMsg struct {
	res service.AnalyzeResult
	err error
}

// progressModel is the bubbletea model showing the fallback chain as it runs.
type progressModel struct {
	stages   []string
	events   <-chan orchestrator.Event
	done     <-chan analysisDoneMsg
	current  string
	lines    []string
	progress progress.Model
	theme    Theme
	result   analysisDoneMsg
	finished bool
	quitting bool
}

// newProgressModel creates a new progress model.
func newProgressModel(stages []string, events <-chan orchestrator.Event, done <-chan analysisDoneMsg) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		stages:   stages,
		events:   events,
		done:     done,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init starts listening for stage events.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.waitForEvent(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case stageEventMsg:
		e := orchestrator.Event(msg)
		if e.Outcome == orchestrator.OutcomeStarted {
			m.current = e.Stage
		} else {
			m.lines = append(m.lines, m.describe(e))
		}
		return m, m.waitForEvent()

	case analysisDoneMsg:
		m.result = msg
		m.finished = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.finished || m.quitting {
		return ""
	}

	var pct float64
	if i := slices.Index(m.stages, m.current); i >= 0 && len(m.stages) > 0 {
		pct = float64(i) / float64(len(m.stages))
	}

	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(l + "\n")
	}
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.current))
	fmt.Fprintf(&b, "%s %s\n", status, m.progress.ViewAs(pct))
	b.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to cancel") + "\n")
	return b.String()
}

func (m progressModel) describe(e orchestrator.Event) string {
	d := e.Duration.Round(time.Millisecond)
	switch e.Outcome {
	case orchestrator.OutcomeSucceeded:
		return m.theme.completedStyle().Render("✓ "+e.Stage) + fmt.Sprintf(" %s", d)
	case orchestrator.OutcomeFailed:
		return m.theme.errorStyle().Render("✗ "+e.Stage) + " " + m.theme.hintStyle().Render(e.Err)
	default:
		return m.theme.hintStyle().Render(fmt.Sprintf("· %s (%s)", e.Stage, e.Outcome))
	}
}

// waitForEvent blocks in a command goroutine until the next event or the result.
func (m progressModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		if e, ok := <-m.events; ok {
			return stageEventMsg(e)
		}
		return <-m.done
	}
}

// runWithProgress runs analyze while showing the stage chain interactively.
// Ctrl+C cancels the analysis.
func runWithProgress(ctx context.Context, stages []string, analyze func(context.Context, orchestrator.Observer) (service.AnalyzeResult, error)) (service.AnalyzeResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan orchestrator.Event, 64)
	done := make(chan analysisDoneMsg, 1)
	obs := orchestrator.ObserverFunc(func(e orchestrator.Event) {
		select {
		case events <- e:
		default:
		}
	})
	go func() {
		res, err := analyze(ctx, obs)
		close(events)
		done <- analysisDoneMsg{res: res, err: err}
	}()

	p := tea.NewProgram(newProgressModel(stages, events, done))
	finalModel, err := p.Run()
	if err != nil {
		return service.AnalyzeResult{}, fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok && m.finished {
		return m.result.res, m.result.err
	}
	cancel()
	return service.AnalyzeResult{}, context.Canceled
}
