package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/ui"
	"github.com/vanderheijden86/rolepattern/pkg/watcher"
)

// newDialog builds the pattern dialog for a. w may be nil.
func newDialog(ctx context.Context, a *app, w *watcher.Watcher) *ui.PatternDialog {
	d := ui.NewPatternDialog(a.session, a.theme, ui.DialogOptions{
		Watcher:      w,
		StartOpen:    true,
		ApplyOnStart: true,
		Chart:        a.text,
	})
	d.SetContext(ctx)
	return d
}

func runTUI(ctx context.Context, a *app) error {
	var w *watcher.Watcher
	if a.cfg.Watch.Enabled {
		var err error
		if w, err = a.newWatcher(); err != nil {
			debug.Log("watch disabled: %v", err)
			w = nil
		} else {
			defer w.Stop()
		}
	}

	// Keep debug output off the alternate screen.
	debug.SetOutput(io.Discard)
	if path := os.Getenv("RP_DEBUG_LOG"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			defer f.Close()
			debug.SetOutput(f)
		}
	}
	defer debug.SetOutput(os.Stderr)

	return runTUIProgram(ctx, newDialog(ctx, a, w))
}

func runTUIProgram(ctx context.Context, m tea.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Optional auto-quit for automated tests: set RP_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("RP_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted)) {
		return nil
	}
	return err
}
