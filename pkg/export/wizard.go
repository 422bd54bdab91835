package export

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/rolepattern/internal/datasource"
	"github.com/vanderheijden86/rolepattern/pkg/config"
	"github.com/vanderheijden86/rolepattern/pkg/render"
)

// SetupWizard walks the user through writing config.yaml.
type SetupWizard struct {
	answers wizardAnswers
	path    string
	out     io.Writer
}

// wizardAnswers holds the raw form values; numbers stay strings until
// apply so huh inputs can bind to them.
type wizardAnswers struct {
	SourcePath  string
	SourceType  string
	ResetOnOpen bool
	DedupCount  bool
	Layout      string
	ChartFormat string
	ChartWidth  string
	ChartHeight string
	Watch       bool
	MetricsAddr string
}

// NewSetupWizard returns a wizard pre-filled from cfg that saves to path.
func NewSetupWizard(cfg config.Config, path string) *SetupWizard {
	return &SetupWizard{
		answers: answersFrom(cfg),
		path:    path,
		out:     os.Stdout,
	}
}

func answersFrom(cfg config.Config) wizardAnswers {
	return wizardAnswers{
		SourcePath:  cfg.Source.Path,
		SourceType:  cfg.Source.Type,
		ResetOnOpen: cfg.Pattern.ResetOnOpen,
		DedupCount:  cfg.Pattern.DedupCount,
		Layout:      cfg.Layout.Name,
		ChartFormat: cfg.Chart.Format,
		ChartWidth:  strconv.Itoa(cfg.Chart.Width),
		ChartHeight: strconv.Itoa(cfg.Chart.Height),
		Watch:       cfg.Watch.Enabled,
		MetricsAddr: cfg.Metrics.Addr,
	}
}

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// RunSetupWizard runs the wizard over cfg and saves the result to path.
func RunSetupWizard(cfg config.Config, path string) (config.Config, error) {
	return NewSetupWizard(cfg, path).Run()
}

// Run shows the form, then writes and returns the resulting config.
func (w *SetupWizard) Run() (config.Config, error) {
	w.printBanner()

	if err := w.form().Run(); err != nil {
		return config.Config{}, err
	}

	cfg, err := w.answers.apply(config.DefaultConfig())
	if err != nil {
		return config.Config{}, err
	}
	if err := config.SaveTo(cfg, w.path); err != nil {
		return config.Config{}, fmt.Errorf("save config: %w", err)
	}
	w.printSummary(cfg)
	return cfg, nil
}

func (w *SetupWizard) printBanner() {
	fmt.Fprintln(w.out, "")
	fmt.Fprintln(w.out, "╔══════════════════════════════════════════════════╗")
	fmt.Fprintln(w.out, "║           rp → Configuration Wizard              ║")
	fmt.Fprintln(w.out, "╠══════════════════════════════════════════════════╣")
	fmt.Fprintln(w.out, "║  Press Ctrl+C anytime to cancel                  ║")
	fmt.Fprintln(w.out, "╚══════════════════════════════════════════════════╝")
	fmt.Fprintln(w.out, "")
}

func (w *SetupWizard) form() *huh.Form {
	a := &w.answers
	return newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Graph data file").
				Description("JSON document or SQLite store; empty to auto-detect").
				Value(&a.SourcePath),
			huh.NewSelect[string]().
				Title("Source type").
				Options(
					huh.NewOption("Infer from file extension", ""),
					huh.NewOption("JSON document", string(datasource.SourceTypeJSON)),
					huh.NewOption("SQLite store", string(datasource.SourceTypeSQLite)),
				).
				Value(&a.SourceType),
		).Title("Data source"),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Reset selections every time the dialog opens?").
				Value(&a.ResetOnOpen),
			huh.NewConfirm().
				Title("Count distinct level-3 matches?").
				Description("Off counts a second-hop edge once per seed that reaches it").
				Value(&a.DedupCount),
		).Title("Pattern"),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Layout").
				Options(
					huh.NewOption("Layered", render.LayoutLayered),
					huh.NewOption("Grid", render.LayoutGrid),
				).
				Value(&a.Layout),
			huh.NewSelect[string]().
				Title("Chart format").
				Options(huh.NewOptions("svg", "png")...).
				Value(&a.ChartFormat),
			huh.NewInput().
				Title("Chart width").
				Validate(validatePositiveInt).
				Value(&a.ChartWidth),
			huh.NewInput().
				Title("Chart height").
				Validate(validatePositiveInt).
				Value(&a.ChartHeight),
		).Title("Output"),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Re-apply when the data file changes?").
				Value(&a.Watch),
			huh.NewInput().
				Title("Metrics listen address").
				Description("e.g. 127.0.0.1:9464; empty disables").
				Value(&a.MetricsAddr),
		).Title("Runtime"),
	)
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("enter a whole number")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

// apply folds the answers into base.
func (a wizardAnswers) apply(base config.Config) (config.Config, error) {
	cfg := base
	cfg.Source.Path = strings.TrimSpace(a.SourcePath)
	cfg.Source.Type = a.SourceType
	if cfg.Source.Type == "" && cfg.Source.Path != "" {
		typ, err := datasource.DetectType(cfg.Source.Path)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Source.Type = string(typ)
	}
	cfg.Pattern.ResetOnOpen = a.ResetOnOpen
	cfg.Pattern.DedupCount = a.DedupCount
	if a.Layout != "" {
		cfg.Layout.Name = a.Layout
	}
	if a.ChartFormat != "" {
		cfg.Chart.Format = a.ChartFormat
	}
	if strings.TrimSpace(a.ChartWidth) != "" {
		if err := validatePositiveInt(a.ChartWidth); err != nil {
			return config.Config{}, fmt.Errorf("chart width: %w", err)
		}
		cfg.Chart.Width, _ = strconv.Atoi(strings.TrimSpace(a.ChartWidth))
	}
	if strings.TrimSpace(a.ChartHeight) != "" {
		if err := validatePositiveInt(a.ChartHeight); err != nil {
			return config.Config{}, fmt.Errorf("chart height: %w", err)
		}
		cfg.Chart.Height, _ = strconv.Atoi(strings.TrimSpace(a.ChartHeight))
	}
	cfg.Watch.Enabled = a.Watch
	cfg.Metrics.Addr = strings.TrimSpace(a.MetricsAddr)
	return cfg, nil
}

func summaryLines(cfg config.Config, path string) []string {
	source := cfg.Source.Path
	if source == "" {
		source = "(auto-detect)"
	}
	lines := []string{
		"Configuration saved",
		"File:    " + path,
		"Source:  " + source,
		"Layout:  " + cfg.Layout.Name,
		fmt.Sprintf("Chart:   %s %dx%d", cfg.Chart.Format, cfg.Chart.Width, cfg.Chart.Height),
	}
	if cfg.Watch.Enabled {
		lines = append(lines, "Watch:   on")
	}
	if cfg.Metrics.Addr != "" {
		lines = append(lines, "Metrics: "+cfg.Metrics.Addr)
	}
	return lines
}

func (w *SetupWizard) printSummary(cfg config.Config) {
	lines := summaryLines(cfg, w.path)

	width := 0
	for _, line := range lines {
		if n := len([]rune(line)); n > width {
			width = n
		}
	}
	width += 4
	if width < 50 {
		width = 50
	}

	bar := strings.Repeat("═", width)
	fmt.Fprintln(w.out, "")
	fmt.Fprintf(w.out, "╔%s╗\n", bar)
	title := lines[0]
	pad := (width - len(title)) / 2
	fmt.Fprintf(w.out, "║%s%s%s║\n", strings.Repeat(" ", pad), title, strings.Repeat(" ", width-pad-len(title)))
	fmt.Fprintf(w.out, "╠%s╣\n", bar)
	for _, line := range lines[1:] {
		fmt.Fprintf(w.out, "║  %-*s ║\n", width-3, line)
	}
	fmt.Fprintf(w.out, "╚%s╝\n", bar)
	fmt.Fprintln(w.out, "")
}
