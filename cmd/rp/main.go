package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/vanderheijden86/rolepattern/internal/datasource"
	"github.com/vanderheijden86/rolepattern/pkg/config"
	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/export"
	"github.com/vanderheijden86/rolepattern/pkg/recipe"
	"github.com/vanderheijden86/rolepattern/pkg/version"
)

// cliOptions holds the parsed command line.
type cliOptions struct {
	dataPath     string
	sourceType   string
	level        int
	roles        string
	recipe       string
	listRecipes  bool
	chartPath    string
	snapshotPath string
	jsonOut      bool
	importSQLite string
	setup        bool
	noHooks      bool
	metricsAddr  string
	watch        bool
	dedupCount   bool
	resetOnOpen  bool
	showVersion  bool
	help         bool
	cpuProfile   string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func newFlagSet(opts *cliOptions, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("rp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dataPath, "data", "", "Graph data file (JSON document or SQLite store); discovered in the current directory when empty")
	fs.StringVar(&opts.sourceType, "source", "", "Source type: json or sqlite (inferred from the file extension when empty)")
	fs.IntVar(&opts.level, "level", 0, "Pattern level 1-3 (levels without --roles select every role)")
	fs.StringVar(&opts.roles, "roles", "", `Role sets per level, e.g. "A,B|C|D"; empty or "*" selects every role`)
	fs.StringVar(&opts.recipe, "recipe", "", "Start from a named pattern preset (see --list-recipes)")
	fs.BoolVar(&opts.listRecipes, "list-recipes", false, "List pattern presets and exit")
	fs.StringVar(&opts.chartPath, "chart", "", "Write the per-version match chart to this .svg or .png file")
	fs.StringVar(&opts.snapshotPath, "snapshot", "", "Write the highlighted scene to this .svg or .png file")
	fs.BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")
	fs.StringVar(&opts.importSQLite, "import-sqlite", "", "Convert the JSON document into a SQLite store at this path")
	fs.BoolVar(&opts.noHooks, "no-hooks", false, "Skip .rp/hooks.yaml pre/post-export hooks")
	fs.BoolVar(&opts.setup, "setup", false, "Run the interactive configuration wizard")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.BoolVar(&opts.watch, "watch", false, "Re-apply when the data file changes")
	fs.BoolVar(&opts.dedupCount, "dedup-count", false, "Count distinct level-3 matches instead of one per seed")
	fs.BoolVar(&opts.resetOnOpen, "reset-on-open", false, "Reset selections every time the dialog opens (TUI only)")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version")
	fs.BoolVar(&opts.help, "help", false, "Show help")
	fs.StringVar(&opts.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	return fs
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, *flag.FlagSet, error) {
	var opts cliOptions
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	if fs.NArg() > 0 {
		return opts, fs, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	if opts.level < 0 || opts.level > 3 {
		return opts, fs, fmt.Errorf("--level must be between 1 and 3, got %d", opts.level)
	}
	return opts, fs, nil
}

// headless reports whether to skip the TUI: any output flag forces it, as
// does a stdout that is not a terminal.
func (o cliOptions) headless(tty bool) bool {
	return !tty || o.jsonOut || o.exports()
}

// applyFlags layers command-line overrides over the loaded config.
func applyFlags(cfg *config.Config, opts cliOptions) {
	if opts.dataPath != "" {
		cfg.Source.Path = opts.dataPath
		cfg.Source.Type = ""
	}
	if opts.sourceType != "" {
		cfg.Source.Type = strings.ToLower(opts.sourceType)
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if opts.watch {
		cfg.Watch.Enabled = true
	}
	if opts.dedupCount {
		cfg.Pattern.DedupCount = true
	}
	if opts.resetOnOpen {
		cfg.Pattern.ResetOnOpen = true
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: rp [options]")
	fmt.Fprintln(w, "\nSelect role patterns over a versioned graph and chart the matches per version.")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	if opts.help {
		printUsage(stdout, fs)
		return 0
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "rp %s\n", version.Version)
		return 0
	}

	if opts.listRecipes {
		return listRecipes(stdout, stderr)
	}

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		// Non-fatal: continue with defaults
		fmt.Fprintf(stderr, "Warning: %v (using defaults)\n", cfgErr)
		cfg = config.DefaultConfig()
	}
	applyFlags(&cfg, opts)

	if opts.setup {
		if _, err := export.RunSetupWizard(cfg, config.ConfigPath()); err != nil {
			fmt.Fprintf(stderr, "Setup failed: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.importSQLite != "" {
		return runImport(ctx, cfg, opts.importSQLite, stdout, stderr)
	}

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	headless := opts.headless(tty)

	a, err := newApp(ctx, cfg, opts, !headless)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading graph: %v\n", err)
		if errors.Is(err, datasource.ErrNoSource) {
			fmt.Fprintf(stderr, "Pass --data or place one of %s in the current directory.\n", strings.Join(datasource.DefaultNames, ", "))
		}
		return 1
	}
	defer a.Close()
	debug.Log("source: %s", a.ds)

	stopMetrics, err := serveMetrics(cfg.Metrics.Addr, a.collector, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error starting metrics server: %v\n", err)
		return 1
	}
	defer stopMetrics()

	if headless {
		if err := runHeadless(ctx, a, opts, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := runTUI(ctx, a); err != nil {
		fmt.Fprintf(stderr, "Error running pattern selector: %v\n", err)
		return 1
	}
	return 0
}

// runImport converts the configured JSON document into a SQLite store and
// reports whether the store reads back identically.
func runImport(ctx context.Context, cfg config.Config, dbPath string, stdout, stderr io.Writer) int {
	src := cfg.Source.Path
	if src == "" {
		fmt.Fprintln(stderr, "Error: --import-sqlite needs --data pointing at a JSON document")
		return 2
	}
	if typ, err := datasource.DetectType(src); err != nil || typ != datasource.SourceTypeJSON {
		fmt.Fprintf(stderr, "Error: %s is not a JSON document\n", src)
		return 2
	}

	diff, err := datasource.ImportFile(ctx, src, dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Import failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Imported %s into %s\n", src, dbPath)
	fmt.Fprintln(stdout, diff.Summary())
	if diff.HasInconsistencies() {
		return 1
	}
	return 0
}

func listRecipes(stdout, stderr io.Writer) int {
	loader, err := recipe.LoadDefault()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading recipes: %v\n", err)
		return 1
	}
	for _, w := range loader.Warnings() {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}
	summaries := loader.ListSummaries()
	width := 0
	for _, s := range summaries {
		width = max(width, len(s.Name))
	}
	for _, s := range summaries {
		fmt.Fprintf(stdout, "%-*s  %-10s %-8s %s\n", width, s.Name, s.Roles, "["+s.Source+"]", s.Description)
	}
	return 0
}
