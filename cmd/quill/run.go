package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quillab/quill"
	"github.com/quillab/quill/config"
	"github.com/quillab/quill/gate"
	"github.com/quillab/quill/gemini"
	"github.com/quillab/quill/insert"
	"github.com/quillab/quill/notify"
	"github.com/quillab/quill/pipeline"
	"github.com/quillab/quill/render"
	"github.com/quillab/quill/telemetry"
	"github.com/quillab/quill/tui"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		modeFlag    string
		toneFlag    string
		demo        bool
		contextFile string
		appName     string
		noInsert    bool
		plain       bool
		modelFlag   string
	)

	cmd := &cobra.Command{
		Use:   "run [instruction]",
		Short: "Stream a reply for the current on-screen context",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(flags.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			mode := cfg.Mode()
			if modeFlag != "" {
				mode = quill.Mode(modeFlag)
			}
			if err := mode.Validate(); err != nil {
				return err
			}
			tone := cfg.Tone()
			if toneFlag != "" {
				tone = quill.Tone(toneFlag)
			}
			model := cfg.Model
			if modelFlag != "" {
				model = modelFlag
			}

			completer, err := newCompleter(cmd, cfg, model)
			if err != nil {
				return err
			}

			deps := pipeline.Deps{
				Completer: completer,
				Logger:    logger,
			}
			if cfg.GateURL != "" {
				deps.Gate = gate.New(cfg.GateURL, cfg.GateToken)
			}

			store, err := telemetry.Open(cfg.HistoryPath, logger)
			if err != nil {
				logger.Warn("history store unavailable", zap.Error(err))
			} else {
				deps.Recorder = store
				defer func() { _ = store.Close() }()
			}

			autoInsert := cfg.AutoInsert && !noInsert
			if autoInsert {
				deps.Inserter = insert.NewClipboard(logger)
			}

			bus := notify.NewBus()
			deps.Notifier = bus

			opts := []pipeline.Option{
				pipeline.WithMode(mode),
				pipeline.WithTone(tone),
				pipeline.WithAutoInsert(autoInsert),
				pipeline.WithExcludedApps(cfg.ExcludedApps),
			}
			captured, err := loadContext(contextFile, appName)
			if err != nil {
				return err
			}
			if captured != nil {
				opts = append(opts, pipeline.WithContext(captured))
				focus := quill.FocusTarget{App: captured.App}
				if captured.Accessibility != nil {
					focus.ElementRole = captured.Accessibility.Role
				}
				opts = append(opts, pipeline.WithFocusTarget(focus))
			} else if demo {
				opts = append(opts, pipeline.WithDemoContext())
			}

			instruction := strings.Join(args, " ")
			if plain {
				return runPlain(ctx, instruction, deps, opts, bus)
			}
			return runTUI(ctx, instruction, mode, deps, opts, bus, autoInsert && mode.InsertsReply(), appFor(captured, demo))
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "", "run mode: compose, ask, or title")
	cmd.Flags().StringVar(&toneFlag, "tone", "", "reply tone: formal, friendly, or concise")
	cmd.Flags().BoolVar(&demo, "demo", false, "use the built-in demo context instead of a capture")
	cmd.Flags().StringVar(&contextFile, "context-file", "", "read on-screen text from a file")
	cmd.Flags().StringVar(&appName, "app", "", "app name to attribute the context to (with --context-file)")
	cmd.Flags().BoolVar(&noInsert, "no-insert", false, "do not copy the reply to the clipboard")
	cmd.Flags().BoolVar(&plain, "plain", false, "stream to stdout without the full-screen view")
	cmd.Flags().StringVar(&modelFlag, "model", "", "override the configured model")
	return cmd
}

func newCompleter(cmd *cobra.Command, cfg config.Config, model string) (quill.Completer, error) {
	var opts []gemini.Option
	if model != "" {
		opts = append(opts, gemini.WithModel(model))
	}
	return gemini.New(cmd.Context(), cfg.APIKey(), opts...)
}

// loadContext builds a capture from --context-file. Returns nil when the
// pipeline should fall back to the demo fixture or fail validation.
func loadContext(contextFile, appName string) (*quill.CapturedContext, error) {
	if contextFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(contextFile)
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}
	if appName == "" {
		appName = "Unknown"
	}
	var lines []quill.TextLine
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		lines = append(lines, quill.TextLine{Text: line, Confidence: 1})
	}
	return &quill.CapturedContext{
		App:        quill.AppInfo{Name: appName},
		Lines:      lines,
		CapturedAt: time.Now(),
	}, nil
}

func appFor(captured *quill.CapturedContext, demo bool) string {
	switch {
	case captured != nil:
		return captured.App.Name
	case demo:
		return "Mail"
	default:
		return ""
	}
}

// runTUI drives the run inside the full-screen view.
func runTUI(ctx context.Context, instruction string, mode quill.Mode, deps pipeline.Deps, opts []pipeline.Option, bus *notify.Bus, willInsert bool, app string) error {
	notices, unsubscribe := bus.Subscribe(8)
	defer unsubscribe()

	var program *tea.Program
	obs := tui.NewObserver(func(msg tea.Msg) {
		program.Send(msg)
	})
	obs.Inserted = willInsert

	coord := pipeline.New(instruction, deps, append(opts, pipeline.WithObserver(obs))...)

	m := tui.New(instruction, mode, app, quill.DefaultTheme(),
		tui.WithCancel(coord.Cancel),
		tui.WithNotices(notices),
	)
	program = tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	coord.Start()
	final, err := program.Run()
	coord.Cancel()
	<-coord.Done()
	if err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	if fm, ok := final.(tui.Model); ok {
		if ferr := fm.Err(); ferr != nil && !errors.Is(ferr, quill.ErrCancelled) {
			return ferr
		}
	}
	return nil
}

// runPlain streams tokens straight to stdout.
func runPlain(ctx context.Context, instruction string, deps pipeline.Deps, opts []pipeline.Option, bus *notify.Bus) error {
	notices, unsubscribe := bus.Subscribe(8)
	defer unsubscribe()
	go func() {
		for n := range notices {
			fmt.Fprintln(os.Stderr, noticeLine(n))
		}
	}()

	obs := &printObserver{theme: quill.DefaultTheme()}
	coord := pipeline.New(instruction, deps, append(opts, pipeline.WithObserver(obs))...)
	coord.Start()

	select {
	case <-ctx.Done():
		coord.Cancel()
		<-coord.Done()
	case <-coord.Done():
	}

	if obs.err != nil && !errors.Is(obs.err, quill.ErrCancelled) {
		return obs.err
	}
	return nil
}

func noticeLine(n quill.Notice) string {
	switch n := n.(type) {
	case quill.QuotaLowNotice:
		return fmt.Sprintf("quill: %d replies left today", n.Remaining)
	case quill.QuotaExceededNotice:
		return "quill: daily quota exhausted"
	case quill.TermsRequiredNotice:
		return "quill: updated terms must be accepted"
	case quill.PermissionErrorNotice:
		return fmt.Sprintf("quill: %s is excluded from capture", n.App)
	default:
		return ""
	}
}

// printObserver writes tokens as they arrive. It runs on the pipeline
// goroutine; fields are read only after Done.
type printObserver struct {
	theme     quill.Theme
	grounding quill.GroundingMetadata
	err       error
}

func (o *printObserver) DidReceive(token string) {
	fmt.Print(token)
}

func (o *printObserver) DidReceiveGrounding(md quill.GroundingMetadata) {
	o.grounding = md
}

func (o *printObserver) DidComplete(string) {
	fmt.Println()
	if sources := render.Sources(o.grounding, o.theme); sources != "" {
		fmt.Println()
		fmt.Println(sources)
	}
}

func (o *printObserver) DidFail(err error) {
	o.err = err
}
