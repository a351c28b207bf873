package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sprintguardian/internal/config"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator"
	"github.com/ShayCichocki/sprintguardian/internal/tui"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

var (
	generateFile   string
	generateTUI    bool
	generateJSON   bool
	generateYAML   bool
	generateNoSave bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [brain dump]",
	Short: "Generate a groomed ticket from a brain dump",
	Long: `Run the full pipeline on a brain dump and print the final ticket.

The brain dump is read from the arguments, from --file, or from stdin:

  guardian generate "users keep asking for a login page"
  guardian generate --file notes.txt
  pbpaste | guardian generate --json

The ticket is saved to storage.tickets_dir unless --no-save is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateJSON && generateYAML {
			return errors.New("--json and --yaml are mutually exclusive")
		}
		brainDump, err := readBrainDump(args, generateFile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if generateTUI {
			return runGenerateTUI(cmd.Context(), cfg, brainDump)
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if !generateJSON && !generateYAML {
			printStatus("→", fmt.Sprintf("Running pipeline with %s", a.adapter.Backend().Name()), color.FgCyan)
		}
		result, err := a.svc.Generate(cmd.Context(), brainDump, !generateNoSave)
		if err != nil {
			return describeFailure(err)
		}
		if err := printResult(cmd.OutOrStdout(), result, a.blockingLabel()); err != nil {
			return err
		}
		printUsage(a)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateFile, "file", "f", "", "read the brain dump from a file")
	generateCmd.Flags().BoolVar(&generateTUI, "tui", false, "show live pipeline progress")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "print the ticket as JSON")
	generateCmd.Flags().BoolVar(&generateYAML, "yaml", false, "print the ticket as YAML")
	generateCmd.Flags().BoolVar(&generateNoSave, "no-save", false, "do not save the ticket")
}

// readBrainDump returns the input text from args, a file, or piped stdin.
func readBrainDump(args []string, file string, stdin io.Reader) (string, error) {
	var text string
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read brain dump: %w", err)
		}
		text = string(data)
	case len(args) > 0:
		text = strings.Join(args, " ")
	default:
		if f, ok := stdin.(*os.File); ok {
			if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
				return "", errors.New("no brain dump given: pass text, --file, or pipe it on stdin")
			}
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return "", orchestrator.ErrEmptyInput
	}
	return text, nil
}

func runGenerateTUI(ctx context.Context, cfg *config.Config, brainDump string) error {
	pol, err := policyConfig(cfg)
	if err != nil {
		return err
	}
	emitter := orchestrator.NewEventEmitter(pol.Events.BufferSize, pol.Events.DropTimeout)

	a, err := newApp(cfg, emitter)
	if err != nil {
		return err
	}
	defer a.Close()

	// Log lines would tear the progress view.
	prev := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(prev)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program, app := tui.NewProgressProgram(a.blockingLabel())
	go tui.Forward(program, emitter.Events())

	var (
		result *orchestrator.Result
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = a.svc.Generate(ctx, brainDump, !generateNoSave)
		emitter.Close()
		if runErr != nil {
			program.Send(tui.DoneMsg{Err: runErr})
			return
		}
		program.Send(tui.DoneMsg{Ticket: &result.Ticket})
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	if app.Quitting() {
		cancel()
	}
	<-done

	if runErr != nil {
		return describeFailure(runErr)
	}
	if err := printResult(os.Stdout, result, a.blockingLabel()); err != nil {
		return err
	}
	printUsage(a)
	return nil
}

// printUsage reports token usage for the run on stderr.
func printUsage(a *app) {
	if generateJSON || generateYAML {
		return
	}
	t := a.adapter.Tracker()
	in, out := t.Total()
	msg := fmt.Sprintf("%d calls, %d input / %d output tokens", t.Calls(), in, out)
	if a.cfg.Backend.Provider == "anthropic" {
		msg += fmt.Sprintf(" (~$%.4f)", t.Cost())
	}
	printStatus("·", msg, color.FgHiBlack)
}

// describeFailure names the failed stage in the returned error.
func describeFailure(err error) error {
	var pv *orchestrator.PolicyViolation
	if errors.As(err, &pv) {
		return fmt.Errorf("gatekeeper policy rejected the ticket: %w", err)
	}
	if stage, ok := orchestrator.FailedStage(err); ok && stage != orchestrator.StateStart {
		return fmt.Errorf("pipeline failed at %s: %w", stage, err)
	}
	return err
}

func printResult(w io.Writer, result *orchestrator.Result, blocking string) error {
	switch {
	case generateJSON:
		return printJSON(w, result.Ticket)
	case generateYAML:
		return printYAML(w, result.Ticket)
	}

	printTicket(w, result.Ticket, blocking)
	for _, v := range result.Violations {
		printStatus("⚠", "Repaired: "+v.String(), color.FgYellow)
	}
	if result.Slug != "" {
		printStatus("✓", fmt.Sprintf("Saved as %s (run %s, %s)", result.Slug, result.RunID, result.Duration.Round(time.Millisecond)), color.FgGreen)
	}
	return nil
}

func printTicket(w io.Writer, t models.FinalTicket, blocking string) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w)
	bold.Fprintln(w, t.Summary)
	fmt.Fprintf(w, "%s %d   %s %s   %s %s\n",
		color.HiBlackString("points"), t.StoryPoints,
		color.HiBlackString("priority"), t.Priority,
		color.HiBlackString("labels"), formatLabels(t.Labels, blocking),
	)
	fmt.Fprintln(w)
	fmt.Fprintln(w, t.Description)
	fmt.Fprintln(w)
}

// formatLabels joins labels, highlighting the blocking label.
func formatLabels(labels []string, blocking string) string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if blocking != "" && strings.EqualFold(l, blocking) {
			out = append(out, color.New(color.FgRed, color.Bold).Sprint(l))
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, ", ")
}
