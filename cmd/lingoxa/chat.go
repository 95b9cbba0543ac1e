package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingoxa/internal/app"
	"github.com/MrWong99/lingoxa/internal/builder"
	"github.com/MrWong99/lingoxa/internal/config"
	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/session"
	"github.com/MrWong99/lingoxa/internal/transcript"
	"github.com/MrWong99/lingoxa/internal/tutor"
)

const cancelBuild = "/cancel"

const chatHelp = `Commands:
  /hints           suggest replies
  /listen          start the listening quiz
  /build <idea>    build a sentence step by step from an idea in your language
                   (/cancel stops the builder)
  /export          print the transcript
  /finish          end the session and show the report
  /quit            leave without a report`

func newChatCmd() *cobra.Command {
	var req app.StartRequest
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Practice a scenario in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.ScenarioID == "" {
				return errors.New("--scenario is required, see `lingoxa scenarios`")
			}
			return runChat(cmd, req)
		},
	}
	cmd.Flags().StringVarP(&req.ScenarioID, "scenario", "s", "", "scenario ID to practice")
	cmd.Flags().BoolVar(&req.RoleReversed, "reversed", false, "swap the learner's and the AI's roles")
	cmd.Flags().StringVar(&req.Destination, "destination", "", "travel destination for travel scenarios")
	return cmd
}

func runChat(cmd *cobra.Command, req app.StartRequest) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The terminal belongs to the conversation; only warnings are logged.
	logger, _ := newLogger(cmd.ErrOrStderr(), config.LogWarn)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observe.DefaultMetrics()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		return err
	}
	application, err := app.New(ctx, cfg, providers, app.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = application.Shutdown(shutdownCtx)
	}()

	entry, err := application.Sessions().Start(ctx, req)
	if err != nil {
		return err
	}
	c := &chat{
		out:   cmd.OutOrStdout(),
		in:    bufio.NewScanner(cmd.InOrStdin()),
		app:   application,
		entry: entry,
	}
	return c.run(ctx)
}

// chat is one terminal practice session.
type chat struct {
	out   io.Writer
	in    *bufio.Scanner
	app   *app.App
	entry *app.Entry
}

func (c *chat) run(ctx context.Context) error {
	snap := c.entry.Session.Snapshot()
	fmt.Fprintf(c.out, "%s: you are the %s, %s is the %s.\n%s\n\n", snap.Title, snap.UserRole, snap.AIName, snap.AIRole, chatHelp)
	c.print(snap.Messages...)

	for {
		line, ok := c.prompt("> ")
		if !ok {
			return ctx.Err()
		}
		done, err := c.handle(ctx, line)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			fmt.Fprintf(c.out, "! %v\n", err)
		case done:
			return nil
		}
	}
}

func (c *chat) handle(ctx context.Context, line string) (done bool, err error) {
	s := c.entry.Session
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "":
		return false, nil
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/hints":
		hints, err := s.RefreshHints(ctx)
		if err != nil {
			return false, err
		}
		if len(hints) == 0 {
			hints = s.Hints()
		}
		for i, h := range hints {
			fmt.Fprintf(c.out, "  %d. %s\n", i+1, h)
		}
	case "/listen":
		msgs, err := s.StartListening(ctx)
		if err != nil {
			return false, err
		}
		c.print(msgs...)
	case "/build":
		sentence, err := c.build(ctx, arg)
		if err != nil || sentence == "" {
			return false, err
		}
		fmt.Fprintf(c.out, "> %s\n", sentence)
		msgs, err := s.Submit(ctx, sentence)
		if err != nil {
			return false, err
		}
		c.print(msgs...)
	case "/export":
		fmt.Fprintln(c.out, s.Export())
	case "/finish":
		report, err := c.app.Sessions().Finish(ctx, s.ID())
		if err != nil {
			return false, err
		}
		printReport(c.out, report)
		return true, nil
	case "/quit":
		return true, c.app.Sessions().Exit(ctx, s.ID())
	default:
		msgs, err := s.Submit(ctx, line)
		if err != nil {
			return false, err
		}
		c.print(msgs...)
	}
	return false, nil
}

// build walks the sentence builder and returns the chosen sentence, or ""
// when the learner cancels. Failed requests are reported and the current
// step is asked again; the flow is only discarded on cancel or end of input.
func (c *chat) build(ctx context.Context, idea string) (string, error) {
	b := c.entry.Builder
	if err := b.Begin(ctx, strings.TrimSpace(idea)); err != nil {
		return "", err
	}

	for {
		snap := b.Snapshot()
		if snap.State == builder.StateComplete {
			break
		}
		if snap.Current == nil {
			b.Close()
			return "", fmt.Errorf("sentence builder stopped in state %s", snap.State)
		}
		line, ok := c.prompt(fmt.Sprintf("  [%s] %s (e.g. %s): ", snap.Current.Part, snap.Current.Question, snap.Current.Example))
		if !ok || strings.TrimSpace(line) == cancelBuild {
			b.Close()
			return "", ctx.Err()
		}
		v, err := b.Submit(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				b.Close()
				return "", ctx.Err()
			}
			fmt.Fprintf(c.out, "  ! %v\n", err)
			continue
		}
		mark := "✓"
		if !v.IsValid {
			mark = "✗"
		}
		fmt.Fprintf(c.out, "  %s %s\n", mark, v.Feedback)
	}

	choices, err := b.Choices()
	if err != nil {
		b.Close()
		return "", err
	}
	for i, choice := range choices {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, choice)
	}
	for {
		line, ok := c.prompt("  send which? ")
		if !ok || strings.TrimSpace(line) == cancelBuild {
			b.Close()
			return "", ctx.Err()
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(choices) {
			fmt.Fprintf(c.out, "  ! pick a number from 1 to %d\n", len(choices))
			continue
		}
		// Choose discards the flow.
		return b.Choose(n - 1)
	}
}

func (c *chat) prompt(p string) (string, bool) {
	fmt.Fprint(c.out, p)
	if !c.in.Scan() {
		return "", false
	}
	return c.in.Text(), true
}

func (c *chat) print(msgs ...transcript.Message) {
	name := c.entry.Session.AIName()
	for _, m := range msgs {
		if m.Role == transcript.RoleAI {
			fmt.Fprintf(c.out, "%s: %s\n", name, transcript.StripMarkup(m.Text))
			continue
		}
		if m.Correction != nil {
			printCorrection(c.out, *m.Correction)
		}
	}
	if snap := c.entry.Session.Snapshot(); snap.Phase == session.PhaseRetryGated {
		fmt.Fprintln(c.out, "  (try again with one of the suggestions)")
	}
}

func printCorrection(out io.Writer, corr transcript.Correction) {
	label := "Correction"
	if corr.IsTranslationSuggestion {
		label = "In English"
	}
	fmt.Fprintf(out, "  %s for %q:\n", label, corr.Original)
	for _, s := range corr.Suggestions {
		fmt.Fprintf(out, "    - %s  (%s)\n", s.Suggestion, s.Explanation)
	}
	for _, note := range []string{corr.ToneFeedback, corr.FormalityFeedback, corr.CulturalNote} {
		if note != "" {
			fmt.Fprintf(out, "    * %s\n", note)
		}
	}
	if corr.Idiom != nil {
		fmt.Fprintf(out, "    * idiom: %s (%s)\n", corr.Idiom.Phrase, corr.Idiom.Meaning)
	}
}

func printReport(out io.Writer, r tutor.Report) {
	fmt.Fprintf(out, "\nFluency: %d/100\n%s\n", r.FluencyScore, r.PositiveFeedback)
	if len(r.KeyCorrections) > 0 {
		fmt.Fprintln(out, "\nKey corrections:")
		for _, k := range r.KeyCorrections {
			fmt.Fprintf(out, "  %s -> %s  (%s)\n", k.Original, k.Suggestion, k.Explanation)
		}
	}
	if len(r.NewVocabulary) > 0 {
		fmt.Fprintln(out, "\nNew vocabulary:")
		for _, v := range r.NewVocabulary {
			fmt.Fprintf(out, "  %s: %s\n", v.Word, v.Definition)
		}
	}
	fmt.Fprintf(out, "\nNext: %s\n", r.NextSteps)
}
