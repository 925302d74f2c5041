package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/chatbox/internal/ui"
)

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Annotations: appAnnotations(),
		Short:       "Chat in the terminal",
		Long:        "Chat in the terminal. When stdin is not a terminal each input line is sent as a message.",
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), a)
		},
	}
}

func runTUI(ctx context.Context, a *app) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		a.logger.Debug().Msg("no terminal attached, reading messages line by line")
		return ui.RunLines(ctx, os.Stdin, os.Stdout, a.controller)
	}

	model := ui.NewModel(ctx, a.controller, a.cfg.UI.Markdown)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	cancel := ui.Forward(a.controller.Transcript(), p.Send)
	defer cancel()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run terminal widget")
	}
	return nil
}
