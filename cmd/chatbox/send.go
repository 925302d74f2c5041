package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/chatbox/internal/ui"
)

func newSendCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "send <text...>",
		Annotations: appAnnotations(),
		Short:       "Send one message and print the exchange",
		Args:        cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := ui.NewPrinter(os.Stdout)
			cancel := printer.Attach(a.controller.Transcript())
			defer cancel()

			a.controller.SetDraft(strings.Join(args, " "))
			_, err := a.controller.Submit(cmd.Context())
			return err
		},
	}
}
