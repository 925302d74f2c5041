package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/chatbox/internal/remote"
)

func newUploadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "upload <file>",
		Annotations: appAnnotations(),
		Short:       "Upload a pdf or txt document to the conversational service",
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.client == nil {
				return errors.Wrap(remote.ErrTransportDisabled, "upload needs CHATBOX_TRANSPORT=http")
			}
			res, err := a.client.Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Filename, res.Status)
			return nil
		},
	}
}
