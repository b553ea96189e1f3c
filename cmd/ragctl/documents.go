package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/actions"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/docclient"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/fn"
)

func newDocumentsCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "List, delete or clear uploaded documents",
	}

	cmd.AddCommand(
		newListCmd(opts),
		&cobra.Command{
			Use:   "delete <file_id>",
			Short: "Delete one document and its indexed chunks",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				msg, err := opts.client().Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			},
		},
		newClearCmd(opts),
	)
	return cmd
}

func newListCmd(opts *rootOpts) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := opts.client().List(cmd.Context())
			if err != nil {
				return err
			}
			if status != "" {
				docs = fn.Filter(docs, func(d docclient.DocumentInfo) bool { return d.Status == status })
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), actions.MsgNoDocuments)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), actions.FormatDocuments(docs))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only documents in this status (processing, completed, failed)")
	return cmd
}

func newClearCmd(opts *rootOpts) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				fmt.Fprint(cmd.OutOrStdout(), "Delete all documents? [y/N] ")
				var answer string
				_, _ = fmt.Fscanln(cmd.InOrStdin(), &answer)
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			msg, err := opts.client().Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}
