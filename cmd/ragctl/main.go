// Command ragctl is a terminal client for the document service: chat,
// one-shot questions, uploads and document management.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/docclient"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/fn"
)

const (
	serverEnv     = "RAG_SERVER_URL"
	defaultServer = "http://localhost:8000"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOpts struct {
	server  string
	timeout time.Duration
}

func (o *rootOpts) client() *docclient.Client {
	return docclient.New(o.server, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:          "ragctl",
		Short:        "Chat with and manage the PDF knowledge base",
		SilenceUsage: true,
	}

	server := os.Getenv(serverEnv)
	if server == "" {
		server = defaultServer
	}
	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "document service URL (env "+serverEnv+")")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", docclient.DefaultTimeout, "request timeout")

	cmd.AddCommand(
		newChatCmd(opts),
		newAskCmd(opts),
		newUploadCmd(opts),
		newStatusCmd(opts),
		newDocumentsCmd(opts),
	)
	return cmd
}

func newAskCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := joinArgs(args)
			resp, err := opts.client().Ask(cmd.Context(), q)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
			return nil
		},
	}
}

func newUploadCmd(opts *rootOpts) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>...",
		Short: "Upload PDFs for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			upload := fn.Stage[string, docclient.UploadResponse](func(ctx context.Context, path string) fn.Result[docclient.UploadResponse] {
				resp, err := c.Upload(ctx, path)
				if err != nil {
					return fn.Errf[docclient.UploadResponse]("upload %s: %w", path, err)
				}
				return fn.Ok(resp)
			})
			uploaded, err := fn.BatchStage(workers, upload)(cmd.Context(), args).Unwrap()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, resp := range uploaded {
				fmt.Fprintf(out, "%s\t%s\t%s\n", resp.FileID, resp.Filename, resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "parallel", "p", 4, "concurrent uploads")
	return cmd
}

func newStatusCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "status <file_id>",
		Short: "Show the processing status of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := opts.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file_id:  %s\nfilename: %s\nstatus:   %s\nchunks:   %d\n",
				doc.ID, doc.Filename, doc.Status, doc.ChunksCount)
			if doc.Error != "" {
				fmt.Fprintf(out, "error:    %s\n", doc.Error)
			}
			return nil
		},
	}
}
