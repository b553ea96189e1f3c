package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var exitWords = map[string]bool{"quit": true, "exit": true, "bye": true, "goodbye": true}

func newChatCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question-answering session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return chat(cmd, opts)
		},
	}
}

func chat(cmd *cobra.Command, opts *rootOpts) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	c := opts.client()

	rule := strings.Repeat("=", 50)
	fmt.Fprintln(out, "🤖 RAG Chatbot")
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "Type your messages below. Use 'quit', 'exit', or Ctrl+C to end.")
	fmt.Fprintln(out, "Upload PDFs first, then ask questions about their content!")
	fmt.Fprintln(out, rule)

	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\n💬 You: ")
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return err
			}
			fmt.Fprintln(out, "\n👋 Chat ended. Goodbye!")
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if exitWords[strings.ToLower(line)] {
			fmt.Fprintln(out, "👋 Bot: Goodbye!")
			return nil
		}
		if line == "" {
			continue
		}
		resp, err := c.Ask(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "🤖 Bot: Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "🤖 Bot: %s\n", resp.Answer)
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
