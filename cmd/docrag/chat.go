package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docrag/internal/models"
)

func NewChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about a document interactively",
		Long:  `Load a document once, then answer questions read from stdin until "exit", "quit", or EOF.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("file")
			topK, _ := cmd.Flags().GetInt("top-k")
			showSources, _ := cmd.Flags().GetBool("sources")

			sess, p, err := a.openSession(cmd.Context(), file)
			if err != nil {
				return err
			}
			printStats(cmd.ErrOrStderr(), p.Stats(sess))

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}

				question := strings.TrimSpace(scanner.Text())
				switch strings.ToLower(question) {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				resp, err := p.Ask(cmd.Context(), sess, question, topK)
				if err != nil {
					if cmd.Context().Err() != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					if errors.Is(err, models.ErrUpstreamTimeout) {
						fmt.Fprintln(cmd.ErrOrStderr(), "the model did not answer in time; try again")
					}
					continue
				}
				printResponse(out, resp, showSources)
				fmt.Fprintln(out)
			}
		},
	}

	cmd.Flags().StringP("file", "f", "", "Document to load (pdf, docx, txt)")
	cmd.Flags().IntP("top-k", "k", 0, "Chunks to retrieve (default from config)")
	cmd.Flags().Bool("sources", false, "Print the retrieved chunks")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
