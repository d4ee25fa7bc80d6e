package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docrag/internal/rag"
)

func NewAskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question about a document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			topK, _ := cmd.Flags().GetInt("top-k")
			showSources, _ := cmd.Flags().GetBool("sources")

			sess, p, err := a.openSession(cmd.Context(), file)
			if err != nil {
				return err
			}
			printStats(cmd.ErrOrStderr(), p.Stats(sess))

			resp, err := p.Ask(cmd.Context(), sess, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			printResponse(cmd.OutOrStdout(), resp, showSources)
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Document to load (pdf, docx, txt)")
	cmd.Flags().IntP("top-k", "k", 0, "Chunks to retrieve (default from config)")
	cmd.Flags().Bool("sources", false, "Print the retrieved chunks")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printStats(w io.Writer, s rag.SessionStats) {
	fmt.Fprintf(w, "Loaded %s: %d pages, %d chunks (embeddings %s, top-k %d)\n",
		s.Document.Name, s.Document.Pages, s.Document.Chunks, s.EmbeddingModel, s.TopK)
}

func printResponse(w io.Writer, resp *rag.QueryResponse, showSources bool) {
	fmt.Fprintln(w, resp.Formatted)
	if !showSources {
		return
	}
	fmt.Fprintln(w, "\nRetrieved chunks:")
	for i, s := range resp.Retrieved {
		fmt.Fprintf(w, "%d. [%s] %d%% (chunk %d)\n   %s\n", i+1, s.Label, s.Percent, s.ChunkID, s.Preview)
	}
}
