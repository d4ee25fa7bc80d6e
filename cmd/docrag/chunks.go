package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docrag/internal/rag"
)

func NewChunksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "List the chunks a document is split into",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("file")
			asJSON, _ := cmd.Flags().GetBool("json")

			pages, err := a.readPages(cmd.Context(), file)
			if err != nil {
				return err
			}
			chunks, err := rag.ChunkPages(a.chunker, pages)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(chunks)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSOURCE\tTOKENS\tOFFSET")
			for _, c := range chunks {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", c.ID, c.Label(), c.TokenCount, c.StartOffset)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringP("file", "f", "", "Document to load (pdf, docx, txt)")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
