package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/feichai0017/pdf-voice/internal/agent/document/pdf"
)

func newPagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "pages <file.pdf>",
		Short:   "Print the page count and metadata of a PDF",
		Args:    cobra.ExactArgs(1),
		Example: `pdfvoice pages book.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			doc, err := pdf.Open(data)
			if err != nil {
				return err
			}
			meta := doc.Metadata()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Pages:\t%d\n", meta.Pages)
			fmt.Fprintf(w, "Size:\t%s\n", humanize.Bytes(uint64(meta.FileSize)))
			if meta.Title != "" {
				fmt.Fprintf(w, "Title:\t%s\n", meta.Title)
			}
			if meta.Author != "" {
				fmt.Fprintf(w, "Author:\t%s\n", meta.Author)
			}
			return w.Flush()
		},
	}
}
