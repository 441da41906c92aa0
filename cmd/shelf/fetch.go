package shelf

import (
	"errors"
	"fmt"

	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <id|title>",
	Short: "Download a book for offline reading",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		refresh, _ := cmd.Flags().GetBool("refresh")
		book := findBook(cmd.Context(), args[0])

		stop := printTransfers(env.controller.Fetcher().GetProgressChannel())
		path, err := env.controller.Fetch(cmd.Context(), book, refresh)
		stop()
		check(err)
		successf("%q saved to %s", book.Title, path)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <id|title>",
	Short: "Export a book's notes and highlights to EPUB",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := cmd.Flags().GetString("out")
		book := findBook(cmd.Context(), args[0])

		exporter := env.exporter
		if out != "" {
			exporter = integrations.NewNotebookExporter(out)
		}
		path, err := env.controller.Export(cmd.Context(), book, exporter)
		if errors.Is(err, integrations.ErrEmptyNotebook) {
			fmt.Printf("📝 %q has no notes or highlights yet.\n", book.Title)
			return
		}
		check(err)
		successf("Notebook written to %s", path)
	},
}

func init() {
	fetchCmd.Flags().Bool("refresh", false, "Download again even when cached")
	exportCmd.Flags().StringP("out", "o", "", "Output directory (defaults to <data dir>/exports)")
}
