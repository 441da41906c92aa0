package shelf

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kerbaras/shelf/pkg/app"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/reader"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id|title>",
	Short: "Show a book with its notes and highlights",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		book := findBook(cmd.Context(), args[0])
		notebook, err := env.controller.Notebook(cmd.Context(), book)
		check(err)

		successColor.Printf("📖 %s\n", book.Title)
		if book.Author != "" {
			fmt.Printf("   by %s\n", book.Author)
		}
		fmt.Println()
		fmt.Printf("  Status:   %s\n", book.Status.Label())
		fmt.Printf("  Progress: %s\n", formatProgress(book.Progress))
		if !book.CreatedAt.IsZero() {
			fmt.Printf("  Added:    %s\n", book.CreatedAt.Local().Format("Jan 2, 2006"))
		}
		mutedColor.Printf("  ID:       %s\n", book.ID)

		if len(notebook.Highlights) > 0 {
			fmt.Printf("\nHighlights (%d)\n", len(notebook.Highlights))
			for _, h := range notebook.Highlights {
				fmt.Printf("  p.%-4d “%s” ", h.Page, h.Text)
				mutedColor.Printf("(%s)\n", h.Color)
			}
		}
		if len(notebook.Notes) > 0 {
			fmt.Printf("\nNotes (%d)\n", len(notebook.Notes))
			for _, n := range notebook.Notes {
				fmt.Printf("  p.%-4d %s\n", n.Page, strings.ReplaceAll(n.Content, "\n", "\n         "))
			}
		}
	},
}

var readCmd = &cobra.Command{
	Use:   "read <id|title>",
	Short: "Open a book in the reader",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		book := findBook(cmd.Context(), args[0])
		a := app.NewApp(env.controller, env.syncer, env.exporter, env.cfg.Reader.Scale, env.log)
		check(a.Read(book))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <id|title> <status>",
	Short: "Move a book to a shelf",
	Long:  "Move a book to a shelf: all, reading, plan, completed or favorite",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		status, err := data.ParseReadingStatus(args[1])
		check(err)
		book := findBook(cmd.Context(), args[0])

		check(env.controller.SetStatus(cmd.Context(), book.ID, status))
		successf("%q moved to %s", book.Title, status.Label())
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress <id|title> <page>",
	Short: "Record the page you are on",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		page, err := parsePage(args[1])
		check(err)
		total, _ := cmd.Flags().GetInt("total")
		book := findBook(cmd.Context(), args[0])
		if total == 0 && book.Progress != nil {
			total = book.Progress.TotalPages
		}

		progress, err := env.controller.RecordProgress(cmd.Context(), book.ID, page, total)
		if errors.Is(err, reader.ErrNotSynced) {
			warnf("Saved locally but not on the server: %v", err)
			err = nil
		}
		check(err)
		successf("%q: %s", book.Title, formatProgress(&progress))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id|title>",
	Short: "Delete a book from your library",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		book := findBook(cmd.Context(), args[0])

		if !yes && !confirm(fmt.Sprintf("Delete %q and its local notes? [y/N] ", book.Title)) {
			fmt.Println("Cancelled.")
			return
		}
		check(env.controller.Delete(cmd.Context(), book.ID))
		successf("Deleted %q", book.Title)
	},
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func init() {
	progressCmd.Flags().Int("total", 0, "Total number of pages (defaults to the one last recorded)")
	deleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}
