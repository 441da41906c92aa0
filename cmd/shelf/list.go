package shelf

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the books in your library",
	Long:  "Display the books in your library in a formatted table, optionally only one shelf",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		statusFlag, _ := cmd.Flags().GetString("status")
		status, err := data.ParseReadingStatus(statusFlag)
		check(err)

		books, err := env.controller.ListBooks(cmd.Context())
		check(err)
		books = services.FilterByStatus(books, status)

		if len(books) == 0 {
			if status == data.StatusAll {
				fmt.Println("📚 Your library is empty. Use 'shelf upload <file>' to add a book.")
			} else {
				fmt.Printf("📚 No books in %s.\n", status.Label())
			}
			return
		}

		columns := []table.Column{
			{Title: "Title", Width: 36},
			{Title: "Author", Width: 20},
			{Title: "Status", Width: 18},
			{Title: "Progress", Width: 16},
			{Title: "ID", Width: 26},
		}

		rows := make([]table.Row, 0, len(books))
		for _, book := range books {
			rows = append(rows, table.Row{
				utils.Truncate(book.Title, 34),
				utils.Truncate(book.Author, 18),
				book.Status.Label(),
				formatProgress(book.Progress),
				book.ID,
			})
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithFocused(false),
			table.WithHeight(len(rows)),
		)

		s := table.DefaultStyles()
		s.Header = s.Header.
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			BorderBottom(true).
			Bold(true)
		s.Selected = lipgloss.NewStyle()
		t.SetStyles(s)

		fmt.Printf("\n📚 %s (%d books)\n\n", status.Label(), len(books))
		fmt.Println(t.View())
	},
}

func init() {
	listCmd.Flags().StringP("status", "s", "all", "Shelf to list: all, reading, plan, completed or favorite")
}
