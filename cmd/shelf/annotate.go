package shelf

import (
	"errors"
	"strings"

	"github.com/kerbaras/shelf/pkg/reader"
	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note <id|title> <page> <text>",
	Short: "Add a note to a page",
	Long:  "Add a note to a page. Notes are Markdown and show up in exported notebooks.",
	Args:  cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		page, err := parsePage(args[1])
		check(err)
		book := findBook(cmd.Context(), args[0])

		_, err = env.controller.AddNote(cmd.Context(), book.ID, page, strings.Join(args[2:], " "))
		if errors.Is(err, reader.ErrNotSynced) {
			warnf("Saved locally but not on the server: %v", err)
			err = nil
		}
		check(err)
		successf("Note added to page %d of %q", page, book.Title)
	},
}

var highlightCmd = &cobra.Command{
	Use:   "highlight <id|title> <page> <text>",
	Short: "Highlight a passage",
	Args:  cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		page, err := parsePage(args[1])
		check(err)
		color, _ := cmd.Flags().GetString("color")
		book := findBook(cmd.Context(), args[0])

		_, err = env.controller.AddHighlight(cmd.Context(), book.ID, page, strings.Join(args[2:], " "), color)
		if errors.Is(err, reader.ErrNotSynced) {
			warnf("Saved locally but not on the server: %v", err)
			err = nil
		}
		check(err)
		successf("Highlight added to page %d of %q", page, book.Title)
	},
}

func init() {
	highlightCmd.Flags().String("color", "yellow", "Highlight color")
}
