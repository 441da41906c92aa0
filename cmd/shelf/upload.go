package shelf

import (
	"fmt"

	"github.com/kerbaras/shelf/pkg/services"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a PDF to your library",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		title, _ := cmd.Flags().GetString("title")
		author, _ := cmd.Flags().GetString("author")

		stop := printTransfers(env.controller.Uploader().GetProgressChannel())
		result, err := env.controller.Upload(cmd.Context(), services.UploadRequest{
			Path:   args[0],
			Title:  title,
			Author: author,
		})
		stop()
		check(err)

		if result.Book != nil {
			successf("Uploaded %q (id %s)", result.Book.Title, result.Book.ID)
			return
		}
		msg := result.Message
		if msg == "" {
			msg = "Book uploaded"
		}
		successf("%s", msg)
		fmt.Println("Run 'shelf list' to see it in your library.")
	},
}

func init() {
	uploadCmd.Flags().StringP("title", "t", "", "Book title (defaults to the file name)")
	uploadCmd.Flags().StringP("author", "a", "", "Book author")
}
