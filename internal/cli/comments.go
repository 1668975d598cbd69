package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steemit/bulletin/internal/models"
)

var commentsCmd = &cobra.Command{
	Use:   "comments <post-id>",
	Short: "List a post's comments, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		comments, err := apiClient.ListComments(cmd.Context(), id)
		if err != nil {
			return err
		}
		renderComments(cmd.OutOrStdout(), comments)
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <post-id> <text...>",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		comment, err := apiClient.CreateComment(cmd.Context(), models.CommentInput{
			PostID:  id,
			Content: strings.Join(args[1:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Comment #%d added to post #%d\n", comment.ID, comment.PostID)
		return nil
	},
}

var editCommentCmd = &cobra.Command{
	Use:   "edit-comment <comment-id> <text...>",
	Short: "Replace the text of one of your comments",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		comment, err := apiClient.UpdateComment(cmd.Context(), id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Comment #%d updated\n", comment.ID)
		renderComments(cmd.OutOrStdout(), []models.Comment{*comment})
		return nil
	},
}

var uncommentCmd = &cobra.Command{
	Use:   "uncomment <comment-id>",
	Short: "Delete one of your comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := apiClient.DeleteComment(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment #%d\n", id)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(commentsCmd, commentCmd, editCommentCmd, uncommentCmd)
}
