package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steemit/bulletin/internal/models"
)

var (
	listPage   int
	searchPage int
	postTitle  string
	postBody   string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List posts, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := apiClient.ListPosts(cmd.Context(), listPage, cfg.Client.PageLimit)
		if err != nil {
			return err
		}
		renderPosts(cmd.OutOrStdout(), list.Posts, list.Pagination)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		post, err := apiClient.GetPost(cmd.Context(), id)
		if err != nil {
			return err
		}
		renderPost(cmd.OutOrStdout(), post)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword...>",
	Short: "Search post titles and bodies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyword := strings.Join(args, " ")
		result, err := apiClient.SearchPosts(cmd.Context(), keyword, searchPage, cfg.Client.PageLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Results for %q\n", result.Keyword)
		renderPosts(cmd.OutOrStdout(), result.Posts, result.Pagination)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create --title <title> --body <body>",
	Short: "Publish a post",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.CreatePost(cmd.Context(), models.PostInput{Title: postTitle, Content: postBody})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: #%d\n", resp.Message, resp.Post.ID)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id> --title <title> --body <body>",
	Short: "Edit one of your posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		resp, err := apiClient.UpdatePost(cmd.Context(), id, models.PostInput{Title: postTitle, Content: postBody})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: #%d\n", resp.Message, resp.Post.ID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete one of your posts and its comments",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := apiClient.DeletePost(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted post #"+strconv.FormatInt(id, 10))
		return nil
	},
}

func init() {
	listCmd.Flags().IntVarP(&listPage, "page", "p", 1, "page number")
	searchCmd.Flags().IntVarP(&searchPage, "page", "p", 1, "page number")

	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringVarP(&postTitle, "title", "t", "", "post title")
		c.Flags().StringVarP(&postBody, "body", "b", "", "post body")
		_ = c.MarkFlagRequired("title")
		_ = c.MarkFlagRequired("body")
	}

	RootCmd.AddCommand(listCmd, showCmd, searchCmd, createCmd, updateCmd, deleteCmd)
}
