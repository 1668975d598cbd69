package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/internal/postcache"
)

const browseHelp = `Commands:
  list [page]                 list posts
  show <id>                   show a post
  search <keyword...>         search posts
  new <title> | <body>        publish a post
  edit <id> <title> | <body>  edit one of your posts
  delete <id>                 delete one of your posts
  comments <id>               list a post's comments
  comment <id> <text...>      comment on a post
  uncomment <comment-id>      delete one of your comments
  refresh                     repeat the last read, bypassing the cache
  stats                       show cache entry counts
  clear                       empty the cache
  help                        show this help
  quit                        leave`

// CommentService is the part of the API a browsing session uses for comments
type CommentService interface {
	ListComments(ctx context.Context, postID int64) ([]models.Comment, error)
	CreateComment(ctx context.Context, input models.CommentInput) (*models.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
}

// session is one interactive browsing session over a single cache
type session struct {
	fetcher  *postcache.Fetcher
	comments CommentService
	out      io.Writer
	limit    int

	refresh func(ctx context.Context) error
	// commentPosts maps comment ids this session has seen to their post ids
	commentPosts map[int64]int64
}

func newSession(fetcher *postcache.Fetcher, comments CommentService, out io.Writer, limit int) *session {
	return &session{
		fetcher:      fetcher,
		comments:     comments,
		out:          out,
		limit:        limit,
		commentPosts: make(map[int64]int64),
	}
}

// run reads commands from in until quit or EOF
func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(s.out, `Type "help" for commands.`)
	for {
		fmt.Fprint(s.out, "board> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(s.out, "Error:", describeError(err))
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// exec runs one command line
func (s *session) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(s.out, browseHelp)
	case "list", "ls":
		page := 1
		if len(args) > 0 {
			p, err := strconv.Atoi(args[0])
			if err != nil {
				return false, fmt.Errorf("invalid page %q", args[0])
			}
			page = p
		}
		return false, s.list(ctx, page, false)
	case "show":
		id, err := argID(args)
		if err != nil {
			return false, err
		}
		return false, s.show(ctx, id)
	case "search":
		if rest == "" {
			return false, fmt.Errorf("search needs a keyword")
		}
		return false, s.search(ctx, rest, false)
	case "new":
		title, body, err := splitPost(rest)
		if err != nil {
			return false, err
		}
		post, err := s.fetcher.CreatePost(ctx, models.PostInput{Title: title, Content: body})
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Published #%d\n", post.ID)
	case "edit":
		id, err := argID(args)
		if err != nil {
			return false, err
		}
		title, body, err := splitPost(strings.TrimSpace(strings.TrimPrefix(rest, args[0])))
		if err != nil {
			return false, err
		}
		post, err := s.fetcher.UpdatePost(ctx, id, models.PostInput{Title: title, Content: body})
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Updated #%d\n", post.ID)
	case "delete", "rm":
		id, err := argID(args)
		if err != nil {
			return false, err
		}
		if err := s.fetcher.DeletePost(ctx, id); err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Deleted #%d\n", id)
	case "comments":
		id, err := argID(args)
		if err != nil {
			return false, err
		}
		comments, err := s.comments.ListComments(ctx, id)
		if err != nil {
			return false, err
		}
		for _, c := range comments {
			s.commentPosts[c.ID] = c.PostID
		}
		renderComments(s.out, comments)
	case "comment":
		id, err := argID(args)
		if err != nil {
			return false, err
		}
		text := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		comment, err := s.comments.CreateComment(ctx, models.CommentInput{PostID: id, Content: text})
		if err != nil {
			return false, err
		}
		s.commentPosts[comment.ID] = comment.PostID
		s.fetcher.AdjustCommentCount(comment.PostID, 1)
		fmt.Fprintf(s.out, "Comment #%d added\n", comment.ID)
	case "uncomment":
		commentID, err := argID(args)
		if err != nil {
			return false, err
		}
		postID, ok := s.commentPosts[commentID]
		if !ok {
			return false, fmt.Errorf("unknown comment #%d; list it with comments <post-id> first", commentID)
		}
		if err := s.comments.DeleteComment(ctx, commentID); err != nil {
			return false, err
		}
		delete(s.commentPosts, commentID)
		s.fetcher.AdjustCommentCount(postID, -1)
		fmt.Fprintf(s.out, "Deleted comment #%d\n", commentID)
	case "refresh":
		if s.refresh == nil {
			return false, fmt.Errorf("nothing to refresh yet")
		}
		return false, s.refresh(ctx)
	case "stats":
		renderStats(s.out, s.fetcher.Stats())
	case "clear":
		s.fetcher.ClearAll()
		fmt.Fprintln(s.out, "Cache cleared")
	default:
		return false, fmt.Errorf("unknown command %q (try help)", name)
	}
	return false, nil
}

func (s *session) list(ctx context.Context, page int, force bool) error {
	list, err := s.fetcher.FetchPosts(ctx, page, s.limit, force)
	if err != nil {
		return err
	}
	s.refresh = func(ctx context.Context) error { return s.list(ctx, page, true) }
	renderPosts(s.out, list.Posts, list.Pagination)
	return nil
}

func (s *session) search(ctx context.Context, keyword string, force bool) error {
	result, err := s.fetcher.SearchPosts(ctx, keyword, 1, s.limit, force)
	if err != nil {
		return err
	}
	s.refresh = func(ctx context.Context) error { return s.search(ctx, keyword, true) }
	fmt.Fprintf(s.out, "Results for %q\n", result.Keyword)
	renderPosts(s.out, result.Posts, result.Pagination)
	return nil
}

// show prints a post. A post answered from the cache never reached the
// server, so its view is mirrored locally.
func (s *session) show(ctx context.Context, id int64) error {
	cached := s.fetcher.Store().Posts.Has(postcache.PostKey(id))
	post, err := s.fetcher.FetchPostByID(ctx, id, false)
	if err != nil {
		return err
	}
	if cached {
		s.fetcher.IncrementViewCount(id)
		if p, ok := s.fetcher.GetPostByID(id); ok {
			post = p
		}
	}
	s.refresh = func(ctx context.Context) error {
		post, err := s.fetcher.FetchPostByID(ctx, id, true)
		if err != nil {
			return err
		}
		renderPost(s.out, post)
		return nil
	}
	renderPost(s.out, post)
	return nil
}

func argID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing id")
	}
	return parseID(args[0])
}

// splitPost splits "title | body"
func splitPost(s string) (string, string, error) {
	title, body, ok := strings.Cut(s, "|")
	if !ok {
		return "", "", fmt.Errorf(`expected "<title> | <body>"`)
	}
	return strings.TrimSpace(title), strings.TrimSpace(body), nil
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the board interactively with a local cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSession(postcache.NewFetcher(apiClient, nil), apiClient, cmd.OutOrStdout(), cfg.Client.PageLimit)
		return s.run(cmd.Context(), cmd.InOrStdin())
	},
}

func init() {
	RootCmd.AddCommand(browseCmd)
}
