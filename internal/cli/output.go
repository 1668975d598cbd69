package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/steemit/bulletin/internal/apierr"
	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/internal/postcache"
)

const timeLayout = "2006-01-02 15:04"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

// renderPosts prints one page of post summaries
func renderPosts(w io.Writer, posts []models.Post, p models.Pagination) {
	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts.")
		return
	}

	table := newTable(w, "ID", "Title", "Author", "Views", "Comments", "Created")
	for _, post := range posts {
		table.Append([]string{
			strconv.FormatInt(post.ID, 10),
			post.Title,
			post.Username,
			strconv.FormatInt(post.ViewCount, 10),
			strconv.FormatInt(post.CommentCount, 10),
			formatTime(post.CreatedAt),
		})
	}
	table.Render()
	fmt.Fprintf(w, "Page %d of %d (%d posts)\n", p.CurrentPage, p.TotalPages, p.TotalPosts)
}

// renderPost prints one post with its body
func renderPost(w io.Writer, post *models.Post) {
	fmt.Fprintf(w, "#%d %s\n", post.ID, post.Title)
	fmt.Fprintf(w, "by %s on %s | %d views | %d comments\n",
		post.Username, formatTime(post.CreatedAt), post.ViewCount, post.CommentCount)
	if post.UpdatedAt.After(post.CreatedAt) {
		fmt.Fprintf(w, "edited %s\n", formatTime(post.UpdatedAt))
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintln(w, post.Content)
}

func renderComments(w io.Writer, comments []models.Comment) {
	if len(comments) == 0 {
		fmt.Fprintln(w, "No comments.")
		return
	}
	table := newTable(w, "ID", "Author", "Comment", "Created")
	for _, c := range comments {
		table.Append([]string{
			strconv.FormatInt(c.ID, 10),
			c.Username,
			c.Content,
			formatTime(c.CreatedAt),
		})
	}
	table.Render()
}

func renderStats(w io.Writer, st postcache.Stats) {
	table := newTable(w, "Namespace", "Entries")
	table.Append([]string{"posts", strconv.Itoa(st.PostsCount)})
	table.Append([]string{"list pages", strconv.Itoa(st.ListPagesCount)})
	table.Append([]string{"search pages", strconv.Itoa(st.SearchResultsCount)})
	table.SetFooter([]string{"total", strconv.Itoa(st.TotalCachedItems)})
	table.Render()
}

// describeError turns API errors into a one-line message for the terminal
func describeError(err error) string {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	var b strings.Builder
	switch apiErr.Kind {
	case apierr.KindNotFound:
		b.WriteString("not found: ")
	case apierr.KindForbidden:
		b.WriteString("not allowed: ")
	case apierr.KindUnauthorized:
		b.WriteString("sign in required: ")
	case apierr.KindValidationFailed:
		b.WriteString("invalid input: ")
	}
	b.WriteString(apiErr.Message)
	for _, f := range apiErr.Fields {
		fmt.Fprintf(&b, "; %s %s", f.Field, f.Message)
	}
	return b.String()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
