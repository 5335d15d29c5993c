package forumcmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	color "git.handmade.network/hmn/forumaccess/src/ansicolor"
	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/visibility"
	"github.com/spf13/cobra"
)

func init() {
	var rootID int
	var all bool

	treeCommand := &cobra.Command{
		Use:   "tree",
		Short: "Print the forum listing the subject would see",
		Long: `Print the forum listing the subject would see.

Forums the subject cannot see are left out entirely. Forums that are visible
but collapsed in the listing (sub-forums too deep to show) are only printed
with --all.`,
		Run: func(cmd *cobra.Command, args []string) {
			run(cmd, func(ctx context.Context, b *backend, s models.Subject) error {
				var root *int
				if cmd.Flags().Changed("forum") {
					root = &rootID
				}
				listing, err := b.facade.ForumListing(ctx, s, root)
				if err != nil {
					return err
				}
				printListing(os.Stdout, listing, all)
				return nil
			})
		},
	}
	treeCommand.Flags().IntVar(&rootID, "forum", 0, "List the sub-forums of this forum instead of the whole board")
	treeCommand.Flags().BoolVar(&all, "all", false, "Also print collapsed forums")

	ForumCommand.AddCommand(treeCommand)
}

func printListing(w io.Writer, listing *visibility.Tree, all bool) {
	if listing.Empty() {
		fmt.Fprintln(w, color.Wrap("No forums to show.", color.Faint))
		return
	}

	for _, node := range listing.Nodes() {
		if !node.Visible() && !all {
			continue
		}
		forum := node.Forum()

		var b strings.Builder
		b.WriteString(strings.Repeat("  ", node.RelativeLevel()))
		switch forum.Kind {
		case models.ForumKindCategory:
			b.WriteString(color.Wrap(forum.Name, color.Bold, color.Purple))
		case models.ForumKindLink:
			b.WriteString(color.Wrap(forum.Name, color.Cyan))
		default:
			b.WriteString(color.Wrap(forum.Name, color.Bold))
		}
		b.WriteString(color.Wrap(fmt.Sprintf(" #%d", forum.ID), color.Gray))

		if !forum.IsLink() {
			b.WriteString(fmt.Sprintf("  %d topics, %d posts", node.TopicsCount(), node.PostsCount()))
			if last := node.LastPost(); last != nil {
				b.WriteString(color.Wrap(fmt.Sprintf("  last post #%d on %s", last.ID, last.PostedOn.Format("2006-01-02 15:04")), color.Gray))
			}
		}
		if !node.Visible() {
			b.WriteString(color.Wrap("  (collapsed)", color.Yellow))
		}

		line := b.String()
		if !node.Visible() {
			line = color.Wrap(line, color.Faint)
		}
		fmt.Fprintln(w, line)
	}
}
