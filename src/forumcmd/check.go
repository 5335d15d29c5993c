package forumcmd

import (
	"context"
	"fmt"
	"os"

	color "git.handmade.network/hmn/forumaccess/src/ansicolor"
	"git.handmade.network/hmn/forumaccess/src/models"
	"github.com/spf13/cobra"
)

func init() {
	var forumID int

	checkCommand := &cobra.Command{
		Use:   "check [permission...]",
		Short: "Check permissions of the subject",
		Long: `Check permissions of the subject, on one forum with --forum or globally
without. With no permissions given, every permission is checked.`,
		Run: func(cmd *cobra.Command, args []string) {
			run(cmd, func(ctx context.Context, b *backend, s models.Subject) error {
				var forum *models.Forum
				if cmd.Flags().Changed("forum") {
					f, err := b.facade.ForumByID(ctx, forumID)
					if err != nil {
						return err
					}
					forum = f
				}

				checker := b.facade.Resolver().Checker(s)
				codenames := args
				if len(codenames) == 0 {
					codenames = b.facade.Resolver().Catalogue().Codenames()
				}
				if err := checker.Prefetch(ctx, codenames...); err != nil {
					return err
				}

				for _, codename := range codenames {
					has, err := checker.Has(ctx, codename, forum)
					if err != nil {
						return err
					}
					if has {
						fmt.Fprintf(os.Stdout, "%s %s\n", color.Wrap("allowed", color.Green), codename)
					} else {
						fmt.Fprintf(os.Stdout, "%s  %s\n", color.Wrap("denied", color.Red), codename)
					}
				}
				return nil
			})
		},
	}
	checkCommand.Flags().IntVar(&forumID, "forum", 0, "Forum to check the permissions on")

	ForumCommand.AddCommand(checkCommand)
}
