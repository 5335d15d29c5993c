package forumcmd

import (
	"context"
	"os"

	"git.handmade.network/hmn/forumaccess/src/db"
	"git.handmade.network/hmn/forumaccess/src/forumdata"
	"git.handmade.network/hmn/forumaccess/src/logging"
	"git.handmade.network/hmn/forumaccess/src/oops"
	"git.handmade.network/hmn/forumaccess/src/permissions"
	"github.com/spf13/cobra"
)

func init() {
	opts := forumdata.DefaultSeedOptions
	var outPath string

	seedCommand := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with a sample board",
		Long: `Fill the database with a sample board of lorem ipsum forums, topics and posts.

With --out, the board is written as a YAML fixture instead ("-" for stdout),
which can then be used with --fixture.`,
		Run: func(cmd *cobra.Command, args []string) {
			defer logging.LogPanics(nil)

			fx := forumdata.GenerateFixture(opts)
			if outPath != "" {
				if err := writeFixture(outPath, fx); err != nil {
					logging.Error().Err(err).Msg("failed to write fixture")
					os.Exit(1)
				}
				return
			}

			ctx := context.Background()
			conn, err := db.NewConn(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("failed to connect to the database")
				os.Exit(1)
			}
			defer conn.Close(ctx)

			if err := forumdata.Seed(ctx, conn, permissions.DefaultCatalogue(), fx); err != nil {
				logging.Error().Err(err).Msg("failed to seed the database")
				os.Exit(1)
			}
			logging.Info().Msg("Done!")
		},
	}
	flags := seedCommand.Flags()
	flags.IntVar(&opts.Categories, "categories", opts.Categories, "Number of categories")
	flags.IntVar(&opts.ForumsPerCategory, "forums", opts.ForumsPerCategory, "Number of forums per category")
	flags.IntVar(&opts.TopicsPerForum, "topics", opts.TopicsPerForum, "Number of topics per forum")
	flags.IntVar(&opts.PostsPerTopic, "posts", opts.PostsPerTopic, "Number of posts per topic")
	flags.IntVar(&opts.Users, "users", opts.Users, "Number of regular users")
	flags.Int64Var(&opts.RandSeed, "seed", opts.RandSeed, "Random seed")
	flags.StringVar(&outPath, "out", "", "Write a YAML fixture to this path instead of seeding the database")

	ForumCommand.AddCommand(seedCommand)
}

func writeFixture(path string, fx *forumdata.Fixture) error {
	if path == "-" {
		return forumdata.WriteFixture(os.Stdout, fx)
	}
	f, err := os.Create(path)
	if err != nil {
		return oops.New(err, "failed to create fixture file")
	}
	defer f.Close()
	return forumdata.WriteFixture(f, fx)
}
