package forumcmd

import (
	"context"
	"os"

	"git.handmade.network/hmn/forumaccess/src/access"
	"git.handmade.network/hmn/forumaccess/src/config"
	"git.handmade.network/hmn/forumaccess/src/db"
	"git.handmade.network/hmn/forumaccess/src/forumdata"
	"git.handmade.network/hmn/forumaccess/src/logging"
	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
	"git.handmade.network/hmn/forumaccess/src/perf"
	"git.handmade.network/hmn/forumaccess/src/permissions"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var ForumCommand = &cobra.Command{
	Use:   "forumaccess",
	Short: "Inspect forum permissions and listings",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

var (
	fixturePath  string
	userID       int
	anonymousKey string
	showPerf     bool
	verbose      bool
)

func init() {
	flags := ForumCommand.PersistentFlags()
	flags.StringVar(&fixturePath, "fixture", "", "Read the board from a YAML fixture instead of the database")
	flags.IntVar(&userID, "user", 0, "ID of the user to act as (anonymous if not set)")
	flags.StringVar(&anonymousKey, "anonymous-key", "", "Forum key of the anonymous visitor to act as")
	flags.BoolVar(&showPerf, "perf", false, "Print timings when done")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every permission decision")
}

type UserRepository interface {
	User(ctx context.Context, id int) (*models.User, error)
}

// backend is everything a command needs, backed by either a fixture or the
// database.
type backend struct {
	facade *access.Facade
	users  UserRepository
	close  func()
}

func openBackend(ctx context.Context) (*backend, error) {
	catalogue := permissions.DefaultCatalogue()

	if fixturePath != "" {
		fx, err := forumdata.ReadFixtureFile(fixturePath)
		if err != nil {
			return nil, err
		}
		store, err := fx.Memory(catalogue)
		if err != nil {
			return nil, err
		}
		return newBackend(catalogue, store, store, func() {})
	}

	pool, err := db.NewConnPool(ctx)
	if err != nil {
		return nil, err
	}
	store := forumdata.NewPGStore(pool)
	return newBackend(catalogue, store, store, pool.Close)
}

type dataStore interface {
	permissions.Store
	access.ForumRepository
	access.TopicRepository
	access.PostRepository
}

func newBackend(catalogue *permissions.Catalogue, s dataStore, users UserRepository, closer func()) (*backend, error) {
	resolver, err := permissions.NewResolver(s, catalogue, config.Config.Permissions.DefaultAuthenticatedPermissions)
	if err != nil {
		closer()
		return nil, err
	}
	return &backend{
		facade: access.NewFacade(resolver, s, s, s),
		users:  users,
		close:  closer,
	}, nil
}

func (b *backend) subject(ctx context.Context) (models.Subject, error) {
	if userID != 0 {
		user, err := b.users.User(ctx, userID)
		if err != nil {
			return models.Subject{}, err
		}
		return models.UserSubject(user), nil
	}

	if anonymousKey == "" {
		return models.AnonymousSubject(nil), nil
	}
	key, err := uuid.Parse(anonymousKey)
	if err != nil {
		return models.Subject{}, oops.New(err, "invalid anonymous key")
	}
	return models.AnonymousSubject(&key), nil
}

/*
run sets up the context (logger, perf) for a command, opens the backend,
resolves the subject, and hands them to f. Errors are logged and end the
process with a non-zero exit code.
*/
func run(cmd *cobra.Command, f func(ctx context.Context, b *backend, s models.Subject) error) {
	defer logging.LogPanics(nil)

	logger := logging.With().Str("command", cmd.Name()).Logger()
	ctx := logging.AttachLoggerToContext(&logger, context.Background())

	p := perf.MakeNewRequestPerf(cmd.CommandPath())
	ctx = perf.AttachPerf(ctx, p)

	err := func() error {
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.close()
		p.Checkpoint("CLI", "backend ready")

		s, err := b.subject(ctx)
		if err != nil {
			return err
		}
		logger.Debug().Str("subject", s.CacheKey()).Msg("acting as subject")

		return f(ctx, b, s)
	}()

	p.EndRequest()
	if showPerf {
		p.Report(os.Stderr)
	}

	if err != nil {
		logger.Error().Err(err).Msgf("%s failed", cmd.Name())
		os.Exit(1)
	}
}
