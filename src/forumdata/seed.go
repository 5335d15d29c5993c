package forumdata

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"git.handmade.network/hmn/forumaccess/src/db"
	"git.handmade.network/hmn/forumaccess/src/logging"
	"git.handmade.network/hmn/forumaccess/src/oops"
	"git.handmade.network/hmn/forumaccess/src/permissions"
	"git.handmade.network/hmn/forumaccess/src/utils"
	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/google/uuid"
)

type SeedOptions struct {
	Categories        int
	ForumsPerCategory int
	TopicsPerForum    int
	PostsPerTopic     int
	Users             int
	RandSeed          int64
}

var DefaultSeedOptions = SeedOptions{
	Categories:        3,
	ForumsPerCategory: 3,
	TopicsPerForum:    4,
	PostsPerTopic:     5,
	Users:             5,
	RandSeed:          1,
}

const (
	seedModeratorsGroupID = 1
	seedAdminUserID       = 1
)

/*
GenerateFixture makes up a sample board: an admin, some regular users (the
first of which moderates), categories holding forums with the occasional
sub-forum, a staff-only category, and lorem ipsum topics and posts. Anonymous
visitors can see and read everything except the staff category.
*/
func GenerateFixture(opts SeedOptions) *Fixture {
	rng := rand.New(rand.NewSource(opts.RandSeed))
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	fx := &Fixture{
		Groups: []FixtureGroup{{ID: seedModeratorsGroupID, Name: "moderators"}},
		Users: []FixtureUser{
			{ID: seedAdminUserID, Username: "admin", Superuser: true, Active: true},
		},
	}
	for i := 0; i < opts.Users; i++ {
		user := FixtureUser{
			ID:       len(fx.Users) + 1,
			Username: strings.ToLower(lorem.Word(4, 8)) + fmt.Sprint(i),
			Active:   true,
		}
		if i == 0 {
			user.Groups = []int{seedModeratorsGroupID}
		}
		fx.Users = append(fx.Users, user)
	}

	addForum := func(name string, kind string, parent *int) int {
		id := len(fx.Forums) + 1
		fx.Forums = append(fx.Forums, FixtureForum{
			ID:     id,
			Name:   name,
			Slug:   slugify(name),
			Kind:   kind,
			Parent: parent,
		})
		return id
	}

	var postable []int
	for c := 0; c < opts.Categories; c++ {
		catID := addForum(title(lorem.Word(4, 10)), "category", nil)
		for f := 0; f < opts.ForumsPerCategory; f++ {
			forumID := addForum(title(lorem.Sentence(1, 3)), "forum", &catID)
			postable = append(postable, forumID)
			if rng.Intn(3) == 0 {
				subID := addForum(title(lorem.Sentence(1, 3)), "forum", utils.P(forumID))
				postable = append(postable, subID)
			}
		}
		addForum("Website", "link", &catID)
	}
	staffID := addForum("Staff", "category", nil)
	postable = append(postable, addForum("Staff Room", "forum", &staffID))

	posted := start
	for _, forumID := range postable {
		for t := 0; t < opts.TopicsPerForum; t++ {
			topicID := len(fx.Topics) + 1
			poster := utils.P(rng.Intn(len(fx.Users)) + 1)
			posted = posted.Add(time.Duration(rng.Intn(600)) * time.Minute)
			fx.Topics = append(fx.Topics, FixtureTopic{
				ID:      topicID,
				Forum:   forumID,
				Subject: lorem.Sentence(3, 8),
				Poster:  poster,
				Locked:  rng.Intn(10) == 0,
				Created: posted,
			})
			for p := 0; p < opts.PostsPerTopic; p++ {
				post := FixturePost{
					ID:      len(fx.Posts) + 1,
					Topic:   topicID,
					Subject: lorem.Sentence(2, 6),
					Poster:  poster,
					Created: posted,
				}
				if p > 0 {
					if rng.Intn(5) == 0 {
						post.Poster = nil
						post.AnonymousKey = utils.P(uuid.New())
					} else {
						post.Poster = utils.P(rng.Intn(len(fx.Users)) + 1)
					}
				}
				fx.Posts = append(fx.Posts, post)
				posted = posted.Add(time.Duration(rng.Intn(120)+1) * time.Minute)
			}
		}
	}

	for _, codename := range []string{permissions.CanSeeForum, permissions.CanReadForum} {
		fx.Grants = append(fx.Grants,
			FixtureGrant{Anonymous: true, Permission: codename, Allowed: true},
			FixtureGrant{Anonymous: true, Forum: &staffID, Permission: codename, Allowed: false},
			FixtureGrant{Authenticated: true, Permission: codename, Allowed: true},
			FixtureGrant{Authenticated: true, Forum: &staffID, Permission: codename, Allowed: false},
			FixtureGrant{Group: utils.P(seedModeratorsGroupID), Forum: &staffID, Permission: codename, Allowed: true},
		)
	}
	for _, codename := range []string{
		permissions.CanStartNewTopics,
		permissions.CanReplyToTopics,
		permissions.CanEditOwnPosts,
		permissions.CanDeleteOwnPosts,
		permissions.CanPostWithoutApproval,
		permissions.CanVoteInPolls,
		permissions.CanDownloadFile,
	} {
		fx.Grants = append(fx.Grants, FixtureGrant{Authenticated: true, Permission: codename, Allowed: true})
	}
	for _, codename := range []string{
		permissions.CanLockTopics,
		permissions.CanMoveTopics,
		permissions.CanEditPosts,
		permissions.CanDeletePosts,
		permissions.CanApprovePosts,
		permissions.CanReplyToLockedTopics,
	} {
		fx.Grants = append(fx.Grants, FixtureGrant{Group: utils.P(seedModeratorsGroupID), Permission: codename, Allowed: true})
	}

	return fx
}

func title(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

/*
Seed writes a fixture into the database in one transaction. The catalogue's
permissions are written first, then everything else with the same ids as in
the fixture.
*/
func Seed(ctx context.Context, conn db.ConnOrTx, catalogue *permissions.Catalogue, fx *Fixture) error {
	// Building the memory store validates the fixture and computes the tree
	// coordinates and forum counters.
	mem, err := fx.Memory(catalogue)
	if err != nil {
		return oops.New(err, "invalid fixture")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if err := CreateSchema(ctx, tx); err != nil {
		return err
	}

	logging.Info().Int("permissions", len(catalogue.Kinds())).Msg("Creating permissions")
	for _, kind := range catalogue.Kinds() {
		_, err := tx.Exec(ctx,
			`
			INSERT INTO forum_permission (codename, name, is_global, is_local)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (codename) DO UPDATE
				SET name = EXCLUDED.name, is_global = EXCLUDED.is_global, is_local = EXCLUDED.is_local
			`,
			kind.Codename, kind.Label, kind.IsGlobal, kind.IsLocal,
		)
		if err != nil {
			return oops.New(err, "failed to create permission %s", kind.Codename)
		}
	}

	logging.Info().Int("groups", len(mem.groups)).Int("users", len(mem.users)).Msg("Creating users")
	for _, g := range sortedByID(mem.groups) {
		_, err := tx.Exec(ctx, `INSERT INTO forum_group (id, name) VALUES ($1, $2)`, g.ID, g.Name)
		if err != nil {
			return oops.New(err, "failed to create group %d", g.ID)
		}
	}
	for _, u := range sortedByID(mem.users) {
		_, err := tx.Exec(ctx,
			`INSERT INTO forum_user (id, username, is_superuser, is_active) VALUES ($1, $2, $3, $4)`,
			u.ID, u.Username, u.IsSuperuser, u.IsActive,
		)
		if err != nil {
			return oops.New(err, "failed to create user %d", u.ID)
		}
		for _, groupID := range u.GroupIDs {
			_, err := tx.Exec(ctx, `INSERT INTO forum_user_group (user_id, group_id) VALUES ($1, $2)`, u.ID, groupID)
			if err != nil {
				return oops.New(err, "failed to add user %d to group %d", u.ID, groupID)
			}
		}
	}

	logging.Info().Int("forums", len(mem.forums)).Msg("Creating forums")
	for _, f := range mem.forums {
		_, err := tx.Exec(ctx,
			`
			INSERT INTO forum (
				id, parent_id, kind, name, slug,
				tree_id, lft, rght, level,
				display_sub_forum_list, direct_posts_count, direct_topics_count,
				last_post_id, last_post_on
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			`,
			f.ID, f.ParentID, int(f.Kind), f.Name, f.Slug,
			f.TreeID, f.Left, f.Right, f.Level,
			f.DisplaySubForumList, f.DirectPostsCount, f.DirectTopicsCount,
			f.LastPostID, f.LastPostOn,
		)
		if err != nil {
			return oops.New(err, "failed to create forum %d", f.ID)
		}
	}

	logging.Info().Int("topics", len(mem.topics)).Int("posts", len(mem.posts)).Msg("Creating topics and posts")
	for _, t := range sortedByID(mem.topics) {
		_, err := tx.Exec(ctx,
			`
			INSERT INTO forum_topic (id, forum_id, poster_id, type, subject, locked, approved, created)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`,
			t.ID, t.ForumID, t.PosterID, int(t.Type), t.Subject, t.Locked, t.Approved, t.Created,
		)
		if err != nil {
			return oops.New(err, "failed to create topic %d", t.ID)
		}
	}
	for _, p := range sortedByID(mem.posts) {
		_, err := tx.Exec(ctx,
			`
			INSERT INTO forum_post (id, topic_id, poster_id, anonymous_key, subject, approved, created)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			`,
			p.ID, p.TopicID, p.PosterID, p.AnonymousKey, p.Subject, p.Approved, p.Created,
		)
		if err != nil {
			return oops.New(err, "failed to create post %d", p.ID)
		}
	}

	logging.Info().Int("grants", len(mem.grants)).Msg("Creating grants")
	for _, g := range mem.grants {
		var err error
		if g.Subject.Kind == permissions.SubjectGroup {
			_, err = tx.Exec(ctx,
				`
				INSERT INTO group_forum_permission (permission_id, forum_id, group_id, has_perm)
				SELECT id, $2, $3, $4 FROM forum_permission WHERE codename = $1
				`,
				g.Codename, g.ForumID, g.Subject.ID, g.Allowed,
			)
		} else {
			var userID *int
			if g.Subject.Kind == permissions.SubjectUser {
				userID = utils.P(g.Subject.ID)
			}
			_, err = tx.Exec(ctx,
				`
				INSERT INTO user_forum_permission (permission_id, forum_id, user_id, anonymous_user, authenticated_user, has_perm)
				SELECT id, $2, $3, $4, $5, $6 FROM forum_permission WHERE codename = $1
				`,
				g.Codename, g.ForumID, userID,
				g.Subject.Kind == permissions.SubjectAnonymous,
				g.Subject.Kind == permissions.SubjectAuthenticated,
				g.Allowed,
			)
		}
		if err != nil {
			return oops.New(err, "failed to create grant (%s)", g)
		}
	}

	// Explicit ids leave the sequences behind.
	for _, table := range []string{"forum_group", "forum_user", "forum", "forum_topic", "forum_post"} {
		_, err := tx.Exec(ctx, fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)`, table, table))
		if err != nil {
			return oops.New(err, "failed to reset id sequence of %s", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.New(err, "failed to commit seed")
	}
	return nil
}

func sortedByID[T any](m map[int]*T) []*T {
	ids := utils.Keys(m)
	sort.Ints(ids)
	result := make([]*T, len(ids))
	for i, id := range ids {
		result[i] = m[id]
	}
	return result
}
