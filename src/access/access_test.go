package access

import (
	"context"
	"errors"
	"strings"
	"testing"

	"git.handmade.network/hmn/forumaccess/src/db"
	"git.handmade.network/hmn/forumaccess/src/forumdata"
	"git.handmade.network/hmn/forumaccess/src/forumtree"
	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/permissions"
	"git.handmade.network/hmn/forumaccess/src/utils"
	"git.handmade.network/hmn/forumaccess/src/visibility"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guestKey = "6f1c2b8e-3a4d-4e5f-8a9b-0c1d2e3f4a5b"

// General (category)
// ├── Chat
// │   └── Sub
// └── Hidden         (anonymous users cannot see it)
//     └── Inside     (anonymous users are allowed here, but Hidden hides it)
// Staff (category)   (moderators only)
// └── Staff Room
const board = `
groups:
  - {id: 1, name: moderators}
users:
  - {id: 1, username: admin, superuser: true, active: true}
  - {id: 2, username: alice, active: true, groups: [1]}
  - {id: 3, username: bob, active: true}
  - {id: 4, username: carol, active: false}
forums:
  - {id: 1, name: General, kind: category}
  - {id: 2, name: Chat, parent: 1}
  - {id: 3, name: Sub, parent: 2}
  - {id: 4, name: Hidden, parent: 1}
  - {id: 5, name: Inside, parent: 4}
  - {id: 6, name: Staff, kind: category}
  - {id: 7, name: Staff Room, parent: 6}
topics:
  - {id: 1, forum: 2, subject: Welcome, poster: 3, created: 2022-05-01T10:00:00Z}
  - {id: 2, forum: 2, subject: Closed, poster: 3, locked: true, created: 2022-05-01T11:00:00Z}
  - {id: 3, forum: 5, subject: Secret, created: 2022-05-01T12:00:00Z}
  - {id: 4, forum: 7, subject: Plans, poster: 2, created: 2022-05-01T13:00:00Z}
posts:
  - {id: 1, topic: 1, subject: Welcome, poster: 3, created: 2022-05-01T10:00:00Z}
  - {id: 2, topic: 2, subject: Closed, poster: 3, created: 2022-05-01T11:00:00Z}
  - {id: 3, topic: 3, subject: Secret, anonymous_key: ` + guestKey + `, created: 2022-05-01T12:00:00Z}
  - {id: 4, topic: 4, subject: Plans, poster: 2, created: 2022-05-01T13:00:00Z}
grants:
  - {anonymous: true, permission: can_see_forum, allowed: true}
  - {anonymous: true, permission: can_read_forum, allowed: true}
  - {anonymous: true, forum: 4, permission: can_see_forum, allowed: false}
  - {anonymous: true, forum: 5, permission: can_see_forum, allowed: true}
  - {anonymous: true, forum: 5, permission: can_edit_own_posts, allowed: true}
  - {anonymous: true, forum: 6, permission: can_see_forum, allowed: false}

  - {authenticated: true, permission: can_see_forum, allowed: true}
  - {authenticated: true, permission: can_read_forum, allowed: true}
  - {authenticated: true, permission: can_start_new_topics, allowed: true}
  - {authenticated: true, permission: can_reply_to_topics, allowed: true}
  - {authenticated: true, permission: can_edit_own_posts, allowed: true}
  - {authenticated: true, permission: can_delete_own_posts, allowed: true}
  - {authenticated: true, forum: 6, permission: can_see_forum, allowed: false}

  - {group: 1, forum: 6, permission: can_see_forum, allowed: true}
  - {group: 1, permission: can_edit_posts, allowed: true}
  - {group: 1, permission: can_move_topics, allowed: true}
  - {group: 1, permission: can_reply_to_locked_topics, allowed: true}
  - {group: 1, forum: 2, permission: can_approve_posts, allowed: true}
`

type fixture struct {
	facade *Facade
	store  *forumdata.MemoryStore

	admin, alice, bob, carol, guest, stranger models.Subject
}

func setup(t *testing.T) *fixture {
	t.Helper()
	fx, err := forumdata.ReadFixture(strings.NewReader(board))
	require.Nil(t, err)
	store, err := fx.Memory(permissions.DefaultCatalogue())
	require.Nil(t, err)
	resolver, err := permissions.NewResolver(store, permissions.DefaultCatalogue(), nil)
	require.Nil(t, err)

	user := func(id int) models.Subject {
		u, err := store.User(context.Background(), id)
		require.Nil(t, err)
		return models.UserSubject(u)
	}
	return &fixture{
		facade:   NewFacade(resolver, store, store, store),
		store:    store,
		admin:    user(1),
		alice:    user(2),
		bob:      user(3),
		carol:    user(4),
		guest:    models.AnonymousSubject(utils.P(uuid.MustParse(guestKey))),
		stranger: models.AnonymousSubject(utils.P(uuid.New())),
	}
}

func (fx *fixture) forum(t *testing.T, id int) *models.Forum {
	t.Helper()
	f, err := fx.store.Forum(context.Background(), id)
	require.Nil(t, err)
	return f
}

func (fx *fixture) post(t *testing.T, id int) *models.PostAndTopic {
	t.Helper()
	pt, err := fx.store.PostAndTopic(context.Background(), id)
	require.Nil(t, err)
	return pt
}

func forumIDs(forums []*models.Forum) []int {
	result := []int{}
	for _, f := range forums {
		result = append(result, f.ID)
	}
	return result
}

func TestFilterVisible(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	all, err := fx.store.AllForums(ctx)
	require.Nil(t, err)

	visibleIDs := func(s models.Subject) []int {
		visible, err := fx.facade.FilterVisible(ctx, s, all)
		require.Nil(t, err)
		return forumIDs(visible)
	}

	assert.Equal(t, []int{1, 2, 3}, visibleIDs(fx.guest))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, visibleIDs(fx.bob))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, visibleIDs(fx.alice))
	assert.Empty(t, visibleIDs(fx.carol))

	t.Run("superusers get the input back", func(t *testing.T) {
		notOnBoard := &models.Forum{ID: 99}
		visible, err := fx.facade.FilterVisible(ctx, fx.admin, append(all, notOnBoard))
		require.Nil(t, err)
		assert.Len(t, visible, len(all)+1)
	})
	t.Run("hidden forums hide their descendants", func(t *testing.T) {
		tree, err := forumtree.New(all)
		require.Nil(t, err)
		for _, s := range []models.Subject{fx.guest, fx.stranger, fx.bob, fx.alice, fx.carol} {
			visible, err := fx.facade.FilterVisible(ctx, s, all)
			require.Nil(t, err)
			shown := make(map[int]bool)
			for _, f := range visible {
				shown[f.ID] = true
			}
			for _, f := range all {
				if shown[f.ID] {
					continue
				}
				for _, descendant := range tree.Descendants(f.ID) {
					assert.False(t, shown[descendant.ID], "forum %d is shown under hidden forum %d", descendant.ID, f.ID)
				}
			}
		}
	})
	t.Run("forums not on the board are dropped", func(t *testing.T) {
		visible, err := fx.facade.FilterVisible(ctx, fx.bob, []*models.Forum{{ID: 99}, fx.forum(t, 2)})
		require.Nil(t, err)
		assert.Equal(t, []int{2}, forumIDs(visible))
	})
}

func TestReadableForums(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	all, err := fx.store.AllForums(ctx)
	require.Nil(t, err)

	readable, err := fx.facade.ReadableForums(ctx, fx.bob, all)
	require.Nil(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, forumIDs(readable))

	readable, err = fx.facade.ReadableForums(ctx, fx.carol, all)
	require.Nil(t, err)
	assert.Empty(t, readable)
}

func TestForumListing(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	listing, err := fx.facade.ForumListing(ctx, fx.guest, nil)
	require.Nil(t, err)
	assert.Equal(t, []int{1, 2, 3}, forumIDs(listing.VisibleForums()))
	general, ok := listing.Node(1)
	require.True(t, ok)
	assert.Equal(t, 2, general.PostsCount())
	assert.Equal(t, 2, general.LastPost().ID)

	listing, err = fx.facade.ForumListing(ctx, fx.bob, utils.P(1))
	require.Nil(t, err)
	assert.Equal(t, 1, listing.RootLevel())
	assert.Equal(t, []int{2, 4}, forumIDs(nodeForums(listing.TopNodes())))
	assert.Equal(t, []int{2, 3, 4, 5}, forumIDs(listing.VisibleForums()))

	listing, err = fx.facade.ForumListing(ctx, fx.admin, nil)
	require.Nil(t, err)
	assert.Len(t, listing.Forums(), 7)
	staff, ok := listing.Node(6)
	require.True(t, ok)
	assert.Equal(t, 4, staff.LastPost().ID)

	_, err = fx.facade.ForumListing(ctx, fx.bob, utils.P(99))
	assert.ErrorIs(t, err, db.NotFound)
}

func TestLastVisiblePost(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	lastPostID := func(s models.Subject, forumID int) *int {
		pt, err := fx.facade.LastVisiblePost(ctx, s, forumID)
		require.Nil(t, err)
		if pt == nil {
			return nil
		}
		return &pt.Post.ID
	}

	assert.Equal(t, utils.P(2), lastPostID(fx.guest, 1))
	assert.Equal(t, utils.P(3), lastPostID(fx.bob, 1))
	assert.Equal(t, utils.P(4), lastPostID(fx.alice, 6))
	assert.Nil(t, lastPostID(fx.bob, 6))
	assert.Nil(t, lastPostID(fx.bob, 3))
	assert.Equal(t, utils.P(4), lastPostID(fx.admin, 6))

	_, err := fx.facade.LastVisiblePost(ctx, fx.bob, 99)
	assert.ErrorIs(t, err, db.NotFound)
}

func TestEditAndDeletePosts(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	canEdit := func(s models.Subject, postID int) bool {
		ok, err := fx.facade.CanEditPost(ctx, s, fx.post(t, postID))
		require.Nil(t, err)
		return ok
	}
	canDelete := func(s models.Subject, postID int) bool {
		ok, err := fx.facade.CanDeletePost(ctx, s, fx.post(t, postID))
		require.Nil(t, err)
		return ok
	}

	t.Run("authors", func(t *testing.T) {
		assert.True(t, canEdit(fx.bob, 1))
		assert.False(t, canEdit(fx.bob, 2), "topic is locked")
		assert.True(t, canDelete(fx.bob, 2))
		assert.False(t, canEdit(fx.bob, 4))
		assert.False(t, canDelete(fx.bob, 4))
	})
	t.Run("anonymous authors", func(t *testing.T) {
		assert.True(t, canEdit(fx.guest, 3))
		assert.False(t, canEdit(fx.stranger, 3))
		assert.False(t, canDelete(fx.guest, 3))
	})
	t.Run("moderators", func(t *testing.T) {
		assert.True(t, canEdit(fx.alice, 1))
		assert.True(t, canEdit(fx.alice, 2))
		assert.False(t, canDelete(fx.alice, 1))
	})
	t.Run("superusers", func(t *testing.T) {
		for postID := 1; postID <= 4; postID++ {
			assert.True(t, canEdit(fx.admin, postID))
			assert.True(t, canDelete(fx.admin, postID))
		}
	})
	t.Run("inactive users", func(t *testing.T) {
		assert.False(t, canEdit(fx.carol, 1))
	})
	t.Run("superuser flag on an unknown user", func(t *testing.T) {
		impostor := models.UserSubject(&models.User{ID: 99, IsActive: true, IsSuperuser: true})
		for postID := 1; postID <= 4; postID++ {
			assert.False(t, canEdit(impostor, postID))
			assert.False(t, canDelete(impostor, postID))
		}
	})
	t.Run("missing posts are not denials", func(t *testing.T) {
		_, err := fx.facade.CanEditPostByID(ctx, fx.bob, 99)
		assert.ErrorIs(t, err, db.NotFound)
		assert.False(t, errors.Is(err, ErrUnauthorized))

		_, err = fx.facade.CanDeletePostByID(ctx, fx.bob, 99)
		assert.ErrorIs(t, err, db.NotFound)

		ok, err := fx.facade.CanEditPostByID(ctx, fx.bob, 1)
		require.Nil(t, err)
		assert.True(t, ok)
	})
}

func TestPointChecks(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	chat := fx.forum(t, 2)

	check := func(ok bool, err error) bool {
		require.Nil(t, err)
		return ok
	}
	topic := func(id int) *models.Topic {
		topic, err := fx.store.Topic(ctx, id)
		require.Nil(t, err)
		return topic
	}

	assert.True(t, check(fx.facade.CanSeeForum(ctx, fx.guest, chat)))
	assert.False(t, check(fx.facade.CanSeeForum(ctx, fx.guest, fx.forum(t, 4))))
	assert.True(t, check(fx.facade.CanReadForum(ctx, fx.bob, chat)))
	assert.True(t, check(fx.facade.CanAddTopic(ctx, fx.bob, chat)))
	assert.False(t, check(fx.facade.CanAddTopic(ctx, fx.guest, chat)))
	assert.False(t, check(fx.facade.CanAddStickies(ctx, fx.bob, chat)))
	assert.False(t, check(fx.facade.CanAddAnnouncements(ctx, fx.alice, chat)))
	assert.True(t, check(fx.facade.CanAddAnnouncements(ctx, fx.admin, chat)))
	assert.False(t, check(fx.facade.CanPostWithoutApproval(ctx, fx.bob, chat)))

	assert.True(t, check(fx.facade.CanAddPost(ctx, fx.bob, topic(1))))
	assert.False(t, check(fx.facade.CanAddPost(ctx, fx.bob, topic(2))))
	assert.True(t, check(fx.facade.CanAddPost(ctx, fx.alice, topic(2))))
	assert.False(t, check(fx.facade.CanVoteInPolls(ctx, fx.admin, topic(2))))

	assert.True(t, check(fx.facade.CanMoveTopics(ctx, fx.alice, chat)))
	assert.False(t, check(fx.facade.CanLockTopics(ctx, fx.alice, chat)))
	assert.False(t, check(fx.facade.CanDeleteTopics(ctx, fx.alice, chat)))
	assert.True(t, check(fx.facade.CanUpdateTopicsToNormalTopics(ctx, fx.alice, chat)))
	assert.False(t, check(fx.facade.CanUpdateTopicsToStickyTopics(ctx, fx.alice, chat)))
	assert.False(t, check(fx.facade.CanUpdateTopicsToAnnounces(ctx, fx.alice, chat)))
	assert.True(t, check(fx.facade.CanApprovePosts(ctx, fx.alice, chat)))
	assert.False(t, check(fx.facade.CanApprovePosts(ctx, fx.alice, fx.forum(t, 3))))
	assert.False(t, check(fx.facade.CanCreatePolls(ctx, fx.bob, chat)))
	assert.False(t, check(fx.facade.CanAttachFiles(ctx, fx.bob, chat)))
	assert.False(t, check(fx.facade.CanDownloadFiles(ctx, fx.bob, chat)))
}

func TestModeration(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	queue, err := fx.facade.ModerationQueueForums(ctx, fx.alice)
	require.Nil(t, err)
	assert.Equal(t, []int{2}, forumIDs(queue))

	canAccess, err := fx.facade.CanAccessModerationQueue(ctx, fx.alice)
	require.Nil(t, err)
	assert.True(t, canAccess)
	canAccess, err = fx.facade.CanAccessModerationQueue(ctx, fx.bob)
	require.Nil(t, err)
	assert.False(t, canAccess)

	targets, err := fx.facade.TargetForumsForMovedTopics(ctx, fx.alice)
	require.Nil(t, err)
	assert.Equal(t, []int{2, 3, 4, 5, 7}, forumIDs(targets))

	targets, err = fx.facade.TargetForumsForMovedTopics(ctx, fx.bob)
	require.Nil(t, err)
	assert.Empty(t, targets)
}

func TestGuards(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	var ran []string
	startTopic := Guard(
		fx.facade.Require(permissions.CanStartNewTopics, 2),
		func(ctx context.Context, s models.Subject) error {
			ran = append(ran, s.CacheKey())
			return nil
		},
	)

	assert.Nil(t, startTopic(ctx, fx.bob))
	err := startTopic(ctx, fx.guest)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, []string{"user:3"}, ran)

	t.Run("missing forum", func(t *testing.T) {
		err := fx.facade.Require(permissions.CanStartNewTopics, 99)(ctx, fx.bob)
		assert.ErrorIs(t, err, db.NotFound)
		assert.False(t, errors.Is(err, ErrUnauthorized))
	})
	t.Run("unknown permission", func(t *testing.T) {
		err := fx.facade.Require("can_fly", 2)(ctx, fx.bob)
		var configErr *permissions.ConfigurationError
		assert.True(t, errors.As(err, &configErr))
	})
	t.Run("composed checks", func(t *testing.T) {
		editPost := fx.facade.Check("edit post 2", func(ctx context.Context, s models.Subject) (bool, error) {
			return fx.facade.CanEditPostByID(ctx, s, 2)
		})
		moderate := AllOf(fx.facade.Require(permissions.CanReadForum, 2), editPost)

		assert.Nil(t, moderate(ctx, fx.alice))
		assert.ErrorIs(t, moderate(ctx, fx.bob), ErrUnauthorized)
		assert.ErrorIs(t, moderate(ctx, fx.carol), ErrUnauthorized)
	})
}

func nodeForums(nodes []*visibility.Node) []*models.Forum {
	result := make([]*models.Forum, len(nodes))
	for i, n := range nodes {
		result[i] = n.Forum()
	}
	return result
}
