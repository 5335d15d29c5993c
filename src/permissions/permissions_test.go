package permissions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	grants     []Grant
	superusers map[int]bool
	missing    map[int]bool

	mu      sync.Mutex
	lookups map[string]int
}

func (s *fakeStore) GrantsFor(ctx context.Context, subject models.Subject, codename string) ([]Grant, error) {
	s.mu.Lock()
	if s.lookups == nil {
		s.lookups = make(map[string]int)
	}
	s.lookups[codename]++
	s.mu.Unlock()

	if !subject.IsAnonymous() && s.missing[subject.User.ID] {
		return nil, nil
	}
	var result []Grant
	for _, g := range s.grants {
		if g.Codename == codename && g.Subject.AppliesTo(subject) {
			result = append(result, g)
		}
	}
	return result, nil
}

func (s *fakeStore) IsSuperuser(ctx context.Context, subject models.Subject) (bool, error) {
	return !subject.IsAnonymous() && s.superusers[subject.User.ID], nil
}

func (s *fakeStore) IsKnown(ctx context.Context, subject models.Subject) (bool, error) {
	return subject.IsAnonymous() || !s.missing[subject.User.ID], nil
}

var (
	alice = models.UserSubject(&models.User{ID: 1, Username: "alice", IsActive: true, GroupIDs: []int{10, 11}})
	admin = models.UserSubject(&models.User{ID: 2, Username: "admin", IsActive: true, IsSuperuser: true})
	guest = models.AnonymousSubject(utils.P(uuid.New()))

	general = &models.Forum{ID: 100, Kind: models.ForumKindForum}
	staff   = &models.Forum{ID: 101, Kind: models.ForumKindForum}
)

func global(subject SubjectRef, codename string, allowed bool) Grant {
	return Grant{Subject: subject, Codename: codename, Allowed: allowed}
}

func local(subject SubjectRef, forum *models.Forum, codename string, allowed bool) Grant {
	return Grant{Subject: subject, ForumID: utils.P(forum.ID), Codename: codename, Allowed: allowed}
}

func newResolver(t *testing.T, grants ...Grant) *Resolver {
	t.Helper()
	r, err := NewResolver(&fakeStore{grants: grants, superusers: map[int]bool{2: true}}, DefaultCatalogue(), nil)
	require.Nil(t, err)
	return r
}

func has(t *testing.T, r *Resolver, s models.Subject, codename string, forum *models.Forum) bool {
	t.Helper()
	result, err := r.HasPermission(context.Background(), s, codename, forum)
	require.Nil(t, err)
	return result
}

func TestSuperuser(t *testing.T) {
	r := newResolver(t,
		global(UserRef(2), CanReadForum, false),
		local(UserRef(2), general, CanReadForum, false),
	)
	for _, codename := range r.Catalogue().Codenames() {
		assert.True(t, has(t, r, admin, codename, nil), codename)
		assert.True(t, has(t, r, admin, codename, general), codename)
	}
}

func TestDefaultDeny(t *testing.T) {
	r := newResolver(t)
	assert.False(t, has(t, r, alice, CanReadForum, general))
	assert.False(t, has(t, r, alice, CanReadForum, nil))
	assert.False(t, has(t, r, guest, CanReadForum, general))
}

func TestPrecedence(t *testing.T) {
	t.Run("local deny beats global allow", func(t *testing.T) {
		r := newResolver(t,
			global(UserRef(1), CanReadForum, true),
			local(UserRef(1), staff, CanReadForum, false),
		)
		assert.False(t, has(t, r, alice, CanReadForum, staff))
		assert.True(t, has(t, r, alice, CanReadForum, general))
		assert.True(t, has(t, r, alice, CanReadForum, nil))
	})
	t.Run("local allow beats global deny", func(t *testing.T) {
		r := newResolver(t,
			global(UserRef(1), CanReadForum, false),
			local(UserRef(1), staff, CanReadForum, true),
		)
		assert.True(t, has(t, r, alice, CanReadForum, staff))
		assert.False(t, has(t, r, alice, CanReadForum, general))
	})
	t.Run("user beats group", func(t *testing.T) {
		r := newResolver(t,
			local(GroupRef(10), general, CanLockTopics, true),
			local(UserRef(1), general, CanLockTopics, false),
		)
		assert.False(t, has(t, r, alice, CanLockTopics, general))

		r = newResolver(t,
			local(GroupRef(10), general, CanLockTopics, false),
			local(UserRef(1), general, CanLockTopics, true),
		)
		assert.True(t, has(t, r, alice, CanLockTopics, general))
	})
	t.Run("global user grant beats local group grant", func(t *testing.T) {
		r := newResolver(t,
			local(GroupRef(10), general, CanLockTopics, true),
			global(UserRef(1), CanLockTopics, false),
		)
		assert.False(t, has(t, r, alice, CanLockTopics, general))
	})
	t.Run("any group allowing is enough", func(t *testing.T) {
		r := newResolver(t,
			local(GroupRef(10), general, CanEditPosts, false),
			local(GroupRef(11), general, CanEditPosts, true),
		)
		assert.True(t, has(t, r, alice, CanEditPosts, general))
	})
	t.Run("groups beat all authenticated users", func(t *testing.T) {
		r := newResolver(t,
			global(AuthenticatedRef(), CanReadForum, true),
			global(GroupRef(11), CanReadForum, false),
		)
		assert.False(t, has(t, r, alice, CanReadForum, general))
	})
	t.Run("other users' and groups' grants do not apply", func(t *testing.T) {
		r := newResolver(t,
			global(UserRef(3), CanReadForum, true),
			global(GroupRef(12), CanReadForum, true),
		)
		assert.False(t, has(t, r, alice, CanReadForum, general))
	})
}

func TestAnonymous(t *testing.T) {
	r := newResolver(t,
		global(AnonymousRef(), CanSeeForum, true),
		local(AnonymousRef(), staff, CanSeeForum, false),
		global(GroupRef(10), CanReadForum, true),
		global(AuthenticatedRef(), CanReadForum, true),
	)
	assert.True(t, has(t, r, guest, CanSeeForum, general))
	assert.False(t, has(t, r, guest, CanSeeForum, staff))
	assert.False(t, has(t, r, guest, CanReadForum, general))

	// Grants to anonymous users do not leak to logged-in ones.
	assert.False(t, has(t, r, alice, CanSeeForum, general))
}

func TestScopeFlags(t *testing.T) {
	catalogue, err := NewCatalogue(
		Kind{Codename: "only_global", IsGlobal: true},
		Kind{Codename: "only_local", IsLocal: true},
	)
	require.Nil(t, err)
	store := &fakeStore{grants: []Grant{
		local(UserRef(1), general, "only_global", true),
		global(UserRef(1), "only_local", true),
	}}
	r, err := NewResolver(store, catalogue, nil)
	require.Nil(t, err)

	assert.False(t, has(t, r, alice, "only_global", general))
	assert.False(t, has(t, r, alice, "only_local", general))

	t.Run("misplaced grants do not shadow valid ones", func(t *testing.T) {
		store.grants = append(store.grants, global(GroupRef(10), "only_global", true))
		assert.True(t, has(t, r, alice, "only_global", general))
	})
}

func TestInactiveUser(t *testing.T) {
	bob := models.UserSubject(&models.User{ID: 3, IsActive: false})
	r := newResolver(t, global(UserRef(3), CanReadForum, true))
	assert.False(t, has(t, r, bob, CanReadForum, general))
}

func TestDefaultAuthenticatedPermissions(t *testing.T) {
	store := &fakeStore{grants: []Grant{
		local(UserRef(1), staff, CanReadForum, false),
	}}
	r, err := NewResolver(store, DefaultCatalogue(), []string{CanReadForum})
	require.Nil(t, err)

	assert.True(t, has(t, r, alice, CanReadForum, general))
	assert.False(t, has(t, r, alice, CanReadForum, staff))
	assert.False(t, has(t, r, guest, CanReadForum, general))

	t.Run("unknown default", func(t *testing.T) {
		_, err := NewResolver(store, DefaultCatalogue(), []string{"can_fly"})
		var configErr *ConfigurationError
		assert.True(t, errors.As(err, &configErr))
	})
}

func TestUnknownUser(t *testing.T) {
	ghost := models.UserSubject(&models.User{ID: 999, IsActive: true, IsSuperuser: true, GroupIDs: []int{10}})
	store := &fakeStore{
		grants: []Grant{
			global(AuthenticatedRef(), CanReadForum, true),
			global(GroupRef(10), CanLockTopics, true),
		},
		missing: map[int]bool{999: true},
	}
	r, err := NewResolver(store, DefaultCatalogue(), []string{CanSeeForum})
	require.Nil(t, err)
	ctx := context.Background()

	assert.False(t, has(t, r, ghost, CanSeeForum, general), "no defaults")
	assert.False(t, has(t, r, ghost, CanReadForum, general), "no grants to all authenticated users")
	assert.False(t, has(t, r, ghost, CanLockTopics, nil), "no group grants")
	assert.True(t, has(t, r, alice, CanSeeForum, general))
	assert.True(t, has(t, r, alice, CanReadForum, general))

	c := r.Checker(ghost)
	require.Nil(t, c.Prefetch(ctx, CanSeeForum, CanReadForum))
	for _, codename := range r.Catalogue().Codenames() {
		ok, err := c.Has(ctx, codename, general)
		require.Nil(t, err)
		assert.False(t, ok, codename)
	}
	isSuperuser, err := c.IsSuperuser(ctx)
	require.Nil(t, err)
	assert.False(t, isSuperuser)
}

func TestUnknownPermission(t *testing.T) {
	r := newResolver(t)
	_, err := r.HasPermission(context.Background(), admin, "can_fly", general)
	var configErr *ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "can_fly", configErr.Codename)
}

func TestValidate(t *testing.T) {
	catalogue, err := NewCatalogue(
		Kind{Codename: "only_global", IsGlobal: true},
		Kind{Codename: "only_local", IsLocal: true},
	)
	require.Nil(t, err)

	assert.Nil(t, catalogue.Validate(global(UserRef(1), "only_global", true)))
	assert.Nil(t, catalogue.Validate(local(GroupRef(1), general, "only_local", false)))

	var configErr *ConfigurationError
	assert.True(t, errors.As(catalogue.Validate(local(UserRef(1), general, "only_global", true)), &configErr))
	assert.True(t, errors.As(catalogue.Validate(global(UserRef(1), "only_local", true)), &configErr))
	assert.True(t, errors.As(catalogue.Validate(global(UserRef(1), "can_fly", true)), &configErr))
	assert.True(t, errors.As(catalogue.Validate(global(SubjectRef{}, "only_global", true)), &configErr))

	t.Run("bad catalogues", func(t *testing.T) {
		_, err := NewCatalogue(Kind{Codename: "a", IsGlobal: true}, Kind{Codename: "a", IsLocal: true})
		assert.True(t, errors.As(err, &configErr))
		_, err = NewCatalogue(Kind{Codename: "nowhere"})
		assert.True(t, errors.As(err, &configErr))
	})
}

func TestCheckerForumZero(t *testing.T) {
	lobby := &models.Forum{ID: 0, Kind: models.ForumKindForum}
	store := &fakeStore{grants: []Grant{
		local(UserRef(1), lobby, CanReadForum, true),
	}}
	r, err := NewResolver(store, DefaultCatalogue(), nil)
	require.Nil(t, err)
	ctx := context.Background()

	c := r.Checker(alice)
	globally, err := c.Has(ctx, CanReadForum, nil)
	require.Nil(t, err)
	assert.False(t, globally)

	onLobby, err := c.Has(ctx, CanReadForum, lobby)
	require.Nil(t, err)
	assert.True(t, onLobby)
}

func TestChecker(t *testing.T) {
	store := &fakeStore{grants: []Grant{
		global(UserRef(1), CanSeeForum, true),
		global(UserRef(1), CanReadForum, true),
		local(UserRef(1), staff, CanReadForum, false),
		local(GroupRef(10), general, CanStartNewTopics, true),
	}}
	r, err := NewResolver(store, DefaultCatalogue(), nil)
	require.Nil(t, err)
	ctx := context.Background()

	c := r.Checker(alice)

	perms, err := c.PermsFor(ctx, general)
	require.Nil(t, err)
	assert.Equal(t, []string{CanSeeForum, CanReadForum, CanStartNewTopics}, perms)

	forums, err := c.ForumsWith(ctx, []*models.Forum{general, staff}, CanSeeForum, CanReadForum)
	require.Nil(t, err)
	require.Len(t, forums, 1)
	assert.Equal(t, general.ID, forums[0].ID)

	// Everything was fetched once, by the first prefetch.
	for _, codename := range r.Catalogue().Codenames() {
		assert.Equal(t, 1, store.lookups[codename], codename)
	}

	t.Run("superusers fetch nothing", func(t *testing.T) {
		store.lookups = nil
		c := r.Checker(admin)
		perms, err := c.PermsFor(ctx, staff)
		require.Nil(t, err)
		assert.Equal(t, r.Catalogue().Codenames(), perms)
		assert.Empty(t, store.lookups)
	})
	t.Run("agrees with the resolver", func(t *testing.T) {
		c := r.Checker(alice)
		for _, forum := range []*models.Forum{nil, general, staff} {
			for _, codename := range r.Catalogue().Codenames() {
				fromChecker, err := c.Has(ctx, codename, forum)
				require.Nil(t, err)
				assert.Equal(t, has(t, r, alice, codename, forum), fromChecker, codename)
			}
		}
	})
	t.Run("unknown permission", func(t *testing.T) {
		_, err := r.Checker(alice).ForumsWith(ctx, []*models.Forum{general}, "can_fly")
		var configErr *ConfigurationError
		assert.True(t, errors.As(err, &configErr))
	})
}
