/*
Package access is what the rest of a forum application asks before showing or
changing anything: which forums a viewer can list, whether they may post,
edit, moderate, and so on.
*/
package access

import (
	"context"

	"git.handmade.network/hmn/forumaccess/src/db"
	"git.handmade.network/hmn/forumaccess/src/forumtree"
	"git.handmade.network/hmn/forumaccess/src/logging"
	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
	"git.handmade.network/hmn/forumaccess/src/perf"
	"git.handmade.network/hmn/forumaccess/src/permissions"
	"git.handmade.network/hmn/forumaccess/src/visibility"
)

type Facade struct {
	resolver *permissions.Resolver
	forums   ForumRepository
	topics   TopicRepository
	posts    PostRepository
}

func NewFacade(resolver *permissions.Resolver, forums ForumRepository, topics TopicRepository, posts PostRepository) *Facade {
	return &Facade{
		resolver: resolver,
		forums:   forums,
		topics:   topics,
		posts:    posts,
	}
}

func (f *Facade) Resolver() *permissions.Resolver {
	return f.resolver
}

// ForumByID returns db.NotFound for unknown forums.
func (f *Facade) ForumByID(ctx context.Context, id int) (*models.Forum, error) {
	return f.forums.Forum(ctx, id)
}

// Bulk filtering
// --

/*
FilterVisible returns the forums the subject may list, keeping their order.
A forum is listed if the subject can both see and read it and every one of its
ancestors. So a single hidden forum hides its whole subtree, whatever grants
the forums below it have. Forums that are not on the board are dropped.
*/
func (f *Facade) FilterVisible(ctx context.Context, s models.Subject, forums []*models.Forum) ([]*models.Forum, error) {
	defer perf.ExtractPerf(ctx).StartBlock("ACCESS", "Filter visible forums").End()

	return f.filterGranted(ctx, s, forums, permissions.CanSeeForum, permissions.CanReadForum)
}

// ReadableForums is FilterVisible for can_read_forum alone.
func (f *Facade) ReadableForums(ctx context.Context, s models.Subject, forums []*models.Forum) ([]*models.Forum, error) {
	defer perf.ExtractPerf(ctx).StartBlock("ACCESS", "Filter readable forums").End()

	return f.filterGranted(ctx, s, forums, permissions.CanReadForum)
}

func (f *Facade) filterGranted(ctx context.Context, s models.Subject, forums []*models.Forum, codenames ...string) ([]*models.Forum, error) {
	checker := f.resolver.Checker(s)
	isSuperuser, err := checker.IsSuperuser(ctx)
	if err != nil {
		return nil, err
	}
	if isSuperuser {
		return forums, nil
	}

	tree, err := f.board(ctx)
	if err != nil {
		return nil, err
	}
	granted, err := grantedDownTree(ctx, checker, tree, codenames...)
	if err != nil {
		return nil, err
	}

	var result []*models.Forum
	for _, forum := range forums {
		if granted[forum.ID] {
			result = append(result, forum)
		}
	}

	logging.ExtractLogger(ctx).Debug().
		Str("subject", s.CacheKey()).
		Strs("permissions", codenames).
		Int("requested", len(forums)).
		Int("granted", len(result)).
		Msg("filtered forums")

	return result, nil
}

// grantedDownTree returns the ids of forums on which all codenames are
// granted, both on the forum and on every ancestor.
func grantedDownTree(ctx context.Context, checker *permissions.Checker, tree *forumtree.Tree, codenames ...string) (map[int]bool, error) {
	allowed, err := checker.ForumsWith(ctx, tree.Forums(), codenames...)
	if err != nil {
		return nil, err
	}
	allowedIDs := make(map[int]bool, len(allowed))
	for _, forum := range allowed {
		allowedIDs[forum.ID] = true
	}

	// Traversal order visits parents before their children.
	granted := make(map[int]bool, len(allowed))
	for _, forum := range tree.Forums() {
		if !allowedIDs[forum.ID] {
			continue
		}
		if parent := tree.Parent(forum.ID); parent != nil && !granted[parent.ID] {
			continue
		}
		granted[forum.ID] = true
	}
	return granted, nil
}

/*
ForumListing builds the visibility tree for a forum listing: the whole board
when rootID is nil, or the sub-forums of one forum. Forums the subject cannot
see are left out with their subtrees. Returns db.NotFound for an unknown
rootID.
*/
func (f *Facade) ForumListing(ctx context.Context, s models.Subject, rootID *int) (*visibility.Tree, error) {
	defer perf.ExtractPerf(ctx).StartBlock("ACCESS", "Build forum listing").End()

	tree, err := f.board(ctx)
	if err != nil {
		return nil, err
	}

	forums := tree.Forums()
	if rootID != nil {
		if _, ok := tree.Get(*rootID); !ok {
			return nil, oops.New(db.NotFound, "forum %d does not exist", *rootID)
		}
		forums = tree.Descendants(*rootID)
	}

	visible, err := f.visibleSet(ctx, s, tree)
	if err != nil {
		return nil, err
	}

	listing, err := visibility.BuildTree(forums, func(forum *models.Forum) bool {
		return visible == nil || visible[forum.ID]
	})
	if err != nil {
		return nil, oops.New(err, "failed to build forum listing")
	}
	return listing, nil
}

// visibleSet returns the ids of every forum the subject can list, or nil for
// superusers, who can list everything.
func (f *Facade) visibleSet(ctx context.Context, s models.Subject, tree *forumtree.Tree) (map[int]bool, error) {
	checker := f.resolver.Checker(s)
	isSuperuser, err := checker.IsSuperuser(ctx)
	if err != nil {
		return nil, err
	}
	if isSuperuser {
		return nil, nil
	}
	return grantedDownTree(ctx, checker, tree, permissions.CanSeeForum, permissions.CanReadForum)
}

/*
LastVisiblePost returns the latest post in a forum or any of its sub-forums,
skipping forums the subject cannot list. Returns nil if there is no such post
and db.NotFound for an unknown forum.
*/
func (f *Facade) LastVisiblePost(ctx context.Context, s models.Subject, forumID int) (*models.PostAndTopic, error) {
	tree, err := f.board(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := tree.Get(forumID); !ok {
		return nil, oops.New(db.NotFound, "forum %d does not exist", forumID)
	}

	visible, err := f.visibleSet(ctx, s, tree)
	if err != nil {
		return nil, err
	}

	var forumIDs []int
	for _, id := range tree.SubtreeIDs(forumID) {
		if visible == nil || visible[id] {
			forumIDs = append(forumIDs, id)
		}
	}
	if len(forumIDs) == 0 {
		return nil, nil
	}

	post, err := f.posts.LatestPost(ctx, forumIDs)
	if err != nil {
		return nil, oops.New(err, "failed to fetch latest post")
	}
	return post, nil
}

// Moderation
// --

// The forums whose posts the subject can approve.
func (f *Facade) ModerationQueueForums(ctx context.Context, s models.Subject) ([]*models.Forum, error) {
	return f.forumsWith(ctx, s, permissions.CanApprovePosts)
}

func (f *Facade) CanAccessModerationQueue(ctx context.Context, s models.Subject) (bool, error) {
	forums, err := f.ModerationQueueForums(ctx, s)
	if err != nil {
		return false, err
	}
	return len(forums) > 0, nil
}

// The forums into which the subject can move topics. Categories and links
// cannot hold topics and are never included.
func (f *Facade) TargetForumsForMovedTopics(ctx context.Context, s models.Subject) ([]*models.Forum, error) {
	forums, err := f.forumsWith(ctx, s, permissions.CanMoveTopics)
	if err != nil {
		return nil, err
	}
	var result []*models.Forum
	for _, forum := range forums {
		if forum.IsForum() {
			result = append(result, forum)
		}
	}
	return result, nil
}

func (f *Facade) forumsWith(ctx context.Context, s models.Subject, codenames ...string) ([]*models.Forum, error) {
	all, err := f.forums.AllForums(ctx)
	if err != nil {
		return nil, oops.New(err, "failed to fetch forums")
	}
	return f.resolver.Checker(s).ForumsWith(ctx, all, codenames...)
}

func (f *Facade) board(ctx context.Context) (*forumtree.Tree, error) {
	all, err := f.forums.AllForums(ctx)
	if err != nil {
		return nil, oops.New(err, "failed to fetch forums")
	}
	tree, err := forumtree.New(all)
	if err != nil {
		return nil, oops.New(err, "forums do not form a valid tree")
	}
	return tree, nil
}
