package access

import (
	"context"

	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
	"git.handmade.network/hmn/forumaccess/src/permissions"
)

// Forums

func (f *Facade) CanSeeForum(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanSeeForum, forum)
}

func (f *Facade) CanReadForum(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanReadForum, forum)
}

// Topics and posts

func (f *Facade) CanAddTopic(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanStartNewTopics, forum)
}

func (f *Facade) CanAddStickies(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanPostStickies, forum)
}

func (f *Facade) CanAddAnnouncements(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanPostAnnouncements, forum)
}

func (f *Facade) CanPostWithoutApproval(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanPostWithoutApproval, forum)
}

// Replying to a locked topic also takes can_reply_to_locked_topics.
func (f *Facade) CanAddPost(ctx context.Context, s models.Subject, topic *models.Topic) (bool, error) {
	forum, err := f.forumOf(ctx, topic)
	if err != nil {
		return false, err
	}
	return f.all(ctx, s, forum,
		permissions.CanReplyToTopics,
		onlyIf(topic.Locked, permissions.CanReplyToLockedTopics),
	)
}

/*
CanEditPost allows superusers, authors holding can_edit_own_posts while the
topic is unlocked, and anyone holding can_edit_posts on the forum.
*/
func (f *Facade) CanEditPost(ctx context.Context, s models.Subject, pt *models.PostAndTopic) (bool, error) {
	return f.canChangePost(ctx, s, pt, permissions.CanEditOwnPosts, permissions.CanEditPosts, !pt.Topic.Locked)
}

// CanDeletePost allows superusers, authors holding can_delete_own_posts, and
// anyone holding can_delete_posts on the forum.
func (f *Facade) CanDeletePost(ctx context.Context, s models.Subject, pt *models.PostAndTopic) (bool, error) {
	return f.canChangePost(ctx, s, pt, permissions.CanDeleteOwnPosts, permissions.CanDeletePosts, true)
}

func (f *Facade) canChangePost(ctx context.Context, s models.Subject, pt *models.PostAndTopic, ownPerm, anyPerm string, ownAllowed bool) (bool, error) {
	isSuperuser, err := f.resolver.Checker(s).IsSuperuser(ctx)
	if err != nil {
		return false, err
	}
	if isSuperuser {
		return true, nil
	}

	forum, err := f.forumOf(ctx, &pt.Topic)
	if err != nil {
		return false, err
	}

	if ownAllowed && pt.Post.IsAuthoredBy(s) {
		canChangeOwn, err := f.resolver.HasPermission(ctx, s, ownPerm, forum)
		if err != nil {
			return false, err
		}
		if canChangeOwn {
			return true, nil
		}
	}
	return f.resolver.HasPermission(ctx, s, anyPerm, forum)
}

// Returns db.NotFound if the post does not exist.
func (f *Facade) CanEditPostByID(ctx context.Context, s models.Subject, postID int) (bool, error) {
	pt, err := f.posts.PostAndTopic(ctx, postID)
	if err != nil {
		return false, oops.New(err, "failed to fetch post %d", postID)
	}
	return f.CanEditPost(ctx, s, pt)
}

// Returns db.NotFound if the post does not exist.
func (f *Facade) CanDeletePostByID(ctx context.Context, s models.Subject, postID int) (bool, error) {
	pt, err := f.posts.PostAndTopic(ctx, postID)
	if err != nil {
		return false, oops.New(err, "failed to fetch post %d", postID)
	}
	return f.CanDeletePost(ctx, s, pt)
}

// Polls and attachments

func (f *Facade) CanCreatePolls(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanCreatePolls, forum)
}

// Voting also needs the topic to be unlocked.
func (f *Facade) CanVoteInPolls(ctx context.Context, s models.Subject, topic *models.Topic) (bool, error) {
	if topic.Locked {
		return false, nil
	}
	forum, err := f.forumOf(ctx, topic)
	if err != nil {
		return false, err
	}
	return f.resolver.HasPermission(ctx, s, permissions.CanVoteInPolls, forum)
}

func (f *Facade) CanAttachFiles(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanAttachFile, forum)
}

func (f *Facade) CanDownloadFiles(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanDownloadFile, forum)
}

// Moderation

func (f *Facade) CanLockTopics(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanLockTopics, forum)
}

func (f *Facade) CanMoveTopics(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanMoveTopics, forum)
}

// Whoever can delete every post of a topic can delete the topic itself.
func (f *Facade) CanDeleteTopics(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanDeletePosts, forum)
}

func (f *Facade) CanUpdateTopicsToNormalTopics(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanEditPosts, forum)
}

func (f *Facade) CanUpdateTopicsToStickyTopics(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.all(ctx, s, forum, permissions.CanEditPosts, permissions.CanPostStickies)
}

func (f *Facade) CanUpdateTopicsToAnnounces(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.all(ctx, s, forum, permissions.CanEditPosts, permissions.CanPostAnnouncements)
}

func (f *Facade) CanApprovePosts(ctx context.Context, s models.Subject, forum *models.Forum) (bool, error) {
	return f.resolver.HasPermission(ctx, s, permissions.CanApprovePosts, forum)
}

// all reports whether every codename is granted. Empty codenames are skipped.
func (f *Facade) all(ctx context.Context, s models.Subject, forum *models.Forum, codenames ...string) (bool, error) {
	for _, codename := range codenames {
		if codename == "" {
			continue
		}
		has, err := f.resolver.HasPermission(ctx, s, codename, forum)
		if err != nil || !has {
			return false, err
		}
	}
	return true, nil
}

func onlyIf(cond bool, codename string) string {
	if cond {
		return codename
	}
	return ""
}

func (f *Facade) forumOf(ctx context.Context, topic *models.Topic) (*models.Forum, error) {
	forum, err := f.forums.Forum(ctx, topic.ForumID)
	if err != nil {
		return nil, oops.New(err, "failed to fetch forum of topic %d", topic.ID)
	}
	return forum, nil
}
