package permissions

import (
	"fmt"
)

// Codenames of the built-in forum permissions.
const (
	CanSeeForum            = "can_see_forum"
	CanReadForum           = "can_read_forum"
	CanStartNewTopics      = "can_start_new_topics"
	CanReplyToTopics       = "can_reply_to_topics"
	CanPostAnnouncements   = "can_post_announcements"
	CanPostStickies        = "can_post_stickies"
	CanDeleteOwnPosts      = "can_delete_own_posts"
	CanEditOwnPosts        = "can_edit_own_posts"
	CanPostWithoutApproval = "can_post_without_approval"
	CanCreatePolls         = "can_create_polls"
	CanVoteInPolls         = "can_vote_in_polls"
	CanAttachFile          = "can_attach_file"
	CanDownloadFile        = "can_download_file"
	CanLockTopics          = "can_lock_topics"
	CanMoveTopics          = "can_move_topics"
	CanEditPosts           = "can_edit_posts"
	CanDeletePosts         = "can_delete_posts"
	CanApprovePosts        = "can_approve_posts"
	CanReplyToLockedTopics = "can_reply_to_locked_topics"
)

type Scope string

const (
	ScopeForum        Scope = "forum"
	ScopeConversation Scope = "conversation"
	ScopePolls        Scope = "polls"
	ScopeAttachments  Scope = "attachments"
	ScopeModeration   Scope = "moderation"
)

/*
Kind describes one permission of the catalogue.

IsGlobal permissions may be granted without reference to a forum; IsLocal
permissions may be granted on a single forum. Grants with a scope the kind
does not allow are rejected by Catalogue.Validate and ignored by the resolver.
*/
type Kind struct {
	Codename string
	Label    string
	Scope    Scope
	IsGlobal bool
	IsLocal  bool
}

// Catalogue is the closed set of permissions known to a resolver. It cannot
// be changed after construction.
type Catalogue struct {
	kinds map[string]Kind
	order []string
}

func NewCatalogue(kinds ...Kind) (*Catalogue, error) {
	c := &Catalogue{
		kinds: make(map[string]Kind, len(kinds)),
	}
	for _, kind := range kinds {
		if kind.Codename == "" {
			return nil, &ConfigurationError{Reason: "permission has no codename"}
		}
		if _, dupe := c.kinds[kind.Codename]; dupe {
			return nil, &ConfigurationError{Codename: kind.Codename, Reason: "permission is defined twice"}
		}
		if !kind.IsGlobal && !kind.IsLocal {
			return nil, &ConfigurationError{Codename: kind.Codename, Reason: "permission can be granted neither globally nor locally"}
		}
		c.kinds[kind.Codename] = kind
		c.order = append(c.order, kind.Codename)
	}
	return c, nil
}

func forumKind(codename, label string, scope Scope) Kind {
	return Kind{
		Codename: codename,
		Label:    label,
		Scope:    scope,
		IsGlobal: true,
		IsLocal:  true,
	}
}

var defaultKinds = []Kind{
	forumKind(CanSeeForum, "Can see forum", ScopeForum),
	forumKind(CanReadForum, "Can read forum", ScopeForum),
	forumKind(CanStartNewTopics, "Can start new topics", ScopeConversation),
	forumKind(CanReplyToTopics, "Can reply to topics", ScopeConversation),
	forumKind(CanPostAnnouncements, "Can post announcements", ScopeConversation),
	forumKind(CanPostStickies, "Can post stickies", ScopeConversation),
	forumKind(CanDeleteOwnPosts, "Can delete own posts", ScopeConversation),
	forumKind(CanEditOwnPosts, "Can edit own posts", ScopeConversation),
	forumKind(CanPostWithoutApproval, "Can post without approval", ScopeConversation),
	forumKind(CanCreatePolls, "Can create polls", ScopePolls),
	forumKind(CanVoteInPolls, "Can vote in polls", ScopePolls),
	forumKind(CanAttachFile, "Can attach file", ScopeAttachments),
	forumKind(CanDownloadFile, "Can download file", ScopeAttachments),
	forumKind(CanLockTopics, "Can lock topics", ScopeModeration),
	forumKind(CanMoveTopics, "Can move topics", ScopeModeration),
	forumKind(CanEditPosts, "Can edit posts", ScopeModeration),
	forumKind(CanDeletePosts, "Can delete posts", ScopeModeration),
	forumKind(CanApprovePosts, "Can approve posts", ScopeModeration),
	forumKind(CanReplyToLockedTopics, "Can reply to locked topics", ScopeModeration),
}

// The built-in forum permissions, all of which can be granted both globally
// and per forum.
func DefaultCatalogue() *Catalogue {
	c, err := NewCatalogue(defaultKinds...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns a *ConfigurationError for codenames outside the catalogue.
func (c *Catalogue) Lookup(codename string) (Kind, error) {
	kind, ok := c.kinds[codename]
	if !ok {
		return Kind{}, &ConfigurationError{Codename: codename, Reason: "unknown permission"}
	}
	return kind, nil
}

func (c *Catalogue) Has(codename string) bool {
	_, ok := c.kinds[codename]
	return ok
}

// Codenames in catalogue order.
func (c *Catalogue) Codenames() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalogue) Kinds() []Kind {
	result := make([]Kind, len(c.order))
	for i, codename := range c.order {
		result[i] = c.kinds[codename]
	}
	return result
}

// Validate checks that a grant refers to a known permission at a scope the
// permission allows. Anything that stores grants should call it first.
func (c *Catalogue) Validate(g Grant) error {
	kind, err := c.Lookup(g.Codename)
	if err != nil {
		return err
	}
	if g.IsGlobal() && !kind.IsGlobal {
		return &ConfigurationError{Codename: g.Codename, Reason: fmt.Sprintf("cannot be granted globally (grant for %s)", g.Subject)}
	}
	if !g.IsGlobal() && !kind.IsLocal {
		return &ConfigurationError{Codename: g.Codename, Reason: fmt.Sprintf("cannot be granted on forum %d (grant for %s)", *g.ForumID, g.Subject)}
	}
	if !g.Subject.valid() {
		return &ConfigurationError{Codename: g.Codename, Reason: fmt.Sprintf("grant has an invalid subject %s", g.Subject)}
	}
	return nil
}
