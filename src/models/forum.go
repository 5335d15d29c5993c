package models

import "time"

type ForumKind int

const (
	ForumKindForum    ForumKind = 0
	ForumKindCategory ForumKind = 1
	ForumKindLink     ForumKind = 2
)

func (k ForumKind) String() string {
	switch k {
	case ForumKindForum:
		return "forum"
	case ForumKindCategory:
		return "category"
	case ForumKindLink:
		return "link"
	default:
		return "unknown"
	}
}

/*
A node in the forum hierarchy: a category, a forum, or a link.

The TreeID/Left/Right/Level fields are nested-set coordinates. Every
descendant of a forum shares its TreeID and has Left and Right strictly
between the forum's own Left and Right. Listing forums ordered by
(TreeID, Left) walks the hierarchy depth-first.
*/
type Forum struct {
	ID       int       `db:"id"`
	ParentID *int      `db:"parent_id"`
	Kind     ForumKind `db:"kind"`

	Name string `db:"name"`
	Slug string `db:"slug"`

	TreeID int `db:"tree_id"`
	Left   int `db:"lft"`
	Right  int `db:"rght"`
	Level  int `db:"level"`

	DisplaySubForumList bool `db:"display_sub_forum_list"`

	// Counters for topics and posts directly inside this forum, not its sub-forums.
	DirectPostsCount  int        `db:"direct_posts_count"`
	DirectTopicsCount int        `db:"direct_topics_count"`
	LastPostID        *int       `db:"last_post_id"`
	LastPostOn        *time.Time `db:"last_post_on"`
}

func (f *Forum) IsCategory() bool {
	return f.Kind == ForumKindCategory
}

func (f *Forum) IsForum() bool {
	return f.Kind == ForumKindForum
}

func (f *Forum) IsLink() bool {
	return f.Kind == ForumKindLink
}

// Reports whether other lies strictly inside this forum's subtree.
func (f *Forum) Contains(other *Forum) bool {
	return other.TreeID == f.TreeID && other.Left > f.Left && other.Right < f.Right
}

// The forum's own most recent post, or nil if it has none.
func (f *Forum) LastPost() *LastPost {
	if f.LastPostID == nil || f.LastPostOn == nil {
		return nil
	}
	return &LastPost{
		ID:       *f.LastPostID,
		PostedOn: *f.LastPostOn,
		ForumID:  f.ID,
	}
}

// LastPost identifies the latest post in a forum (or a subtree of forums).
type LastPost struct {
	ID       int
	PostedOn time.Time
	ForumID  int
}
