package models

import "time"

type TopicType int

const (
	TopicTypeNormal   TopicType = 0
	TopicTypeSticky   TopicType = 1
	TopicTypeAnnounce TopicType = 2
)

type Topic struct {
	ID       int       `db:"id"`
	ForumID  int       `db:"forum_id"`
	PosterID *int      `db:"poster_id"`
	Type     TopicType `db:"type"`

	Subject  string `db:"subject"`
	Locked   bool   `db:"locked"`
	Approved bool   `db:"approved"`

	Created time.Time `db:"created"`
}
