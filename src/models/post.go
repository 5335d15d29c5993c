package models

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID      int `db:"id"`
	TopicID int `db:"topic_id"`

	// nil for posts made by anonymous visitors
	PosterID     *int       `db:"poster_id"`
	AnonymousKey *uuid.UUID `db:"anonymous_key"`

	Subject  string    `db:"subject"`
	Approved bool      `db:"approved"`
	Created  time.Time `db:"created"`
}

// PostAndTopic is a post together with the topic it lives in, which is what
// permission checks on posts need.
type PostAndTopic struct {
	Post  Post  `db:"post"`
	Topic Topic `db:"topic"`
}

// Reports whether the subject wrote the post. Anonymous visitors are matched
// on their forum key.
func (p *Post) IsAuthoredBy(s Subject) bool {
	if s.User != nil {
		return p.PosterID != nil && *p.PosterID == s.User.ID
	}
	return p.AnonymousKey != nil && s.AnonymousKey != nil && *p.AnonymousKey == *s.AnonymousKey
}
