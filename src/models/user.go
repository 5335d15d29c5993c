package models

import (
	"strconv"

	"github.com/google/uuid"
)

type User struct {
	ID int `db:"id"`

	Username    string `db:"username"`
	IsSuperuser bool   `db:"is_superuser"`
	IsActive    bool   `db:"is_active"`

	GroupIDs []int
}

type Group struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
}

/*
Subject is whoever is asking for access: a logged-in user, or an anonymous
visitor. Anonymous visitors may carry a forum key (stored in their session)
that identifies the posts they made.
*/
type Subject struct {
	User         *User
	AnonymousKey *uuid.UUID
}

func AnonymousSubject(key *uuid.UUID) Subject {
	return Subject{AnonymousKey: key}
}

func UserSubject(user *User) Subject {
	return Subject{User: user}
}

func (s Subject) IsAnonymous() bool {
	return s.User == nil
}

// Anonymous visitors are always "active"; users can be deactivated.
func (s Subject) IsActive() bool {
	return s.User == nil || s.User.IsActive
}

func (s Subject) UserID() int {
	if s.User == nil {
		return 0
	}
	return s.User.ID
}

// A stable key for caches and log fields.
func (s Subject) CacheKey() string {
	if s.User == nil {
		return "anonymous"
	}
	return "user:" + strconv.Itoa(s.User.ID)
}
