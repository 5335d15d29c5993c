package forumdata

import (
	"context"
	"sync"

	"git.handmade.network/hmn/forumaccess/src/db"
	"git.handmade.network/hmn/forumaccess/src/forumtree"
	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
	"git.handmade.network/hmn/forumaccess/src/permissions"
)

/*
MemoryStore keeps a whole board in memory. It serves the same queries as
PGStore and is what tests and fixture files run against.

Adding topics and posts keeps the forum counters and latest-post fields up to
date, the way the forum tables are maintained in production.
*/
type MemoryStore struct {
	catalogue *permissions.Catalogue

	mu         sync.RWMutex
	users      map[int]*models.User
	groups     map[int]*models.Group
	forums     []*models.Forum
	forumsByID map[int]*models.Forum
	topics     map[int]*models.Topic
	posts      map[int]*models.Post
	grants     []permissions.Grant
}

func NewMemoryStore(catalogue *permissions.Catalogue) *MemoryStore {
	return &MemoryStore{
		catalogue:  catalogue,
		users:      make(map[int]*models.User),
		groups:     make(map[int]*models.Group),
		forumsByID: make(map[int]*models.Forum),
		topics:     make(map[int]*models.Topic),
		posts:      make(map[int]*models.Post),
	}
}

func (s *MemoryStore) AddGroup(g *models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
}

func (s *MemoryStore) AddUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, groupID := range u.GroupIDs {
		if _, ok := s.groups[groupID]; !ok {
			return oops.New(db.NotFound, "user %d belongs to unknown group %d", u.ID, groupID)
		}
	}
	s.users[u.ID] = u
	return nil
}

/*
SetForums replaces the forum hierarchy. Nested-set coordinates are computed
from the parent links; children keep the order they are given in.
*/
func (s *MemoryStore) SetForums(forums []*models.Forum) error {
	sorted, err := forumtree.Number(forums)
	if err != nil {
		return oops.New(err, "failed to number forums")
	}
	if _, err := forumtree.New(sorted); err != nil {
		return oops.New(err, "numbered forums do not form a valid tree")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.forums = sorted
	s.forumsByID = make(map[int]*models.Forum, len(sorted))
	for _, f := range sorted {
		s.forumsByID[f.ID] = f
	}
	return nil
}

func (s *MemoryStore) AddTopic(t *models.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	forum, ok := s.forumsByID[t.ForumID]
	if !ok {
		return oops.New(db.NotFound, "topic %d is in unknown forum %d", t.ID, t.ForumID)
	}
	s.topics[t.ID] = t
	if t.Approved {
		forum.DirectTopicsCount++
	}
	return nil
}

func (s *MemoryStore) AddPost(p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	topic, ok := s.topics[p.TopicID]
	if !ok {
		return oops.New(db.NotFound, "post %d is in unknown topic %d", p.ID, p.TopicID)
	}
	s.posts[p.ID] = p

	if p.Approved {
		forum := s.forumsByID[topic.ForumID]
		forum.DirectPostsCount++
		if forum.LastPostOn == nil || !p.Created.Before(*forum.LastPostOn) {
			id, created := p.ID, p.Created
			forum.LastPostID = &id
			forum.LastPostOn = &created
		}
	}
	return nil
}

// AddGrant rejects grants the catalogue does not allow, and local grants on
// unknown forums.
func (s *MemoryStore) AddGrant(g permissions.Grant) error {
	if err := s.catalogue.Validate(g); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ForumID != nil {
		if _, ok := s.forumsByID[*g.ForumID]; !ok {
			return oops.New(db.NotFound, "grant on unknown forum %d", *g.ForumID)
		}
	}
	s.grants = append(s.grants, g)
	return nil
}

// Users

func (s *MemoryStore) User(ctx context.Context, id int) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, oops.New(db.NotFound, "user %d does not exist", id)
	}
	return u, nil
}

// Permissions

func (s *MemoryStore) IsSuperuser(ctx context.Context, subject models.Subject) (bool, error) {
	if subject.IsAnonymous() {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[subject.User.ID]
	return ok && u.IsSuperuser, nil
}

func (s *MemoryStore) IsKnown(ctx context.Context, subject models.Subject) (bool, error) {
	if subject.IsAnonymous() {
		return true, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[subject.User.ID]
	return ok, nil
}

func (s *MemoryStore) GrantsFor(ctx context.Context, subject models.Subject, codename string) ([]permissions.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !subject.IsAnonymous() {
		if _, known := s.users[subject.User.ID]; !known {
			return nil, nil
		}
	}

	var result []permissions.Grant
	for _, g := range s.grants {
		if g.Codename == codename && g.Subject.AppliesTo(subject) {
			result = append(result, g)
		}
	}
	return result, nil
}

// Forums, topics and posts

func (s *MemoryStore) AllForums(ctx context.Context) ([]*models.Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Forum(nil), s.forums...), nil
}

func (s *MemoryStore) Forum(ctx context.Context, id int) (*models.Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forumsByID[id]
	if !ok {
		return nil, oops.New(db.NotFound, "forum %d does not exist", id)
	}
	return f, nil
}

func (s *MemoryStore) Topic(ctx context.Context, id int) (*models.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	if !ok {
		return nil, oops.New(db.NotFound, "topic %d does not exist", id)
	}
	return t, nil
}

func (s *MemoryStore) PostAndTopic(ctx context.Context, postID int) (*models.PostAndTopic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, oops.New(db.NotFound, "post %d does not exist", postID)
	}
	return &models.PostAndTopic{
		Post:  *p,
		Topic: *s.topics[p.TopicID],
	}, nil
}

func (s *MemoryStore) LatestPost(ctx context.Context, forumIDs []int) (*models.PostAndTopic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int]bool, len(forumIDs))
	for _, id := range forumIDs {
		wanted[id] = true
	}

	var latest *models.Post
	for _, p := range s.posts {
		if !p.Approved || !wanted[s.topics[p.TopicID].ForumID] {
			continue
		}
		if latest == nil || p.Created.After(latest.Created) || (p.Created.Equal(latest.Created) && p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return nil, nil
	}
	return &models.PostAndTopic{
		Post:  *latest,
		Topic: *s.topics[latest.TopicID],
	}, nil
}
