package forumdata

import (
	"fmt"
	"io"
	"os"
	"time"

	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
	"git.handmade.network/hmn/forumaccess/src/permissions"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

/*
Fixture is a whole board written out by hand, usually as YAML:

	groups:
	  - {id: 1, name: moderators}
	users:
	  - {id: 1, username: alice, active: true, groups: [1]}
	forums:
	  - {id: 1, name: General, kind: category}
	  - {id: 2, name: Chat, parent: 1}
	topics:
	  - {id: 1, forum: 2, subject: Hello, poster: 1}
	posts:
	  - {id: 1, topic: 1, poster: 1, created: 2022-05-01T10:00:00Z}
	grants:
	  - {authenticated: true, permission: can_read_forum, allowed: true}
	  - {group: 1, forum: 2, permission: can_lock_topics, allowed: true}

Children appear in the order they are listed. Forum counters are derived from
the topics and posts, not written down.
*/
type Fixture struct {
	Groups []FixtureGroup `yaml:"groups"`
	Users  []FixtureUser  `yaml:"users"`
	Forums []FixtureForum `yaml:"forums"`
	Topics []FixtureTopic `yaml:"topics"`
	Posts  []FixturePost  `yaml:"posts"`
	Grants []FixtureGrant `yaml:"grants"`
}

type FixtureGroup struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type FixtureUser struct {
	ID        int    `yaml:"id"`
	Username  string `yaml:"username"`
	Superuser bool   `yaml:"superuser"`
	Active    bool   `yaml:"active"`
	Groups    []int  `yaml:"groups"`
}

type FixtureForum struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	Slug   string `yaml:"slug"`
	Kind   string `yaml:"kind"` // category, forum or link; forum if empty
	Parent *int   `yaml:"parent"`
	// Defaults to true.
	DisplaySubForumList *bool `yaml:"display_sub_forum_list"`
}

type FixtureTopic struct {
	ID      int    `yaml:"id"`
	Forum   int    `yaml:"forum"`
	Subject string `yaml:"subject"`
	Poster  *int   `yaml:"poster"`
	Type    string `yaml:"type"` // normal, sticky or announce
	Locked  bool   `yaml:"locked"`
	// Defaults to true.
	Approved *bool     `yaml:"approved"`
	Created  time.Time `yaml:"created"`
}

type FixturePost struct {
	ID           int        `yaml:"id"`
	Topic        int        `yaml:"topic"`
	Subject      string     `yaml:"subject"`
	Poster       *int       `yaml:"poster"`
	AnonymousKey *uuid.UUID `yaml:"anonymous_key"`
	// Defaults to true.
	Approved *bool     `yaml:"approved"`
	Created  time.Time `yaml:"created"`
}

// Exactly one of User, Group, Anonymous and Authenticated names the subject.
type FixtureGrant struct {
	User          *int   `yaml:"user"`
	Group         *int   `yaml:"group"`
	Anonymous     bool   `yaml:"anonymous"`
	Authenticated bool   `yaml:"authenticated"`
	Forum         *int   `yaml:"forum"`
	Permission    string `yaml:"permission"`
	Allowed       bool   `yaml:"allowed"`
}

// Unknown keys are an error, so typos do not silently drop grants.
func ReadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixture
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, oops.New(err, "failed to parse fixture")
	}
	return &fx, nil
}

func ReadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, oops.New(err, "failed to open fixture")
	}
	defer f.Close()
	return ReadFixture(f)
}

func WriteFixture(w io.Writer, fx *Fixture) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fx); err != nil {
		return oops.New(err, "failed to write fixture")
	}
	return enc.Close()
}

func parseForumKind(kind string) (models.ForumKind, error) {
	switch kind {
	case "", "forum":
		return models.ForumKindForum, nil
	case "category":
		return models.ForumKindCategory, nil
	case "link":
		return models.ForumKindLink, nil
	default:
		return 0, fmt.Errorf("unknown forum kind %q", kind)
	}
}

func parseTopicType(t string) (models.TopicType, error) {
	switch t {
	case "", "normal":
		return models.TopicTypeNormal, nil
	case "sticky":
		return models.TopicTypeSticky, nil
	case "announce":
		return models.TopicTypeAnnounce, nil
	default:
		return 0, fmt.Errorf("unknown topic type %q", t)
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func (fx *Fixture) groups() []*models.Group {
	result := make([]*models.Group, len(fx.Groups))
	for i, g := range fx.Groups {
		result[i] = &models.Group{ID: g.ID, Name: g.Name}
	}
	return result
}

func (fx *Fixture) users() []*models.User {
	result := make([]*models.User, len(fx.Users))
	for i, u := range fx.Users {
		result[i] = &models.User{
			ID:          u.ID,
			Username:    u.Username,
			IsSuperuser: u.Superuser,
			IsActive:    u.Active,
			GroupIDs:    u.Groups,
		}
	}
	return result
}

func (fx *Fixture) forums() ([]*models.Forum, error) {
	result := make([]*models.Forum, len(fx.Forums))
	for i, f := range fx.Forums {
		kind, err := parseForumKind(f.Kind)
		if err != nil {
			return nil, oops.New(err, "invalid forum %d", f.ID)
		}
		result[i] = &models.Forum{
			ID:                  f.ID,
			ParentID:            f.Parent,
			Kind:                kind,
			Name:                f.Name,
			Slug:                f.Slug,
			DisplaySubForumList: boolOr(f.DisplaySubForumList, true),
		}
	}
	return result, nil
}

func (fx *Fixture) topics() ([]*models.Topic, error) {
	result := make([]*models.Topic, len(fx.Topics))
	for i, t := range fx.Topics {
		topicType, err := parseTopicType(t.Type)
		if err != nil {
			return nil, oops.New(err, "invalid topic %d", t.ID)
		}
		result[i] = &models.Topic{
			ID:       t.ID,
			ForumID:  t.Forum,
			PosterID: t.Poster,
			Type:     topicType,
			Subject:  t.Subject,
			Locked:   t.Locked,
			Approved: boolOr(t.Approved, true),
			Created:  t.Created,
		}
	}
	return result, nil
}

func (fx *Fixture) posts() []*models.Post {
	result := make([]*models.Post, len(fx.Posts))
	for i, p := range fx.Posts {
		result[i] = &models.Post{
			ID:           p.ID,
			TopicID:      p.Topic,
			PosterID:     p.Poster,
			AnonymousKey: p.AnonymousKey,
			Subject:      p.Subject,
			Approved:     boolOr(p.Approved, true),
			Created:      p.Created,
		}
	}
	return result
}

func (g FixtureGrant) grant() (permissions.Grant, error) {
	var refs []permissions.SubjectRef
	if g.User != nil {
		refs = append(refs, permissions.UserRef(*g.User))
	}
	if g.Group != nil {
		refs = append(refs, permissions.GroupRef(*g.Group))
	}
	if g.Anonymous {
		refs = append(refs, permissions.AnonymousRef())
	}
	if g.Authenticated {
		refs = append(refs, permissions.AuthenticatedRef())
	}
	if len(refs) != 1 {
		return permissions.Grant{}, &permissions.ConfigurationError{
			Codename: g.Permission,
			Reason:   fmt.Sprintf("grant names %d subjects instead of one", len(refs)),
		}
	}
	return permissions.Grant{
		Subject:  refs[0],
		ForumID:  g.Forum,
		Codename: g.Permission,
		Allowed:  g.Allowed,
	}, nil
}

func (fx *Fixture) grants() ([]permissions.Grant, error) {
	result := make([]permissions.Grant, len(fx.Grants))
	for i, g := range fx.Grants {
		grant, err := g.grant()
		if err != nil {
			return nil, err
		}
		result[i] = grant
	}
	return result, nil
}

// Memory loads the fixture into a new MemoryStore.
func (fx *Fixture) Memory(catalogue *permissions.Catalogue) (*MemoryStore, error) {
	store := NewMemoryStore(catalogue)

	for _, g := range fx.groups() {
		store.AddGroup(g)
	}
	for _, u := range fx.users() {
		if err := store.AddUser(u); err != nil {
			return nil, err
		}
	}

	forums, err := fx.forums()
	if err != nil {
		return nil, err
	}
	if err := store.SetForums(forums); err != nil {
		return nil, err
	}

	topics, err := fx.topics()
	if err != nil {
		return nil, err
	}
	for _, t := range topics {
		if err := store.AddTopic(t); err != nil {
			return nil, err
		}
	}
	for _, p := range fx.posts() {
		if err := store.AddPost(p); err != nil {
			return nil, err
		}
	}

	grants, err := fx.grants()
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		if err := store.AddGrant(g); err != nil {
			return nil, oops.New(err, "invalid grant")
		}
	}

	return store, nil
}
