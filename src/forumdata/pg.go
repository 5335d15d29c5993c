package forumdata

import (
	"context"
	_ "embed"
	"errors"

	"git.handmade.network/hmn/forumaccess/src/db"
	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
	"git.handmade.network/hmn/forumaccess/src/perf"
	"git.handmade.network/hmn/forumaccess/src/permissions"
)

//go:embed schema.sql
var Schema string

// Creates any missing tables.
func CreateSchema(ctx context.Context, conn db.ConnOrTx) error {
	_, err := conn.Exec(ctx, Schema)
	if err != nil {
		return oops.New(err, "failed to create schema")
	}
	return nil
}

// PGStore reads forums, users, posts and grants from Postgres.
type PGStore struct {
	conn db.ConnOrTx
}

func NewPGStore(conn db.ConnOrTx) *PGStore {
	return &PGStore{conn: conn}
}

// Users

func (s *PGStore) User(ctx context.Context, id int) (*models.User, error) {
	user, err := db.QueryOne[models.User](ctx, s.conn,
		`
		---- Fetch user
		SELECT $columns
		FROM forum_user
		WHERE id = $1
		`,
		id,
	)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return nil, oops.New(db.NotFound, "user %d does not exist", id)
		}
		return nil, oops.New(err, "failed to fetch user")
	}

	groupIDs, err := db.QueryScalar[int](ctx, s.conn,
		`
		---- Fetch user groups
		SELECT group_id
		FROM forum_user_group
		WHERE user_id = $1
		ORDER BY group_id
		`,
		id,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch groups of user")
	}
	user.GroupIDs = groupIDs

	return user, nil
}

// Permissions

func (s *PGStore) IsSuperuser(ctx context.Context, subject models.Subject) (bool, error) {
	if subject.IsAnonymous() {
		return false, nil
	}
	isSuperuser, err := db.QueryOneScalar[bool](ctx, s.conn,
		`
		---- Check superuser
		SELECT is_superuser
		FROM forum_user
		WHERE id = $1
		`,
		subject.User.ID,
	)
	if errors.Is(err, db.NotFound) {
		return false, nil
	} else if err != nil {
		return false, oops.New(err, "failed to check superuser status")
	}
	return isSuperuser, nil
}

func (s *PGStore) IsKnown(ctx context.Context, subject models.Subject) (bool, error) {
	if subject.IsAnonymous() {
		return true, nil
	}
	known, err := db.QueryOneScalar[bool](ctx, s.conn,
		`
		---- Check user exists
		SELECT EXISTS (
			SELECT 1
			FROM forum_user
			WHERE id = $1
		)
		`,
		subject.User.ID,
	)
	if err != nil {
		return false, oops.New(err, "failed to check whether user exists")
	}
	return known, nil
}

type userGrantRow struct {
	UserID            *int `db:"user_id"`
	AnonymousUser     bool `db:"anonymous_user"`
	AuthenticatedUser bool `db:"authenticated_user"`
	ForumID           *int `db:"forum_id"`
	HasPerm           bool `db:"has_perm"`
}

type groupGrantRow struct {
	GroupID int  `db:"group_id"`
	ForumID *int `db:"forum_id"`
	HasPerm bool `db:"has_perm"`
}

func (s *PGStore) GrantsFor(ctx context.Context, subject models.Subject, codename string) ([]permissions.Grant, error) {
	defer perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch grants").End()

	// Grants to all authenticated users must not reach user ids that do not exist.
	known, err := s.IsKnown(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, nil
	}

	var qb db.QueryBuilder
	qb.Add(
		`
		---- Fetch user grants
		SELECT $columns{ufp}
		FROM
			user_forum_permission AS ufp
			JOIN forum_permission AS perm ON perm.id = ufp.permission_id
		WHERE
			perm.codename = $?
		`,
		codename,
	)
	if subject.IsAnonymous() {
		qb.Add(`AND ufp.anonymous_user`)
	} else {
		qb.Add(`AND (ufp.user_id = $? OR ufp.authenticated_user)`, subject.User.ID)
	}
	userRows, err := db.Query[userGrantRow](ctx, s.conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch user grants")
	}

	var grants []permissions.Grant
	for _, row := range userRows {
		var ref permissions.SubjectRef
		switch {
		case row.UserID != nil:
			ref = permissions.UserRef(*row.UserID)
		case row.AnonymousUser:
			ref = permissions.AnonymousRef()
		default:
			ref = permissions.AuthenticatedRef()
		}
		grants = append(grants, permissions.Grant{
			Subject:  ref,
			ForumID:  row.ForumID,
			Codename: codename,
			Allowed:  row.HasPerm,
		})
	}

	if subject.IsAnonymous() || len(subject.User.GroupIDs) == 0 {
		return grants, nil
	}

	groupRows, err := db.Query[groupGrantRow](ctx, s.conn,
		`
		---- Fetch group grants
		SELECT $columns{gfp}
		FROM
			group_forum_permission AS gfp
			JOIN forum_permission AS perm ON perm.id = gfp.permission_id
		WHERE
			perm.codename = $1
			AND gfp.group_id = ANY ($2)
		`,
		codename,
		subject.User.GroupIDs,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch group grants")
	}
	for _, row := range groupRows {
		grants = append(grants, permissions.Grant{
			Subject:  permissions.GroupRef(row.GroupID),
			ForumID:  row.ForumID,
			Codename: codename,
			Allowed:  row.HasPerm,
		})
	}

	return grants, nil
}

// Forums, topics and posts

func (s *PGStore) AllForums(ctx context.Context) ([]*models.Forum, error) {
	defer perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch forums").End()

	forums, err := db.Query[models.Forum](ctx, s.conn,
		`
		---- Fetch all forums
		SELECT $columns
		FROM forum
		ORDER BY tree_id, lft
		`,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch forums")
	}
	return forums, nil
}

func (s *PGStore) Forum(ctx context.Context, id int) (*models.Forum, error) {
	forum, err := db.QueryOne[models.Forum](ctx, s.conn,
		`
		---- Fetch forum
		SELECT $columns
		FROM forum
		WHERE id = $1
		`,
		id,
	)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return nil, oops.New(db.NotFound, "forum %d does not exist", id)
		}
		return nil, oops.New(err, "failed to fetch forum")
	}
	return forum, nil
}

func (s *PGStore) Topic(ctx context.Context, id int) (*models.Topic, error) {
	topic, err := db.QueryOne[models.Topic](ctx, s.conn,
		`
		---- Fetch topic
		SELECT $columns
		FROM forum_topic
		WHERE id = $1
		`,
		id,
	)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return nil, oops.New(db.NotFound, "topic %d does not exist", id)
		}
		return nil, oops.New(err, "failed to fetch topic")
	}
	return topic, nil
}

func (s *PGStore) PostAndTopic(ctx context.Context, postID int) (*models.PostAndTopic, error) {
	pt, err := db.QueryOne[models.PostAndTopic](ctx, s.conn,
		`
		---- Fetch post and topic
		SELECT $columns
		FROM
			forum_post AS post
			JOIN forum_topic AS topic ON topic.id = post.topic_id
		WHERE post.id = $1
		`,
		postID,
	)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return nil, oops.New(db.NotFound, "post %d does not exist", postID)
		}
		return nil, oops.New(err, "failed to fetch post")
	}
	return pt, nil
}

func (s *PGStore) LatestPost(ctx context.Context, forumIDs []int) (*models.PostAndTopic, error) {
	defer perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch latest post").End()

	pt, err := db.QueryOne[models.PostAndTopic](ctx, s.conn,
		`
		---- Fetch latest post
		SELECT $columns
		FROM
			forum_post AS post
			JOIN forum_topic AS topic ON topic.id = post.topic_id
		WHERE
			topic.forum_id = ANY ($1)
			AND post.approved
		ORDER BY post.created DESC, post.id DESC
		LIMIT 1
		`,
		forumIDs,
	)
	if errors.Is(err, db.NotFound) {
		return nil, nil
	} else if err != nil {
		return nil, oops.New(err, "failed to fetch latest post")
	}
	return pt, nil
}
