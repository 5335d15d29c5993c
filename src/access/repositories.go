package access

import (
	"context"

	"git.handmade.network/hmn/forumaccess/src/models"
)

type ForumRepository interface {
	// Every forum of the board, sorted by (TreeID, Left).
	AllForums(ctx context.Context) ([]*models.Forum, error)
	// Returns db.NotFound for unknown ids.
	Forum(ctx context.Context, id int) (*models.Forum, error)
}

type TopicRepository interface {
	// Returns db.NotFound for unknown ids.
	Topic(ctx context.Context, id int) (*models.Topic, error)
}

type PostRepository interface {
	// Returns db.NotFound for unknown ids.
	PostAndTopic(ctx context.Context, postID int) (*models.PostAndTopic, error)
	// The most recently created post in any of the given forums, or nil if
	// they have no posts.
	LatestPost(ctx context.Context, forumIDs []int) (*models.PostAndTopic, error)
}
