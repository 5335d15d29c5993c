package permissions

import (
	"context"

	"git.handmade.network/hmn/forumaccess/src/models"
)

// Store is read-only access to stored grants.
type Store interface {
	/*
		GrantsFor returns every grant of the permission whose subject can apply
		to s: grants to the user, to the groups in s.User.GroupIDs, and to all
		authenticated users for logged-in subjects; grants to anonymous users
		for anonymous subjects. Unknown subjects have no grants.
	*/
	GrantsFor(ctx context.Context, s models.Subject, codename string) ([]Grant, error)
	// Unknown subjects are not superusers.
	IsSuperuser(ctx context.Context, s models.Subject) (bool, error)
	// IsKnown reports whether a logged-in subject's user exists. Anonymous
	// subjects are always known.
	IsKnown(ctx context.Context, s models.Subject) (bool, error)
}
