package access

import (
	"context"
	"errors"

	"git.handmade.network/hmn/forumaccess/src/logging"
	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
)

// ErrUnauthorized is wrapped by the errors of failed access checks. The Can*
// methods never return it; a denial there is just false.
var ErrUnauthorized = errors.New("unauthorized")

// An AccessCheck returns nil when the subject may go ahead, an error wrapping
// ErrUnauthorized when it may not, and any other error when the check itself
// failed (including db.NotFound for missing objects).
type AccessCheck func(ctx context.Context, s models.Subject) error

type Handler func(ctx context.Context, s models.Subject) error

/*
Guard runs the check before the handler and only calls the handler if the
check passes. For example:

	deletePost := access.Guard(
		facade.Check("delete post", func(ctx context.Context, s models.Subject) (bool, error) {
			return facade.CanDeletePostByID(ctx, s, postID)
		}),
		func(ctx context.Context, s models.Subject) error {
			return posts.Delete(ctx, postID)
		},
	)
*/
func Guard(check AccessCheck, handler Handler) Handler {
	return func(ctx context.Context, s models.Subject) error {
		if err := check(ctx, s); err != nil {
			return err
		}
		return handler(ctx, s)
	}
}

// AllOf passes when every check passes, stopping at the first failure.
func AllOf(checks ...AccessCheck) AccessCheck {
	return func(ctx context.Context, s models.Subject) error {
		for _, check := range checks {
			if err := check(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}

// Check turns any yes/no question into an AccessCheck.
func (f *Facade) Check(action string, allowed func(ctx context.Context, s models.Subject) (bool, error)) AccessCheck {
	return func(ctx context.Context, s models.Subject) error {
		ok, err := allowed(ctx, s)
		if err != nil {
			return err
		}
		if !ok {
			logging.ExtractLogger(ctx).Debug().
				Str("subject", s.CacheKey()).
				Str("action", action).
				Msg("access denied")
			return oops.New(ErrUnauthorized, "%s may not %s", s.CacheKey(), action)
		}
		return nil
	}
}

// Require checks one permission on one forum. Returns db.NotFound for an
// unknown forum.
func (f *Facade) Require(codename string, forumID int) AccessCheck {
	return func(ctx context.Context, s models.Subject) error {
		forum, err := f.forums.Forum(ctx, forumID)
		if err != nil {
			return oops.New(err, "failed to fetch forum %d", forumID)
		}
		has, err := f.resolver.HasPermission(ctx, s, codename, forum)
		if err != nil {
			return err
		}
		if !has {
			logging.ExtractLogger(ctx).Debug().
				Str("subject", s.CacheKey()).
				Str("permission", codename).
				Int("forum", forumID).
				Msg("access denied")
			return oops.New(ErrUnauthorized, "%s lacks %s on forum %d", s.CacheKey(), codename, forumID)
		}
		return nil
	}
}
