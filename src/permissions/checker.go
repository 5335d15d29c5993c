package permissions

import (
	"context"
	"sync"

	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
	"golang.org/x/sync/errgroup"
)

/*
Checker answers permission questions for one subject over the course of a
single request. Grants are fetched once per permission and decisions are
cached per forum, so bulk checks over a whole forum tree cost one store
lookup per permission.

Checkers must not outlive the request that created them; grants changed
after the first lookup are not seen.
*/
type Checker struct {
	resolver *Resolver
	subject  models.Subject

	mu        sync.Mutex
	superuser *bool
	known     *bool
	grants    map[string][]Grant
	decisions map[decisionKey]bool
}

type decisionKey struct {
	codename string
	global   bool
	forumID  int
}

func (r *Resolver) Checker(s models.Subject) *Checker {
	return &Checker{
		resolver:  r,
		subject:   s,
		grants:    make(map[string][]Grant),
		decisions: make(map[decisionKey]bool),
	}
}

func (c *Checker) Subject() models.Subject {
	return c.subject
}

func (c *Checker) IsSuperuser(ctx context.Context) (bool, error) {
	c.mu.Lock()
	cached := c.superuser
	c.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	isSuperuser, err := c.resolver.store.IsSuperuser(ctx, c.subject)
	if err != nil {
		return false, oops.New(err, "failed to check for superuser")
	}

	c.mu.Lock()
	c.superuser = &isSuperuser
	c.mu.Unlock()
	return isSuperuser, nil
}

func (c *Checker) isKnown(ctx context.Context) (bool, error) {
	c.mu.Lock()
	cached := c.known
	c.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	known, err := c.resolver.store.IsKnown(ctx, c.subject)
	if err != nil {
		return false, oops.New(err, "failed to look up subject")
	}

	c.mu.Lock()
	c.known = &known
	c.mu.Unlock()
	return known, nil
}

// Has is Resolver.HasPermission with caching.
func (c *Checker) Has(ctx context.Context, codename string, forum *models.Forum) (bool, error) {
	kind, err := c.resolver.catalogue.Lookup(codename)
	if err != nil {
		return false, err
	}

	isSuperuser, err := c.IsSuperuser(ctx)
	if err != nil {
		return false, err
	}
	if isSuperuser {
		return true, nil
	}
	if !c.subject.IsActive() {
		return false, nil
	}
	known, err := c.isKnown(ctx)
	if err != nil {
		return false, err
	}
	if !known {
		return false, nil
	}

	key := decisionKey{codename: codename, global: forum == nil}
	if forum != nil {
		key.forumID = forum.ID
	}
	c.mu.Lock()
	decision, cached := c.decisions[key]
	c.mu.Unlock()
	if cached {
		return decision, nil
	}

	grants, err := c.grantsFor(ctx, codename)
	if err != nil {
		return false, err
	}
	decision = c.resolver.decide(ctx, c.subject, kind, grants, forum)

	c.mu.Lock()
	c.decisions[key] = decision
	c.mu.Unlock()
	return decision, nil
}

// PermsFor returns every permission the subject holds on a forum, in
// catalogue order.
func (c *Checker) PermsFor(ctx context.Context, forum *models.Forum) ([]string, error) {
	codenames := c.resolver.catalogue.Codenames()
	if err := c.Prefetch(ctx, codenames...); err != nil {
		return nil, err
	}

	var result []string
	for _, codename := range codenames {
		has, err := c.Has(ctx, codename, forum)
		if err != nil {
			return nil, err
		}
		if has {
			result = append(result, codename)
		}
	}
	return result, nil
}

// ForumsWith returns the forums on which the subject holds all of the given
// permissions, in their original order.
func (c *Checker) ForumsWith(ctx context.Context, forums []*models.Forum, codenames ...string) ([]*models.Forum, error) {
	if err := c.Prefetch(ctx, codenames...); err != nil {
		return nil, err
	}

	var result []*models.Forum
forums:
	for _, forum := range forums {
		for _, codename := range codenames {
			has, err := c.Has(ctx, codename, forum)
			if err != nil {
				return nil, err
			}
			if !has {
				continue forums
			}
		}
		result = append(result, forum)
	}
	return result, nil
}

// Prefetch loads the grants of several permissions concurrently. Superusers,
// deactivated users and unknown users need no grants and skip the lookups.
func (c *Checker) Prefetch(ctx context.Context, codenames ...string) error {
	for _, codename := range codenames {
		if _, err := c.resolver.catalogue.Lookup(codename); err != nil {
			return err
		}
	}

	isSuperuser, err := c.IsSuperuser(ctx)
	if err != nil {
		return err
	}
	if isSuperuser || !c.subject.IsActive() {
		return nil
	}
	known, err := c.isKnown(ctx)
	if err != nil {
		return err
	}
	if !known {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, codename := range codenames {
		codename := codename
		g.Go(func() error {
			_, err := c.grantsFor(gctx, codename)
			return err
		})
	}
	return g.Wait()
}

func (c *Checker) grantsFor(ctx context.Context, codename string) ([]Grant, error) {
	c.mu.Lock()
	grants, cached := c.grants[codename]
	c.mu.Unlock()
	if cached {
		return grants, nil
	}

	grants, err := c.resolver.store.GrantsFor(ctx, c.subject, codename)
	if err != nil {
		return nil, oops.New(err, "failed to fetch grants of %s", codename)
	}

	c.mu.Lock()
	c.grants[codename] = grants
	c.mu.Unlock()
	return grants, nil
}
