package permissions

import (
	"context"

	"git.handmade.network/hmn/forumaccess/src/logging"
	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
)

/*
Resolver decides whether a subject holds a permission, either globally or on
one forum.

Grants are ranked by how specific they are. The first of these tiers that
has an applicable grant decides the outcome:

	1. grants to the user on the forum
	2. global grants to the user
	3. grants to the user's groups on the forum
	4. global grants to the user's groups
	5. grants to all authenticated users on the forum
	6. global grants to all authenticated users

Within a tier, an allow beats a deny, so one group allowing something is
enough. Anonymous subjects only have the two tiers of grants made to anonymous
users. If no tier applies, logged-in users fall back to the configured
default permissions, and everything else is denied.

Superusers hold every permission. Deactivated users hold none, and neither do
users the store does not know, not even the defaults.
*/
type Resolver struct {
	store     Store
	catalogue *Catalogue
	defaults  map[string]bool
}

// defaultAuthenticated lists codenames granted to every active logged-in user
// who has no applicable grant of their own.
func NewResolver(store Store, catalogue *Catalogue, defaultAuthenticated []string) (*Resolver, error) {
	defaults := make(map[string]bool, len(defaultAuthenticated))
	for _, codename := range defaultAuthenticated {
		if _, err := catalogue.Lookup(codename); err != nil {
			return nil, oops.New(err, "invalid default permission for authenticated users")
		}
		defaults[codename] = true
	}
	return &Resolver{
		store:     store,
		catalogue: catalogue,
		defaults:  defaults,
	}, nil
}

func (r *Resolver) Catalogue() *Catalogue {
	return r.catalogue
}

// HasPermission resolves one permission. A nil forum asks about the global
// permission only. Codenames outside the catalogue yield a *ConfigurationError.
func (r *Resolver) HasPermission(ctx context.Context, s models.Subject, codename string, forum *models.Forum) (bool, error) {
	kind, err := r.catalogue.Lookup(codename)
	if err != nil {
		return false, err
	}

	isSuperuser, err := r.store.IsSuperuser(ctx, s)
	if err != nil {
		return false, oops.New(err, "failed to check for superuser")
	}
	if isSuperuser {
		return true, nil
	}
	if !s.IsActive() {
		return false, nil
	}
	known, err := r.store.IsKnown(ctx, s)
	if err != nil {
		return false, oops.New(err, "failed to look up subject")
	}
	if !known {
		logDecision(ctx, s, codename, forum, false, "unknown subject")
		return false, nil
	}

	grants, err := r.store.GrantsFor(ctx, s, codename)
	if err != nil {
		return false, oops.New(err, "failed to fetch grants of %s", codename)
	}
	return r.decide(ctx, s, kind, grants, forum), nil
}

type tier int

const (
	tierUserLocal tier = iota
	tierUserGlobal
	tierGroupLocal
	tierGroupGlobal
	tierAuthenticatedLocal
	tierAuthenticatedGlobal
	tierAnonymousLocal
	tierAnonymousGlobal
	numTiers
)

var tierNames = [numTiers]string{
	"user-local",
	"user-global",
	"group-local",
	"group-global",
	"authenticated-local",
	"authenticated-global",
	"anonymous-local",
	"anonymous-global",
}

// decide applies the tiers to grants that were already fetched. It never
// touches the store, so the checker can reuse it on cached grants.
func (r *Resolver) decide(ctx context.Context, s models.Subject, kind Kind, grants []Grant, forum *models.Forum) bool {
	var found, allowed [numTiers]bool

	for _, g := range grants {
		if g.Codename != kind.Codename || !g.Subject.AppliesTo(s) {
			continue
		}

		local := !g.IsGlobal()
		if local && !kind.IsLocal || !local && !kind.IsGlobal {
			logging.ExtractLogger(ctx).Debug().
				Str("grant", g.String()).
				Msg("ignoring grant at a scope the permission does not allow")
			continue
		}
		if local && (forum == nil || *g.ForumID != forum.ID) {
			continue
		}

		var t tier
		switch g.Subject.Kind {
		case SubjectUser:
			t = tierUserLocal
		case SubjectGroup:
			t = tierGroupLocal
		case SubjectAuthenticated:
			t = tierAuthenticatedLocal
		case SubjectAnonymous:
			t = tierAnonymousLocal
		default:
			continue
		}
		if !local {
			t++
		}

		found[t] = true
		allowed[t] = allowed[t] || g.Allowed
	}

	for t := tier(0); t < numTiers; t++ {
		if found[t] {
			logDecision(ctx, s, kind.Codename, forum, allowed[t], tierNames[t])
			return allowed[t]
		}
	}

	if !s.IsAnonymous() && r.defaults[kind.Codename] {
		logDecision(ctx, s, kind.Codename, forum, true, "default")
		return true
	}

	logDecision(ctx, s, kind.Codename, forum, false, "no grant")
	return false
}

func logDecision(ctx context.Context, s models.Subject, codename string, forum *models.Forum, allowed bool, reason string) {
	ev := logging.ExtractLogger(ctx).Debug()
	if !ev.Enabled() {
		return
	}
	ev = ev.
		Str("subject", s.CacheKey()).
		Str("permission", codename).
		Bool("allowed", allowed).
		Str("decided by", reason)
	if forum != nil {
		ev = ev.Int("forum", forum.ID)
	}
	ev.Msg("resolved permission")
}
