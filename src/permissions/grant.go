package permissions

import (
	"fmt"

	"git.handmade.network/hmn/forumaccess/src/models"
)

type SubjectKind int

const (
	SubjectUser SubjectKind = iota + 1
	SubjectGroup
	// Visitors who are not logged in.
	SubjectAnonymous
	// Every logged-in user.
	SubjectAuthenticated
)

// SubjectRef is who a grant was made to.
type SubjectRef struct {
	Kind SubjectKind
	ID   int // user or group ID
}

func UserRef(userID int) SubjectRef {
	return SubjectRef{Kind: SubjectUser, ID: userID}
}

func GroupRef(groupID int) SubjectRef {
	return SubjectRef{Kind: SubjectGroup, ID: groupID}
}

func AnonymousRef() SubjectRef {
	return SubjectRef{Kind: SubjectAnonymous}
}

func AuthenticatedRef() SubjectRef {
	return SubjectRef{Kind: SubjectAuthenticated}
}

func (r SubjectRef) String() string {
	switch r.Kind {
	case SubjectUser:
		return fmt.Sprintf("user %d", r.ID)
	case SubjectGroup:
		return fmt.Sprintf("group %d", r.ID)
	case SubjectAnonymous:
		return "anonymous users"
	case SubjectAuthenticated:
		return "authenticated users"
	default:
		return "invalid subject"
	}
}

func (r SubjectRef) valid() bool {
	switch r.Kind {
	case SubjectUser, SubjectGroup:
		return true
	case SubjectAnonymous, SubjectAuthenticated:
		return r.ID == 0
	default:
		return false
	}
}

// Reports whether a grant to this reference can concern the subject.
func (r SubjectRef) AppliesTo(s models.Subject) bool {
	switch r.Kind {
	case SubjectAnonymous:
		return s.IsAnonymous()
	case SubjectAuthenticated:
		return !s.IsAnonymous()
	case SubjectUser:
		return !s.IsAnonymous() && s.User.ID == r.ID
	case SubjectGroup:
		if s.IsAnonymous() {
			return false
		}
		for _, groupID := range s.User.GroupIDs {
			if groupID == r.ID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

/*
Grant is a stored allow or deny decision. A nil ForumID makes the grant
global; otherwise it only concerns that one forum.
*/
type Grant struct {
	Subject  SubjectRef
	ForumID  *int
	Codename string
	Allowed  bool
}

func (g Grant) IsGlobal() bool {
	return g.ForumID == nil
}

func (g Grant) String() string {
	verb := "denies"
	if g.Allowed {
		verb = "allows"
	}
	if g.IsGlobal() {
		return fmt.Sprintf("%s %s %s globally", verb, g.Codename, g.Subject)
	}
	return fmt.Sprintf("%s %s %s on forum %d", verb, g.Codename, g.Subject, *g.ForumID)
}
