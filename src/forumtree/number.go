package forumtree

import (
	"sort"

	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
)

/*
Number assigns nested-set coordinates (TreeID, Left, Right, Level) to a set of
forums from their parent links. Siblings keep the order in which they appear
in the input, and each top-level forum starts a new tree. The forums are
modified in place and returned sorted by (TreeID, Left), ready for New.

Every ParentID must refer to a forum in the input, and the parent links must
not form a cycle.
*/
func Number(forums []*models.Forum) ([]*models.Forum, error) {
	byID := make(map[int]*models.Forum, len(forums))
	for _, f := range forums {
		if _, dupe := byID[f.ID]; dupe {
			return nil, oops.New(ErrInconsistent, "forum %d appears twice", f.ID)
		}
		byID[f.ID] = f
	}

	children := make(map[int][]*models.Forum)
	var roots []*models.Forum
	for _, f := range forums {
		if f.ParentID == nil {
			roots = append(roots, f)
			continue
		}
		if _, ok := byID[*f.ParentID]; !ok {
			return nil, oops.New(ErrInconsistent, "forum %d has unknown parent %d", f.ID, *f.ParentID)
		}
		children[*f.ParentID] = append(children[*f.ParentID], f)
	}

	numbered := 0
	var visit func(f *models.Forum, treeID, level int, counter *int)
	visit = func(f *models.Forum, treeID, level int, counter *int) {
		numbered++
		f.TreeID = treeID
		f.Level = level
		f.Left = *counter
		*counter++
		for _, child := range children[f.ID] {
			visit(child, treeID, level+1, counter)
		}
		f.Right = *counter
		*counter++
	}

	for i, root := range roots {
		counter := 1
		visit(root, i+1, 0, &counter)
	}

	// Anything unreached hangs off a cycle.
	if numbered != len(forums) {
		return nil, oops.New(ErrInconsistent, "parent links of %d forums form a cycle", len(forums)-numbered)
	}

	sorted := make([]*models.Forum, len(forums))
	copy(sorted, forums)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TreeID != sorted[j].TreeID {
			return sorted[i].TreeID < sorted[j].TreeID
		}
		return sorted[i].Left < sorted[j].Left
	})
	return sorted, nil
}
