/*
Package forumtree holds an in-memory forum hierarchy built from a nested-set
ordered list of forums.

The database stores the hierarchy as nested-set coordinates so that subtree
queries are range scans. In memory, the same forums are kept in an arena in
traversal order with explicit parent and child indices, which makes both
ancestor walks and descendant ranges cheap.
*/
package forumtree

import (
	"errors"

	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
)

var (
	// Forums were not sorted by (TreeID, Left).
	ErrUnordered = errors.New("forums are not in nested-set order")
	// Coordinates, levels or parent links contradict each other.
	ErrInconsistent = errors.New("forum tree is inconsistent")
)

type Tree struct {
	nodes []node
	byID  map[int]int
	tops  []int
}

type node struct {
	forum    *models.Forum
	parent   int // -1 at the top of the tree
	children []int
}

/*
New builds a tree from forums sorted by (TreeID, Left). The input may be a
slice of a larger hierarchy: forums whose parent is not part of the input
become top nodes of the tree.
*/
func New(forums []*models.Forum) (*Tree, error) {
	t := &Tree{
		nodes: make([]node, 0, len(forums)),
		byID:  make(map[int]int, len(forums)),
	}

	var path []int
	for i, f := range forums {
		if i > 0 {
			prev := forums[i-1]
			if f.TreeID < prev.TreeID || (f.TreeID == prev.TreeID && f.Left <= prev.Left) {
				return nil, oops.New(ErrUnordered, "forum %d (tree %d, left %d) comes after forum %d (tree %d, left %d)", f.ID, f.TreeID, f.Left, prev.ID, prev.TreeID, prev.Left)
			}
		}
		if f.Left >= f.Right {
			return nil, oops.New(ErrInconsistent, "forum %d has left bound %d and right bound %d", f.ID, f.Left, f.Right)
		}
		if _, dupe := t.byID[f.ID]; dupe {
			return nil, oops.New(ErrInconsistent, "forum %d appears twice", f.ID)
		}

		// Drop finished subtrees from the ancestor path.
		for len(path) > 0 {
			top := t.nodes[path[len(path)-1]].forum
			if top.TreeID == f.TreeID && f.Left < top.Right {
				break
			}
			path = path[:len(path)-1]
		}

		idx := len(t.nodes)
		n := node{forum: f, parent: -1}
		if len(path) > 0 {
			parentIdx := path[len(path)-1]
			parent := t.nodes[parentIdx].forum
			if f.Right >= parent.Right {
				return nil, oops.New(ErrInconsistent, "forum %d overlaps the bounds of forum %d", f.ID, parent.ID)
			}
			if f.ParentID == nil || *f.ParentID != parent.ID {
				return nil, oops.New(ErrInconsistent, "forum %d lies inside forum %d but is not its child", f.ID, parent.ID)
			}
			if f.Level != parent.Level+1 {
				return nil, oops.New(ErrInconsistent, "forum %d is at level %d under forum %d at level %d", f.ID, f.Level, parent.ID, parent.Level)
			}
			n.parent = parentIdx
			t.nodes[parentIdx].children = append(t.nodes[parentIdx].children, idx)
		} else {
			if f.ParentID != nil {
				if _, parentPresent := t.byID[*f.ParentID]; parentPresent {
					return nil, oops.New(ErrInconsistent, "forum %d lies outside its parent %d", f.ID, *f.ParentID)
				}
			}
			t.tops = append(t.tops, idx)
		}

		t.nodes = append(t.nodes, n)
		t.byID[f.ID] = idx
		path = append(path, idx)
	}

	return t, nil
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Get(id int) (*models.Forum, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return t.nodes[idx].forum, true
}

// All forums in traversal order.
func (t *Tree) Forums() []*models.Forum {
	result := make([]*models.Forum, len(t.nodes))
	for i, n := range t.nodes {
		result[i] = n.forum
	}
	return result
}

func (t *Tree) TopNodes() []*models.Forum {
	return t.forumsAt(t.tops)
}

// Returns nil for top nodes and unknown ids.
func (t *Tree) Parent(id int) *models.Forum {
	idx, ok := t.byID[id]
	if !ok || t.nodes[idx].parent < 0 {
		return nil
	}
	return t.nodes[t.nodes[idx].parent].forum
}

func (t *Tree) Children(id int) []*models.Forum {
	idx, ok := t.byID[id]
	if !ok {
		return nil
	}
	return t.forumsAt(t.nodes[idx].children)
}

// Ancestors of a forum, starting from the top of the tree. The forum itself
// is not included.
func (t *Tree) Ancestors(id int) []*models.Forum {
	idx, ok := t.byID[id]
	if !ok {
		return nil
	}

	depth := 0
	for p := t.nodes[idx].parent; p >= 0; p = t.nodes[p].parent {
		depth++
	}
	result := make([]*models.Forum, depth)
	for p := t.nodes[idx].parent; p >= 0; p = t.nodes[p].parent {
		depth--
		result[depth] = t.nodes[p].forum
	}
	return result
}

// Descendants of a forum in traversal order, not including the forum.
func (t *Tree) Descendants(id int) []*models.Forum {
	idx, ok := t.byID[id]
	if !ok {
		return nil
	}
	start, end := t.descendantRange(idx)
	result := make([]*models.Forum, 0, end-start)
	for i := start; i < end; i++ {
		result = append(result, t.nodes[i].forum)
	}
	return result
}

// IDs of the forum and all of its descendants.
func (t *Tree) SubtreeIDs(id int) []int {
	idx, ok := t.byID[id]
	if !ok {
		return nil
	}
	_, end := t.descendantRange(idx)
	result := make([]int, 0, end-idx)
	for i := idx; i < end; i++ {
		result = append(result, t.nodes[i].forum.ID)
	}
	return result
}

func (t *Tree) IsDescendant(ancestorID, id int) bool {
	ancestor, ok := t.Get(ancestorID)
	if !ok {
		return false
	}
	f, ok := t.Get(id)
	if !ok {
		return false
	}
	return ancestor.Contains(f)
}

// Descendants are contiguous in traversal order, so a subtree is the run of
// nodes after idx that stay inside its bounds.
func (t *Tree) descendantRange(idx int) (start, end int) {
	root := t.nodes[idx].forum
	end = idx + 1
	for end < len(t.nodes) && root.Contains(t.nodes[end].forum) {
		end++
	}
	return idx + 1, end
}

func (t *Tree) forumsAt(indices []int) []*models.Forum {
	result := make([]*models.Forum, len(indices))
	for i, idx := range indices {
		result[i] = t.nodes[idx].forum
	}
	return result
}
