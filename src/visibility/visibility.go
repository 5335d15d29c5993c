/*
Package visibility builds the trees behind forum listings: which forums of a
slice of the hierarchy are shown, and the post counts, topic counts and latest
posts rolled up from their sub-forums.
*/
package visibility

import (
	"errors"

	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/oops"
)

var (
	// Forums were not sorted by (TreeID, Left).
	ErrUnordered = errors.New("forums are not in nested-set order")
	// A forum's level does not fit under the forums before it.
	ErrDisconnected = errors.New("forum is disconnected from the tree")
)

/*
BuildTree builds a visibility tree from forums sorted by (TreeID, Left). The
first forum fixes the root level; forums at that level become the top nodes.

include decides which forums take part at all, typically whether the viewer
can see or read them. A forum it rejects is left out along with its whole
subtree. A nil include keeps every forum.

Whether a node is shown in a listing is decided while scanning:

  - top nodes are always shown
  - at relative level 1, a node is shown if it is a category, or if its parent
    is a category or displays its sub-forum list
  - at relative level 2, a node is shown if its parent is a forum that
    displays its sub-forum list and its grandparent is a category

Nothing deeper is shown.
*/
func BuildTree(forums []*models.Forum, include func(f *models.Forum) bool) (*Tree, error) {
	t := &Tree{
		byID: make(map[int]*Node, len(forums)),
	}

	var (
		currentPath []*Node
		rootLevel   = -1
		skipped     *models.Forum
	)
	for i, f := range forums {
		if i > 0 {
			prev := forums[i-1]
			if f.TreeID < prev.TreeID || (f.TreeID == prev.TreeID && f.Left <= prev.Left) {
				return nil, oops.New(ErrUnordered, "forum %d (tree %d, left %d) comes after forum %d (tree %d, left %d)", f.ID, f.TreeID, f.Left, prev.ID, prev.TreeID, prev.Left)
			}
		}

		if skipped != nil && skipped.Contains(f) {
			continue
		}
		skipped = nil
		if include != nil && !include(f) {
			skipped = f
			continue
		}

		if rootLevel < 0 {
			rootLevel = f.Level
			t.rootLevel = f.Level
		}
		relativeLevel := f.Level - rootLevel
		if relativeLevel < 0 {
			return nil, oops.New(ErrDisconnected, "forum %d at level %d is above the root level %d", f.ID, f.Level, rootLevel)
		}

		// Drop the ancestors of the previous subtree.
		for len(currentPath) > relativeLevel {
			currentPath = currentPath[:len(currentPath)-1]
		}
		if len(currentPath) < relativeLevel {
			return nil, oops.New(ErrDisconnected, "forum %d at level %d has no parent in the tree", f.ID, f.Level)
		}

		node := &Node{
			forum:         f,
			tree:          t,
			relativeLevel: relativeLevel,
		}
		if relativeLevel > 0 {
			parent := currentPath[len(currentPath)-1]
			if !parent.forum.Contains(f) {
				return nil, oops.New(ErrDisconnected, "forum %d does not lie inside forum %d", f.ID, parent.forum.ID)
			}
			node.parent = parent
			node.siblingIndex = len(parent.children)
			parent.children = append(parent.children, node)
		} else {
			node.siblingIndex = len(t.topNodes)
			t.topNodes = append(t.topNodes, node)
		}
		node.visible = isShown(node)

		currentPath = append(currentPath, node)
		t.nodes = append(t.nodes, node)
		t.byID[f.ID] = node
	}

	return t, nil
}

/*
isShown decides whether a node appears in the listing. A second-level node also
needs its parent's DisplaySubForumList, not only a category grandparent and a
plain forum parent: turning the flag off on a forum hides its sub-forums at
every depth.
*/
func isShown(n *Node) bool {
	switch n.relativeLevel {
	case 0:
		return true
	case 1:
		parent := n.parent.forum
		return n.forum.IsCategory() || parent.IsCategory() || parent.DisplaySubForumList
	case 2:
		parent := n.parent.forum
		grandparent := n.parent.parent.forum
		return grandparent.IsCategory() && parent.IsForum() && parent.DisplaySubForumList
	default:
		return false
	}
}

// Tree is the result of one BuildTree call. It is not safe for concurrent use.
type Tree struct {
	nodes     []*Node
	byID      map[int]*Node
	topNodes  []*Node
	rootLevel int
}

// All nodes in traversal order.
func (t *Tree) Nodes() []*Node {
	return t.nodes
}

func (t *Tree) Node(forumID int) (*Node, bool) {
	n, ok := t.byID[forumID]
	return n, ok
}

func (t *Tree) TopNodes() []*Node {
	return t.topNodes
}

func (t *Tree) VisibleNodes() []*Node {
	var result []*Node
	for _, n := range t.nodes {
		if n.visible {
			result = append(result, n)
		}
	}
	return result
}

func (t *Tree) VisibleForums() []*models.Forum {
	var result []*models.Forum
	for _, n := range t.nodes {
		if n.visible {
			result = append(result, n.forum)
		}
	}
	return result
}

func (t *Tree) Forums() []*models.Forum {
	result := make([]*models.Forum, len(t.nodes))
	for i, n := range t.nodes {
		result[i] = n.forum
	}
	return result
}

// The level of the top nodes. Zero for an empty tree.
func (t *Tree) RootLevel() int {
	return t.rootLevel
}

func (t *Tree) Empty() bool {
	return len(t.nodes) == 0
}
