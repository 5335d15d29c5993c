package visibility

import (
	"time"

	"git.handmade.network/hmn/forumaccess/src/models"
)

/*
Node wraps one forum of a Tree. Aggregates over the node's subtree are
computed on first use and kept for the lifetime of the tree.
*/
type Node struct {
	forum         *models.Forum
	tree          *Tree
	parent        *Node
	children      []*Node
	siblingIndex  int
	relativeLevel int
	visible       bool

	aggregated  bool
	postsCount  int
	topicsCount int
	lastPost    *models.LastPost
	lastPostOn  *time.Time
}

func (n *Node) Forum() *models.Forum {
	return n.forum
}

// Depth below the top nodes of the tree.
func (n *Node) RelativeLevel() int {
	return n.relativeLevel
}

// Whether the node is shown in a listing.
func (n *Node) Visible() bool {
	return n.visible
}

// nil for top nodes.
func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) Children() []*Node {
	return n.children
}

// Posts in this forum and all of its sub-forums in the tree.
func (n *Node) PostsCount() int {
	n.aggregate()
	return n.postsCount
}

func (n *Node) TopicsCount() int {
	n.aggregate()
	return n.topicsCount
}

// The latest post in this forum or its sub-forums, or nil if there is none.
// Ties go to the forum itself, then to the earliest sub-forum.
func (n *Node) LastPost() *models.LastPost {
	n.aggregate()
	return n.lastPost
}

func (n *Node) LastPostOn() *time.Time {
	n.aggregate()
	return n.lastPostOn
}

func (n *Node) aggregate() {
	if n.aggregated {
		return
	}

	n.postsCount = n.forum.DirectPostsCount
	n.topicsCount = n.forum.DirectTopicsCount
	n.lastPost = n.forum.LastPost()
	n.lastPostOn = n.forum.LastPostOn
	for _, child := range n.children {
		n.postsCount += child.PostsCount()
		n.topicsCount += child.TopicsCount()
		if childPost := child.LastPost(); childPost != nil {
			if n.lastPost == nil || childPost.PostedOn.After(n.lastPost.PostedOn) {
				n.lastPost = childPost
			}
		}
		if childOn := child.LastPostOn(); childOn != nil {
			if n.lastPostOn == nil || childOn.After(*n.lastPostOn) {
				n.lastPostOn = childOn
			}
		}
	}

	n.aggregated = true
}

func (n *Node) siblings() []*Node {
	if n.parent != nil {
		return n.parent.children
	}
	return n.tree.topNodes
}

// The next node under the same parent, or the next top node. nil at the end.
func (n *Node) NextSibling() *Node {
	siblings := n.siblings()
	if n.siblingIndex+1 < len(siblings) {
		return siblings[n.siblingIndex+1]
	}
	return nil
}

func (n *Node) PreviousSibling() *Node {
	if n.siblingIndex > 0 {
		return n.siblings()[n.siblingIndex-1]
	}
	return nil
}
