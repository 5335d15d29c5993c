package forumtree

import (
	"testing"

	"git.handmade.network/hmn/forumaccess/src/models"
	"git.handmade.network/hmn/forumaccess/src/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A (category)
// ├── B
// │   └── C
// └── D (link)
// E (category)
// └── F
func sampleForums() []*models.Forum {
	return []*models.Forum{
		{ID: 1, Kind: models.ForumKindCategory, Name: "A"},
		{ID: 2, Kind: models.ForumKindForum, Name: "B", ParentID: utils.P(1)},
		{ID: 5, Kind: models.ForumKindCategory, Name: "E"},
		{ID: 3, Kind: models.ForumKindForum, Name: "C", ParentID: utils.P(2)},
		{ID: 4, Kind: models.ForumKindLink, Name: "D", ParentID: utils.P(1)},
		{ID: 6, Kind: models.ForumKindForum, Name: "F", ParentID: utils.P(5)},
	}
}

func ids(forums []*models.Forum) []int {
	result := make([]int, len(forums))
	for i, f := range forums {
		result[i] = f.ID
	}
	return result
}

func TestNumber(t *testing.T) {
	sorted, err := Number(sampleForums())
	require.Nil(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, ids(sorted))

	type coords struct{ tree, left, right, level int }
	expected := map[int]coords{
		1: {1, 1, 8, 0},
		2: {1, 2, 5, 1},
		3: {1, 3, 4, 2},
		4: {1, 6, 7, 1},
		5: {2, 1, 4, 0},
		6: {2, 2, 3, 1},
	}
	for _, f := range sorted {
		assert.Equal(t, expected[f.ID], coords{f.TreeID, f.Left, f.Right, f.Level}, "forum %d", f.ID)
	}

	t.Run("unknown parent", func(t *testing.T) {
		_, err := Number([]*models.Forum{{ID: 1, ParentID: utils.P(99)}})
		assert.ErrorIs(t, err, ErrInconsistent)
	})
	t.Run("cycle", func(t *testing.T) {
		_, err := Number([]*models.Forum{
			{ID: 1},
			{ID: 2, ParentID: utils.P(3)},
			{ID: 3, ParentID: utils.P(2)},
		})
		assert.ErrorIs(t, err, ErrInconsistent)
	})
}

func TestTree(t *testing.T) {
	tree, err := New(utils.Must1(Number(sampleForums())))
	require.Nil(t, err)

	assert.Equal(t, 6, tree.Len())
	assert.Equal(t, []int{1, 5}, ids(tree.TopNodes()))
	assert.Equal(t, []int{2, 4}, ids(tree.Children(1)))
	assert.Empty(t, tree.Children(3))
	assert.Nil(t, tree.Children(99))

	assert.Nil(t, tree.Parent(1))
	assert.Equal(t, 2, tree.Parent(3).ID)

	assert.Equal(t, []int{1, 2}, ids(tree.Ancestors(3)))
	assert.Empty(t, tree.Ancestors(1))

	assert.Equal(t, []int{2, 3, 4}, ids(tree.Descendants(1)))
	assert.Empty(t, tree.Descendants(4))
	assert.Equal(t, []int{2, 3}, tree.SubtreeIDs(2))

	assert.True(t, tree.IsDescendant(1, 3))
	assert.False(t, tree.IsDescendant(3, 1))
	assert.False(t, tree.IsDescendant(1, 1))
	assert.False(t, tree.IsDescendant(1, 6))

	f, ok := tree.Get(4)
	require.True(t, ok)
	assert.True(t, f.IsLink())
	_, ok = tree.Get(99)
	assert.False(t, ok)
}

func TestNewPartial(t *testing.T) {
	all := utils.Must1(Number(sampleForums()))

	// Just the subtree under A.
	tree, err := New(all[1:4])
	require.Nil(t, err)
	assert.Equal(t, []int{2, 4}, ids(tree.TopNodes()))
	assert.Equal(t, []int{3}, ids(tree.Children(2)))
}

func TestNewErrors(t *testing.T) {
	t.Run("unordered", func(t *testing.T) {
		all := utils.Must1(Number(sampleForums()))
		all[1], all[2] = all[2], all[1]
		_, err := New(all)
		assert.ErrorIs(t, err, ErrUnordered)
	})
	t.Run("second tree before first", func(t *testing.T) {
		all := utils.Must1(Number(sampleForums()))
		_, err := New([]*models.Forum{all[4], all[0]})
		assert.ErrorIs(t, err, ErrUnordered)
	})
	t.Run("overlapping bounds", func(t *testing.T) {
		_, err := New([]*models.Forum{
			{ID: 1, TreeID: 1, Left: 1, Right: 6},
			{ID: 2, ParentID: utils.P(1), TreeID: 1, Left: 2, Right: 7, Level: 1},
		})
		assert.ErrorIs(t, err, ErrInconsistent)
	})
	t.Run("wrong parent", func(t *testing.T) {
		_, err := New([]*models.Forum{
			{ID: 1, TreeID: 1, Left: 1, Right: 4},
			{ID: 2, ParentID: utils.P(7), TreeID: 1, Left: 2, Right: 3, Level: 1},
		})
		assert.ErrorIs(t, err, ErrInconsistent)
	})
	t.Run("wrong level", func(t *testing.T) {
		_, err := New([]*models.Forum{
			{ID: 1, TreeID: 1, Left: 1, Right: 4},
			{ID: 2, ParentID: utils.P(1), TreeID: 1, Left: 2, Right: 3, Level: 2},
		})
		assert.ErrorIs(t, err, ErrInconsistent)
	})
	t.Run("empty bounds", func(t *testing.T) {
		_, err := New([]*models.Forum{{ID: 1, TreeID: 1, Left: 2, Right: 2}})
		assert.ErrorIs(t, err, ErrInconsistent)
	})
}
