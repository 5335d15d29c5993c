package utils

import (
	"errors"
	"testing"

	"git.handmade.network/hmn/forumaccess/src/oops"
	"github.com/stretchr/testify/assert"
)

type treeError struct{}

func (err *treeError) Error() string {
	return "forum tree is upside down"
}

func TestMust(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		Must(error(nil))
	})
	t.Run("non-nil error", func(t *testing.T) {
		assert.Panics(t, func() {
			Must(error(&treeError{}))
		})
	})
	t.Run("typed nil", func(t *testing.T) {
		var err *treeError
		Must(err)
	})
}

func TestMust1(t *testing.T) {
	f := func(fail bool) ([]int, error) {
		if fail {
			return nil, &treeError{}
		}
		return []int{1, 2}, nil
	}
	assert.Equal(t, []int{1, 2}, Must1(f(false)))
	assert.Panics(t, func() {
		Must1(f(true))
	})
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 5432, OrDefault(0, 5432))
	assert.Equal(t, 6543, OrDefault(6543, 5432))
	assert.Equal(t, "forum", OrDefault("", "forum"))
}

func TestRecoverPanicAsError(t *testing.T) {
	sentinel := errors.New("tree exploded")
	f := func() (err error) {
		defer RecoverPanicAsError(&err)
		panic(sentinel)
	}
	err := f()
	assert.ErrorIs(t, err, sentinel)
	var oopsErr *oops.Error
	assert.True(t, errors.As(err, &oopsErr))

	g := func() (err error) {
		defer RecoverPanicAsError(&err)
		panic("not an error")
	}
	assert.Contains(t, g().Error(), "not an error")
}
