package list

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushFrontAndBackOnSingleElement(t *testing.T) {
	l := New[string]()
	e := l.PushFront("a")
	require.NotNil(t, e)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, "a", l.Back().Value())
}

func TestPushFrontOrdersMostRecentFirst(t *testing.T) {
	l := New[int]()
	l.PushFront(1)
	l.PushFront(2)
	l.PushFront(3)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 1, l.Back().Value())
}

func TestMoveToFrontMakesElementMostRecentlyUsed(t *testing.T) {
	l := New[int]()
	e1 := l.PushFront(1)
	l.PushFront(2)
	l.PushFront(3)

	l.MoveToFront(e1)
	assert.Equal(t, 2, l.Back().Value())
}

func TestMoveToFrontOnAlreadyFrontIsNoop(t *testing.T) {
	l := New[int]()
	l.PushFront(1)
	front := l.PushFront(2)
	l.MoveToFront(front)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 1, l.Back().Value())
}

func TestRemoveDetachesElement(t *testing.T) {
	l := New[int]()
	e1 := l.PushFront(1)
	l.PushFront(2)
	l.Remove(e1)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 2, l.Back().Value())
}

func TestRemoveNilIsNoop(t *testing.T) {
	l := New[int]()
	l.PushFront(1)
	l.Remove(nil)
	assert.Equal(t, 1, l.Len())
}

func TestRemoveFromDifferentListIsNoop(t *testing.T) {
	l1 := New[int]()
	l2 := New[int]()
	e := l1.PushFront(1)
	l2.PushFront(99)

	l2.Remove(e)
	assert.Equal(t, 1, l1.Len())
	assert.Equal(t, 1, l2.Len())
}

func TestBackOnEmptyListReturnsNil(t *testing.T) {
	l := New[int]()
	assert.Nil(t, l.Back())
}

func TestRemoveLastElementEmptiesList(t *testing.T) {
	l := New[int]()
	e := l.PushFront(1)
	l.Remove(e)
	assert.Equal(t, 0, l.Len())
	assert.Nil(t, l.Back())
}
