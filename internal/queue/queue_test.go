package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushPop(t *testing.T) {
	q := New(10)

	assert.True(t, q.IsEmpty())
	assert.Equal(t, "", q.Pop())

	q.Push("/fs/a")
	q.Push("/fs/b")
	q.Push("/fs/c")

	assert.Equal(t, 3, q.Size())
	assert.Equal(t, "/fs/a", q.Pop())
	assert.Equal(t, "/fs/b", q.Pop())
	assert.Equal(t, "/fs/c", q.Pop())
	assert.True(t, q.IsEmpty())
}

func TestPushDedup(t *testing.T) {
	q := New(10)

	q.Push("/fs/a")
	q.Push("/fs/b")
	q.Push("/fs/a")

	// re-push moves the path to the tail
	assert.Equal(t, 2, q.Size())
	assert.Equal(t, []string{"/fs/b", "/fs/a"}, q.PopN(10))
}

func TestOverflowDropsOldest(t *testing.T) {
	q := New(5)

	for i := 0; i < 8; i++ {
		q.Push(fmt.Sprintf("/fs/%d", i))
	}

	assert.Equal(t, 5, q.Size())
	assert.Equal(t, int64(3), q.OverflowCount())
	assert.Equal(t, []string{"/fs/3", "/fs/4", "/fs/5", "/fs/6", "/fs/7"}, q.PopN(5))

	q.ResetOverflowCount()
	assert.Equal(t, int64(0), q.OverflowCount())
}

func TestChurnTrace(t *testing.T) {
	// capacity clamps up to MinSize (5), so use exactly MinSize entries to
	// exercise the documented trace with capacity 5 instead of 3
	q := New(5)

	q.Push("a")
	q.Push("b")
	q.Push("c")
	q.Push("d")
	q.Push("e")
	assert.Equal(t, 5, q.Size())

	q.Push("a") // re-push: no overflow, a moves to tail
	assert.Equal(t, int64(0), q.OverflowCount())

	q.Push("f") // full: b dropped
	q.Push("g") // full: c dropped

	assert.Equal(t, int64(2), q.OverflowCount())
	assert.Equal(t, []string{"d", "e", "a", "f", "g"}, q.PopN(5))
}

func TestRemove(t *testing.T) {
	q := New(10)

	q.Push("/fs/a")
	q.Push("/fs/b")
	q.Remove("/fs/a")
	q.Remove("/fs/missing")

	assert.Equal(t, 1, q.Size())
	assert.Equal(t, "/fs/b", q.Pop())
}

func TestClear(t *testing.T) {
	q := New(10)

	q.Push("/fs/a")
	q.Push("/fs/b")
	q.Clear()

	assert.True(t, q.IsEmpty())
}

func TestPopN(t *testing.T) {
	q := New(10)

	q.Push("/fs/a")
	q.Push("/fs/b")

	assert.Nil(t, q.PopN(0))
	assert.Equal(t, []string{"/fs/a", "/fs/b"}, q.PopN(5))
	assert.Nil(t, q.PopN(5))
}

func TestMinSizeClamp(t *testing.T) {
	q := New(1)

	for i := 0; i < MinSize; i++ {
		q.Push(fmt.Sprintf("/fs/%d", i))
	}

	assert.Equal(t, MinSize, q.Size())
	assert.Equal(t, int64(0), q.OverflowCount())
}

func TestConcurrentProducers(t *testing.T) {
	q := New(1000)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(fmt.Sprintf("/fs/%d/%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 400, q.Size())

	seen := map[string]bool{}
	for _, p := range q.PopN(400) {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}
