// internal/sched/queue.go

package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// taskQueue keeps pending tasks ordered max-priority-first, FIFO among equal
// priorities. It has no locking of its own; the engine guards it with its mutex.
type taskQueue struct {
	rbt *redblacktree.Tree // keyed by nodeKey, leftmost node is served next
}

func newTaskQueue() *taskQueue {
	return &taskQueue{rbt: redblacktree.NewWith(cmp)}
}

// Insert adds t in O(log n).
func (q *taskQueue) Insert(t *Task) {
	q.rbt.Put(keyOf(t), t)
}

// Peek returns the next task to serve without removing it, or nil when empty.
func (q *taskQueue) Peek() *Task {
	node := q.rbt.Left()
	if node == nil {
		return nil
	}
	return node.Value.(*Task)
}

// Pop removes and returns the next task to serve, or nil when empty.
func (q *taskQueue) Pop() *Task {
	node := q.rbt.Left()
	if node == nil {
		return nil
	}
	t := node.Value.(*Task)
	q.rbt.Remove(node.Key)
	return t
}

// Drain empties the queue and returns its tasks in serving order.
func (q *taskQueue) Drain() []*Task {
	out := make([]*Task, 0, q.rbt.Size())
	for _, v := range q.rbt.Values() {
		out = append(out, v.(*Task))
	}
	q.rbt.Clear()
	return out
}

func (q *taskQueue) Len() int    { return q.rbt.Size() }
func (q *taskQueue) Empty() bool { return q.rbt.Empty() }

// nodeKey is used as a key in the red-black tree.
type nodeKey struct {
	priority uint32
	id       TaskID
}

func keyOf(t *Task) nodeKey {
	return nodeKey{priority: t.priority, id: t.id}
}

// cmp orders keys so that the highest priority sorts leftmost and, within a
// priority, the lowest id does.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.priority > kb.priority:
		return -1
	case ka.priority < kb.priority:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}
