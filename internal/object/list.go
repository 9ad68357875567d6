package object

// List is a persistent singly-linked list. Cons shares its tail, so a
// match on cons hands out the existing tail without copying.
type List struct {
	head Object
	tail *List
	size int
}

var EMPTY_LIST = &List{}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string  { return inspectSeq("list", l.Items()) }

func (l *List) Len() int { return l.size }

func (l *List) IsEmpty() bool { return l.size == 0 }

// Head and Tail panic on an empty list; callers check IsEmpty first.
func (l *List) Head() Object { return l.head }
func (l *List) Tail() *List  { return l.tail }

func Cons(head Object, tail *List) *List {
	if tail == nil {
		tail = EMPTY_LIST
	}
	return &List{head: head, tail: tail, size: tail.size + 1}
}

func NewList(items ...Object) *List {
	out := EMPTY_LIST
	for i := len(items) - 1; i >= 0; i-- {
		out = Cons(items[i], out)
	}
	return out
}

// Items copies the elements into a slice.
func (l *List) Items() []Object {
	out := make([]Object, 0, l.size)
	for n := l; n.size > 0; n = n.tail {
		out = append(out, n.head)
	}
	return out
}

func (l *List) Get(i int) (Object, bool) {
	if i < 0 || i >= l.size {
		return nil, false
	}
	n := l
	for ; i > 0; i-- {
		n = n.tail
	}
	return n.head, true
}

// Concat copies l and shares other as the new tail.
func (l *List) Concat(other *List) *List {
	if l.size == 0 {
		return other
	}
	items := l.Items()
	out := other
	for i := len(items) - 1; i >= 0; i-- {
		out = Cons(items[i], out)
	}
	return out
}
