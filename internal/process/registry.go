package process

import (
	"context"
	"fmt"
	"sync"
)

type waiter chan string

type mailbox struct {
	messages []string
	waiters  []waiter
	exited   bool
}

// Registry owns pid allocation and the mailboxes of one run. Sends and
// receives are FIFO; a parked receiver is always served before a message
// is buffered.
type Registry struct {
	mu        sync.Mutex
	nextPid   Pid
	mailboxes map[Pid]*mailbox
	table     *Table

	// live counts registered processes that have not exited; blocked
	// counts receivers parked on an empty mailbox.
	live    int
	blocked int
	changed chan struct{}
}

func NewRegistry() (*Registry, error) {
	table, err := NewTable()
	if err != nil {
		return nil, err
	}
	return &Registry{
		nextPid:   1,
		mailboxes: make(map[Pid]*mailbox),
		table:     table,
		changed:   make(chan struct{}),
	}, nil
}

// Table exposes the process states of the run.
func (r *Registry) Table() *Table {
	return r.table
}

func (r *Registry) NextPid() Pid {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid := r.nextPid
	r.nextPid++
	return pid
}

// Register creates an empty mailbox for pid. parent is zero for the root
// process.
func (r *Registry) Register(pid, parent Pid, function string) error {
	r.mu.Lock()
	r.mailboxes[pid] = &mailbox{}
	r.live++
	r.notify()
	r.mu.Unlock()
	return r.table.insert(Info{Pid: pid, Parent: parent, Function: function, State: Registered})
}

// Spawn allocates and registers a pid in one step.
func (r *Registry) Spawn(parent Pid, function string) (Pid, error) {
	pid := r.NextPid()
	if err := r.Register(pid, parent, function); err != nil {
		return 0, err
	}
	return pid, nil
}

// Send delivers msg to the oldest receiver parked on to, or buffers it.
// It returns false only when to was never registered.
func (r *Registry) Send(to Pid, msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	mb, ok := r.mailboxes[to]
	if !ok {
		return false
	}
	if len(mb.waiters) > 0 {
		w := mb.waiters[0]
		mb.waiters = mb.waiters[1:]
		r.blocked--
		r.notify()
		w <- msg
		return true
	}
	mb.messages = append(mb.messages, msg)
	return true
}

// TryRecv pops the oldest buffered message without blocking.
func (r *Registry) TryRecv(pid Pid) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mb, ok := r.mailboxes[pid]
	if !ok {
		return "", false, fmt.Errorf("Process %d not registered", pid)
	}
	if len(mb.messages) == 0 {
		return "", false, nil
	}
	msg := mb.messages[0]
	mb.messages = mb.messages[1:]
	return msg, true, nil
}

// Recv returns the oldest buffered message or parks until one is sent.
// A cancelled context unparks the receiver with ctx.Err().
func (r *Registry) Recv(ctx context.Context, pid Pid) (string, error) {
	r.mu.Lock()
	mb, ok := r.mailboxes[pid]
	if !ok {
		r.mu.Unlock()
		return "", fmt.Errorf("Process %d not registered", pid)
	}
	if len(mb.messages) > 0 {
		msg := mb.messages[0]
		mb.messages = mb.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	w := make(waiter, 1)
	mb.waiters = append(mb.waiters, w)
	r.blocked++
	r.notify()
	r.mu.Unlock()

	select {
	case msg := <-w:
		return msg, nil
	case <-ctx.Done():
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, pending := range mb.waiters {
		if pending == w {
			mb.waiters = append(mb.waiters[:i], mb.waiters[i+1:]...)
			r.blocked--
			r.notify()
			return "", ctx.Err()
		}
	}
	// A sender claimed this waiter before it was withdrawn.
	return <-w, nil
}

// Pending reports the buffered message count and parked receiver count
// of pid.
func (r *Registry) Pending(pid Pid) (messages, waiters int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mb, ok := r.mailboxes[pid]; ok {
		return len(mb.messages), len(mb.waiters)
	}
	return 0, 0
}

// Exit marks pid as finished. Its mailbox stays so late sends still
// succeed.
func (r *Registry) Exit(pid Pid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mb, ok := r.mailboxes[pid]; ok && !mb.exited {
		mb.exited = true
		r.live--
		r.notify()
	}
}

// AwaitIdle blocks until no process can make progress on its own: every
// live process is parked on an empty mailbox, or none is left.
func (r *Registry) AwaitIdle(ctx context.Context) error {
	for {
		r.mu.Lock()
		idle := r.live == r.blocked
		changed := r.changed
		r.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notify wakes AwaitIdle callers. r.mu must be held.
func (r *Registry) notify() {
	close(r.changed)
	r.changed = make(chan struct{})
}
