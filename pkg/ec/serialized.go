package ec

import "sync"

// Locked serializes every transfer of the wrapped Access behind one mutex
type Locked struct {
	mu    sync.Mutex
	inner Access
}

// Serialized wraps a so that byte transfers and Do blocks never interleave
func Serialized(a Access) *Locked {
	if l, ok := a.(*Locked); ok {
		return l
	}
	return &Locked{inner: a}
}

func (l *Locked) Read(addr uint8) (byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Read(addr)
}

func (l *Locked) Write(addr uint8, v byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Write(addr, v)
}

// Available does not take the lock; availability is fixed at construction
func (l *Locked) Available() bool {
	return l.inner.Available()
}

func (l *Locked) Name() string {
	return Name(l.inner)
}

// Do runs fn with exclusive use of the wrapped Access.
// fn must use the Access it is given, not l, or it will deadlock.
func (l *Locked) Do(fn func(Access)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.inner)
}

// Atomically runs fn as one exclusive sequence when a is serialized,
// and directly otherwise.
func Atomically(a Access, fn func(Access)) {
	if l, ok := a.(interface{ Do(func(Access)) }); ok {
		l.Do(fn)
		return
	}
	fn(a)
}
