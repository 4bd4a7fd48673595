package httpd

import "sync"

// Locker serializes acquisitions: a new session must not begin
// configuring channels while a previous one still holds them open.
type Locker struct {
	mu     sync.Mutex
	locked bool
}

// TryAcquire takes the lock if it is free and reports success
func (l *Locker) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return false
	}
	l.locked = true
	return true
}

// Release frees the lock
func (l *Locker) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = false
}

// Locked returns true while an acquisition is running
func (l *Locker) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}
