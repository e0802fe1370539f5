package application

import "sync"

// QuestionLocks serializes mutating use cases per question instance. Every
// command acquires the question's lock for its full duration, which gives
// the total per-instance call ordering the settlement math relies on and
// makes reentrant token-ledger callbacks wait behind the original call.
type QuestionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewQuestionLocks() *QuestionLocks {
	return &QuestionLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the named question and returns the release function.
func (l *QuestionLocks) Acquire(questionID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[questionID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[questionID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
