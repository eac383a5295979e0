package forms

import "sync"

// InFlight tracks submissions in progress across requests, keyed by form
// scope. The server rebuilds forms from each post, so this is what turns a
// double click into ErrBusy instead of a second write.
type InFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{keys: make(map[string]struct{})}
}

// Acquire claims key. The returned release must be called once the
// submission settles.
func (f *InFlight) Acquire(key string) (release func(), err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.keys[key]; busy {
		return nil, ErrBusy
	}
	f.keys[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.keys, key)
			f.mu.Unlock()
		})
	}, nil
}

// EntryKey scopes an entry submission.
func EntryKey(mode, date string) string { return "entry|" + mode + "|" + date }

// EditKey scopes an edit submission.
func EditKey(mode, group, date string) string { return "edit|" + mode + "|" + group + "|" + date }
