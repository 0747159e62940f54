package app

import "sync"

// lazy builds a component on first use and remembers the outcome, so a failed
// initialization keeps failing with the same error.
type lazy[T any] struct {
	once sync.Once
	val  T
	err  error
}

func (l *lazy[T]) get(build func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.val, l.err = build()
	})
	return l.val, l.err
}

// must is get for builders that cannot fail.
func (l *lazy[T]) must(build func() T) T {
	v, _ := l.get(func() (T, error) { return build(), nil })
	return v
}

// peek returns the built value, or the zero value when get never ran or failed.
func (l *lazy[T]) peek() T {
	var zero T
	if l.err != nil {
		return zero
	}
	return l.val
}
