package pool

import (
	"fmt"
	"sync"
)

// Resettable values are reset before they go back into the pool
type Resettable interface {
	Reset()
}

// Pool is a typed sync.Pool
type Pool[T any] struct {
	pool sync.Pool
}

func New[T any](newFn func() T) (*Pool[T], error) {
	if newFn == nil {
		return nil, fmt.Errorf("pool: constructor must not be nil")
	}
	if any(newFn()) == nil {
		return nil, fmt.Errorf("pool: constructor returned nil")
	}

	p := &Pool[T]{}
	p.pool.New = func() any { return newFn() }
	return p, nil
}

// MustNew is New for package level pools with a known good constructor
func MustNew[T any](newFn func() T) *Pool[T] {
	p, err := New(newFn)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pool[T]) Get() T {
	//nolint:forcetypeassert // New always stores a T
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.pool.Put(v)
}
