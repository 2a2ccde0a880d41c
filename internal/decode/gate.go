package decode

import (
	"context"
	"sync"
)

// Gate bounds how many decodes materialize pixels at once.
type Gate interface {
	Acquire(ctx context.Context) error
	Release()
}

type semaphoreGate struct {
	slots chan struct{}
}

// NewGate returns a gate that admits a single holder.
func NewGate() Gate {
	return &semaphoreGate{slots: make(chan struct{}, 1)}
}

// Acquire blocks until the gate is free or ctx is done. Waiters are not
// served in any particular order.
func (g *semaphoreGate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *semaphoreGate) Release() {
	<-g.slots
}

var (
	defaultGateOnce sync.Once
	defaultGate     Gate
)

// DefaultGate is the process-wide decode gate shared by every Decoder that
// is not given its own.
func DefaultGate() Gate {
	defaultGateOnce.Do(func() {
		defaultGate = NewGate()
	})
	return defaultGate
}

// NopGate never blocks.
type NopGate struct{}

func (NopGate) Acquire(ctx context.Context) error { return ctx.Err() }
func (NopGate) Release()                          {}
