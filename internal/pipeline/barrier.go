// Package pipeline implements the six-pass ingestion pipeline itself:
// Pass A through F, the per-source orchestrator that drives them under
// a barrier, and the worker pool / batch driver that fans a directory of
// PDFs out across ProcessSource calls. This is the core the rest of the
// repo's packages exist to serve.
package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// Barrier is the process-wide per-source mutex map: one single-token
// channel per source_path, guarded by one coarse mutex, matching spec
// §4.1/§5. It prevents two workers from racing on the same input file;
// unique sources never contend. A channel-backed token (rather than
// sync.Mutex) lets Acquire race the lock against a timeout with a plain
// select, so a caller that gives up never leaves a stray goroutine
// blocked trying to lock a mutex no one will release in time.
type Barrier struct {
	mu     sync.Mutex
	tokens map[string]chan struct{}
}

// NewBarrier constructs an empty barrier map. One Barrier is shared by
// every worker in a batch run.
func NewBarrier() *Barrier {
	return &Barrier{tokens: map[string]chan struct{}{}}
}

func (b *Barrier) tokenFor(sourcePath string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.tokens[sourcePath]
	if !ok {
		ch = make(chan struct{}, 1)
		ch <- struct{}{}
		b.tokens[sourcePath] = ch
	}
	return ch
}

// Acquire blocks until the per-source token for sourcePath is held or
// timeout elapses, whichever comes first. The returned release func must
// be called exactly once on success.
func (b *Barrier) Acquire(sourcePath string, timeout time.Duration) (release func(), err error) {
	ch := b.tokenFor(sourcePath)

	select {
	case <-ch:
		return func() { ch <- struct{}{} }, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("Failed to acquire lock for %s within %s", sourcePath, timeout)
	}
}
