// Package scheduler runs recurring tasks for game sessions.
//
// Ticker drives tasks from the wall clock. Manual drives them from a virtual
// clock moved forward with Advance, so tests can simulate minutes of play
// without sleeping.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Task is a handle on a recurring task. Stop is idempotent.
type Task interface {
	Stop()
}

// Scheduler registers task to run every interval until stopped.
type Scheduler interface {
	Every(interval time.Duration, task func()) Task
}

// Ticker is the wall-clock Scheduler. Each task gets its own goroutine
// and ends when stopped or when the Ticker's context is done.
type Ticker struct {
	ctx context.Context
}

// NewTicker returns a Ticker whose tasks all end with ctx.
func NewTicker(ctx context.Context) *Ticker {
	return &Ticker{ctx: ctx}
}

type tickerTask struct {
	stopChan chan struct{}
	once     sync.Once
	done     chan struct{}
}

// Every starts task on a time.Ticker with the given interval.
func (t *Ticker) Every(interval time.Duration, task func()) Task {
	tt := &tickerTask{stopChan: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(tt.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.ctx.Done():
				return
			case <-tt.stopChan:
				return
			case <-ticker.C:
				task()
			}
		}
	}()
	return tt
}

// Stop ends the task and waits for an in-flight run to finish.
// It must not be called from inside the task.
func (tt *tickerTask) Stop() {
	tt.once.Do(func() { close(tt.stopChan) })
	<-tt.done
}
