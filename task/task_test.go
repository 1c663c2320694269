// task/task_test.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flightctl/flightctl/command"
)

func TestHasHigherPriority(t *testing.T) {
	tests := []struct {
		a, b     TaskType
		expected bool
	}{
		{FirstOrderEmergency, SecondOrderEmergency, true},
		{FirstOrderEmergency, Normal, true},
		{SecondOrderEmergency, Normal, true},
		{Normal, Normal, false},
		{FirstOrderEmergency, FirstOrderEmergency, false},
		{Normal, FirstOrderEmergency, false},
		{SecondOrderEmergency, FirstOrderEmergency, false},
	}
	for _, test := range tests {
		if r := test.a.HasHigherPriority(test.b); r != test.expected {
			t.Errorf("%s over %s: expected %v, got %v", test.a, test.b, test.expected, r)
		}
	}
}

func TestNewCopiesCommands(t *testing.T) {
	cmds := []command.Command{command.Func(func(context.Context) error { return nil })}
	tk := New("t", Normal, cmds...)
	cmds[0] = nil
	if tk.Commands()[0] == nil {
		t.Errorf("Expected task to keep its own copy of the commands")
	}
}

// block returns a command that runs until cancelled, closing started
// when it begins and recording its exit in exited.
func block(started chan<- struct{}, exited *atomic.Bool) command.Command {
	return command.Func(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		exited.Store(true)
		return ctx.Err()
	})
}

func TestExecutorAcceptsWhenIdle(t *testing.T) {
	e := NewExecutor("test", nil)
	defer e.Close()

	var ran atomic.Int32
	inc := command.Func(func(context.Context) error { ran.Add(1); return nil })
	if s := e.Submit(New("a", Normal, inc, inc, inc)); s != Accepted {
		t.Fatalf("Expected Accepted, got %s", s)
	}
	if err := e.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ran.Load() != 3 {
		t.Errorf("Expected 3 commands run, got %d", ran.Load())
	}
	if _, ok := e.Running(); ok {
		t.Errorf("Expected executor to be idle")
	}

	// Once idle, any priority is accepted.
	if s := e.Submit(New("b", Normal, inc)); s != Accepted {
		t.Errorf("Expected Accepted, got %s", s)
	}
}

func TestExecutorPreemption(t *testing.T) {
	e := NewExecutor("test", nil)
	defer e.Close()

	started := make(chan struct{})
	var exited atomic.Bool
	var afterBlock atomic.Bool
	normal := New("normal", Normal, block(started, &exited),
		command.Func(func(context.Context) error { afterBlock.Store(true); return nil }))

	if s := e.Submit(normal); s != Accepted {
		t.Fatalf("Expected Accepted, got %s", s)
	}
	<-started

	if s := e.Submit(New("other", Normal)); s != Rejected {
		t.Errorf("Expected equal priority to be Rejected, got %s", s)
	}
	if tk, ok := e.Running(); !ok || tk != normal {
		t.Errorf("Expected normal task still running")
	}

	var sawExit atomic.Bool
	emergencyStarted := make(chan struct{})
	var emergencyExited atomic.Bool
	emergency := New("emergency", SecondOrderEmergency,
		command.Func(func(context.Context) error {
			sawExit.Store(exited.Load())
			return nil
		}),
		block(emergencyStarted, &emergencyExited))

	if s := e.Submit(emergency); s != Accepted {
		t.Fatalf("Expected Accepted, got %s", s)
	}
	if !exited.Load() {
		t.Errorf("Expected Submit to wait for the preempted task")
	}
	<-emergencyStarted
	if !sawExit.Load() {
		t.Errorf("Expected preempted task to have returned before the new one started")
	}
	if afterBlock.Load() {
		t.Errorf("Expected the rest of the preempted task to be skipped")
	}

	if s := e.Submit(New("normal", Normal)); s != Rejected {
		t.Errorf("Expected lower priority to be Rejected, got %s", s)
	}
	if s := e.Submit(New("first", FirstOrderEmergency)); s != Accepted {
		t.Errorf("Expected first-order emergency to be Accepted, got %s", s)
	}
	if !emergencyExited.Load() {
		t.Errorf("Expected second-order emergency to have been cancelled")
	}
}

func TestExecutorCommandError(t *testing.T) {
	e := NewExecutor("test", nil)
	defer e.Close()

	var ran atomic.Bool
	tk := New("failing", Normal,
		command.Func(func(context.Context) error { return errors.New("boom") }),
		command.Func(func(context.Context) error { ran.Store(true); return nil }))
	e.Submit(tk)
	if err := e.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ran.Load() {
		t.Errorf("Expected task to stop at the failing command")
	}
}

func TestExecutorSerializesTasks(t *testing.T) {
	e := NewExecutor("test", nil)
	defer e.Close()

	var active, maxActive atomic.Int32
	cmd := command.Func(func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
			return nil
		}
	})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Submit(New("t", TaskType(i%3), cmd))
		}()
	}
	wg.Wait()
	if err := e.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if maxActive.Load() > 1 {
		t.Errorf("Expected at most one command running at a time, got %d", maxActive.Load())
	}
}

func TestExecutorClose(t *testing.T) {
	e := NewExecutor("test", nil)
	started := make(chan struct{})
	var exited atomic.Bool
	e.Submit(New("a", Normal, block(started, &exited)))
	<-started

	e.Close()
	if !exited.Load() {
		t.Errorf("Expected Close to wait for the running task")
	}
	if s := e.Submit(New("b", FirstOrderEmergency)); s != Rejected {
		t.Errorf("Expected Rejected after Close, got %s", s)
	}
}

func TestExecutorWaitCancelled(t *testing.T) {
	e := NewExecutor("test", nil)
	defer e.Close()
	started := make(chan struct{})
	var exited atomic.Bool
	e.Submit(New("a", Normal, block(started, &exited)))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}
