// util/sync.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"log/slog"
	gomath "math"
	"runtime"
	"sync"
	"time"

	"github.com/flightctl/flightctl/log"

	"github.com/shirou/gopsutil/cpu"
)

///////////////////////////////////////////////////////////////////////////
// LoggingMutex

var heldMutexesMutex sync.Mutex
var heldMutexes map[*LoggingMutex]interface{} = make(map[*LoggingMutex]interface{})

// LoggingMutex is a sync.Mutex that records where it was acquired and
// reports, with system load, when a lock stalls. It guards state shared
// between the control loops and the periodic sweepers.
type LoggingMutex struct {
	sync.Mutex
	Name     string
	acq      time.Time
	acqStack []log.StackFrame
}

// StallTimeout is how long Lock waits before reporting a stalled
// acquisition. The race detector slows everything down enough that the
// usual limit produces spurious reports.
var StallTimeout = func() time.Duration {
	if log.RaceEnabled {
		return 20 * time.Second
	}
	return 5 * time.Second
}()

func (l *LoggingMutex) Lock(lg *log.Logger) {
	tryTime := time.Now()

	if !l.Mutex.TryLock() {
		locked := make(chan struct{}, 1)

		go func() {
			l.Mutex.Lock()
			locked <- struct{}{}
		}()

		select {
		case <-locked:

		case <-time.After(StallTimeout):
			heldMutexesMutex.Lock()
			lg.Error("unable to acquire mutex", slog.Any("mutex", l), slog.Duration("timeout", StallTimeout),
				slog.Any("held_mutexes", heldMutexes))
			heldMutexesMutex.Unlock()

			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			if usage, err := cpu.Percent(time.Second, false); err == nil && len(usage) > 0 {
				lg.Errorf("CPU: %d%% alloc: %dMB sys mem: %dMB goroutines: %d",
					int(gomath.Round(usage[0])), m.Alloc/(1024*1024), m.Sys/(1024*1024), runtime.NumGoroutine())
			}

			<-locked
		}
	}

	heldMutexesMutex.Lock()
	heldMutexes[l] = nil
	heldMutexesMutex.Unlock()

	l.acq = time.Now()
	l.acqStack = log.Callstack(l.acqStack)
	if w := l.acq.Sub(tryTime); w > 100*time.Millisecond {
		lg.Warn("long wait to acquire mutex", slog.Any("mutex", l), slog.Duration("wait", w))
	}
}

func (l *LoggingMutex) Unlock(lg *log.Logger) {
	heldMutexesMutex.Lock()
	defer heldMutexesMutex.Unlock()

	if _, ok := heldMutexes[l]; !ok {
		lg.Error("mutex not held", slog.Any("mutex", l))
	}
	delete(heldMutexes, l)

	if d := time.Since(l.acq); d > 100*time.Millisecond {
		lg.Warn("mutex held for a long time", slog.Any("mutex", l), slog.Duration("held", d))
	}

	l.acq = time.Time{}
	l.acqStack = nil
	l.Mutex.Unlock()
}

func (l *LoggingMutex) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", l.Name),
		slog.Time("acq", l.acq),
		slog.Duration("held", time.Since(l.acq)),
		slog.Any("acq_stack", l.acqStack))
}
