// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"sync"
	"sync/atomic"
)

// The mode filters are read on every logging statement and written rarely
// (flag parsing, tests), so readers load an immutable map through an
// atomic.Value and writers swap in a modified copy under a mutex.
type tracePointMap map[string]struct{}
type fileModeMap map[string]Mode

var gstate struct {
	gmode atomic.Value // type: Mode

	mu          sync.Mutex   // serializes writers of the maps below
	tracePoints atomic.Value // type: tracePointMap
	fileModes   atomic.Value // type: fileModeMap
}

func init() {
	gstate.gmode.Store(DefaultMode)
	gstate.tracePoints.Store(make(tracePointMap))
	gstate.fileModes.Store(make(fileModeMap))
}

// SetGlobalLogMode sets the global log mode. Logging outside what's
// included in the mode is suppressed, unless overridden per file.
func SetGlobalLogMode(m Mode) {
	gstate.gmode.Store(m)
}

// GetGlobalLogMode gets the currently set global log mode.
func GetGlobalLogMode() Mode {
	return gstate.gmode.Load().(Mode)
}

func updateTracePoints(fn func(tracePointMap)) {
	gstate.mu.Lock()
	defer gstate.mu.Unlock()

	cur := gstate.tracePoints.Load().(tracePointMap)
	next := make(tracePointMap, len(cur)+1)
	for tp := range cur {
		next[tp] = struct{}{}
	}
	fn(next)
	gstate.tracePoints.Store(next)
}

func updateFileModes(fn func(fileModeMap)) {
	gstate.mu.Lock()
	defer gstate.mu.Unlock()

	cur := gstate.fileModes.Load().(fileModeMap)
	next := make(fileModeMap, len(cur)+1)
	for fname, m := range cur {
		next[fname] = m
	}
	fn(next)
	gstate.fileModes.Store(next)
}

// SetTracePoint enables the tracepoint tp, of the form fname.go:line. When
// the logging statement at that position executes, regardless of its mode,
// a backtrace is emitted.
func SetTracePoint(tp string) {
	updateTracePoints(func(m tracePointMap) { m[tp] = struct{}{} })
}

// ResetTracePoint disables a tracepoint previously set with SetTracePoint.
func ResetTracePoint(tp string) {
	updateTracePoints(func(m tracePointMap) { delete(m, tp) })
}

// GetTracePoint checks if the corresponding tracepoint is enabled.
func GetTracePoint(tp string) bool {
	_, ok := gstate.tracePoints.Load().(tracePointMap)[tp]
	return ok
}

// SetFileLogMode overrides the global mode for logging statements within
// the named file.
func SetFileLogMode(fname string, m Mode) {
	updateFileModes(func(fm fileModeMap) { fm[fname] = m })
}

// GetFileLogMode gets the log mode override for the specified file, if any.
func GetFileLogMode(fname string) (m Mode, ok bool) {
	m, ok = gstate.fileModes.Load().(fileModeMap)[fname]
	return m, ok
}

// ResetFileLogMode removes the override for fname; its statements are
// filtered by the global mode again.
func ResetFileLogMode(fname string) {
	updateFileModes(func(fm fileModeMap) { delete(fm, fname) })
}
