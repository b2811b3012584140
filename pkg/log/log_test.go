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
	"bytes"
	"flag"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
)

func expectMatch(t *testing.T, regex string, buffer *bytes.Buffer) {
	t.Helper()
	match, err := regexp.Match(regex, buffer.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !match {
		t.Errorf("expected pattern: \"%s\", got: %s", regex, buffer.String())
	}
	buffer.Reset()
}

func TestSetGetTracePoint(t *testing.T) {
	tp := fmt.Sprintf("%s:%d", "t.go", 42)
	if GetTracePoint(tp) {
		t.Errorf("didn't expect tracepoint %s to be enabled", tp)
	}

	SetTracePoint(tp)
	if !GetTracePoint(tp) {
		t.Errorf("expected tracepoint %s to be enabled", tp)
	}
	ResetTracePoint(tp)
	if GetTracePoint(tp) {
		t.Errorf("expected tracepoint %s to be reset", tp)
	}
}

func TestInfoLog(t *testing.T) {
	SetGlobalLogMode(InfoMode)
	defer SetGlobalLogMode(DefaultMode)

	buffer := new(bytes.Buffer)
	logger := New(Writer(buffer))

	logger.Info("info")
	expectMatch(t, "^I.*: info", buffer)

	logger.Infof("infof")
	expectMatch(t, "^I.*: infof", buffer)

	logger.Infof("%t %d %s", true, 1, "infof")
	expectMatch(t, "^I.*: true 1 infof", buffer)
}

func TestDebugModeEnableDisable(t *testing.T) {
	SetGlobalLogMode(InfoMode)
	defer SetGlobalLogMode(DefaultMode)

	buffer := new(bytes.Buffer)
	logger := New(Writer(buffer))

	logger.Debug("debug")
	logger.Debugf("%t %d %s", true, 1, "debugf")
	expectMatch(t, "^$", buffer)

	SetGlobalLogMode(DebugMode)
	logger.Debug("debug")
	expectMatch(t, "^D.*: debug", buffer)
}

func TestFileLogModeOverride(t *testing.T) {
	SetGlobalLogMode(ErrorMode)
	defer SetGlobalLogMode(DefaultMode)

	buffer := new(bytes.Buffer)
	logger := New(Writer(buffer))

	logger.Warn("suppressed")
	expectMatch(t, "^$", buffer)

	SetFileLogMode("log_test.go", WarnMode)
	defer ResetFileLogMode("log_test.go")

	logger.Warn("warn")
	expectMatch(t, "^W.*log_test.go:[0-9]+\\] warn", buffer)

	// The override replaces the global mode for this file.
	logger.Error("error")
	expectMatch(t, "^$", buffer)
}

func TestEnableTracePoint(t *testing.T) {
	SetGlobalLogMode(DisabledMode)
	defer SetGlobalLogMode(DefaultMode)

	buffer := new(bytes.Buffer)
	logger := New(Writer(buffer))

	// The tracepoint is the logger.Info statement four lines below the call
	// to caller; keep these statements together.
	file, line := caller(0)
	tp := fmt.Sprintf("%s:%d", filepath.Base(file), line+4)
	SetTracePoint(tp)
	defer ResetTracePoint(tp)
	logger.Info()

	if buffer.Len() == 0 {
		t.Fatal("expected stack trace to be populated, found empty buffer instead")
	}

	first, err := buffer.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if match, _ := regexp.MatchString(`^goroutine \d+ \[running\]:`, first); !match {
		t.Errorf("expected goroutine header as first line, got: %s", first)
	}

	second, err := buffer.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if match, _ := regexp.MatchString(`^github.com/kurafs/netfs/pkg/log.TestEnableTracePoint`, second); !match {
		t.Errorf("expected test function as innermost frame, got: %s", second)
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Mode
	}{
		{"info", InfoMode},
		{"info|error", InfoMode | ErrorMode},
		{"debug|warn", DebugMode | WarnMode},
		{"disabled", DisabledMode},
	} {
		got, err := ParseMode(tc.in)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if tc.want != DisabledMode {
			if rt, _ := ParseMode(got.String()); rt != got {
				t.Errorf("ParseMode(%q.String()) = %v, want %v", got, rt, got)
			}
		}
	}

	if _, err := ParseMode("verbose"); err == nil {
		t.Error("expected error for unrecognized mode")
	}
}

func TestRegisterFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	args := []string{
		"-log-mode", "warn|error",
		"-log-filter", "upload.go:debug,server.go:info",
		"-log-backtrace-at", "server.go:42",
		"-suppress-stderr",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}

	if !f.Mode.set || f.Mode.m != WarnMode|ErrorMode {
		t.Errorf("expected -log-mode warn|error, got %v", f.Mode.m)
	}
	if len(f.Filter) != 2 || f.Filter[0].fname != "upload.go" || f.Filter[0].fmode != DebugMode {
		t.Errorf("unexpected -log-filter: %v", f.Filter.String())
	}
	if len(f.Backtrace) != 1 || f.Backtrace[0] != "server.go:42" {
		t.Errorf("unexpected -log-backtrace-at: %v", f.Backtrace)
	}
	if !f.SuppressStderr {
		t.Error("expected -suppress-stderr to be set")
	}

	if err := fs.Parse([]string{"-log-filter", "not-a-go-file:info"}); err == nil {
		t.Error("expected error for malformed -log-filter")
	}
}
