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
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"strings"
)

var (
	filterFileRegex     = regexp.MustCompile(`^[\w\-]+\.go$`)
	tracePointLineRegex = regexp.MustCompile(`^\d+$`)
)

// CommandFlags holds the logging flags shared by every netfs command. Use
// RegisterFlags to bind them to a command's flag set, and after parsing,
// Logger to apply them and construct the command's logger.
type CommandFlags struct {
	Dir            string
	SuppressStderr bool
	Mode           modeFlag
	Filter         filterFlag
	Backtrace      backtraceFlag
}

// RegisterFlags defines -log-dir, -suppress-stderr, -log-mode, -log-filter
// and -log-backtrace-at on fs.
func RegisterFlags(fs *flag.FlagSet) *CommandFlags {
	f := &CommandFlags{}
	fs.StringVar(&f.Dir, "log-dir", "",
		"Write log files to the specified directory")
	fs.BoolVar(&f.SuppressStderr, "suppress-stderr", false,
		"Suppress standard error logging")
	fs.Var(&f.Mode, "log-mode",
		"Log mode for logs emitted globally (can be overridden using -log-filter)")
	fs.Var(&f.Filter, "log-filter",
		"Comma-separated list of fname.go:mode settings for file-filtered logging")
	fs.Var(&f.Backtrace, "log-backtrace-at",
		"Comma-separated list of fname.go:N settings to emit backtraces")
	return f
}

// Logger installs the parsed mode filters and backtrace points, and returns
// a logger writing to rotating files under -log-dir (if set) and to stderr
// (unless suppressed).
func (f *CommandFlags) Logger() *Logger {
	if f.Mode.set {
		SetGlobalLogMode(f.Mode.m)
	}
	for _, flm := range f.Filter {
		SetFileLogMode(flm.fname, flm.fmode)
	}
	for _, tp := range f.Backtrace {
		SetTracePoint(tp)
	}

	var writer io.Writer = ioutil.Discard
	if f.Dir != "" {
		writer = LogRotationWriter(f.Dir, 50<<20 /* 50 MiB */)
	}
	if !f.SuppressStderr {
		writer = MultiWriter(writer, os.Stderr)
	}
	writer = SynchronizedWriter(writer)
	logf := Ldate | Ltime | Lmicroseconds | Llongfile | LUTC | Lmode
	return New(Writer(writer), Flags(logf), SkipBasePath())
}

type modeFlag struct {
	m   Mode
	set bool
}

func (l *modeFlag) String() string {
	return l.m.String()
}

func (l *modeFlag) Set(value string) error {
	m, err := ParseMode(value)
	if err != nil {
		return err
	}
	l.m, l.set = m, true
	return nil
}

type fileLogMode struct {
	fname string
	fmode Mode
}

type filterFlag []fileLogMode

func (l *filterFlag) String() string {
	parts := make([]string, 0, len(*l))
	for _, flm := range *l {
		parts = append(parts, fmt.Sprintf("%s:%s", flm.fname, flm.fmode))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (l *filterFlag) Set(value string) error {
	for _, f := range strings.Split(value, ",") {
		fname, mode, err := splitPair(f, "fname.go:mode")
		if err != nil {
			return err
		}
		if !filterFileRegex.MatchString(fname) {
			return fmt.Errorf("expected filename '%s' to match '%s'", fname, filterFileRegex)
		}
		fmode, err := ParseMode(mode)
		if err != nil {
			return err
		}
		*l = append(*l, fileLogMode{fname: fname, fmode: fmode})
	}
	return nil
}

type backtraceFlag []string

func (l *backtraceFlag) String() string {
	return fmt.Sprint([]string(*l))
}

func (l *backtraceFlag) Set(value string) error {
	for _, f := range strings.Split(value, ",") {
		fname, lnumber, err := splitPair(f, "fname.go:line")
		if err != nil {
			return err
		}
		if !filterFileRegex.MatchString(fname) {
			return fmt.Errorf("expected filename '%s' to match '%s'", fname, filterFileRegex)
		}
		if !tracePointLineRegex.MatchString(lnumber) {
			return fmt.Errorf("expected line number '%s' to match '%s'", lnumber, tracePointLineRegex)
		}
		*l = append(*l, fname+":"+lnumber)
	}
	return nil
}

func splitPair(s, want string) (string, string, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("improperly formatted setting: %s, expected %s", s, want)
	}
	return parts[0], parts[1], nil
}
