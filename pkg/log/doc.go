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

// Package log implements leveled execution logs for the netfs servers.
// Each server constructs a single *Logger at startup and hands it to every
// component it builds; nothing in the repository logs through package-level
// state other than the mode filters below.
//
// Logging statements are filtered by mode. The global mode applies
// everywhere, a per-file mode overrides it for a single source file, and a
// backtrace point (fname.go:line) dumps the current goroutine's stack when
// the statement at that position runs:
//
//     $ netfs storage-server -log-mode info|debug \
//                             -log-dir /var/log/netfs \
//                             -log-filter upload.go:debug \
//                             -log-backtrace-at server.go:42
//
// Writers compose:
//
//     writer := log.MultiWriter(log.LogRotationWriter("/logs", 50<<20), os.Stderr)
//     writer = log.SynchronizedWriter(writer)
//     logger := log.New(log.Writer(writer), log.Flags(log.LstdFlags|log.Lmode))
package log
