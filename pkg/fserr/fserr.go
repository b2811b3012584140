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

// Package fserr defines the error kinds shared by the storage server and
// the filesystem adapter. The server converts local OS errors into kinds
// before they reach the wire (FromOS, Status); the client converts RPC
// errors back into kinds (FromStatus) and kinds into errnos for the mount
// (Errno). A raw platform error code never crosses the RPC boundary.
package fserr

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a filesystem failure.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	AlreadyExists
	PermissionDenied
	InvalidArgument
	TransferIncomplete
	TransportFailure
	NotEmpty
	NotDirectory
	IsDirectory
)

var kindNames = [...]string{
	Unknown:            "Unknown",
	NotFound:           "NotFound",
	AlreadyExists:      "AlreadyExists",
	PermissionDenied:   "PermissionDenied",
	InvalidArgument:    "InvalidArgument",
	TransferIncomplete: "TransferIncomplete",
	TransportFailure:   "TransportFailure",
	NotEmpty:           "NotEmpty",
	NotDirectory:       "NotDirectory",
	IsDirectory:        "IsDirectory",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[Unknown]
	}
	return kindNames[k]
}

// Error is a classified failure. Op and Path are informational.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteByte(' ')
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches targets of the same kind, so errors.Is(err, fserr.E(fserr.NotFound))
// holds for any NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// E returns a bare error of the given kind, suitable as an errors.Is target.
func E(k Kind) error {
	return &Error{Kind: k}
}

// Errorf returns an error of kind k with a formatted cause.
func Errorf(k Kind, format string, args ...interface{}) error {
	return &Error{Kind: k, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, Unknown if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is of kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// FromOS classifies an error returned by the os package or a raw syscall.
// Errors that are already classified pass through unchanged; nil stays nil.
func FromOS(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: osKind(err), Op: op, Path: path, Err: unwrapOS(err)}
}

func osKind(err error) Kind {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return NotFound
		case syscall.EEXIST:
			return AlreadyExists
		case syscall.EACCES, syscall.EPERM, syscall.EROFS:
			return PermissionDenied
		case syscall.EINVAL, syscall.ENAMETOOLONG, syscall.EXDEV, syscall.ELOOP:
			return InvalidArgument
		case syscall.ENOTEMPTY:
			return NotEmpty
		case syscall.ENOTDIR:
			return NotDirectory
		case syscall.EISDIR:
			return IsDirectory
		}
		return Unknown
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return NotFound
	case errors.Is(err, os.ErrExist):
		return AlreadyExists
	case errors.Is(err, os.ErrPermission):
		return PermissionDenied
	case errors.Is(err, os.ErrInvalid):
		return InvalidArgument
	}
	return Unknown
}

// unwrapOS strips the os package's path wrappers; the path is carried by
// Error itself and must not leak the server's export root onto the wire.
func unwrapOS(err error) error {
	switch e := err.(type) {
	case *os.PathError:
		return e.Err
	case *os.LinkError:
		return e.Err
	case *os.SyscallError:
		return e.Err
	}
	return err
}

var kindCodes = map[Kind]codes.Code{
	Unknown:            codes.Internal,
	NotFound:           codes.NotFound,
	AlreadyExists:      codes.AlreadyExists,
	PermissionDenied:   codes.PermissionDenied,
	InvalidArgument:    codes.InvalidArgument,
	TransferIncomplete: codes.DataLoss,
	TransportFailure:   codes.Unavailable,
	NotEmpty:           codes.FailedPrecondition,
	NotDirectory:       codes.FailedPrecondition,
	IsDirectory:        codes.FailedPrecondition,
}

// Status converts err into a gRPC status error for the wire. The message
// is prefixed with the kind name, so kinds sharing a code (the
// FailedPrecondition family) survive the round trip through FromStatus.
// Errors that already are gRPC statuses pass through unchanged.
func Status(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		if _, ok := status.FromError(err); ok {
			return err
		}
		e = &Error{Kind: Unknown, Err: err}
	}

	msg := e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return status.Error(kindCodes[e.Kind], msg)
}

// FromStatus converts an error returned by an RPC into a classified error.
// Connection-level failures (unavailable, cancelled, timed out, or errors
// that aren't gRPC statuses at all) are TransportFailure.
func FromStatus(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return &Error{Kind: TransportFailure, Op: op, Path: path, Err: err}
	}

	kind, msg := Unknown, st.Message()
	if name, rest, found := strings.Cut(msg, ": "); found {
		msg = rest
		kind = kindByName(name)
	} else {
		kind = kindByName(msg)
		if kind != Unknown {
			msg = ""
		}
	}

	if kind == Unknown || kindCodes[kind] != st.Code() {
		kind = kindByCode(st.Code())
		msg = st.Message()
	}

	var cause error
	if msg != "" {
		cause = errors.New(msg)
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

func kindByName(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return Kind(k)
		}
	}
	return Unknown
}

func kindByCode(code codes.Code) Kind {
	switch code {
	case codes.NotFound:
		return NotFound
	case codes.AlreadyExists:
		return AlreadyExists
	case codes.PermissionDenied, codes.Unauthenticated:
		return PermissionDenied
	case codes.InvalidArgument, codes.OutOfRange:
		return InvalidArgument
	case codes.DataLoss:
		return TransferIncomplete
	case codes.Unavailable, codes.Canceled, codes.DeadlineExceeded, codes.Aborted:
		return TransportFailure
	}
	return Unknown
}

var kindErrnos = map[Kind]syscall.Errno{
	Unknown:            syscall.EIO,
	NotFound:           syscall.ENOENT,
	AlreadyExists:      syscall.EEXIST,
	PermissionDenied:   syscall.EACCES,
	InvalidArgument:    syscall.EINVAL,
	TransferIncomplete: syscall.EIO,
	TransportFailure:   syscall.EIO,
	NotEmpty:           syscall.ENOTEMPTY,
	NotDirectory:       syscall.ENOTDIR,
	IsDirectory:        syscall.EISDIR,
}

// Errno maps err onto the errno returned to the mount layer. Zero means
// success; anything unclassified is EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	return kindErrnos[KindOf(err)]
}
