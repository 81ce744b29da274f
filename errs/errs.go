//
// Copyright 2019 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS-IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
//
// Package errs defines the closed error-kind enumeration shared by every
// core package, and the plumbing to ride it on top of grpc status errors.
package errs

import (
	"fmt"
	"regexp/syntax"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is a closed enumeration of error kinds surfaced by the core.
type Kind int

// The full closed set of error kinds the core may report.
const (
	UNSPEC Kind = iota
	INTERNAL
	PARSER
	NOCPUEV
	FILECHANGED
	EOF
	FILEFORMAT
	NEWFORMAT
	FILE_READ
	FILE_WRITE
	FATAL
	FILE_RESOURCE
	OPEN
	ABORT
	TIMEOUT
	FILE_REMOVE
	FILE_RENAME
	FILE_POS
	FILE_RESIZE
	FILE_PERM
	FILE_COPY
	REG_BADBR
	REG_BADPAT
	REG_BADRPT
	REG_EBRACE
	REG_EBRACK
	REG_ECOLLATE
	REG_ECTYPE
	REG_EEND
	REG_EESCAPE
	REG_EPAREN
	REG_ERANGE
	REG_ESIZE
	REG_ESPACE
	REG_ESUBREG
	BUF_NOSPACE
)

var kindStrings = map[Kind]string{
	UNSPEC:        "unspecified error",
	INTERNAL:      "internal error",
	PARSER:        "trace parse error",
	NOCPUEV:       "no cpu-cycles event found in dictionary",
	FILECHANGED:   "source file changed since it was opened",
	EOF:           "end of file",
	FILEFORMAT:    "unrecognized file format",
	NEWFORMAT:     "file format newer than supported",
	FILE_READ:     "file read error",
	FILE_WRITE:    "file write error",
	FATAL:         "fatal error",
	FILE_RESOURCE: "file resource error",
	OPEN:          "open error",
	ABORT:         "operation aborted",
	TIMEOUT:       "operation timed out",
	FILE_REMOVE:   "file remove error",
	FILE_RENAME:   "file rename error",
	FILE_POS:      "file position error",
	FILE_RESIZE:   "file resize error",
	FILE_PERM:     "file permission error",
	FILE_COPY:     "file copy error",
	REG_BADBR:     "invalid regex back reference",
	REG_BADPAT:    "invalid regex pattern",
	REG_BADRPT:    "invalid regex repetition operator",
	REG_EBRACE:    "unmatched regex brace",
	REG_EBRACK:    "unmatched regex bracket",
	REG_ECOLLATE:  "invalid regex collating element",
	REG_ECTYPE:    "invalid regex character class",
	REG_EEND:      "unexpected regex end",
	REG_EESCAPE:   "trailing regex backslash",
	REG_EPAREN:    "unmatched regex parenthesis",
	REG_ERANGE:    "invalid regex range",
	REG_ESIZE:     "regex too large",
	REG_ESPACE:    "regex ran out of memory",
	REG_ESUBREG:   "invalid regex subexpression reference",
	BUF_NOSPACE:   "buffer has no space remaining",
}

// String returns the short human-readable string associated with k.
func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return "unknown error kind"
}

// defaultCodes maps each Kind onto the closest-fitting grpc code, used when
// wrapping a Kind as a status.Status.
var defaultCodes = map[Kind]codes.Code{
	UNSPEC:        codes.Unknown,
	INTERNAL:      codes.Internal,
	PARSER:        codes.InvalidArgument,
	NOCPUEV:       codes.NotFound,
	FILECHANGED:   codes.Aborted,
	EOF:           codes.OutOfRange,
	FILEFORMAT:    codes.InvalidArgument,
	NEWFORMAT:     codes.Unimplemented,
	FILE_READ:     codes.Unavailable,
	FILE_WRITE:    codes.Unavailable,
	FATAL:         codes.Internal,
	FILE_RESOURCE: codes.ResourceExhausted,
	OPEN:          codes.NotFound,
	ABORT:         codes.Aborted,
	TIMEOUT:       codes.DeadlineExceeded,
	FILE_REMOVE:   codes.Unavailable,
	FILE_RENAME:   codes.Unavailable,
	FILE_POS:      codes.OutOfRange,
	FILE_RESIZE:   codes.Unavailable,
	FILE_PERM:     codes.PermissionDenied,
	FILE_COPY:     codes.Unavailable,
	BUF_NOSPACE:   codes.ResourceExhausted,
}

func init() {
	for k := REG_BADBR; k <= REG_ESUBREG; k++ {
		defaultCodes[k] = codes.InvalidArgument
	}
}

// kindError binds a Kind to a message and an underlying grpc status, so
// KindOf can recover the exact §7 kind while status.FromError(err) still
// resolves a sensible best-fit grpc code for callers that only want that.
type kindError struct {
	kind Kind
	msg  string
	st   *status.Status
}

func (e *kindError) Error() string {
	return e.msg
}

// GRPCStatus implements the interface status.FromError looks for, letting a
// kindError be consumed either as a Kind (via KindOf) or a grpc status.
func (e *kindError) GRPCStatus() *status.Status {
	return e.st
}

// New returns an error of the given kind carrying msg, suitable for
// returning from any core operation.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg, st: status.New(defaultCodes[kind], msg)}
}

// Errorf is like New, but accepts a format string.
func Errorf(kind Kind, format string, args ...interface{}) error {
	msg := fmt.Sprintf("%s: %s", kind, fmt.Sprintf(format, args...))
	return &kindError{kind: kind, msg: msg, st: status.New(defaultCodes[kind], msg)}
}

// KindOf recovers the Kind that produced err, or UNSPEC if err did not
// originate as a Kind-tagged error from this package.
func KindOf(err error) Kind {
	if err == nil {
		return UNSPEC
	}
	if ke, ok := err.(*kindError); ok {
		return ke.kind
	}
	return UNSPEC
}

// FromRegexSyntaxError translates a regexp/syntax.Error, as produced by
// regexp.CompilePOSIX, into the closed REG_* Kind taxonomy required by §7.
func FromRegexSyntaxError(err error) Kind {
	se, ok := err.(*syntax.Error)
	if !ok {
		return REG_BADPAT
	}
	switch se.Code {
	case syntax.ErrInvalidRepeatOp, syntax.ErrInvalidRepeatSize, syntax.ErrMissingRepeatArgument:
		return REG_BADRPT
	case syntax.ErrInvalidCharClass, syntax.ErrInvalidCharRange:
		return REG_ERANGE
	case syntax.ErrInvalidEscape, syntax.ErrTrailingBackslash:
		return REG_EESCAPE
	case syntax.ErrMissingBracket:
		return REG_EBRACK
	case syntax.ErrMissingParen, syntax.ErrUnexpectedParen:
		return REG_EPAREN
	case syntax.ErrInvalidNamedCapture:
		return REG_ESUBREG
	case syntax.ErrInvalidUTF8:
		return REG_ECTYPE
	case syntax.ErrLarge:
		return REG_ESIZE
	default:
		return REG_BADPAT
	}
}
