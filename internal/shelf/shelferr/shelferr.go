// Copyright 2024 The Shelf Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shelferr defines the error kinds raised by the shelf build engine.
//
// Every error the engine returns carries a Kind so that callers (the CLI
// front-end in particular) can decide on an exit code and a message prefix
// without parsing strings.
package shelferr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind string

// The error kinds raised by the engine.
const (
	// UserInput covers bad dataset names, unknown subcommands, URI parse
	// failures: mistakes the caller can fix by typing something different.
	UserInput Kind = "user_input"
	// AlreadyExists covers registering a step or script that already exists.
	AlreadyExists Kind = "already_exists"
	// NotFound covers missing shelf.yaml, missing table scripts, missing
	// dependency data.
	NotFound Kind = "not_found"
	// SchemaViolation covers a registry or record failing JSON-schema
	// validation.
	SchemaViolation Kind = "schema_violation"
	// IntegrityViolation covers checksum mismatches, manifest path escapes,
	// directory snapshots with no manifest, and tables that produced no
	// output.
	IntegrityViolation Kind = "integrity_violation"
	// InvariantViolation covers a table whose output lacks a dim_ column.
	InvariantViolation Kind = "invariant_violation"
	// ExternalFailure covers object store, script process, or filesystem
	// I/O errors raised by a collaborator outside the engine's control.
	ExternalFailure Kind = "external_failure"
)

// Error is the concrete error type returned by engine components.
type Error struct {
	Kind  Kind
	URI   string // the step URI involved, if any
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.URI != "" {
		if e.cause != nil {
			return fmt.Sprintf("%s: %s: %s", e.URI, e.msg, e.cause)
		}
		return fmt.Sprintf("%s: %s", e.URI, e.msg)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a new Error with no wrapped cause.
func New(kind Kind, uri, msg string) *Error {
	return &Error{Kind: kind, URI: uri, msg: msg}
}

// Newf builds a new Error with a formatted message.
func Newf(kind Kind, uri, format string, args ...any) *Error {
	return &Error{Kind: kind, URI: uri, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and a step URI to an existing error.
func Wrap(err error, kind Kind, uri, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, URI: uri, msg: msg, cause: err}
}

// KindOf walks the error chain looking for a *Error and returns its Kind.
// It returns ExternalFailure for any error that never declared a kind, since
// those invariably originate from an I/O call into a collaborator.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return ExternalFailure
}
