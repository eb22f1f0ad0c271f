// Copyright 2026 The Isobox Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors collects small, dependency-free helpers that sit on top
// of the standard library errors/fmt packages. Domain error types live
// next to the packages that raise them (see pkg/isolate/errors.go); this
// package only holds the generic glue used to build and inspect them.
package errors

import (
	"errors"
	"fmt"
)

// Wrap annotates err with message, returning nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is like Wrap but accepts a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is is a re-export of the standard library's errors.Is, kept here so
// callers only need one errors import when they're also using Wrap.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a re-export of the standard library's errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is a re-export of the standard library's errors.New.
func New(message string) error {
	return errors.New(message)
}
