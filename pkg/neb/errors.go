// Copyright (c) 2017 OysterPack, Inc.
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

package neb

import (
	"errors"
	"fmt"
)

// Err pairs an error with a unique ErrorID
type Err struct {
	ErrorID ErrorID
	Err     error
}

func (a *Err) Error() string {
	return fmt.Sprintf("%x : %v", a.ErrorID, a.Err)
}

// Unwrap returns the underlying error
func (a *Err) Unwrap() error {
	return a.Err
}

var (
	ErrNotConnected  = errors.New("not connected")
	ErrNoReplyTo     = errors.New("message has no reply-to queue")
	ErrUnknownTarget = errors.New("unknown target")
	ErrNotProtocol   = errors.New("message is not protocol-bearing : verb is required")
	ErrNoResponse    = errors.New("no response received before the deadline")
)

// ConnectionError is returned when the transport or cache could not connect, or when an operation was attempted
// while disconnected.
type ConnectionError struct {
	*Err
}

// NewConnectionError wraps err as a ConnectionError
func NewConnectionError(err error) ConnectionError {
	return ConnectionError{
		&Err{ErrorID: ErrorID(0xc1e6a2b0d4f39a17), Err: err},
	}
}

// TimeoutError is returned when no correlated reply arrived in time.
// The connection worked, nothing answered.
type TimeoutError struct {
	*Err
}

// NewTimeoutError wraps err as a TimeoutError
func NewTimeoutError(err error) TimeoutError {
	return TimeoutError{
		&Err{ErrorID: ErrorID(0x8f02d6e4a91b5c3e), Err: err},
	}
}

// ProtocolError is returned for precondition violations : replying to a message without a reply-to queue,
// unknown targets, and malformed cache records.
type ProtocolError struct {
	*Err
}

// NewProtocolError wraps err as a ProtocolError
func NewProtocolError(err error) ProtocolError {
	return ProtocolError{
		&Err{ErrorID: ErrorID(0xa47b9e1c52d80f66), Err: err},
	}
}

// IsConnection returns true if err is, or wraps, a ConnectionError
func IsConnection(err error) bool {
	var e ConnectionError
	return errors.As(err, &e)
}

// IsTimeout returns true if err is, or wraps, a TimeoutError
func IsTimeout(err error) bool {
	var e TimeoutError
	return errors.As(err, &e)
}

// IsProtocol returns true if err is, or wraps, a ProtocolError
func IsProtocol(err error) bool {
	var e ProtocolError
	return errors.As(err, &e)
}
