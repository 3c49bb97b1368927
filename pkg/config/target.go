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

package config

import (
	"errors"
	"strings"
	"time"
)

// Target names a responder: requests are published to SendQueue and replies are read from ReceiveQueue.
type Target struct {
	Name         string `yaml:"name" json:"name"`
	SendQueue    string `yaml:"sendQueue" json:"sendQueue"`
	ReceiveQueue string `yaml:"receiveQueue" json:"receiveQueue"`
	// MessageTimeout overrides the global message timeout, in seconds. 0 means use the global setting.
	MessageTimeout int `yaml:"messageTimeout,omitempty" json:"messageTimeout,omitempty"`
}

// target validation errors
var (
	ErrTargetNameBlank         = errors.New("target name must not be blank")
	ErrTargetSendQueueBlank    = errors.New("target sendQueue must not be blank")
	ErrTargetReceiveQueueBlank = errors.New("target receiveQueue must not be blank")
	ErrTargetTimeoutNegative   = errors.New("target messageTimeout must not be negative")
)

// TrimSpace returns a copy with whitespace trimmed from the names
func (a Target) TrimSpace() Target {
	return Target{
		Name:           strings.TrimSpace(a.Name),
		SendQueue:      strings.TrimSpace(a.SendQueue),
		ReceiveQueue:   strings.TrimSpace(a.ReceiveQueue),
		MessageTimeout: a.MessageTimeout,
	}
}

// Validate checks that the name and both queues are present
func (a Target) Validate() error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return ErrTargetNameBlank
	case strings.TrimSpace(a.SendQueue) == "":
		return ErrTargetSendQueueBlank
	case strings.TrimSpace(a.ReceiveQueue) == "":
		return ErrTargetReceiveQueueBlank
	case a.MessageTimeout < 0:
		return ErrTargetTimeoutNegative
	}
	return nil
}

// Timeout returns the target's message timeout, or 0 if the target does not override it
func (a Target) Timeout() time.Duration {
	return time.Duration(a.MessageTimeout) * time.Second
}
