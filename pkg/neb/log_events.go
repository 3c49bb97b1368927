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

// log events
const (
	TRANSPORT_CONNECTED    = LogEventID(0xb3a1f07c29d64e81)
	TRANSPORT_DISCONNECTED = LogEventID(0x9d4c2e5fa0b71c36)
	TRANSPORT_RECONNECT    = LogEventID(0xe21f6b8d4c3a9057)
	TRANSPORT_PUBLISH_ERR  = LogEventID(0x84b7d2c1e6f05a93)
	TRANSPORT_ACK_ERR      = LogEventID(0xd6a3902b7e1f4c58)
	TRANSPORT_UNSUB_ERR    = LogEventID(0x7c5e1a94b2d8f036)

	CONSUME_HANDLER_ERR   = LogEventID(0xf08d3b6a1c7e2945)
	CONSUME_HANDLER_PANIC = LogEventID(0xa9e4c7213fd05b68)
	CONSUME_STOPPED       = LogEventID(0xc5f2a8e07b3d1946)

	REQUEST_SENT      = LogEventID(0x92d6b4f1a0e37c85)
	REQUEST_ANSWERED  = LogEventID(0xe7a05c3d8b2f6914)
	REQUEST_TIMED_OUT = LogEventID(0xb1f84e2a6d9c0537)
	REQUEST_CACHE_HIT = LogEventID(0x86c3d9f02e7a4b1d)
	CACHE_QUIT_ERR    = LogEventID(0xd2e97b4106a8f5c3)

	LISTENER_STARTED   = LogEventID(0xa4b6e8d20c1f7395)
	LISTENER_STOPPED   = LogEventID(0xf3c1a7e95b0d2864)
	LISTENER_SHED      = LogEventID(0x8e2d5f4c1a7b9036)
	LISTENER_REPLY_ERR = LogEventID(0xc7b0e3a58f2d1649)
)
