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

package message

import (
	"fmt"

	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
)

func errNotProtocol() error {
	return neb.NewProtocolError(neb.ErrNotProtocol)
}

func errNoReplyTo() error {
	return neb.NewProtocolError(neb.ErrNoReplyTo)
}

func errMalformedCacheRecord(err error) error {
	return neb.NewProtocolError(fmt.Errorf("malformed cache record : %v", err))
}
