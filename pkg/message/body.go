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
	"sort"
	"strings"
)

// Body is either a Protocol or an Opaque body
type Body interface {
	isBody()
}

// Protocol is the body of a protocol-bearing message. A nil Parameters or a blank Description is absent.
type Protocol struct {
	Verb        string
	Parameters  interface{}
	Description string
}

func (Protocol) isBody() {}

// Opaque is any payload that does not follow the protocol
type Opaque struct {
	Raw interface{}
}

func (Opaque) isBody() {}

// protocolWire is the JSON shape of a protocol body
type protocolWire struct {
	Verb        string      `json:"verb"`
	Parameters  interface{} `json:"parameters,omitempty"`
	Description string      `json:"description,omitempty"`
}

func (a Protocol) wire() protocolWire {
	return protocolWire{Verb: a.Verb, Parameters: a.Parameters, Description: a.Description}
}

func normalize(body Body) Body {
	switch b := body.(type) {
	case Protocol:
		if b.Verb == "" {
			return Opaque{}
		}
		return b
	case Opaque:
		return b
	default:
		return Opaque{}
	}
}

// bodyFromMap returns a Protocol body if the map has a verb.
// Parameters and description fall back to the short key names.
func bodyFromMap(m map[string]interface{}) Body {
	verb := stringValue(m["verb"])
	if verb == "" {
		return Opaque{Raw: m}
	}
	params := m["parameters"]
	if params == nil {
		params = m["params"]
	}
	desc := stringValue(m["description"])
	if desc == "" {
		desc = stringValue(m["desc"])
	}
	return Protocol{Verb: verb, Parameters: params, Description: desc}
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func decodeJSONBody(body string) Body {
	var v interface{}
	if err := json.UnmarshalFromString(body, &v); err != nil {
		return Opaque{Raw: map[string]interface{}{}}
	}
	if m, ok := v.(map[string]interface{}); ok {
		return bodyFromMap(m)
	}
	return Opaque{Raw: v}
}

// decodeTextBody parses "key: value" lines. Blank lines are skipped. If there is nothing to parse, or most
// non-blank lines have no colon, then the body is kept verbatim.
func decodeTextBody(body string) Body {
	fields := map[string]interface{}{}
	parsed, unparsable := 0, 0
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		i := strings.Index(line, ":")
		if i < 0 {
			unparsable++
			continue
		}
		key := strings.TrimSpace(line[:i])
		if key == "" {
			unparsable++
			continue
		}
		fields[key] = parseTextValue(strings.TrimSpace(line[i+1:]))
		parsed++
	}
	if parsed == 0 || unparsable > parsed {
		return Opaque{Raw: body}
	}
	return bodyFromMap(fields)
}

func encodeJSONBody(body Body) ([]byte, error) {
	switch b := body.(type) {
	case Protocol:
		return json.Marshal(b.wire())
	case Opaque:
		switch raw := b.Raw.(type) {
		case nil:
			return []byte{}, nil
		case string:
			return []byte(raw), nil
		case []byte:
			return raw, nil
		default:
			return json.Marshal(raw)
		}
	}
	return []byte{}, nil
}

func encodeTextBody(body Body) ([]byte, error) {
	var buf strings.Builder
	switch b := body.(type) {
	case Protocol:
		writeLine(&buf, "verb", textValue(b.Verb))
		if b.Parameters != nil {
			writeLine(&buf, "parameters", textValue(b.Parameters))
		}
		if b.Description != "" {
			writeLine(&buf, "description", textValue(b.Description))
		}
		buf.WriteString("\n")
	case Opaque:
		switch raw := b.Raw.(type) {
		case nil:
		case string:
			buf.WriteString(raw)
		case []byte:
			buf.Write(raw)
		case map[string]interface{}:
			keys := make([]string, 0, len(raw))
			for k := range raw {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				writeLine(&buf, k, textValue(raw[k]))
			}
			buf.WriteString("\n")
		case map[string]string:
			keys := make([]string, 0, len(raw))
			for k := range raw {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				writeLine(&buf, k, textValue(raw[k]))
			}
			buf.WriteString("\n")
		default:
			s, err := json.MarshalToString(raw)
			if err != nil {
				return nil, err
			}
			buf.WriteString(s)
		}
	}
	return []byte(buf.String()), nil
}

func writeLine(buf *strings.Builder, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\n")
}

// textValue renders a value for a "key: value" line. Non-string values are rendered as JSON. Strings are written
// as is, unless parseTextValue would not give them back : those are written as JSON strings.
func textValue(v interface{}) string {
	if str, ok := v.(string); ok && !needsQuoting(str) {
		return str
	}
	s, err := json.MarshalToString(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

func needsQuoting(s string) bool {
	if strings.ContainsAny(s, "\r\n") || s != strings.TrimSpace(s) {
		return true
	}
	parsed, ok := parseTextValue(s).(string)
	return !ok || parsed != s
}

// parseTextValue reads a "key: value" value. JSON arrays, objects, strings, numbers, booleans and null are
// decoded. Anything else is kept as text.
func parseTextValue(s string) interface{} {
	if s == "" {
		return s
	}
	switch c := s[0]; {
	case c == '[' || c == '{' || c == '"' || c == '-' || (c >= '0' && c <= '9'):
	case s == "true" || s == "false" || s == "null":
	default:
		return s
	}
	var v interface{}
	if err := json.UnmarshalFromString(s, &v); err != nil {
		return s
	}
	return v
}
