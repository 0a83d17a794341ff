// Package codec implements the stateless text-frame codec for the
// classroom event stream: Engine.IO heartbeats and Socket.IO connect/event
// frames with namespace multiplexing. It supports exactly the subset of
// the protocol the simulated classroom uses; unrecognized frames decode to
// nothing and callers are expected to ignore them silently.
package codec

import (
	"encoding/json"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"classload/pkg/types"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Wire prefixes. The leading digit is the Engine.IO packet type; for
// message packets ("4") the second digit is the Socket.IO packet type.
const (
	prefixOpen    = "0"
	rawPing       = "2"
	rawPong       = "3"
	prefixConnect = "40"
	prefixEvent   = "42"
)

// Decode parses one raw text frame. The second return value is false when
// the frame is unrecognized or malformed beyond recovery; heartbeats and
// uninteresting frame types are expected on the wire, so callers must
// treat a false result as "ignore this line", never as an error.
func Decode(raw string) (types.Frame, bool) {
	switch raw {
	case rawPing:
		return types.Frame{Type: types.FramePing}, true
	case rawPong:
		return types.Frame{Type: types.FramePong}, true
	}

	switch {
	case strings.HasPrefix(raw, prefixConnect):
		return decodeConnect(raw[len(prefixConnect):])
	case strings.HasPrefix(raw, prefixEvent):
		return decodeEvent(raw[len(prefixEvent):])
	case strings.HasPrefix(raw, prefixOpen):
		return decodeOpen(raw[len(prefixOpen):])
	}

	return types.Frame{}, false
}

// decodeOpen parses the handshake payload. A parse failure degrades to an
// Open frame with an empty handshake rather than failing the decode.
func decodeOpen(rest string) (types.Frame, bool) {
	frame := types.Frame{Type: types.FrameOpen, Handshake: map[string]interface{}{}}
	if rest != "" {
		if err := jsonAPI.UnmarshalFromString(rest, &frame.Handshake); err != nil {
			frame.Handshake = map[string]interface{}{}
		}
	}
	return frame, true
}

// decodeConnect isolates the namespace from the ack payload. Malformed
// payload JSON degrades to an empty payload, never an error.
func decodeConnect(rest string) (types.Frame, bool) {
	ns, body := splitNamespace(rest)
	frame := types.Frame{Type: types.FrameConnect, Namespace: ns, Payload: map[string]interface{}{}}
	if body != "" {
		if err := jsonAPI.UnmarshalFromString(body, &frame.Payload); err != nil {
			frame.Payload = map[string]interface{}{}
		}
	}
	return frame, true
}

// decodeEvent isolates the namespace, skips a leading acknowledgement id
// if present, and parses the [eventName, eventData] pair. Any parse
// failure yields no frame: the caller should drop the line, not crash.
func decodeEvent(rest string) (types.Frame, bool) {
	ns, body := splitNamespace(rest)

	// An ack id is a digit run before the array; locate the first '['.
	start := strings.IndexByte(body, '[')
	if start < 0 {
		return types.Frame{}, false
	}

	var elems []json.RawMessage
	if err := jsonAPI.UnmarshalFromString(body[start:], &elems); err != nil {
		return types.Frame{}, false
	}
	if len(elems) == 0 {
		return types.Frame{}, false
	}

	var name string
	if err := jsonAPI.Unmarshal(elems[0], &name); err != nil {
		return types.Frame{}, false
	}

	frame := types.Frame{Type: types.FrameEvent, Namespace: ns, Event: name}
	if len(elems) > 1 {
		frame.Data = elems[1]
	}
	return frame, true
}

// splitNamespace applies the shared namespace grammar for Connect and
// Event frames: a remainder starting with '/' is split at the first comma
// into namespace and payload; otherwise the namespace defaults to "/" and
// the whole remainder is the payload.
func splitNamespace(rest string) (string, string) {
	if !strings.HasPrefix(rest, "/") {
		return types.NamespaceDefault, rest
	}
	if idx := strings.IndexByte(rest, ','); idx >= 0 {
		return rest[:idx], rest[idx+1:]
	}
	return rest, ""
}

// EncodeConnect produces the namespace join frame with its auth payload.
func EncodeConnect(namespace string, auth map[string]interface{}) (string, error) {
	if auth == nil {
		auth = map[string]interface{}{}
	}
	body, err := jsonAPI.MarshalToString(auth)
	if err != nil {
		return "", err
	}
	return prefixConnect + namespace + "," + body, nil
}

// EncodeEvent produces an event frame carrying [eventName, data].
func EncodeEvent(namespace, event string, data interface{}) (string, error) {
	body, err := jsonAPI.MarshalToString([2]interface{}{event, data})
	if err != nil {
		return "", err
	}
	return prefixEvent + namespace + "," + body, nil
}

// EncodePong produces the heartbeat reply to a server Ping.
func EncodePong() string {
	return rawPong
}
