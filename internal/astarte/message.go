package astarte

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadKind distinguishes individual values from object aggregates.
type PayloadKind int

const (
	// PayloadIndividual is a single value addressed by the full path.
	// A nil Value marks a property unset.
	PayloadIndividual PayloadKind = iota

	// PayloadObject is a set of named values sent in one message.
	PayloadObject
)

// Payload is the decoded content of one message.
type Payload struct {
	Kind PayloadKind

	// Value holds the individual value. Only meaningful for PayloadIndividual.
	Value any

	// Fields holds the object fields. Only meaningful for PayloadObject.
	Fields map[string]any
}

// Message is one inbound datum from the platform.
type Message struct {
	// Interface is the reversed-domain interface name.
	Interface string

	// Path is the mapping path split into segments, empty segments dropped.
	Path []string

	Payload Payload
}

// PathString reassembles the path for logging.
func (m *Message) PathString() string {
	return "/" + strings.Join(m.Path, "/")
}

// envelope is the JSON wrapper every data payload rides in.
type envelope struct {
	Value any `json:"v"`
}

// splitPath splits a mapping path into segments, dropping empty ones.
// "/request" → ["request"], "//a//b/" → ["a", "b"], "" → nil.
func splitPath(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// parseTopic extracts interface name and path from a session topic.
//
// Topics have the shape <realm>/<device-id>/<interface><path>. The prefix
// argument is "<realm>/<device-id>/" as built at connect time.
func parseTopic(prefix, topic string) (string, []string, error) {
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return "", nil, fmt.Errorf("%w: topic %q outside session scope", ErrMalformedMessage, topic)
	}

	iface, path, _ := strings.Cut(rest, "/")
	if iface == "" {
		return "", nil, fmt.Errorf("%w: topic %q has no interface", ErrMalformedMessage, topic)
	}

	return iface, splitPath(path), nil
}

// decodePayload unmarshals an envelope into a Payload.
//
// An empty payload is the wire form of a property unset and decodes to an
// individual nil value. A JSON object under "v" is an object aggregate;
// anything else (scalar, array, null) is an individual value.
func decodePayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{Kind: PayloadIndividual}, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	if fields, ok := env.Value.(map[string]any); ok {
		return Payload{Kind: PayloadObject, Fields: fields}, nil
	}

	return Payload{Kind: PayloadIndividual, Value: env.Value}, nil
}

// encodeIndividual wraps a single value in the envelope.
func encodeIndividual(value any) ([]byte, error) {
	data, err := json.Marshal(envelope{Value: value})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding value: %w", ErrPublishFailed, err)
	}
	return data, nil
}

// encodeObject wraps named fields in the envelope.
func encodeObject(fields map[string]any) ([]byte, error) {
	data, err := json.Marshal(envelope{Value: fields})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding object: %w", ErrPublishFailed, err)
	}
	return data, nil
}
