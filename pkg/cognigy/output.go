// Copyright 2025 The A2A Gateway Authors
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

// Package cognigy implements the upstream adapters for the Cognigy endpoint
// transports: a synchronous REST client (REQ) and a per-invocation socket
// session client (STREAM). Both produce the same Output record sequence.
package cognigy

import (
	"context"
	"encoding/json"

	"github.com/cognigy/a2a-gateway/pkg/config"
)

// Structured data keys emitted by Cognigy flows.
const (
	KeyQuickReplies = "_quickReplies"
	KeyGallery      = "_gallery"
	KeyButtons      = "_buttons"
	KeyList         = "_list"
	KeyAdaptiveCard = "_adaptiveCard"
	KeyImage        = "_image"
	KeyAudio        = "_audio"
	KeyVideo        = "_video"
	KeyCognigy      = "_cognigy"
	KeyDefault      = "_default"
	KeyFallbackText = "_fallbackText"
)

// unwrapKeys is the fixed scan order for keys recognized inside a
// _cognigy._default envelope. Order matters for deterministic expansion of
// envelopes that carry more than one payload.
var unwrapKeys = []string{
	KeyQuickReplies, KeyGallery, KeyButtons, KeyList, KeyAdaptiveCard,
	KeyImage, KeyAudio, KeyVideo,
}

// mediaKeys are the artifact-producing keys recognized at the data root.
var mediaKeys = []string{KeyImage, KeyAudio, KeyVideo}

// Output is one raw record emitted by the upstream backend within a single
// logical turn. Text may be empty; Data may be nil.
type Output struct {
	Text string         `json:"text"`
	Data map[string]any `json:"data"`
}

// UnmarshalJSON tolerates the two data encodings the endpoint produces: an
// inline JSON object, or the same object serialized into a JSON string.
// A null or undecodable text field becomes the empty string.
func (o *Output) UnmarshalJSON(b []byte) error {
	var raw struct {
		Text json.RawMessage `json:"text"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	o.Text = ""
	if len(raw.Text) > 0 {
		// Non-string text (numbers, null) is treated as absent.
		_ = json.Unmarshal(raw.Text, &o.Text)
	}

	o.Data = nil
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, &o.Data); err != nil {
			// String-wrapped data: decode twice.
			var s string
			if serr := json.Unmarshal(raw.Data, &s); serr == nil && s != "" {
				_ = json.Unmarshal([]byte(s), &o.Data)
			}
		}
	}

	return nil
}

// IsInternalMetadata reports whether the output is a pure bookkeeping record
// (message ids, finish reasons) that carries no user-visible content. Such
// records have no text and a data map whose only top-level key is _cognigy
// with no _default payload inside.
func (o Output) IsInternalMetadata() bool {
	if o.Text != "" || len(o.Data) == 0 {
		return false
	}
	for key := range o.Data {
		if key != KeyCognigy {
			return false
		}
	}
	sub, ok := o.Data[KeyCognigy].(map[string]any)
	if !ok {
		return false
	}
	_, hasDefault := sub[KeyDefault]
	return !hasDefault
}

// Unwrap lifts the _cognigy._default envelope so the normalizer always sees
// payload keys at the top level. One raw output can expand to several
// outputs when the envelope carries multiple payloads. Internal metadata
// records expand to nothing.
func (o Output) Unwrap() []Output {
	if def := o.defaultEnvelope(); def != nil {
		var outs []Output
		for _, key := range unwrapKeys {
			payload, ok := def[key]
			if !ok {
				continue
			}
			// The raw text duplicates the payload's inner text; the
			// normalizer re-renders it, so it is dropped here.
			outs = append(outs, Output{Data: map[string]any{key: payload}})
		}
		return outs
	}

	if len(o.Data) > 0 {
		var outs []Output
		for _, key := range mediaKeys {
			payload, ok := o.Data[key]
			if !ok {
				continue
			}
			outs = append(outs, Output{Data: map[string]any{key: payload}})
		}
		if len(outs) > 0 {
			return outs
		}
	}

	if o.IsInternalMetadata() {
		return nil
	}

	if o.Text != "" && len(o.Data) == 0 {
		return []Output{{Text: o.Text}}
	}

	if o.Text == "" && len(o.Data) == 0 {
		return nil
	}

	// Custom/unknown data passes through untouched.
	return []Output{o}
}

func (o Output) defaultEnvelope() map[string]any {
	sub, ok := o.Data[KeyCognigy].(map[string]any)
	if !ok {
		return nil
	}
	def, ok := sub[KeyDefault].(map[string]any)
	if !ok {
		return nil
	}
	return def
}

// SendRequest carries one user turn to the upstream backend.
type SendRequest struct {
	Text      string
	SessionID string
	UserID    string
	// Data is forwarded verbatim when non-nil; the wire key is omitted
	// entirely otherwise.
	Data map[string]any
}

// OutputFunc receives one unwrapped output and its zero-based arrival index.
type OutputFunc func(out Output, index int)

// Adapter is the upstream invocation strategy. Send blocks until the backend
// turn completes and returns the full ordered output list; STREAM adapters
// additionally invoke onOutput for each output as it arrives. onOutput may
// be nil.
type Adapter interface {
	Kind() config.TransportKind
	Send(ctx context.Context, req SendRequest, onOutput OutputFunc) ([]Output, error)
}
