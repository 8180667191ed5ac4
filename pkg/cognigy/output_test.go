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

package cognigy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Output
	}{
		{
			name: "plain text",
			in:   `{"text":"Hello","data":null}`,
			want: Output{Text: "Hello"},
		},
		{
			name: "null text",
			in:   `{"text":null,"data":{"k":"v"}}`,
			want: Output{Data: map[string]any{"k": "v"}},
		},
		{
			name: "numeric text treated as absent",
			in:   `{"text":42}`,
			want: Output{},
		},
		{
			name: "string-wrapped data",
			in:   `{"text":"","data":"{\"k\":\"v\"}"}`,
			want: Output{Data: map[string]any{"k": "v"}},
		},
		{
			name: "missing fields",
			in:   `{}`,
			want: Output{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Output
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsInternalMetadata(t *testing.T) {
	tests := []struct {
		name string
		out  Output
		want bool
	}{
		{
			name: "message id bookkeeping",
			out:  Output{Data: map[string]any{"_cognigy": map[string]any{"_messageId": "x"}}},
			want: true,
		},
		{
			name: "finish reason bookkeeping",
			out:  Output{Data: map[string]any{"_cognigy": map[string]any{"_messageId": "y", "_finishReason": "stop"}}},
			want: true,
		},
		{
			name: "default envelope is not metadata",
			out:  Output{Data: map[string]any{"_cognigy": map[string]any{"_default": map[string]any{}}}},
			want: false,
		},
		{
			name: "text present",
			out:  Output{Text: "hi", Data: map[string]any{"_cognigy": map[string]any{}}},
			want: false,
		},
		{
			name: "extra top-level key",
			out:  Output{Data: map[string]any{"_cognigy": map[string]any{}, "custom": 1}},
			want: false,
		},
		{
			name: "no data",
			out:  Output{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.out.IsInternalMetadata())
		})
	}
}

func TestUnwrapDefaultEnvelope(t *testing.T) {
	qr := map[string]any{"text": "Pick", "quickReplies": []any{map[string]any{"title": "A"}}}
	out := Output{
		Text: "Pick",
		Data: map[string]any{
			"_cognigy": map[string]any{
				"_default": map[string]any{"_quickReplies": qr},
			},
		},
	}

	got := out.Unwrap()
	require.Len(t, got, 1)
	// The duplicate raw text is dropped; the normalizer re-renders it.
	assert.Empty(t, got[0].Text)
	assert.Equal(t, map[string]any{"_quickReplies": qr}, got[0].Data)
}

func TestUnwrapEnvelopeWithMultiplePayloads(t *testing.T) {
	out := Output{
		Data: map[string]any{
			"_cognigy": map[string]any{
				"_default": map[string]any{
					"_gallery":      map[string]any{"items": []any{}},
					"_quickReplies": map[string]any{"text": "Pick"},
				},
			},
		},
	}

	got := out.Unwrap()
	require.Len(t, got, 2)
	// Fixed key order: quick replies before gallery.
	assert.Contains(t, got[0].Data, "_quickReplies")
	assert.Contains(t, got[1].Data, "_gallery")
}

func TestUnwrapRootMediaKeys(t *testing.T) {
	out := Output{
		Data: map[string]any{
			"_image": map[string]any{"imageUrl": "https://cdn.example/a.png"},
			"_audio": map[string]any{"audioUrl": "https://cdn.example/a.mp3"},
		},
	}

	got := out.Unwrap()
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Data, "_image")
	assert.Contains(t, got[1].Data, "_audio")
}

func TestUnwrapPassthroughAndEmpty(t *testing.T) {
	// Plain text passes through as a single entry.
	got := Output{Text: "hi"}.Unwrap()
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Text)

	// Internal metadata expands to nothing.
	meta := Output{Data: map[string]any{"_cognigy": map[string]any{"_messageId": "x"}}}
	assert.Empty(t, meta.Unwrap())

	// Fully empty outputs expand to nothing.
	assert.Empty(t, Output{}.Unwrap())

	// Custom data is forwarded unchanged, text included.
	custom := Output{Text: "note", Data: map[string]any{"orderId": "42"}}
	got = custom.Unwrap()
	require.Len(t, got, 1)
	assert.Equal(t, custom, got[0])
}
