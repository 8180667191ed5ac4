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

// Package normalizer translates raw Cognigy outputs into A2A part lists.
//
// Normalization is pure: no I/O, no blocking. Every normalized output
// carries at least one text part, so text-only A2A clients always receive
// readable content even for rich upstream UI elements.
package normalizer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/cognigy/a2a-gateway/pkg/cognigy"
)

// Kind discriminates the two normalized output shapes.
type Kind string

const (
	// KindStatusMessage routes to a task-status-update event with an
	// attached agent message.
	KindStatusMessage Kind = "status-message"
	// KindArtifact routes to a task-artifact-update event carrying a file.
	KindArtifact Kind = "artifact"
)

// Data part type labels, preserved verbatim for structured payloads.
const (
	TypeQuickReplies = "quick_replies"
	TypeCarousel     = "carousel"
	TypeButtons      = "buttons"
	TypeList         = "list"
	TypeAdaptiveCard = "AdaptiveCard"
	TypeCustomData   = "cognigy/data"
)

// Normalized is the tagged result of normalizing one raw output.
type Normalized struct {
	Kind  Kind
	Parts []a2a.Part

	// Artifact-only fields, pre-extracted for event construction.
	MimeType string
	Name     string
	FileURL  string
}

type structuredRule struct {
	key      string
	typeName string
	render   func(payload map[string]any, outputText string) string
}

// structuredRules is the fixed classification priority for status-message
// payloads. Gallery handles its own intro; the others get the output text
// prepended by Normalize.
var structuredRules = []structuredRule{
	{cognigy.KeyQuickReplies, TypeQuickReplies, func(p map[string]any, _ string) string { return renderQuickReplies(p) }},
	{cognigy.KeyGallery, TypeCarousel, renderGallery},
	{cognigy.KeyButtons, TypeButtons, func(p map[string]any, _ string) string { return renderButtons(p) }},
	{cognigy.KeyList, TypeList, func(p map[string]any, _ string) string { return renderList(p) }},
	{cognigy.KeyAdaptiveCard, TypeAdaptiveCard, func(p map[string]any, _ string) string { return renderAdaptiveCard(p) }},
}

var mediaRules = []struct {
	key      string
	kind     MediaKind
	urlField string
	label    string
}{
	{cognigy.KeyImage, MediaImage, "imageUrl", "Image"},
	{cognigy.KeyAudio, MediaAudio, "audioUrl", "Audio"},
	{cognigy.KeyVideo, MediaVideo, "videoUrl", "Video"},
}

// Normalize translates one raw backend output into one normalized output.
// Classification inspects the data map in fixed priority order: media keys,
// structured UI keys, custom data, plain text.
func Normalize(out cognigy.Output) (*Normalized, error) {
	for _, rule := range mediaRules {
		payload, ok := out.Data[rule.key].(map[string]any)
		if !ok {
			continue
		}
		return normalizeMedia(rule.kind, rule.urlField, rule.label, payload)
	}

	for _, rule := range structuredRules {
		payload, ok := out.Data[rule.key].(map[string]any)
		if !ok {
			continue
		}

		rendered := rule.render(payload, out.Text)
		if rule.key != cognigy.KeyGallery {
			rendered = joinText(out.Text, rendered)
		}

		return &Normalized{
			Kind: KindStatusMessage,
			Parts: []a2a.Part{
				a2a.TextPart{Text: rendered},
				a2a.DataPart{Data: map[string]any{
					"type":    rule.typeName,
					"payload": payload,
				}},
			},
		}, nil
	}

	if len(out.Data) > 0 {
		return normalizeCustom(out), nil
	}

	text := out.Text
	if strings.TrimSpace(text) == "" {
		slog.Warn("Normalizing output with no text and no data")
		text = ""
	}
	return &Normalized{
		Kind:  KindStatusMessage,
		Parts: []a2a.Part{a2a.TextPart{Text: text}},
	}, nil
}

func normalizeMedia(kind MediaKind, urlField, label string, payload map[string]any) (*Normalized, error) {
	url := trimmedString(payload, urlField)
	if url == "" {
		return nil, fmt.Errorf("%s output is missing %s", kind, urlField)
	}

	mime := InferMime(kind, url)
	name := FileName(kind, url)
	fallback := fmt.Sprintf("[%s: %s]", label, url)

	return &Normalized{
		Kind: KindArtifact,
		Parts: []a2a.Part{
			a2a.FilePart{File: a2a.FileURI{
				URI:      url,
				FileMeta: a2a.FileMeta{MimeType: mime, Name: name},
			}},
			a2a.TextPart{Text: fallback},
		},
		MimeType: mime,
		Name:     name,
		FileURL:  url,
	}, nil
}

// normalizeCustom handles data maps with no recognized keys: the text comes
// from the output itself or its _fallbackText, and whatever remains after
// stripping internal keys is preserved as a cognigy/data payload.
func normalizeCustom(out cognigy.Output) *Normalized {
	text := out.Text
	if text == "" {
		text = trimmedString(out.Data, cognigy.KeyFallbackText)
	}

	remaining := make(map[string]any, len(out.Data))
	for key, val := range out.Data {
		if key == cognigy.KeyFallbackText || key == cognigy.KeyCognigy {
			continue
		}
		remaining[key] = val
	}

	parts := []a2a.Part{a2a.TextPart{Text: text}}
	if len(remaining) > 0 {
		parts = append(parts, a2a.DataPart{Data: map[string]any{
			"type":    TypeCustomData,
			"payload": remaining,
		}})
	}

	return &Normalized{Kind: KindStatusMessage, Parts: parts}
}

// Flatten maps a list of raw outputs into one flat ordered part sequence,
// used by the REQ path to pack a whole turn into a single agent message.
// An output that fails to normalize is logged and skipped; flattening never
// fails the request. Empty input yields a single empty text part.
func Flatten(outputs []cognigy.Output) []a2a.Part {
	var parts []a2a.Part
	for _, out := range outputs {
		normalized, err := Normalize(out)
		if err != nil {
			slog.Warn("Skipping unnormalizable output", "error", err)
			continue
		}
		parts = append(parts, normalized.Parts...)
	}

	if len(parts) == 0 {
		parts = []a2a.Part{a2a.TextPart{Text: ""}}
	}
	return parts
}
