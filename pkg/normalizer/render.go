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

package normalizer

import (
	"fmt"
	"strings"
)

// defaultGalleryIntro opens a carousel rendering when the output carries no
// text of its own.
const defaultGalleryIntro = "Here are some options:"

// renderQuickReplies renders a quick-replies payload:
//
//	<label>
//	- <title> [![image](<url>)]
func renderQuickReplies(payload map[string]any) string {
	var lines []string
	if label := trimmedString(payload, "text"); label != "" {
		lines = append(lines, label)
	}

	for _, item := range mapSlice(payload, "quickReplies") {
		title := trimmedString(item, "title")
		if title == "" {
			continue
		}
		line := "- " + title
		if img := trimmedString(item, "imageUrl"); img != "" {
			line += fmt.Sprintf(" ![image](%s)", img)
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// renderButtons renders a buttons payload; web_url buttons carry their URL.
func renderButtons(payload map[string]any) string {
	var lines []string
	if label := trimmedString(payload, "text"); label != "" {
		lines = append(lines, label)
	}

	for _, item := range mapSlice(payload, "buttons") {
		title := trimmedString(item, "title")
		if title == "" {
			continue
		}
		line := "- " + title
		if trimmedString(item, "type") == "web_url" {
			if url := trimmedString(item, "url"); url != "" {
				line += ": " + url
			}
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// renderList renders a list payload. The header falls back to the legacy
// "text" field when "header" is absent.
func renderList(payload map[string]any) string {
	var lines []string
	header := trimmedString(payload, "header")
	if header == "" {
		header = trimmedString(payload, "text")
	}
	if header != "" {
		lines = append(lines, header)
	}

	for _, item := range mapSlice(payload, "items") {
		if line := renderCardLine(item); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}

// renderGallery renders a carousel. The intro is the output's own text when
// present, the fixed default otherwise; it is emitted even for zero cards.
func renderGallery(payload map[string]any, outputText string) string {
	intro := strings.TrimSpace(outputText)
	if intro == "" {
		intro = defaultGalleryIntro
	}

	lines := []string{intro}
	for _, item := range mapSlice(payload, "items") {
		if line := renderCardLine(item); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}

// renderCardLine renders one list item or gallery card:
// "- <title>[: <subtitle>][ ![image](<url>)]". Items without a title are
// skipped.
func renderCardLine(item map[string]any) string {
	title := trimmedString(item, "title")
	if title == "" {
		return ""
	}
	line := "- " + title
	if subtitle := trimmedString(item, "subtitle"); subtitle != "" {
		line += ": " + subtitle
	}
	if img := trimmedString(item, "imageUrl"); img != "" {
		line += fmt.Sprintf(" ![image](%s)", img)
	}
	return line
}

// renderAdaptiveCard renders a rich card by depth-first recursion over its
// body and actions. Cognigy wraps the card in an "adaptiveCard" field; the
// bare card shape is accepted too.
func renderAdaptiveCard(payload map[string]any) string {
	card := payload
	if inner, ok := payload["adaptiveCard"].(map[string]any); ok {
		card = inner
	}

	var lines []string
	for _, el := range anyMapSlice(card["body"]) {
		lines = append(lines, renderCardElement(el)...)
	}
	for _, el := range anyMapSlice(card["actions"]) {
		lines = append(lines, renderCardElement(el)...)
	}

	return strings.Join(lines, "\n")
}

func renderCardElement(el map[string]any) []string {
	elType, _ := el["type"].(string)

	switch elType {
	case "TextBlock":
		if text := strings.TrimSpace(stringValue(el["text"])); text != "" {
			return []string{text}
		}
		return nil

	case "FactSet":
		var lines []string
		for _, fact := range anyMapSlice(el["facts"]) {
			title := trimmedString(fact, "title")
			value := trimmedString(fact, "value")
			if title == "" && value == "" {
				continue
			}
			lines = append(lines, title+": "+value)
		}
		return lines

	case "Input.Text", "Input.Date", "Input.Number", "Input.Time":
		label := trimmedString(el, "label")
		placeholder := trimmedString(el, "placeholder")
		switch {
		case label != "" && placeholder != "":
			return []string{fmt.Sprintf("%s (%s)", label, placeholder)}
		case label != "":
			return []string{label}
		case placeholder != "":
			return []string{placeholder}
		}
		return nil

	case "Input.ChoiceSet":
		var lines []string
		if label := trimmedString(el, "label"); label != "" {
			lines = append(lines, label)
		}
		for _, choice := range anyMapSlice(el["choices"]) {
			if title := trimmedString(choice, "title"); title != "" {
				lines = append(lines, "- "+title)
			}
		}
		return lines

	case "Input.Toggle":
		if title := trimmedString(el, "title"); title != "" {
			return []string{title}
		}
		return nil

	case "ColumnSet":
		var lines []string
		for _, col := range anyMapSlice(el["columns"]) {
			for _, item := range anyMapSlice(col["items"]) {
				lines = append(lines, renderCardElement(item)...)
			}
		}
		return lines

	case "Container":
		var lines []string
		for _, item := range anyMapSlice(el["items"]) {
			lines = append(lines, renderCardElement(item)...)
		}
		return lines

	case "Action.Submit", "Action.OpenUrl", "Action.ShowCard", "Action.Execute":
		return []string{fmt.Sprintf("[Action: %s]", trimmedString(el, "title"))}

	default:
		return nil
	}
}

// joinText prepends the output's own text to a rendered body with a single
// newline when both are non-empty.
func joinText(outputText, rendered string) string {
	outputText = strings.TrimSpace(outputText)
	switch {
	case outputText == "":
		return rendered
	case rendered == "":
		return outputText
	default:
		return outputText + "\n" + rendered
	}
}

func trimmedString(m map[string]any, key string) string {
	return strings.TrimSpace(stringValue(m[key]))
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// mapSlice returns m[key] as a slice of maps, skipping non-map elements.
func mapSlice(m map[string]any, key string) []map[string]any {
	return anyMapSlice(m[key])
}

func anyMapSlice(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	maps := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			maps = append(maps, m)
		}
	}
	return maps
}
