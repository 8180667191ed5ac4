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

import "strings"

// MediaKind is the artifact category derived from the media data key.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

var imageMimes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"bmp":  "image/bmp",
	"ico":  "image/x-icon",
}

var audioMimes = map[string]string{
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"webm": "audio/webm",
}

var videoMimes = map[string]string{
	"mp4":  "video/mp4",
	"m4v":  "video/mp4",
	"webm": "video/webm",
	"ogg":  "video/ogg",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
}

var fallbackMimes = map[MediaKind]string{
	MediaImage: "image/jpeg",
	MediaAudio: "audio/mpeg",
	MediaVideo: "video/mp4",
}

// InferMime maps a media URL to a MIME type by its extension. The query
// string is ignored and comparison is case-insensitive; unknown extensions
// fall back to the category default.
func InferMime(kind MediaKind, url string) string {
	ext := strings.ToLower(urlExtension(url))

	var table map[string]string
	switch kind {
	case MediaImage:
		table = imageMimes
	case MediaAudio:
		table = audioMimes
	case MediaVideo:
		table = videoMimes
	}

	if mime, ok := table[ext]; ok {
		return mime
	}
	return fallbackMimes[kind]
}

// FileName extracts the final path segment of a media URL, falling back to
// the media kind name ("image", "audio", "video") when the URL has none.
func FileName(kind MediaKind, url string) string {
	path := stripQuery(url)
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		return string(kind)
	}
	return path
}

func urlExtension(url string) string {
	path := stripQuery(url)
	slash := strings.LastIndex(path, "/")
	dot := strings.LastIndex(path, ".")
	if dot <= slash {
		return ""
	}
	return path[dot+1:]
}

func stripQuery(url string) string {
	if idx := strings.IndexAny(url, "?#"); idx >= 0 {
		return url[:idx]
	}
	return url
}
