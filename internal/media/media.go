// Package media decodes the loosely typed media column of a post.
//
// Rows written by different generations of the publishing tool store media
// as a JSON-encoded string, as a legacy {urls, count, files} object, or as a
// list of {url, type} items. Every shape is decoded into a Field and
// normalized to a list of Items; malformed input yields an empty list.
package media

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Kind string

const (
	KindImage    Kind = "image"
	KindCarousel Kind = "carousel"
	KindVideo    Kind = "video"
)

// Label is the short badge shown next to a post.
func (k Kind) Label() string {
	switch k {
	case KindCarousel:
		return "Carrossel"
	case KindVideo:
		return "Reel"
	default:
		return "Feed"
	}
}

type ItemType string

const (
	ItemImage ItemType = "image"
	ItemVideo ItemType = "video"
)

type Item struct {
	URL  string   `json:"url"`
	Type ItemType `json:"type"`
}

// Field is one of RawString, LegacyObject or CanonicalList. A nil Field
// stands for an absent or unrecognized value.
type Field interface {
	isField()
}

// RawString is a media value that was itself stored as JSON text.
type RawString string

// LegacyObject is the {urls, count, files} shape. HasURLs reports whether
// urls was present as an array.
type LegacyObject struct {
	URLs    []string
	HasURLs bool
	Count   int
	Files   []json.RawMessage
}

type CanonicalList []Item

func (RawString) isField()     {}
func (LegacyObject) isField()  {}
func (CanonicalList) isField() {}

// Decode classifies raw JSON. It never fails: anything it cannot read is
// reported as a nil Field.
func Decode(raw []byte) Field {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return RawString(s)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil
		}
		return decodeLegacy(obj)
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil
		}
		return decodeList(elems)
	}
	return nil
}

func decodeLegacy(obj map[string]json.RawMessage) LegacyObject {
	var legacy LegacyObject

	var urls []json.RawMessage
	if raw, ok := obj["urls"]; ok && json.Unmarshal(raw, &urls) == nil && urls != nil {
		legacy.HasURLs = true
		legacy.URLs = make([]string, 0, len(urls))
		for _, u := range urls {
			var s string
			if json.Unmarshal(u, &s) == nil {
				legacy.URLs = append(legacy.URLs, s)
			}
		}
	}

	var count float64
	if raw, ok := obj["count"]; ok && json.Unmarshal(raw, &count) == nil && count > 0 {
		legacy.Count = int(count)
	}

	if raw, ok := obj["files"]; ok {
		_ = json.Unmarshal(raw, &legacy.Files)
	}
	return legacy
}

func decodeList(elems []json.RawMessage) CanonicalList {
	list := make(CanonicalList, 0, len(elems))
	for _, e := range elems {
		var item struct {
			URL  *string `json:"url"`
			Type string  `json:"type"`
		}
		if err := json.Unmarshal(e, &item); err != nil || item.URL == nil {
			continue
		}
		t := ItemImage
		if ItemType(item.Type) == ItemVideo {
			t = ItemVideo
		}
		list = append(list, Item{URL: *item.URL, Type: t})
	}
	return list
}

// unwrap decodes the JSON carried by a RawString. Strings nested more than
// one level deep are not followed.
func unwrap(s RawString) Field {
	inner := Decode([]byte(s))
	if _, nested := inner.(RawString); nested {
		return nil
	}
	return inner
}

// Normalize returns the media items of a field. The result is never nil.
func Normalize(f Field) []Item {
	switch v := f.(type) {
	case RawString:
		return Normalize(unwrap(v))
	case LegacyObject:
		items := make([]Item, 0, len(v.URLs))
		for _, u := range v.URLs {
			items = append(items, Item{URL: u, Type: ItemImage})
		}
		return items
	case CanonicalList:
		items := make([]Item, len(v))
		copy(items, v)
		return items
	}
	return []Item{}
}

// Count reports how many media files a post carries: the legacy urls length
// first, then the list length, then the legacy count field.
func Count(f Field) int {
	switch v := f.(type) {
	case RawString:
		return Count(unwrap(v))
	case LegacyObject:
		if v.HasURLs {
			return len(v.URLs)
		}
		return v.Count
	case CanonicalList:
		return len(v)
	}
	return 0
}

// PrimaryImageURL picks the image used to represent a post: the thumbnail for
// videos that have one, otherwise the first item with a url.
func PrimaryImageURL(f Field, kind Kind, thumbnail string) string {
	if kind == KindVideo && strings.TrimSpace(thumbnail) != "" {
		return thumbnail
	}
	for _, item := range Normalize(f) {
		if item.URL != "" {
			return item.URL
		}
	}
	return ""
}

func IsCarousel(kind Kind, f Field) bool {
	return kind == KindCarousel && Count(f) > 1
}
