// Package directive defines the abstract message intents extracted from the
// LLM's raw output, plus the parsers that produce them. A Directive is the
// boundary between the loosely-typed model output and the strictly-typed
// dispatch pipeline: everything malformed fails here, not downstream.
package directive

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type identifies the kind of directive.
type Type string

const (
	// TypeText is a plain text message.
	TypeText Type = "text"

	// TypeSticker is a sticker request by semantic keyword, resolved to a
	// concrete package/sticker ID pair later.
	TypeSticker Type = "sticker"

	// TypeImageTheme is a free-text description of what should be depicted,
	// resolved through image search + relevance verification.
	TypeImageTheme Type = "image_theme"

	// TypeImageKey is a lookup into the static table of pre-approved image
	// URLs (self-portraits and similar).
	TypeImageKey Type = "image_key"

	// TypeMeowSound is a lookup into the static sound table.
	TypeMeowSound Type = "meow_sound"

	// TypeImageURL is a direct image URL. Only produced by the legacy
	// bracket-tag form; the JSON form has no equivalent.
	TypeImageURL Type = "image_url"
)

// Directive is one abstract message intent. Exactly one of the payload
// fields is meaningful, selected by Type.
type Directive struct {
	Type Type `json:"type"`

	// Content is the message text (TypeText).
	Content string `json:"content,omitempty"`

	// Keyword is the semantic keyword (TypeSticker, TypeMeowSound).
	Keyword string `json:"keyword,omitempty"`

	// Theme is the search query for TypeImageTheme.
	Theme string `json:"theme,omitempty"`

	// Display is the human-facing name of the theme, used in fallback text
	// when no image can be found. Defaults to Theme.
	Display string `json:"display,omitempty"`

	// Key is the static-table key (TypeImageKey).
	Key string `json:"key,omitempty"`

	// URL is the direct image URL (TypeImageURL).
	URL string `json:"url,omitempty"`
}

// Text builds a text directive.
func Text(content string) Directive {
	return Directive{Type: TypeText, Content: content}
}

// Sticker builds a sticker directive.
func Sticker(keyword string) Directive {
	return Directive{Type: TypeSticker, Keyword: keyword}
}

// ImageTheme builds an image-theme directive. Display falls back to theme.
func ImageTheme(theme string) Directive {
	return Directive{Type: TypeImageTheme, Theme: theme, Display: theme}
}

// ImageKey builds an image-key directive.
func ImageKey(key string) Directive {
	return Directive{Type: TypeImageKey, Key: key}
}

// MeowSound builds a meow-sound directive.
func MeowSound(keyword string) Directive {
	return Directive{Type: TypeMeowSound, Keyword: keyword}
}

// IsImage reports whether the directive yields an image message. Both
// variants share the single image quota at dispatch.
func (d Directive) IsImage() bool {
	return d.Type == TypeImageTheme || d.Type == TypeImageKey || d.Type == TypeImageURL
}

// DisplayName returns the human-facing theme name for fallback text.
func (d Directive) DisplayName() string {
	if d.Display != "" {
		return d.Display
	}
	return d.Theme
}

// normalize trims payload fields and reports whether the directive carries
// the required payload for its type. Invalid directives are skipped by the
// parsers, never dispatched.
func (d *Directive) normalize() error {
	switch d.Type {
	case TypeText:
		d.Content = strings.TrimSpace(d.Content)
		if d.Content == "" {
			return fmt.Errorf("text directive with empty content")
		}
	case TypeSticker, TypeMeowSound:
		d.Keyword = strings.TrimSpace(d.Keyword)
		if d.Keyword == "" {
			return fmt.Errorf("%s directive with empty keyword", d.Type)
		}
	case TypeImageTheme:
		d.Theme = strings.TrimSpace(d.Theme)
		d.Display = strings.TrimSpace(d.Display)
		if d.Theme == "" {
			return fmt.Errorf("image_theme directive with empty theme")
		}
		if d.Display == "" {
			d.Display = d.Theme
		}
	case TypeImageKey:
		d.Key = strings.TrimSpace(d.Key)
		if d.Key == "" {
			return fmt.Errorf("image_key directive with empty key")
		}
	case TypeImageURL:
		d.URL = strings.TrimSpace(d.URL)
		if d.URL == "" {
			return fmt.Errorf("image_url directive with empty url")
		}
	default:
		return fmt.Errorf("unknown directive type %q", d.Type)
	}
	return nil
}

// Encode serializes directives to the JSON wire form. The output round-trips
// through ParseJSON (modulo entries a parser would drop as invalid).
func Encode(directives []Directive) (string, error) {
	if directives == nil {
		directives = []Directive{}
	}
	data, err := json.Marshal(directives)
	if err != nil {
		return "", fmt.Errorf("encoding directives: %w", err)
	}
	return string(data), nil
}
