// legacy.go implements the original bracket-tag wire form: freeform text
// interleaved with [SPLIT], [STICKER:kw], [MEOW_SOUND:kw],
// [SEARCH_IMAGE_THEME:theme], [IMAGE_KEY:key] and [IMAGE_URL:url] tags.
// Kept for compatibility with models prompted in the old format; the JSON
// form is the primary wire format.
package directive

import (
	"regexp"
	"strings"
)

// legacyTagPattern matches any bracket tag region: an upper-case tag name
// with an optional ":argument". Unknown tag names are matched too, so they
// can be dropped as inert instead of leaking into the text.
var legacyTagPattern = regexp.MustCompile(`\[([A-Z_]+)(?::([^\]]*))?\]`)

// ParseLegacy tokenizes the bracket-tag form. Interstitial text accumulates
// into a pending buffer flushed into a Text directive at every tag boundary
// and at end of input. [SPLIT] flushes without producing a directive of its
// own. No count cap is applied here; the dispatch layer caps both wire
// forms uniformly.
func (p *Parser) ParseLegacy(raw string) []Directive {
	var directives []Directive
	var pending strings.Builder

	flush := func() {
		text := strings.TrimSpace(pending.String())
		pending.Reset()
		if text == "" {
			return
		}
		directives = append(directives, Text(text))
	}

	rest := raw
	for {
		loc := legacyTagPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			pending.WriteString(rest)
			break
		}

		pending.WriteString(rest[:loc[0]])
		tag := rest[loc[2]:loc[3]]
		arg := ""
		if loc[4] >= 0 {
			arg = strings.TrimSpace(rest[loc[4]:loc[5]])
		}
		rest = rest[loc[1]:]

		flush()

		switch tag {
		case "SPLIT":
			// Boundary only.
		case "STICKER":
			if arg != "" {
				directives = append(directives, Sticker(arg))
			}
		case "MEOW_SOUND":
			if arg != "" {
				directives = append(directives, MeowSound(arg))
			}
		case "SEARCH_IMAGE_THEME":
			if d, ok := legacyImageTheme(arg); ok {
				directives = append(directives, d)
			}
		case "IMAGE_KEY":
			if arg != "" {
				directives = append(directives, ImageKey(arg))
			}
		case "IMAGE_URL":
			if arg != "" {
				directives = append(directives, Directive{Type: TypeImageURL, URL: arg})
			}
		default:
			p.logger.Warn("ignoring unknown bracket tag", "tag", tag)
		}
	}

	flush()
	return directives
}

// legacyImageTheme parses the SEARCH_IMAGE_THEME argument, which may be a
// bare theme or a "display|search-query" pair.
func legacyImageTheme(arg string) (Directive, bool) {
	if arg == "" {
		return Directive{}, false
	}
	display, query, found := strings.Cut(arg, "|")
	if !found {
		return ImageTheme(arg), true
	}
	display = strings.TrimSpace(display)
	query = strings.TrimSpace(query)
	if query == "" {
		query = display
	}
	if query == "" {
		return Directive{}, false
	}
	d := ImageTheme(query)
	if display != "" {
		d.Display = display
	}
	return d, true
}
