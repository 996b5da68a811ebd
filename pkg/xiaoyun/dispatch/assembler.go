// Package dispatch turns parsed directives into concrete outgoing messages
// and delivers them. The assembler owns the per-type quotas and the
// 5-message platform cap with its merge policy; the dispatcher owns the
// delivery sink and its one-shot failure fallback.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/directive"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/line"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/resolve"
)

// StickerResolver resolves sticker keywords. Resolution is total.
type StickerResolver interface {
	Resolve(keyword string) resolve.StickerAsset
}

// SoundResolver resolves sound keywords; may fail.
type SoundResolver interface {
	Resolve(keyword string) (resolve.Sound, bool)
}

// ImageResolver resolves image themes to verified URLs; may fail.
type ImageResolver interface {
	Resolve(ctx context.Context, theme string) (string, bool)
}

// ImageTable looks up pre-approved image URLs by key.
type ImageTable interface {
	ImageURL(key string) (string, bool)
	DefaultImageURL() (string, bool)
}

// Quotas: at most one of each non-text message kind per reply. Directives
// over quota are dropped, never substituted.
const (
	maxImages   = 1
	maxStickers = 1
	maxSounds   = 1
)

// mergeSeparator joins text messages collapsed into the fifth slot.
const mergeSeparator = " ... "

// Assembler converts directive lists into platform message lists.
type Assembler struct {
	stickers StickerResolver
	sounds   SoundResolver
	images   ImageResolver
	table    ImageTable
	logger   *slog.Logger
}

// NewAssembler wires an assembler over the media resolvers.
func NewAssembler(stickers StickerResolver, sounds SoundResolver, images ImageResolver, table ImageTable, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		stickers: stickers,
		sounds:   sounds,
		images:   images,
		table:    table,
		logger:   logger.With("component", "assembler"),
	}
}

// Assemble resolves directives into an ordered message list of between 1
// and line.MaxReplyMessages entries. It never returns an empty list: a
// directive list that resolves to nothing yields the canned
// "didn't understand" reply instead.
func (a *Assembler) Assemble(ctx context.Context, directives []directive.Directive) []line.Message {
	messages := a.resolveAll(ctx, directives)
	messages = a.applyCap(messages)

	if len(messages) == 0 {
		a.logger.Warn("no messages after assembly, using canned fallback", "directives", len(directives))
		messages = a.confusedFallback()
	}
	return messages
}

// resolveAll applies per-type quotas and resolves each surviving directive.
func (a *Assembler) resolveAll(ctx context.Context, directives []directive.Directive) []line.Message {
	var messages []line.Message
	var images, stickers, sounds int

	for _, d := range directives {
		switch d.Type {
		case directive.TypeText:
			text := CleanTrailingArtifacts(d.Content)
			if text == "" {
				continue
			}
			messages = append(messages, line.TextMessage{Text: text})

		case directive.TypeSticker:
			if stickers >= maxStickers {
				a.logger.Warn("sticker quota exhausted, dropping directive", "keyword", d.Keyword)
				continue
			}
			asset := a.stickers.Resolve(d.Keyword)
			messages = append(messages, line.StickerMessage{
				PackageID: asset.PackageID,
				StickerID: asset.StickerID,
			})
			stickers++

		case directive.TypeImageTheme:
			if images >= maxImages {
				a.logger.Warn("image quota exhausted, dropping directive", "theme", d.Theme)
				continue
			}
			url, ok := a.images.Resolve(ctx, d.Theme)
			if !ok {
				// The substitute text counts toward the overall cap but
				// leaves the image quota open.
				messages = append(messages, line.TextMessage{
					Text: fmt.Sprintf("咪...小雲努力看了，但是「%s」好像沒有看得很清楚耶...", d.DisplayName()),
				})
				continue
			}
			messages = append(messages, line.ImageMessage{URL: url})
			images++

		case directive.TypeImageKey:
			if images >= maxImages {
				a.logger.Warn("image quota exhausted, dropping directive", "key", d.Key)
				continue
			}
			url, ok := a.table.ImageURL(d.Key)
			if !ok {
				a.logger.Warn("unknown image key, trying default image", "key", d.Key)
				url, ok = a.table.DefaultImageURL()
			}
			if !ok {
				messages = append(messages, line.TextMessage{
					Text: "咪...小雲找不到那張照片，對不起喵...",
				})
				continue
			}
			messages = append(messages, line.ImageMessage{URL: url})
			images++

		case directive.TypeImageURL:
			if images >= maxImages {
				a.logger.Warn("image quota exhausted, dropping directive", "url", d.URL)
				continue
			}
			messages = append(messages, line.ImageMessage{URL: d.URL})
			images++

		case directive.TypeMeowSound:
			if sounds >= maxSounds {
				a.logger.Warn("sound quota exhausted, dropping directive", "keyword", d.Keyword)
				continue
			}
			sound, ok := a.sounds.Resolve(d.Keyword)
			if !ok {
				// Sound is decorative: no substitute message.
				continue
			}
			messages = append(messages, line.AudioMessage{
				URL:      sound.URL,
				Duration: sound.DurationMS,
			})
			sounds++

		default:
			a.logger.Warn("ignoring directive of unknown type", "type", d.Type)
		}
	}

	return messages
}

// applyCap enforces the platform message cap. The first four messages are
// kept unconditionally. If the fifth candidate is text, subsequent
// consecutive texts are concatenated into it; scanning stops at the first
// non-text message and everything from there on is discarded. A non-text
// fifth candidate is kept as-is and the rest discarded.
func (a *Assembler) applyCap(messages []line.Message) []line.Message {
	if len(messages) <= line.MaxReplyMessages {
		return messages
	}

	a.logger.Warn("message list over platform cap, merging",
		"messages", len(messages),
		"cap", line.MaxReplyMessages,
	)

	final := make([]line.Message, 0, line.MaxReplyMessages)
	final = append(final, messages[:line.MaxReplyMessages-1]...)

	discarded := 0
	fifth := messages[line.MaxReplyMessages-1]
	if text, ok := fifth.(line.TextMessage); ok {
		merged := text.Text
		mergedCount := 1
		for _, m := range messages[line.MaxReplyMessages:] {
			next, ok := m.(line.TextMessage)
			if !ok {
				break
			}
			merged += mergeSeparator + next.Text
			mergedCount++
		}
		discarded = len(messages) - (line.MaxReplyMessages - 1) - mergedCount
		final = append(final, line.TextMessage{Text: merged})
	} else {
		discarded = len(messages) - line.MaxReplyMessages
		final = append(final, fifth)
	}

	if discarded > 0 {
		a.logger.Warn("messages discarded by platform cap", "discarded", discarded)
	}
	return final
}

// confusedFallback is the canned reply used when assembly produces nothing,
// so the user is never left without an answer.
func (a *Assembler) confusedFallback() []line.Message {
	asset := a.stickers.Resolve("害羞")
	return []line.Message{
		line.TextMessage{Text: "咪...？小雲好像沒有聽得很懂耶..."},
		line.TextMessage{Text: "可以...再說一次嗎？"},
		line.StickerMessage{PackageID: asset.PackageID, StickerID: asset.StickerID},
	}
}

// CleanTrailingArtifacts strips the stray trailing symbols the model
// occasionally emits after its text (lone backticks, backslashes). Clean
// input passes through unchanged.
func CleanTrailingArtifacts(s string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimRight(s, "`\\")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
