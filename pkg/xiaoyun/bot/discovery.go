// discovery.go implements the secret/discovery sub-flow: when a user asks
// what the cat found or what its secret is, the reply comes either from a
// pre-authored pool of discovery payloads or from asking the model to
// author a fresh one. Source selection is a weighted-choice policy object
// so it can be tested without a model in the loop.
package bot

import (
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/directive"
)

// discoveryKeywords and questionMarkers form the trigger heuristic: the
// message must mention a discovery-ish word AND read like a question.
var (
	discoveryKeywords = []string{"秘密", "祕密", "發現", "寶物", "secret", "discovery"}
	questionMarkers   = []string{"？", "?", "嗎", "什麼", "哪", "沒有"}
)

// IsDiscoveryQuery reports whether an inbound message triggers the
// discovery sub-flow.
func IsDiscoveryQuery(msg string) bool {
	lower := strings.ToLower(msg)
	return containsAny(lower, discoveryKeywords) && containsAny(lower, questionMarkers)
}

// SourceChoice is the outcome of one source selection.
type SourceChoice struct {
	// UseGenerator asks the model to author a fresh discovery.
	UseGenerator bool

	// PoolIndex is the chosen pre-authored payload when UseGenerator is
	// false.
	PoolIndex int
}

// SourcePolicy picks between the pre-authored pool and the generator.
type SourcePolicy struct {
	generatorChance float64
	rng             *rand.Rand
}

// NewSourcePolicy creates a policy. A nil rng uses a self-seeded source.
func NewSourcePolicy(generatorChance float64, rng *rand.Rand) *SourcePolicy {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if generatorChance < 0 {
		generatorChance = 0
	}
	if generatorChance > 1 {
		generatorChance = 1
	}
	return &SourcePolicy{generatorChance: generatorChance, rng: rng}
}

// Choose selects a source given the pool entries this user has not seen
// yet. An exhausted pool always routes to the generator.
func (p *SourcePolicy) Choose(unseen []int) SourceChoice {
	if len(unseen) == 0 {
		return SourceChoice{UseGenerator: true}
	}
	if p.rng.Float64() < p.generatorChance {
		return SourceChoice{UseGenerator: true}
	}
	return SourceChoice{PoolIndex: unseen[p.rng.IntN(len(unseen))]}
}

// discoveryPool is the pre-authored payloads, in the JSON wire form so they
// flow through the ordinary parser and assembler. Every entry carries an
// image.
var discoveryPool = []string{
	`[{"type":"text","content":"咪！小雲跟你說喔...（壓低聲音）今天在窗台後面發現了一片好漂亮的葉子！"},{"type":"image_theme","theme":"a single golden autumn leaf on a sunny windowsill","display":"漂亮的葉子"},{"type":"sticker","keyword":"開心"}]`,
	`[{"type":"text","content":"噓...（左右看了看）小雲在沙發底下藏了一顆小鈴鐺球，這是秘密基地的寶物喔！"},{"type":"image_theme","theme":"a small jingle bell cat toy ball under a sofa","display":"鈴鐺球"},{"type":"sticker","keyword":"害羞"}]`,
	`[{"type":"text","content":"咪咪！今天早上小雲看到一隻好大的鳥停在院子裡！尾巴好長好長！"},{"type":"image_theme","theme":"a magpie with a long tail standing on a garden lawn","display":"好大的鳥"},{"type":"sticker","keyword":"好奇"}]`,
	`[{"type":"text","content":"（小小聲）小雲發現...紙箱的角落曬得到太陽的時候，是全世界最舒服的地方..."},{"type":"image_theme","theme":"warm sunlight falling into the corner of a cardboard box","display":"曬太陽的紙箱"},{"type":"meow_sound","keyword":"呼嚕"}]`,
	`[{"type":"text","content":"咪！小雲跟你說一個秘密...廚房的櫃子裡面有一包草莓乾！小雲聞到了！"},{"type":"image_theme","theme":"a bag of dried strawberries on a kitchen shelf","display":"草莓乾"},{"type":"sticker","keyword":"期待"}]`,
}

// generatorPrompt asks the model to author a brand-new discovery. The
// image requirement is stated explicitly; EnsureImageTheme backstops it.
const generatorPrompt = `使用者在問小雲有沒有什麼秘密或新發現。請讓小雲興奮又有點害羞地分享一個「今天的小發現」：一個貓咪視角的小東西或小場景。回覆必須是 JSON 陣列，而且必須包含至少一個 {"type":"image_theme","theme":"..."} 元素來分享那個發現的照片（theme 用英文描述，不能是小雲自己）。`

// fillerDiscoveryImage is inserted when a generated discovery arrives
// without any image element.
var fillerDiscoveryImage = func() directive.Directive {
	d := directive.ImageTheme("a tiny sparkling treasure found in a sunny garden")
	d.Display = "小雲的神秘小發現"
	return d
}()

// Discovery runs the sub-flow state: per-user shown tracking over the pool
// plus the source policy.
type Discovery struct {
	policy *SourcePolicy
	pool   []string
	parser *directive.Parser
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]map[int]bool
	last map[string]int
}

// NewDiscovery creates the sub-flow over the built-in pool.
func NewDiscovery(cfg DiscoveryConfig, parser *directive.Parser, rng *rand.Rand, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		policy: NewSourcePolicy(cfg.GeneratorChance, rng),
		pool:   discoveryPool,
		parser: parser,
		logger: logger.With("component", "discovery"),
		seen:   make(map[string]map[int]bool),
		last:   make(map[string]int),
	}
}

// Next picks the discovery source for this user. When the pool is chosen
// it returns the payload and marks it shown; once the user has seen the
// whole pool the tracking resets so entries can recycle, except the one
// shown last, which never repeats back-to-back.
func (d *Discovery) Next(userID string) (payload string, useGenerator bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	choice := d.policy.Choose(d.unseenLocked(userID))
	if choice.UseGenerator {
		d.logger.Debug("discovery via generator", "user", userID)
		return "", true
	}

	seen := d.seen[userID]
	if seen == nil {
		seen = make(map[int]bool)
		d.seen[userID] = seen
	}
	seen[choice.PoolIndex] = true
	d.last[userID] = choice.PoolIndex

	if len(seen) >= len(d.pool) {
		// Pool exhausted for this user: reset so it can recycle.
		d.seen[userID] = make(map[int]bool)
		d.logger.Debug("discovery pool recycled", "user", userID)
	}

	d.logger.Debug("discovery from pool", "user", userID, "index", choice.PoolIndex)
	return d.pool[choice.PoolIndex], false
}

// unseenLocked lists pool indices still fresh for this user. After a
// recycle everything is fresh except the entry shown last.
func (d *Discovery) unseenLocked(userID string) []int {
	seen := d.seen[userID]
	last, hasLast := d.last[userID]

	var unseen []int
	for i := range d.pool {
		if seen[i] {
			continue
		}
		if len(seen) == 0 && hasLast && i == last {
			continue
		}
		unseen = append(unseen, i)
	}
	return unseen
}

// EnsureImageTheme guarantees a generated discovery carries an image. A
// response that parses as a directive list but has no image element gets
// the filler image appended; unparsable responses pass through untouched
// for the ordinary failure handling downstream.
func (d *Discovery) EnsureImageTheme(raw string) string {
	directives, err := d.parser.ParseJSON(raw)
	if err != nil || len(directives) == 0 {
		return raw
	}

	for _, dir := range directives {
		if dir.IsImage() {
			return raw
		}
	}

	d.logger.Warn("generated discovery had no image, inserting filler")
	if len(directives) >= directive.MaxDirectives {
		directives[len(directives)-1] = fillerDiscoveryImage
	} else {
		directives = append(directives, fillerDiscoveryImage)
	}

	encoded, err := directive.Encode(directives)
	if err != nil {
		return raw
	}
	return encoded
}
