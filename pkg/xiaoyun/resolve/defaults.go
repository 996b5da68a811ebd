// defaults.go carries the built-in asset tables, used when no table file
// exists yet. IDs reference public LINE sticker packages.
package resolve

// DefaultTables returns the built-in asset tables.
func DefaultTables() *Tables {
	return &Tables{
		Stickers: map[string][]StickerAsset{
			"開心":  {{"11537", "52002745"}, {"789", "10857"}},
			"害羞":  {{"11537", "52002747"}},
			"愛心":  {{"6362", "11087934"}},
			"生氣":  {{"11537", "52002772"}},
			"哭哭":  {{"11537", "52002750"}},
			"驚訝":  {{"11537", "52002749"}},
			"思考":  {{"8525", "16581306"}},
			"睡覺":  {{"11537", "52002761"}},
			"無奈":  {{"789", "10881"}},
			"打招呼": {{"789", "10855"}},
			"讚":   {{"6362", "11087920"}},
			"調皮":  {{"11537", "52002758"}},
			"淡定":  {{"11537", "52002746"}},
			"肚子餓": {{"6362", "11087922"}},
			"好奇":  {{"11537", "52002744"}},
		},
		DetailedTriggers: map[string][]StickerAsset{
			"OK":   {{"6362", "11087920"}, {"8525", "16581290"}, {"11537", "52002740"}, {"789", "10858"}},
			"好的":   {{"6362", "11087920"}, {"8525", "16581290"}, {"789", "10858"}},
			"開動啦":  {{"6362", "11087922"}},
			"好累啊":  {{"6362", "11087923"}},
			"謝謝":   {{"6362", "11087928"}, {"8525", "16581291"}},
			"謝謝你":  {{"8525", "16581291"}},
			"麻煩你了": {{"6362", "11087931"}, {"8525", "16581307"}},
			"加油":   {{"6362", "11087933"}, {"6362", "11087942"}, {"8525", "16581313"}},
			"我愛你":  {{"6362", "11087934"}, {"8525", "16581301"}},
			"晚安":   {{"6362", "11087943"}, {"8525", "16581309"}, {"789", "10862"}},
			"鞠躬":   {{"11537", "52002739"}, {"6136", "10551380"}},
			"慶祝":   {{"6362", "11087940"}, {"11537", "52002734"}},
			"好期待":  {{"8525", "16581299"}},
			"辛苦了":  {{"8525", "16581300"}},
			"對不起":  {{"8525", "16581298"}},
			"磕頭道歉": {{"6136", "10551376"}},
			"拜託":   {{"11537", "52002770"}, {"6136", "10551389"}, {"8525", "16581305"}},
			"原來如此": {{"8525", "16581304"}},
			"慌張":   {{"8525", "16581311"}, {"11537", "52002756"}},
			"NO":   {{"11537", "52002760"}, {"789", "10860"}, {"789", "10882"}},
		},
		StickerMeanings: map[string]string{
			"11087920": "OK，好的",
			"11087922": "開動啦",
			"11087923": "好累啊",
			"11087928": "謝謝，感激不盡",
			"11087931": "麻煩你了",
			"11087933": "加油加油，吶喊加油",
			"11087934": "我愛你",
			"11087940": "慶祝",
			"11087943": "晚安囉",
			"16581291": "謝謝你！",
			"16581298": "對不起",
			"16581299": "好期待",
			"16581300": "辛苦了",
			"16581304": "原來如此！",
			"16581306": "思考",
			"16581309": "晚安",
			"16581310": "哭哭",
			"16581311": "慌張",
			"52002734": "慶祝",
			"52002739": "鞠躬",
			"52002744": "疑惑",
			"52002745": "好開心",
			"52002747": "害羞",
			"52002749": "驚訝",
			"52002750": "哭哭，悲傷",
			"52002756": "怎麼辦，慌張",
			"52002758": "扮鬼臉",
			"52002760": "NO，不要，不是",
			"52002761": "睡覺，累",
			"52002770": "拜託",
			"52002772": "生氣",
			"10855":    "打招呼",
			"10857":    "開心",
			"10858":    "OKAY，好的",
			"10860":    "NO，不是",
			"10862":    "GOOD NIGHT，晚安",
			"10879":    "傷心，難過，哭哭",
			"10881":    "無聊，無奈",
			"10882":    "搖頭，不，沒有",
			"10551376": "磕頭道歉",
			"10551380": "鞠躬",
			"10551389": "拜託",
		},
		Sounds: map[string]SoundAsset{
			"soft_meow":     {File: "soft_meow.m4a", DurationMS: 1200},
			"curious_meow":  {File: "curious_meow.m4a", DurationMS: 1500},
			"purr":          {File: "purr.m4a", DurationMS: 3200},
			"hungry_meow":   {File: "hungry_meow.m4a", DurationMS: 1800},
			"sleepy_yawn":   {File: "sleepy_yawn.m4a", DurationMS: 2100},
			"startled_meow": {File: "startled_meow.m4a", DurationMS: 900},
			"happy_trill":   {File: "happy_trill.m4a", DurationMS: 1400},
		},
		Images: map[string]string{
			"self_portrait":         "https://storage.googleapis.com/xiaoyun-assets/self_portrait.jpg",
			"self_portrait_sleepy":  "https://storage.googleapis.com/xiaoyun-assets/self_portrait_sleepy.jpg",
			"self_portrait_play":    "https://storage.googleapis.com/xiaoyun-assets/self_portrait_play.jpg",
			"self_portrait_blanket": "https://storage.googleapis.com/xiaoyun-assets/self_portrait_blanket.jpg",
		},
		DefaultImageKey: "self_portrait",
	}
}

// fallbackStickerKeywords is the ordered chain tried when a requested
// sticker keyword resolves to nothing.
var fallbackStickerKeywords = []string{"害羞", "思考", "好奇", "開心", "無奈"}

// hardcodedFallbackSticker is the terminal fallback when even the chain
// fails (empty or misconfigured tables). Shy Xiaoyun.
var hardcodedFallbackSticker = StickerAsset{PackageID: "11537", StickerID: "52002747"}

// commonStickerMeanings is sampled when a user-sent sticker ID has no
// reverse-lookup entry.
var commonStickerMeanings = []string{"開心", "好奇", "驚訝", "思考", "無奈", "睡覺", "害羞"}
