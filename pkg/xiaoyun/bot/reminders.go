// reminders.go builds the optional per-turn context hints: lightweight
// heuristics over the previous exchange that keep the model on topic, plus
// a non-binding time-of-day mood suggestion.
package bot

import (
	"strings"
	"time"
	"unicode/utf8"
)

// hungerMarkers / sadnessMarkers detect what the bot just expressed.
var (
	hungerMarkers  = []string{"肚子餓", "好餓", "餓了", "想吃", "罐罐"}
	sadnessMarkers = []string{"難過", "傷心", "哭哭", "嗚嗚", "委屈", "寂寞"}
	foodMarkers    = []string{"吃", "魚", "罐罐", "零食", "草莓", "點心", "飯", "肉"}
	comfortMarkers = []string{"乖", "摸摸", "秀秀", "抱抱", "拍拍", "別哭", "不哭", "還好嗎"}
)

// fillerTokens are short replies that continue the bot's prior utterance
// rather than open a new topic.
var fillerTokens = map[string]bool{
	"嗯":   true,
	"嗯嗯":  true,
	"喔":   true,
	"哦":   true,
	"喔喔":  true,
	"是喔":  true,
	"真的嗎": true,
	"然後呢": true,
	"再來呢": true,
	"還有呢": true,
	"呢":   true,
	"？":   true,
	"?":   true,
}

// ContextualReminder inspects the bot's previous turn and the user's new
// message and returns an instruction string for the model, or "" when no
// heuristic applies. At most one reminder fires per turn, in priority
// order.
func ContextualReminder(prevBotTurn, userMessage string) string {
	msg := strings.TrimSpace(userMessage)
	if msg == "" {
		return ""
	}

	if containsAny(prevBotTurn, hungerMarkers) && containsAny(msg, foodMarkers) {
		return "（情境提示：小雲剛才表達過肚子餓，而使用者現在提到了食物。請讓小雲表現出熱切期待的反應，圍繞著食物話題回應。）"
	}

	if (containsAny(prevBotTurn, hungerMarkers) || containsAny(prevBotTurn, sadnessMarkers)) &&
		isShortEmpathetic(msg) {
		return "（情境提示：使用者正在簡短地安慰或回應小雲剛才表達的情緒。請讓小雲停留在這個情緒話題上回應使用者的關心，不要跳到新話題。）"
	}

	if utf8.RuneCountInString(msg) <= 5 && fillerTokens[msg] {
		return "（情境提示：使用者的訊息很短，是在附和或催促小雲繼續。請把它當成對小雲上一句話的延續來回應，接著原本的話題說下去，不要當成新話題。）"
	}

	return ""
}

// isShortEmpathetic reports whether a message is a brief comforting reply.
func isShortEmpathetic(msg string) bool {
	return utf8.RuneCountInString(msg) <= 12 && containsAny(msg, comfortMarkers)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// TimeOfDayHint returns a low-weight mood suggestion for the hour,
// explicitly framed as non-binding flavor subordinate to what the user
// actually says.
func TimeOfDayHint(now time.Time) string {
	var mood string
	switch hour := now.Hour(); {
	case hour < 6:
		mood = "現在是深夜，小雲可能剛從小被被裡被吵醒，睡眼惺忪、講話慢慢的"
	case hour < 11:
		mood = "現在是早上，小雲精神很好，可能剛吃完早餐在窗邊曬太陽"
	case hour < 14:
		mood = "現在是中午，小雲有點想睡午覺，慵懶慵懶的"
	case hour < 18:
		mood = "現在是下午，小雲睡飽了，正是想玩逗貓棒的時候"
	default:
		mood = "現在是晚上，家裡燈光暖暖的，小雲放鬆又想撒嬌"
	}
	return "（氛圍參考，權重很低：" + mood + "。這只是背景氣氛，如果和使用者說的內容無關就忽略它，永遠以回應使用者為優先。）"
}
