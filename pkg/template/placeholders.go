package template

import (
	"regexp"
	"strconv"
	"time"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)\s*\}\}`)

// placeholderValues are the named substitutions available to templated
// content (spec §4.9 step 3).
type placeholderValues struct {
	UserID         string
	ConversationID string
	AgentName      string
	CurrentItem    int // 1-based
	TotalItems     int
	Now            time.Time
}

// substitute replaces every recognized {{placeholder}} in text. Unknown
// placeholders are left untouched.
func substitute(text string, v placeholderValues) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		switch name {
		case "user_id":
			return v.UserID
		case "conversation_id":
			return v.ConversationID
		case "agent_name":
			return v.AgentName
		case "current_item":
			return strconv.Itoa(v.CurrentItem)
		case "total_items":
			return strconv.Itoa(v.TotalItems)
		case "timestamp":
			return v.Now.UTC().Format(time.RFC3339)
		default:
			return match
		}
	})
}
