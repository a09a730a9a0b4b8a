package thread

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const estimateEncoding = "cl100k_base"

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// EstimateUsage approximates token usage for messages whose originating
// runtime reported no usage block. Completion messages count as output,
// everything else as input.
func EstimateUsage(messages []Message) Usage {
	var usage Usage
	for _, msg := range messages {
		tokens := countTokens(msg.Content)
		if msg.Role == RoleAssistant {
			usage.OutputTokens += tokens
		} else {
			usage.InputTokens += tokens
		}
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	return usage
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(estimateEncoding)
		if err == nil {
			encoder = enc
		}
	})
	if encoder == nil {
		// Coarse fallback when the encoding tables are unavailable.
		return (len(text) + 3) / 4
	}
	return len(encoder.Encode(text, nil, nil))
}
