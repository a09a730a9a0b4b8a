package utils

import (
	"strings"
	"testing"
)

func TestSanitizeLogLineRedactsBearerTokens(t *testing.T) {
	t.Parallel()

	line := `request header authorization: Bearer abc123def456ghi789`
	sanitized := sanitizeLogLine(line)
	if strings.Contains(sanitized, "abc123def456ghi789") {
		t.Fatalf("expected bearer token to be redacted, got %q", sanitized)
	}
}

func TestSanitizeLogLineRedactsAPIKeys(t *testing.T) {
	t.Parallel()

	line := `loaded config api_key=sk-aaaabbbbccccddddeeee`
	sanitized := sanitizeLogLine(line)
	if strings.Contains(sanitized, "sk-aaaabbbbccccddddeeee") {
		t.Fatalf("expected api key to be redacted, got %q", sanitized)
	}
}

func TestSanitizeLogLineLeavesOrdinaryTextAlone(t *testing.T) {
	t.Parallel()

	line := "task state updated: review successful"
	if got := sanitizeLogLine(line); got != line {
		t.Fatalf("expected line unchanged, got %q", got)
	}
}
