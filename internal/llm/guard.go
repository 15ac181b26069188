package llm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minPromptLength = 5
	maxPromptLength = 500
)

// Rejection reasons returned by ValidateUserPrompt
const (
	ReasonTooShort       = "description too short"
	ReasonTooLong        = "description too long"
	ReasonInvalidRequest = "invalid request for this context"
)

// Instruction-override vocabulary, English and French
var blockedPatterns = []*regexp.Regexp{
	wordPattern("ignore", "oublie", "forget"),
	wordPattern("jailbreak", "bypass", "hack", "exploit"),
	wordPattern("écris un", "write a", "raconte", "tell me"),
	wordPattern("code python", "javascript", "script"),
	wordPattern("fais semblant", "pretend", "act as"),
}

// wordPattern matches any of words as whole words. \b only knows ASCII
// letters, so the boundaries are spelled out over Unicode letters and digits.
func wordPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}_])`)
}

// ValidateUserPrompt checks a user-supplied document description before it
// is allowed into a prompt. It returns false and a reason when rejected.
func ValidateUserPrompt(prompt string) (bool, string) {
	n := utf8.RuneCountInString(prompt)
	if n < minPromptLength {
		return false, ReasonTooShort
	}
	if n > maxPromptLength {
		return false, ReasonTooLong
	}

	for _, pattern := range blockedPatterns {
		if pattern.MatchString(prompt) {
			return false, ReasonInvalidRequest
		}
	}
	return true, ""
}
