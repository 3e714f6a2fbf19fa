package agentloop

import (
	"regexp"
	"strings"
)

// The guards below are best-effort pattern matches on natural-language
// phrasing. They nudge a model that narrates instead of acting, or that
// finishes an action without reporting it; the round budget remains the
// only hard backstop.

// actionVerbs are verbs that imply the user wants something done, not just
// described.
var actionVerbs = []string{
	"create", "write", "make", "add", "build", "generate",
	"delete", "remove", "drop",
	"modify", "update", "change", "edit", "rename", "refactor", "fix",
	"run", "execute", "install", "start", "stop", "restart", "deploy",
}

// announcementRe matches responses that declare future intent instead of
// acting ("I will create...", "Let me delete...", "Next, I'm going to run...").
var announcementRe = regexp.MustCompile(`(?i)\b(i\s+will|i'll|i\s+am\s+going\s+to|i'm\s+going\s+to|let\s+me|let's|going\s+to|next,?\s+i)\b`)

// wordRe splits text into lowercase word tokens for verb matching.
var wordRe = regexp.MustCompile(`[a-z]+`)

// containsActionVerb reports whether the text mentions any action verb as a
// whole word.
func containsActionVerb(text string) bool {
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		for _, v := range actionVerbs {
			if w == v || w == v+"s" || w == v+"d" || w == v+"ed" || w == v+"ing" {
				return true
			}
		}
	}
	return false
}

// AnnouncesAction reports whether a response reads as a declaration of
// future intent to act, rather than an action or a completed-work summary.
func AnnouncesAction(text string) bool {
	return announcementRe.MatchString(text) && containsActionVerb(text)
}

// infoCapabilities are capabilities that only gather information; invoking
// one does not count as having acted on the user's request.
var infoCapabilities = map[string]bool{
	"read_file":            true,
	"list_directory":       true,
	"browser_navigate":     true,
	"browser_screenshot":   true,
	"browser_console_logs": true,
}

// IsInfoCapability reports whether a capability name is classified as
// information-gathering rather than action-class.
func IsInfoCapability(name string) bool {
	if infoCapabilities[name] {
		return true
	}
	return strings.HasPrefix(name, "get_") || strings.HasPrefix(name, "list_") || strings.HasPrefix(name, "read_")
}

// hasActionDispatch reports whether any action-class capability has been
// dispatched in the given invocation log.
func hasActionDispatch(log []ToolInvocation) bool {
	for _, inv := range log {
		if !IsInfoCapability(inv.Tool) {
			return true
		}
	}
	return false
}

// Minimal-sentence threshold: a final response after actions were taken
// must read as at least a short sentence ("File created.") to count as a
// completion summary. Bare acknowledgements ("Done.", "ok") do not.
const (
	minSummaryWords = 2
	minSummaryChars = 8
)

// tooTerse reports whether a response is below the summary threshold.
func tooTerse(text string) bool {
	return len(strings.Fields(text)) < minSummaryWords || len(text) < minSummaryChars
}
