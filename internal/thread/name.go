// Package thread maps conversation threads onto resumable engine sessions.
// The thread display name is the durable anchor: it encodes the engine
// session id so a restarted process can still resume old conversations.
package thread

import (
	"regexp"
	"strings"
)

// NamePrefix marks a thread as one of ours. A thread whose name starts with
// this prefix is a follow-up surface; a plain channel message carrying the
// wake word is a new call. The two cases are mutually exclusive.
const NamePrefix = "Bobby - "

// maxNameLen is the platform limit on channel names.
const maxNameLen = 100

var sessionIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// EncodeName builds the full "<prefix><title> - <sessionID>" display name,
// shortening the title as needed to stay within the platform limit.
func EncodeName(title, sessionID string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return AbbreviatedName(sessionID)
	}
	name := NamePrefix + title + " - " + sessionID
	if len(name) <= maxNameLen {
		return name
	}
	runes := []rune(title)
	overhead := len(NamePrefix) + len(" - ") + len(sessionID)
	for len(runes) > 0 && len(string(runes))+overhead > maxNameLen {
		runes = runes[:len(runes)-1]
	}
	shortened := strings.TrimSpace(string(runes))
	if shortened == "" {
		return AbbreviatedName(sessionID)
	}
	return NamePrefix + shortened + " - " + sessionID
}

// AbbreviatedName is the degraded fallback used when setting the full name
// fails.
func AbbreviatedName(sessionID string) string {
	return NamePrefix + sessionID
}

// DecodeSessionID resolves a thread display name back to an engine session
// id. The segment after the last " - " separator must look like a session id;
// anything else (including a truncated name) means the thread has no
// resolvable session.
func DecodeSessionID(name string) (string, bool) {
	idx := strings.LastIndex(name, " - ")
	if idx < 0 {
		return "", false
	}
	candidate := name[idx+len(" - "):]
	if !sessionIDPattern.MatchString(candidate) {
		return "", false
	}
	return candidate, true
}

// IsFollowUp reports whether a thread name classifies the thread as a
// follow-up surface for the bot.
func IsFollowUp(name string) bool {
	return strings.HasPrefix(name, NamePrefix)
}
