// Package console turns engine console output into gameplay events.
package console

import (
	"regexp"
	"strings"

	"wadlib/internal/model"
)

// Line is one line of console output stamped with the milliseconds elapsed
// since the engine started.
type Line struct {
	TimeMs int64
	Text   string
}

// Patterns are tried in this order and the first match wins. Every pattern
// is anchored to the whole (trimmed) line.
//
// A death line after a bare "Player" must start with an obituary verb, so
// "Player joined the game." stays a message.
var (
	levelPattern  = regexp.MustCompile(`(?i)^(MAP\d+|E\d+M\d+) - (.+)$`)
	deathPattern  = regexp.MustCompile(`^(?:(?:Player was|You were) (.+?)|Player ((?:` + obituaryVerbs + `)\b.*?))\.$`)
	pickupPattern = regexp.MustCompile(`^(?:Picked up|You got) ([^.!]+?)\s*[.!].*$`)
	secretPattern = regexp.MustCompile(`(?i)^(?:A secret (?:is|has been) revealed!?|You(?:'ve)? found a secret(?: area)?[.!]?)$`)
)

const obituaryVerbs = `died|fell|drowned|melted|mutated|exploded|burned|suicides|killed|can't|couldn't|tried|stood|thought|should|mistook`

// Classify returns one event per non-blank line, in input order.
func Classify(lines []Line) []model.GameplayEvent {
	events := make([]model.GameplayEvent, 0, len(lines))
	for _, l := range lines {
		ev, ok := ClassifyLine(l.TimeMs, l.Text)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events
}

// ClassifyLine classifies a single line. ok is false for blank lines.
func ClassifyLine(timeMs int64, text string) (ev model.GameplayEvent, ok bool) {
	line := strings.TrimSpace(text)
	if line == "" {
		return model.GameplayEvent{}, false
	}

	ev = model.GameplayEvent{Type: model.EventMessage, TimeMs: timeMs, Line: line}
	if m := levelPattern.FindStringSubmatch(line); m != nil {
		ev.Type = model.EventLevelEnter
		ev.MapID = strings.ToUpper(m[1])
		ev.MapName = strings.TrimSpace(m[2])
	} else if m := deathPattern.FindStringSubmatch(line); m != nil {
		ev.Type = model.EventDeath
		ev.Cause = m[1] + m[2]
	} else if m := pickupPattern.FindStringSubmatch(line); m != nil {
		ev.Type = model.EventPickup
		ev.Item = m[1]
	} else if secretPattern.MatchString(line) {
		ev.Type = model.EventSecret
	}
	return ev, true
}

// Counts tallies events by type.
func Counts(events []model.GameplayEvent) map[model.EventType]int {
	counts := make(map[model.EventType]int)
	for _, ev := range events {
		counts[ev.Type]++
	}
	return counts
}
