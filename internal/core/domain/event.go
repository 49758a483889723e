package domain

import "strings"

// EventName identifies a contract event the pipeline knows how to apply.
type EventName string

const (
	EventContributionReceived EventName = "ContributionReceived"
	EventRoundCompleted       EventName = "RoundCompleted"
)

// KnownEvents lists every event name with a handler.
var KnownEvents = []EventName{
	EventContributionReceived,
	EventRoundCompleted,
}

// ParseEventName matches s case-insensitively against KnownEvents.
func ParseEventName(s string) (EventName, bool) {
	s = strings.TrimSpace(s)
	for _, name := range KnownEvents {
		if strings.EqualFold(s, string(name)) {
			return name, true
		}
	}
	return "", false
}

// ContractEvent is a recognized event decoded from transaction metadata.
type ContractEvent struct {
	Name       EventName
	ContractID string
	Topics     []Value
	Payload    Payload
}
