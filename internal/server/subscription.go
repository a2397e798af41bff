package server

import (
	"strings"

	"github.com/aristath/rebalancer/internal/events"
	"github.com/rs/zerolog"
)

// parseTypesFilter turns "A,B" into a set; an empty filter allows everything
func parseTypesFilter(raw string) map[events.EventType]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed[events.EventType(strings.ToUpper(t))] = true
		}
	}
	return allowed
}

// subscribe forwards matching events into a buffered channel. Events are
// dropped when the consumer falls behind. The returned func unsubscribes.
func subscribe(bus *events.Bus, allowed map[events.EventType]bool, buffer int, log zerolog.Logger) (<-chan *events.Event, func()) {
	ch := make(chan *events.Event, buffer)
	handler := func(event *events.Event) {
		select {
		case ch <- event:
		default:
			log.Warn().Str("event_type", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}

	var unsubscribers []func()
	for _, eventType := range events.AllEventTypes {
		if allowed != nil && !allowed[eventType] {
			continue
		}
		unsubscribers = append(unsubscribers, bus.Subscribe(eventType, handler))
	}

	return ch, func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}
}
