package session

import "grid-trading-lab/internal/domain"

// Observer receives committed session events. Calls happen after the
// session lock is released, in commit order, on the goroutine that
// drove the change. Implementations must not block.
type Observer interface {
	OnTick(sessionID string, tick domain.PriceTick, equity float64)
	OnExecution(sessionID string, exec *domain.OrderExecution)
	OnStateChange(sessionID string, from, to domain.SessionState)
	OnGridChange(sessionID string, grid *domain.SimulatedGrid)
}

// event is a deferred observer notification.
type event func(o Observer)

func (s *Session) notify(events []event) {
	for _, o := range s.observers {
		for _, ev := range events {
			ev(o)
		}
	}
}

func tickEvent(id string, tick domain.PriceTick, equity float64) event {
	return func(o Observer) { o.OnTick(id, tick, equity) }
}

func executionEvent(id string, exec *domain.OrderExecution) event {
	c := *exec
	return func(o Observer) { o.OnExecution(id, &c) }
}

func stateEvent(id string, from, to domain.SessionState) event {
	return func(o Observer) { o.OnStateChange(id, from, to) }
}

func gridEvent(id string, g *domain.SimulatedGrid) event {
	return func(o Observer) { o.OnGridChange(id, g) }
}
