package dispatch

import (
	"context"
	"errors"

	"github.com/swarmpush/swarmpush/internal/selection"
)

// Session sends to whatever is currently selected. The selection is cleared
// after an accepted broadcast and kept after a failed one so the operator can
// try again.
type Session struct {
	selection *selection.Store
	engine    *Engine
}

// NewSession couples a selection with an engine.
func NewSession(sel *selection.Store, engine *Engine) *Session {
	return &Session{selection: sel, engine: engine}
}

// Selection returns the session's selection store.
func (s *Session) Selection() *selection.Store {
	return s.selection
}

// Send broadcasts to the current selection.
func (s *Session) Send(ctx context.Context, title, body string) (*Result, error) {
	recipients := s.selection.Snapshot()
	if len(recipients) == 0 {
		s.selection.Clear()
		return nil, ErrEmptySelection
	}

	res, err := s.engine.Send(ctx, recipients, title, body)
	if errors.Is(err, ErrEmptySelection) {
		// Only blank ids were selected.
		s.selection.Clear()
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.selection.Clear()
	return res, nil
}
