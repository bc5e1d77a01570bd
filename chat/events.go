package chat

import (
	"time"

	"github.com/karthikraju391/pairchat/models"
)

// Event types sent to a remote renderer.
const (
	EventInserted     = "inserted"
	EventScroll       = "scroll"
	EventInputCleared = "input_cleared"
	EventNotice       = "notice"
)

// Event is the wire form of one Presenter call.
type Event struct {
	Type     string          `json:"type"`
	Index    *int            `json:"index,omitempty"`
	Side     Side            `json:"side,omitempty"`
	Message  *models.Message `json:"message,omitempty"`
	Rendered string          `json:"rendered,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// EventPresenter forwards presenter calls as Events.
type EventPresenter struct {
	Emit     func(Event)
	Location *time.Location
}

func (p EventPresenter) ItemInserted(index int, item Item) {
	m := item.Message
	p.Emit(Event{
		Type:     EventInserted,
		Index:    &index,
		Side:     item.Side,
		Message:  &m,
		Rendered: Render(item, p.Location),
	})
}

func (p EventPresenter) ScrollTo(index int) {
	p.Emit(Event{Type: EventScroll, Index: &index})
}

func (p EventPresenter) InputCleared() {
	p.Emit(Event{Type: EventInputCleared})
}

func (p EventPresenter) Notice(err error) {
	p.Emit(Event{Type: EventNotice, Error: err.Error()})
}
