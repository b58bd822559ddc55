// Package events carries orchestrator progress to subscribers of a page.
package events

import (
	"sync"
	"time"

	"github.com/codefionn/hyphertext/internal/logger"
)

// Type classifies an event.
type Type string

const (
	// TypeStage reports a state machine transition
	TypeStage Type = "stage"
	// TypeStatus reports a request status change
	TypeStatus Type = "status"
	// TypeTool reports one executed tool call
	TypeTool Type = "tool"
	// TypeMessage carries an assistant message that was stored
	TypeMessage Type = "message"
	// TypePage reports that the document changed
	TypePage Type = "page"
)

// Stage is a position in the request state machine.
type Stage string

const (
	StageReceived        Stage = "received"
	StageAssetsProcessed Stage = "assets_processed"
	StagePlanned         Stage = "planned"
	StageClarifying      Stage = "clarifying"
	StageExecuting       Stage = "executing"
	StageRecorded        Stage = "recorded"
)

// Event is one progress notification.
type Event struct {
	Type      Type      `json:"type"`
	PageID    string    `json:"page_id"`
	MessageID string    `json:"message_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Stage     Stage     `json:"stage,omitempty"`
	Content   string    `json:"content,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Time      time.Time `json:"time"`
}

// Publisher delivers events. Implementations must not block the caller for
// long and must be safe for concurrent use.
type Publisher interface {
	Publish(ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(ev Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ev)
		}
	}
}

// Log writes every event to a logger at debug level.
type Log struct {
	Logger *logger.Logger
}

func (l Log) Publish(ev Event) {
	if l.Logger == nil || !l.Logger.Enabled(logger.LevelDebug) {
		return
	}
	detail := string(ev.Stage)
	switch ev.Type {
	case TypeStatus:
		detail = ev.Status
	case TypeTool:
		detail = ev.Tool
	case TypeMessage, TypePage:
		detail = ev.MessageID
	}
	l.Logger.Debug("page %s: %s %s", ev.PageID, ev.Type, detail)
}

// Recorder keeps every event in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Stages returns the recorded stage transitions in order.
func (r *Recorder) Stages() []Stage {
	var out []Stage
	for _, ev := range r.Events() {
		if ev.Type == TypeStage {
			out = append(out, ev.Stage)
		}
	}
	return out
}
