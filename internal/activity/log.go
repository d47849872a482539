// Package activity turns simulation events into human-readable log lines and
// fans them out to external sinks.
package activity

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/wardsim/internal/models"
)

// DefaultLogSize is the number of lines the in-memory log retains.
const DefaultLogSize = 200

// Entry is one formatted activity line.
type Entry struct {
	Seq     uint64           `json:"seq"`
	At      time.Duration    `json:"at"`
	Sim     string           `json:"sim"`
	Drive   string           `json:"drive"`
	Kind    models.EventKind `json:"kind"`
	Message string           `json:"message"`
}

// String renders the entry as "[hh:mm:ss] [PRED] [AUTO] message".
func (e Entry) String() string {
	return fmt.Sprintf("[%s] [%s] [%s] %s", Clock(e.At), e.Sim, e.Drive, e.Message)
}

// Clock formats simulated time as hh:mm:ss.
func Clock(d time.Duration) string {
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// Log is a bounded in-memory activity log. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	size    int
	entries []Entry
}

// NewLog creates a log holding at most size entries.
func NewLog(size int) *Log {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &Log{size: size}
}

// OnEvents appends one entry per event.
func (l *Log) OnEvents(b models.EventBatch) {
	sim, drive := b.Mode.Tags()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range b.Events {
		l.entries = append(l.entries, Entry{
			Seq:     e.Seq,
			At:      e.At,
			Sim:     sim,
			Drive:   drive,
			Kind:    e.Kind,
			Message: Describe(e),
		})
	}
	if over := len(l.entries) - l.size; over > 0 {
		l.entries = append(l.entries[:0], l.entries[over:]...)
	}
}

// OnTick is a no-op; the log records events only.
func (l *Log) OnTick(models.TickMetrics) {}

// Recent returns up to n of the newest entries, oldest first. n <= 0 returns all.
func (l *Log) Recent(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := 0
	if n > 0 && n < len(l.entries) {
		start = len(l.entries) - n
	}
	out := make([]Entry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Export writes every retained entry as one line.
func (l *Log) Export(w io.Writer) error {
	var sb strings.Builder
	for _, e := range l.Recent(0) {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("exporting activity log: %w", err)
	}
	return nil
}

// Describe renders an event as a sentence.
func Describe(e models.Event) string {
	switch e.Kind {
	case models.EventActorAdded:
		return fmt.Sprintf("Added %s %s in %s", e.Detail, e.ActorID, e.RoomID)
	case models.EventActorRemoved:
		return fmt.Sprintf("Removed %s from %s", e.ActorID, orNowhere(e.RoomID))
	case models.EventRoomEntered:
		return fmt.Sprintf("%s entered %s", e.ActorID, e.RoomID)
	case models.EventRoomExited:
		return fmt.Sprintf("%s left %s", e.ActorID, e.RoomID)
	case models.EventMoveRejected:
		return fmt.Sprintf("Move of %s to %s rejected: %s", e.ActorID, e.RoomID, e.Detail)
	case models.EventEquipmentStateChanged:
		return fmt.Sprintf("%s/%s %s -> %s", e.RoomID, e.Equipment, e.From, e.To)
	case models.EventExaminationStarted:
		return fmt.Sprintf("Examination started in %s", e.RoomID)
	case models.EventExaminationEnded:
		return fmt.Sprintf("Examination ended in %s", e.RoomID)
	case models.EventPredictionMade:
		return fmt.Sprintf("Predicted %s %s -> %s (%.0f%%)", e.ActorID, e.From, e.To, e.Confidence*100)
	case models.EventPredictionHit:
		return fmt.Sprintf("Prediction hit: %s reached %s", e.ActorID, e.To)
	case models.EventPredictionMiss:
		return fmt.Sprintf("Prediction miss: %s went to %s", e.ActorID, e.To)
	case models.EventPreloadStarted:
		return fmt.Sprintf("Preloading %s (%s)", e.RoomID, e.Detail)
	case models.EventPreloadWasted:
		return fmt.Sprintf("Preload wasted: %s/%s %s", e.RoomID, e.Equipment, e.Detail)
	default:
		return string(e.Kind)
	}
}

func orNowhere(id string) string {
	if id == "" {
		return "nowhere"
	}
	return id
}
