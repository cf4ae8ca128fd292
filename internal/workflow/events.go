package workflow

import (
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

// Event announces a change of the attendance snapshot to passive subscribers
// such as dashboards.
type Event struct {
	State       State
	WorkMode    attendance.WorkMode
	Status      attendance.Status
	CheckInTime *time.Time
	RecordID    string
	BreakState  BreakState
	Provisional bool
}

func eventFrom(s Snapshot) Event {
	return Event{
		State:       s.State,
		WorkMode:    s.WorkMode,
		Status:      s.Status,
		CheckInTime: s.CheckInTime,
		RecordID:    s.RecordID,
		BreakState:  s.BreakState,
		Provisional: s.Provisional,
	}
}

const subscriberBuffer = 16

type subscribers struct {
	mu     sync.Mutex
	nextID int
	chans  map[int]chan Event
}

func (s *subscribers) add() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chans == nil {
		s.chans = make(map[int]chan Event)
	}
	id := s.nextID
	s.nextID++
	ch := make(chan Event, subscriberBuffer)
	s.chans[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.chans, id)
			close(ch)
		})
	}
}

// broadcast never blocks; a subscriber that falls behind misses events and
// should read the store's snapshot instead.
func (s *subscribers) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.chans {
		select {
		case ch <- ev:
		default:
		}
	}
}
