// Package journal persists the learning journal: every reputation,
// capability-weight, penalty, and strategy update the incentive engine
// makes. Like the audit log, writes are queued off the hot path.
package journal

import (
	"log"
	"sync"

	"github.com/agora-network/agora/internal/domain"
	"github.com/agora-network/agora/internal/infra/sqlite"
)

const queueDepth = 1024

// Journal writes learning events to SQLite. Implements
// domain.LearningJournal.
type Journal struct {
	db    *sqlite.DB
	queue chan domain.LearningEvent
	done  chan struct{}
	once  sync.Once
}

// New starts a learning journal over the given database.
func New(db *sqlite.DB) *Journal {
	j := &Journal{
		db:    db,
		queue: make(chan domain.LearningEvent, queueDepth),
		done:  make(chan struct{}),
	}
	go j.run()
	return j
}

// RecordLearning queues one learning event. Never blocks.
func (j *Journal) RecordLearning(ev domain.LearningEvent) {
	select {
	case j.queue <- ev:
	default:
		log.Printf("[journal] queue full, dropping %s agent=%s", ev.Kind, ev.AgentID)
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for ev := range j.queue {
		if err := j.db.AppendLearning(ev); err != nil {
			log.Printf("[journal] write failed for %s agent=%s: %v", ev.Kind, ev.AgentID, err)
		}
	}
}

// Close drains the queue and stops the writer.
func (j *Journal) Close() {
	j.once.Do(func() {
		close(j.queue)
		<-j.done
	})
}

// ForAgent returns the newest learning events for one agent, most recent
// first.
func (j *Journal) ForAgent(agentID string, limit int) ([]domain.LearningEvent, error) {
	return j.db.LearningForAgent(agentID, limit)
}
