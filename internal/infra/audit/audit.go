// Package audit persists the marketplace audit trail. Records are queued
// and written by a single background writer so engine hot paths never wait
// on disk.
package audit

import (
	"log"
	"sync"
	"time"

	"github.com/agora-network/agora/internal/infra/sqlite"
)

// queueDepth bounds the in-flight records. A full queue drops the record
// and logs; audit must never stall the marketplace.
const queueDepth = 1024

type entry struct {
	at      time.Time
	action  string
	taskID  string
	agentID string
	detail  string
}

// Logger writes audit records to SQLite. Implements domain.AuditSink.
type Logger struct {
	db    *sqlite.DB
	queue chan entry
	done  chan struct{}
	once  sync.Once
	now   func() time.Time
}

// NewLogger starts an audit logger over the given database.
func NewLogger(db *sqlite.DB) *Logger {
	l := &Logger{
		db:    db,
		queue: make(chan entry, queueDepth),
		done:  make(chan struct{}),
		now:   time.Now,
	}
	go l.run()
	return l
}

// Record queues one audit record. Never blocks; a full queue drops the
// record with a log line.
func (l *Logger) Record(action, taskID, agentID, detail string) {
	e := entry{at: l.now(), action: action, taskID: taskID, agentID: agentID, detail: detail}
	select {
	case l.queue <- e:
	default:
		log.Printf("[audit] queue full, dropping %s task=%s", action, taskID)
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		if err := l.db.AppendAudit(e.at, e.action, e.taskID, e.agentID, e.detail); err != nil {
			log.Printf("[audit] write failed for %s task=%s: %v", e.action, e.taskID, err)
		}
	}
}

// Close drains the queue and stops the writer. Records queued after Close
// panic, so it is called only on daemon shutdown.
func (l *Logger) Close() {
	l.once.Do(func() {
		close(l.queue)
		<-l.done
	})
}

// Recent returns the newest audit records, most recent first.
func (l *Logger) Recent(limit int) ([]sqlite.AuditEntry, error) {
	return l.db.RecentAudit(limit)
}

// ForTask returns every audit record for one task, oldest first.
func (l *Logger) ForTask(taskID string) ([]sqlite.AuditEntry, error) {
	return l.db.AuditForTask(taskID)
}
