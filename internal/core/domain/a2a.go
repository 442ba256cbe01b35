package domain

import (
	"sync"
	"time"
)

// AgentMessage is one inter-stage event recorded for observability.
type AgentMessage struct {
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const agentLogCapacity = 100

// AgentLog is a bounded FIFO of inter-stage events. Oldest entries are
// dropped once the capacity is reached. It is diagnostic only and must
// never feed back into routing decisions. Appends may arrive from
// concurrently running threads, hence the lock.
type AgentLog struct {
	mu      sync.Mutex
	entries []AgentMessage
}

func NewAgentLog() *AgentLog {
	return &AgentLog{}
}

func (l *AgentLog) Append(msg AgentMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
	if len(l.entries) > agentLogCapacity {
		l.entries = l.entries[len(l.entries)-agentLogCapacity:]
	}
}

// Entries returns a snapshot copy in append order.
func (l *AgentLog) Entries() []AgentMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AgentMessage(nil), l.entries...)
}

func (l *AgentLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
