package events

import "sync"

// Retention limits per event class.
const (
	executionKeep = 50
	mcpKeep       = 20
	workflowKeep  = 20
	knowledgeKeep = 20
)

// Retention keeps the most recent events of selected types for one
// subscriber. Oldest entries are evicted first; MCP updates replace a
// buffered entry in place when the serverId matches.
type Retention struct {
	mu        sync.Mutex
	execution []Event
	mcp       []Event
	workflow  []Event
	knowledge []Event
}

// Apply records e into the matching buffer. Types outside the retention
// policy are not buffered.
func (r *Retention) Apply(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case TypeExecutionUpdate:
		r.execution = appendBounded(r.execution, e, executionKeep)
	case TypeMCPUpdate:
		if id := mcpServerID(e.Payload); id != "" {
			for i := range r.mcp {
				if mcpServerID(r.mcp[i].Payload) == id {
					r.mcp[i] = e
					return
				}
			}
		}
		r.mcp = appendBounded(r.mcp, e, mcpKeep)
	case TypeWorkflowUpdate:
		r.workflow = appendBounded(r.workflow, e, workflowKeep)
	case TypeKnowledgeGraphUpdate:
		r.knowledge = appendBounded(r.knowledge, e, knowledgeKeep)
	case TypeRunStarted, TypeRunEnded, TypeTextMessageContent,
		TypeAgentStatus, TypeGraphInsight:
		// Transient types, not retained.
	}
}

func appendBounded(buf []Event, e Event, keep int) []Event {
	buf = append(buf, e)
	if len(buf) > keep {
		copy(buf, buf[len(buf)-keep:])
		buf = buf[:keep]
	}
	return buf
}

// mcpServerID extracts the serverId from a typed or decoded-JSON payload.
func mcpServerID(payload any) string {
	switch p := payload.(type) {
	case MCPUpdatePayload:
		return p.ServerID
	case *MCPUpdatePayload:
		return p.ServerID
	case map[string]any:
		if id, ok := p["serverId"].(string); ok {
			return id
		}
	}
	return ""
}

// Execution returns a copy of the buffered execution updates, oldest first.
func (r *Retention) Execution() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyEvents(r.execution)
}

// MCP returns a copy of the buffered MCP updates.
func (r *Retention) MCP() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyEvents(r.mcp)
}

// Workflow returns a copy of the buffered workflow updates.
func (r *Retention) Workflow() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyEvents(r.workflow)
}

// KnowledgeGraph returns a copy of the buffered knowledge-graph updates.
func (r *Retention) KnowledgeGraph() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyEvents(r.knowledge)
}

func copyEvents(src []Event) []Event {
	out := make([]Event, len(src))
	copy(out, src)
	return out
}
