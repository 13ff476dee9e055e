// Package events fans typed lifecycle and progress events out to
// subscribed connections grouped into rooms.
package events

import (
	"fmt"
	"time"
)

// Type enumerates the closed set of event types. Events of any other type
// are logged and dropped at publish time.
type Type string

const (
	TypeRunStarted           Type = "RUN_STARTED"
	TypeTextMessageContent   Type = "TEXT_MESSAGE_CONTENT"
	TypeGraphInsight         Type = "GRAPH_INSIGHT"
	TypeRunEnded             Type = "RUN_ENDED"
	TypeAgentStatus          Type = "AGENT_STATUS"
	TypeExecutionUpdate      Type = "EXECUTION_UPDATE"
	TypeMCPUpdate            Type = "MCP_UPDATE"
	TypeWorkflowUpdate       Type = "WORKFLOW_UPDATE"
	TypeKnowledgeGraphUpdate Type = "KNOWLEDGE_GRAPH_UPDATE"
)

// Known reports whether t is part of the closed enumeration.
func (t Type) Known() bool {
	switch t {
	case TypeRunStarted, TypeTextMessageContent, TypeGraphInsight,
		TypeRunEnded, TypeAgentStatus, TypeExecutionUpdate,
		TypeMCPUpdate, TypeWorkflowUpdate, TypeKnowledgeGraphUpdate:
		return true
	}
	return false
}

// Event is the wire shape delivered to subscribers. All four fields are
// required. Timestamps are monotonic per run but not across transport;
// consumers re-sort by Timestamp.
type Event struct {
	Type      Type      `json:"type"`
	RunID     string    `json:"runId"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Validate checks the required wire fields.
func (e Event) Validate() error {
	if !e.Type.Known() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.RunID == "" {
		return fmt.Errorf("event %s missing runId", e.Type)
	}
	if e.Payload == nil {
		return fmt.Errorf("event %s missing payload", e.Type)
	}
	return nil
}

// RunStartedPayload announces the start of a composite analysis run.
type RunStartedPayload struct {
	SubjectID string   `json:"subjectId"`
	Kinds     []string `json:"kinds"`
}

// RunEndedPayload summarizes a finished composite run.
type RunEndedPayload struct {
	SubjectID  string   `json:"subjectId"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	Confidence *float64 `json:"confidence"`
}

// TextMessagePayload carries free-text content for a run.
type TextMessagePayload struct {
	Content string `json:"content"`
}

// AgentStatusPayload reports an agent status change.
type AgentStatusPayload struct {
	AgentID string `json:"agentId"`
	Status  string `json:"status"`
}

// ExecutionUpdatePayload reports progress of one analysis task.
type ExecutionUpdatePayload struct {
	TaskID   string `json:"taskId"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// MCPUpdatePayload reports the state of one MCP server. Updates for the
// same ServerID replace each other in subscriber buffers.
type MCPUpdatePayload struct {
	ServerID string `json:"serverId"`
	Status   string `json:"status"`
	Tools    int    `json:"tools"`
}

// WorkflowUpdatePayload reports a workflow stage transition.
type WorkflowUpdatePayload struct {
	WorkflowID string `json:"workflowId"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
}

// KnowledgeGraphUpdatePayload reports nodes and relations written by an
// ingest call.
type KnowledgeGraphUpdatePayload struct {
	SourceDocID string `json:"sourceDocId"`
	Nodes       int    `json:"nodes"`
	Relations   int    `json:"relations"`
}

// GraphInsightPayload carries a derived observation over the graph.
type GraphInsightPayload struct {
	Summary   string `json:"summary"`
	Nodes     int64  `json:"nodes"`
	Relations int64  `json:"relations"`
}
