// Copyright 2025 The A2A Gateway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server bridges configured Cognigy agents to the A2A protocol.
//
// Each agent gets its own Executor implementing a2asrv.AgentExecutor; the
// HTTP layer mounts one JSON-RPC handler per agent.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/cognigy/a2a-gateway/pkg/cognigy"
	"github.com/cognigy/a2a-gateway/pkg/config"
	"github.com/cognigy/a2a-gateway/pkg/normalizer"
	"github.com/cognigy/a2a-gateway/pkg/pool"
)

// userIDPrefix namespaces gateway-originated users on the Cognigy side.
const userIDPrefix = "a2a"

// genericErrorText is the only failure text ever surfaced to REQ clients;
// error details stay in the logs.
const genericErrorText = "An error occurred while processing your request."

// metadataKeyData is the task metadata key whose map value is forwarded to
// the upstream call verbatim.
const metadataKeyData = "cognigyData"

// eventSink is the slice of eventqueue.Queue the executor writes to.
// Narrowed for testability.
type eventSink interface {
	Write(ctx context.Context, event a2a.Event) error
}

// Executor runs A2A invocations against one configured agent.
type Executor struct {
	agentID  string
	adapter  cognigy.Adapter
	sessions *SessionRegistry
	pool     *pool.Pool // nil unless the agent uses the stream transport
	metrics  *Metrics
}

// NewExecutor creates the executor for one agent. The pool may be nil; it is
// only consulted for stream agents.
func NewExecutor(agentID string, adapter cognigy.Adapter, sessions *SessionRegistry, connPool *pool.Pool, metrics *Metrics) *Executor {
	return &Executor{
		agentID:  agentID,
		adapter:  adapter,
		sessions: sessions,
		pool:     connPool,
		metrics:  metrics,
	}
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	return e.execute(ctx, reqCtx, queue)
}

// Cancel implements a2asrv.AgentExecutor. A hit on the session registry
// defers the terminal event to the running execute; a miss publishes a
// synthetic terminal canceled event directly.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	return e.cancel(ctx, reqCtx, queue)
}

func (e *Executor) execute(ctx context.Context, reqCtx *a2asrv.RequestContext, sink eventSink) error {
	started := time.Now()
	isStream := e.adapter.Kind() == config.TransportStream

	signal := e.sessions.Register(reqCtx.TaskID)
	defer e.sessions.Deregister(reqCtx.TaskID)

	log := slog.With("agent", e.agentID, "taskId", reqCtx.TaskID, "contextId", reqCtx.ContextID)

	if isStream {
		// The opening working event precedes everything else, including
		// connection acquisition failures.
		if err := sink.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
			return err
		}
	}

	if isStream && e.pool != nil {
		if err := e.pool.GetOrCreate(ctx, e.agentID); err != nil {
			log.Error("Upstream connection unavailable", "error", err)
			e.observe(started, isStream, "failed")
			return e.writeFailure(ctx, reqCtx, sink, isStream)
		}
		e.pool.SessionStarted(e.agentID)
		defer e.pool.SessionEnded(e.agentID)
	}

	var onOutput cognigy.OutputFunc
	if isStream {
		onOutput = func(out cognigy.Output, index int) {
			if signal.Canceled() {
				return
			}
			if err := e.writeOutput(ctx, reqCtx, sink, out); err != nil {
				log.Warn("Failed to publish output event", "index", index, "error", err)
			}
		}
	}

	req := cognigy.SendRequest{
		Text:      userText(reqCtx.Message),
		SessionID: reqCtx.ContextID,
		UserID:    userIDPrefix + "-" + reqCtx.ContextID,
		Data:      taskData(reqCtx.StoredTask),
	}

	outputs, err := e.adapter.Send(ctx, req, onOutput)

	if signal.Canceled() {
		log.Info("Invocation canceled")
		e.observe(started, isStream, "canceled")
		return e.writeTerminal(ctx, reqCtx, sink, a2a.TaskStateCanceled)
	}

	if err != nil {
		log.Error("Upstream invocation failed", "error", err)
		e.observe(started, isStream, "failed")
		return e.writeFailure(ctx, reqCtx, sink, isStream)
	}

	e.observe(started, isStream, "completed")

	if isStream {
		return e.writeTerminal(ctx, reqCtx, sink, a2a.TaskStateCompleted)
	}

	parts := normalizer.Flatten(outputs)
	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, parts...)
	return sink.Write(ctx, msg)
}

func (e *Executor) cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, sink eventSink) error {
	if e.sessions.Cancel(reqCtx.TaskID) {
		slog.Info("Cancellation requested for in-flight task", "agent", e.agentID, "taskId", reqCtx.TaskID)
		return nil
	}

	slog.Info("Cancellation for unknown task, publishing terminal event", "agent", e.agentID, "taskId", reqCtx.TaskID)
	return e.writeTerminal(ctx, reqCtx, sink, a2a.TaskStateCanceled)
}

// writeOutput normalizes one streamed output and publishes the matching
// event. Normalization failures skip the single output.
func (e *Executor) writeOutput(ctx context.Context, reqCtx *a2asrv.RequestContext, sink eventSink, out cognigy.Output) error {
	normalized, err := normalizer.Normalize(out)
	if err != nil {
		slog.Warn("Skipping unnormalizable output", "agent", e.agentID, "error", err)
		return nil
	}

	switch normalized.Kind {
	case normalizer.KindArtifact:
		ev := a2a.NewArtifactEvent(reqCtx, normalized.Parts...)
		ev.Artifact.Name = normalized.Name
		ev.LastChunk = true
		return sink.Write(ctx, ev)

	default:
		msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, normalized.Parts...)
		return sink.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, msg))
	}
}

func (e *Executor) writeFailure(ctx context.Context, reqCtx *a2asrv.RequestContext, sink eventSink, isStream bool) error {
	if isStream {
		return e.writeTerminal(ctx, reqCtx, sink, a2a.TaskStateFailed)
	}
	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: genericErrorText})
	return sink.Write(ctx, msg)
}

func (e *Executor) writeTerminal(ctx context.Context, reqCtx *a2asrv.RequestContext, sink eventSink, state a2a.TaskState) error {
	ev := a2a.NewStatusUpdateEvent(reqCtx, state, nil)
	ev.Final = true
	return sink.Write(ctx, ev)
}

func (e *Executor) observe(started time.Time, isStream bool, outcome string) {
	if e.metrics == nil {
		return
	}
	transport := "req"
	if isStream {
		transport = "stream"
	}
	e.metrics.ObserveInvocation(e.agentID, transport, outcome, time.Since(started))
}

// userText extracts the first text part of the user message.
func userText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	for _, part := range msg.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			return tp.Text
		}
	}
	return ""
}

// taskData reads the forwarded upstream payload from task metadata.
func taskData(task *a2a.Task) map[string]any {
	if task == nil || task.Metadata == nil {
		return nil
	}
	data, ok := task.Metadata[metadataKeyData].(map[string]any)
	if !ok {
		return nil
	}
	return data
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)
