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

// Package pool manages long-lived upstream connections, one per STREAM
// agent. Pooled connections carry no invocation traffic (invocations open
// dedicated sessions for isolation); their job is connection-health
// tracking, fast failure detection, and automatic recovery.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// State is the lifecycle state of one pool entry.
type State string

const (
	StateConnecting   State = "connecting"
	StateIdle         State = "idle"
	StateActive       State = "active"
	StateReconnecting State = "reconnecting"
	StateDead         State = "dead"
)

// Reconnect and eviction policy defaults.
const (
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultBaseDelay     = 1 * time.Second
	DefaultMaxDelay      = 30 * time.Second
	DefaultMaxAttempts   = 6
	reconnectDialTimeout = 10 * time.Second
)

// jitterFraction is the uniform +-20% applied to reconnect delays.
const jitterFraction = 0.2

// ErrAgentDead is returned by GetOrCreate after an agent's connection has
// been declared dead (auth failure or reconnect exhaustion).
var ErrAgentDead = errors.New("upstream connection is dead")

// Conn is a pooled upstream connection. Done is closed (or receives the
// terminal error) when the connection drops; the pool owns the Conn
// exclusively and is the only caller of Close.
type Conn interface {
	Done() <-chan error
	Close() error
}

// DialFunc establishes one pooled connection for an agent.
type DialFunc func(ctx context.Context, agentID string) (Conn, error)

// Options tunes the pool. Zero values take the defaults above.
type Options struct {
	Dial        DialFunc
	IdleTimeout time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	// OnDead receives the pool-dead notification for an agent.
	OnDead func(agentID string)
}

type entry struct {
	agentID        string
	state          State
	conn           Conn
	activeSessions int
	lastActivity   time.Time
	attempts       int
	idleTimer      *time.Timer
	reconnectTimer *time.Timer
	// generation invalidates stale timer and monitor callbacks after the
	// entry's connection is replaced or the entry is removed.
	generation uint64
}

// Pool maintains at most one connection per agent id.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
	dead    map[string]struct{}
	opts    Options
}

// New creates a pool. opts.Dial is required.
func New(opts Options) *Pool {
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.BaseDelay == 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay == 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Pool{
		entries: make(map[string]*entry),
		dead:    make(map[string]struct{}),
		opts:    opts,
	}
}

// GetOrCreate admits an agent to the pool, connecting on first use. It
// returns ErrAgentDead immediately for agents whose connection has been
// declared dead, and the dial error when the initial connect fails.
func (p *Pool) GetOrCreate(ctx context.Context, agentID string) error {
	p.mu.Lock()
	if _, isDead := p.dead[agentID]; isDead {
		p.mu.Unlock()
		return fmt.Errorf("agent %s: %w", agentID, ErrAgentDead)
	}
	if _, ok := p.entries[agentID]; ok {
		p.mu.Unlock()
		return nil
	}

	e := &entry{
		agentID:      agentID,
		state:        StateConnecting,
		lastActivity: time.Now(),
	}
	p.entries[agentID] = e
	p.mu.Unlock()

	conn, err := p.opts.Dial(ctx, agentID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.entries[agentID] != e {
		// Entry was removed while connecting.
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("agent %s: entry removed during connect", agentID)
	}

	if err != nil {
		if isAuthError(err) {
			p.markDeadLocked(e)
			return fmt.Errorf("agent %s: %w", agentID, ErrAgentDead)
		}
		delete(p.entries, agentID)
		return fmt.Errorf("agent %s: connect failed: %w", agentID, err)
	}

	e.conn = conn
	e.state = StateIdle
	e.lastActivity = time.Now()
	// The monitor bumps the generation; the idle timer must capture the
	// post-monitor value or eviction never matches.
	p.monitorLocked(e)
	p.startIdleTimerLocked(e)

	slog.Debug("Pool connection established", "agent", agentID)
	return nil
}

// SessionStarted records an active invocation against the agent's entry.
func (p *Pool) SessionStarted(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[agentID]
	if !ok {
		return
	}

	e.activeSessions++
	e.lastActivity = time.Now()
	p.stopIdleTimerLocked(e)
	if e.state == StateIdle {
		e.state = StateActive
	}
}

// SessionEnded records the end of an invocation. When the last session ends
// the entry returns to idle and the idle timer restarts.
func (p *Pool) SessionEnded(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[agentID]
	if !ok {
		return
	}

	if e.activeSessions > 0 {
		e.activeSessions--
	}
	e.lastActivity = time.Now()
	if e.activeSessions == 0 && e.state == StateActive {
		e.state = StateIdle
		p.startIdleTimerLocked(e)
	}
}

// Remove disconnects and forgets an agent's entry. It also clears a dead
// mark, allowing the agent to be re-admitted later.
func (p *Pool) Remove(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.dead, agentID)
	if e, ok := p.entries[agentID]; ok {
		p.removeLocked(e)
	}
}

// Disconnected reports a transport-level failure on an agent's pooled
// connection. Auth failures go straight to dead; anything else enters the
// reconnect loop.
func (p *Pool) Disconnected(agentID string, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[agentID]
	if !ok {
		return
	}
	p.disconnectedLocked(e, cause)
}

// State reports the current state of an agent's entry.
func (p *Pool) State(agentID string) (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, isDead := p.dead[agentID]; isDead {
		return StateDead, true
	}
	e, ok := p.entries[agentID]
	if !ok {
		return "", false
	}
	return e.state, true
}

// ActiveSessions reports the session counter of an agent's entry.
func (p *Pool) ActiveSessions(agentID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[agentID]; ok {
		return e.activeSessions
	}
	return 0
}

// Len reports the number of live entries.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Reset disconnects everything and clears all state. Test hook and shutdown
// path.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		p.removeLocked(e)
	}
	p.dead = make(map[string]struct{})
}

func (p *Pool) disconnectedLocked(e *entry, cause error) {
	switch e.state {
	case StateIdle, StateActive, StateReconnecting:
	default:
		return
	}

	if isAuthError(cause) {
		slog.Warn("Pool connection auth failure", "agent", e.agentID, "error", cause)
		p.markDeadLocked(e)
		return
	}

	e.attempts++
	if e.attempts > p.opts.MaxAttempts {
		slog.Warn("Pool reconnect attempts exhausted", "agent", e.agentID, "attempts", e.attempts-1)
		p.markDeadLocked(e)
		return
	}

	e.state = StateReconnecting
	p.stopIdleTimerLocked(e)
	p.closeConnLocked(e)

	delay := reconnectDelay(p.opts.BaseDelay, p.opts.MaxDelay, e.attempts)
	slog.Info("Pool connection lost, scheduling reconnect",
		"agent", e.agentID, "attempt", e.attempts, "delay", delay, "error", cause)

	gen := e.generation
	e.reconnectTimer = time.AfterFunc(delay, func() {
		p.reconnect(e.agentID, gen)
	})
}

func (p *Pool) reconnect(agentID string, gen uint64) {
	p.mu.Lock()
	e, ok := p.entries[agentID]
	if !ok || e.generation != gen || e.state != StateReconnecting {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reconnectDialTimeout)
	conn, err := p.opts.Dial(ctx, agentID)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.entries[agentID] != e || e.generation != gen {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		p.disconnectedLocked(e, err)
		return
	}

	e.conn = conn
	e.attempts = 0
	p.monitorLocked(e)
	if e.activeSessions > 0 {
		e.state = StateActive
	} else {
		e.state = StateIdle
		p.startIdleTimerLocked(e)
	}

	slog.Info("Pool connection reestablished", "agent", agentID)
}

// monitorLocked watches the entry's connection and reports its termination,
// unless the connection has been superseded in the meantime.
func (p *Pool) monitorLocked(e *entry) {
	e.generation++
	gen := e.generation
	conn := e.conn

	go func() {
		err, ok := <-conn.Done()
		if !ok {
			err = errors.New("connection closed")
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		current, exists := p.entries[e.agentID]
		if !exists || current != e || e.generation != gen {
			return
		}
		p.disconnectedLocked(e, err)
	}()
}

func (p *Pool) markDeadLocked(e *entry) {
	p.dead[e.agentID] = struct{}{}
	p.removeLocked(e)
	slog.Warn("Pool entry dead", "agent", e.agentID)

	if p.opts.OnDead != nil {
		// Notify outside the lock.
		agentID := e.agentID
		go p.opts.OnDead(agentID)
	}
}

func (p *Pool) removeLocked(e *entry) {
	e.generation++
	p.stopIdleTimerLocked(e)
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
		e.reconnectTimer = nil
	}
	p.closeConnLocked(e)
	delete(p.entries, e.agentID)
}

func (p *Pool) closeConnLocked(e *entry) {
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
}

func (p *Pool) startIdleTimerLocked(e *entry) {
	p.stopIdleTimerLocked(e)
	gen := e.generation
	e.idleTimer = time.AfterFunc(p.opts.IdleTimeout, func() {
		p.evictIdle(e.agentID, gen)
	})
}

func (p *Pool) stopIdleTimerLocked(e *entry) {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
}

func (p *Pool) evictIdle(agentID string, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[agentID]
	if !ok || e.generation != gen || e.state != StateIdle || e.activeSessions > 0 {
		return
	}

	slog.Debug("Evicting idle pool entry", "agent", agentID)
	p.removeLocked(e)
}

// reconnectDelay computes min(base * 2^(attempt-1), max) with uniform
// +-20% jitter.
func reconnectDelay(base, max time.Duration, attempt int) time.Duration {
	delay := float64(base)
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= float64(max) {
			delay = float64(max)
			break
		}
	}

	jitter := 1 + jitterFraction*(2*rand.Float64()-1)
	return time.Duration(delay * jitter)
}

// isAuthError reports whether the error message indicates an authentication
// or authorization failure that retrying cannot fix.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "403", "unauthorized", "forbidden"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
