package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odslabs/ridebot/internal/contextcache"
	"github.com/odslabs/ridebot/internal/db"
	"github.com/odslabs/ridebot/internal/llm"
)

// Store persists conversation checkpoints: sessions, their append-only
// message logs, and the context snapshot carried across turns. Turns for a
// single session are sequential by contract, but the store does not rely on
// it: message sequence numbers are assigned inside the insert statement, so
// concurrent appends cannot produce duplicates.
type Store struct {
	db *db.DB
}

// NewStore creates a session store over the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// GetOrCreate returns the session for threadID, creating it on first use.
// An existing session must belong to the same rider.
func (s *Store) GetOrCreate(ctx context.Context, threadID string, riderID int64) (*Session, error) {
	sess, err := s.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		if sess.RiderID != riderID {
			return nil, fmt.Errorf("thread %s belongs to rider %d, not %d", threadID, sess.RiderID, riderID)
		}
		return sess, nil
	}

	now := time.Now().UTC()
	sess = &Session{ThreadID: threadID, RiderID: riderID, CreatedAt: now, UpdatedAt: now}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (thread_id, rider_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sess.ThreadID, sess.RiderID, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session %s: %w", threadID, err)
	}
	return sess, nil
}

// Get returns the session for threadID, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, threadID string) (*Session, error) {
	var sess Session
	var pending sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, rider_id, pending_confirmation, created_at, updated_at
		 FROM sessions WHERE thread_id = ?`, threadID,
	).Scan(&sess.ThreadID, &sess.RiderID, &pending, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", threadID, err)
	}

	if pending.Valid && pending.String != "" {
		var pc PendingConfirmation
		if err := json.Unmarshal([]byte(pending.String), &pc); err != nil {
			return nil, fmt.Errorf("decoding pending confirmation for %s: %w", threadID, err)
		}
		sess.PendingConfirmation = &pc
	}
	return &sess, nil
}

// SetPendingConfirmation stores or clears (nil) the pending trip-state
// confirmation for a session.
func (s *Store) SetPendingConfirmation(ctx context.Context, threadID string, pc *PendingConfirmation) error {
	var payload any
	if pc != nil {
		data, err := json.Marshal(pc)
		if err != nil {
			return fmt.Errorf("encoding pending confirmation: %w", err)
		}
		payload = string(data)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET pending_confirmation = ?, updated_at = ? WHERE thread_id = ?`,
		payload, time.Now().UTC(), threadID)
	if err != nil {
		return fmt.Errorf("updating pending confirmation for %s: %w", threadID, err)
	}
	return nil
}

// AppendMessage appends one message to the session's log. Messages already
// committed stay committed regardless of how the turn ends.
func (s *Store) AppendMessage(ctx context.Context, threadID string, msg llm.Message) error {
	var toolCalls any
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("encoding tool calls: %w", err)
		}
		toolCalls = string(data)
	}

	now := time.Now().UTC()
	// seq is assigned inside the insert so concurrent appends cannot race to
	// the same value; the unique index makes a lost update impossible.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, seq, role, content, tool_calls, tool_call_id, name, created_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE thread_id = ?), ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), threadID, threadID, string(msg.Role), msg.Content, toolCalls, msg.ToolCallID, msg.Name, now)
	if err != nil {
		return fmt.Errorf("appending message to %s: %w", threadID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE thread_id = ?`, now, threadID)
	if err != nil {
		return fmt.Errorf("touching session %s: %w", threadID, err)
	}
	return nil
}

// Messages returns the session's messages in append order.
func (s *Store) Messages(ctx context.Context, threadID string) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, name
		 FROM messages WHERE thread_id = ? ORDER BY seq`, threadID)
	if err != nil {
		return nil, fmt.Errorf("querying messages for %s: %w", threadID, err)
	}
	defer rows.Close()

	var messages []llm.Message
	for rows.Next() {
		var msg llm.Message
		var role string
		var toolCalls sql.NullString
		if err := rows.Scan(&role, &msg.Content, &toolCalls, &msg.ToolCallID, &msg.Name); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = llm.Role(role)
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveSnapshot persists the context snapshot for a thread, replacing any
// previous one.
func (s *Store) SaveSnapshot(ctx context.Context, threadID string, snap contextcache.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (thread_id, payload, last_refreshed, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET payload = excluded.payload,
		     last_refreshed = excluded.last_refreshed, updated_at = excluded.updated_at`,
		threadID, string(payload), snap.LastRefreshed, now)
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", threadID, err)
	}
	return nil
}

// LoadSnapshot returns the persisted snapshot for a thread, or the zero
// snapshot if none exists yet.
func (s *Store) LoadSnapshot(ctx context.Context, threadID string) (contextcache.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE thread_id = ?`, threadID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return contextcache.Snapshot{}, nil
	}
	if err != nil {
		return contextcache.Snapshot{}, fmt.Errorf("loading snapshot for %s: %w", threadID, err)
	}

	var snap contextcache.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return contextcache.Snapshot{}, fmt.Errorf("decoding snapshot for %s: %w", threadID, err)
	}
	return snap, nil
}

// RecordEscalation files a human-escalation ticket and returns its id.
func (s *Store) RecordEscalation(ctx context.Context, threadID string, riderID int64, reason string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO escalations (id, thread_id, rider_id, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, threadID, riderID, reason, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("recording escalation: %w", err)
	}
	return id, nil
}

// SaveInsights stores extracted long-term memory under the rider's id.
func (s *Store) SaveInsights(ctx context.Context, riderID int64, insights []Insight) error {
	now := time.Now().UTC()
	for _, in := range insights {
		if in.ID == "" {
			in.ID = uuid.New().String()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO insights (id, rider_id, kind, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			in.ID, riderID, in.Kind, in.Content, now)
		if err != nil {
			return fmt.Errorf("saving insight: %w", err)
		}
	}
	return nil
}

// InsightsForRider returns stored insights for a rider, newest first.
func (s *Store) InsightsForRider(ctx context.Context, riderID int64) ([]Insight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rider_id, kind, content, created_at FROM insights
		 WHERE rider_id = ? ORDER BY created_at DESC`, riderID)
	if err != nil {
		return nil, fmt.Errorf("querying insights: %w", err)
	}
	defer rows.Close()

	var insights []Insight
	for rows.Next() {
		var in Insight
		if err := rows.Scan(&in.ID, &in.RiderID, &in.Kind, &in.Content, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning insight: %w", err)
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}
