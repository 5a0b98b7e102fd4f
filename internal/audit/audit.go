// Package audit records who did what to which resource. Writes are
// append-only and best effort: Record returns its error, and callers log and
// count the failure without rolling back the action it describes.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"sala.org/internal/ids"
)

var ErrNotFound = errors.New("audit: not found")

// Entry is one recorded action.
type Entry struct {
	ID           string         `json:"id"`
	OccurredAt   time.Time      `json:"occurred_at"`
	ActorUserID  string         `json:"actor_user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
}

// Filter narrows audit listings.
type Filter struct {
	ActorUserID  string
	ResourceType string
	Since        *time.Time
	Until        *time.Time
	Limit        int
}

// Recorder appends and lists audit entries.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

var _ Recorder = (*PGRecorder)(nil)

// PGRecorder implements Recorder on PostgreSQL.
type PGRecorder struct {
	db *sql.DB
}

func NewPGRecorder(db *sql.DB) *PGRecorder {
	return &PGRecorder{db: db}
}

func (r *PGRecorder) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	meta, _ := json.Marshal(e.Metadata)
	_, err := r.db.ExecContext(ctx,
		`insert into audit_logs(id, occurred_at, actor_user_id, action, resource_type, resource_id, ip_address, metadata, request_id)
		 values($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''),$8,nullif($9,''))`,
		e.ID, e.OccurredAt, e.ActorUserID, e.Action, e.ResourceType, e.ResourceID, e.IPAddress, meta, e.RequestID,
	)
	return err
}

func (r *PGRecorder) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `select id, occurred_at, actor_user_id, action, resource_type,
	       coalesce(resource_id,''), coalesce(ip_address,''), metadata, coalesce(request_id,'')
	 from audit_logs where 1=1`
	var args []any
	if f.ActorUserID != "" {
		args = append(args, f.ActorUserID)
		query += ` and actor_user_id=$` + strconv.Itoa(len(args))
	}
	if f.ResourceType != "" {
		args = append(args, f.ResourceType)
		query += ` and resource_type=$` + strconv.Itoa(len(args))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		query += ` and occurred_at >= $` + strconv.Itoa(len(args))
	}
	if f.Until != nil {
		args = append(args, *f.Until)
		query += ` and occurred_at <= $` + strconv.Itoa(len(args))
	}
	query += ` order by occurred_at desc`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` limit $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.ActorUserID, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.IPAddress, &meta, &e.RequestID); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
