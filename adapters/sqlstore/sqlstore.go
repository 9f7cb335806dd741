// Package sqlstore provides a durable caseflow record store on database/sql.
// It targets SQLite (modernc.org/sqlite, CGO-free) but only uses portable
// SQL. Callers own the *sql.DB and must register the driver themselves.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/luno/jettison/errors"
	"k8s.io/utils/clock"

	"github.com/caseflow/caseflow"
)

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		clock: clock.RealClock{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type Option func(s *Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

var _ caseflow.RecordStore = (*Store)(nil)

type Store struct {
	db    *sql.DB
	clock clock.Clock
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflow_state (
			instance_id TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			started_by TEXT NOT NULL,
			last_actor TEXT NOT NULL,
			status TEXT NOT NULL,
			last_node TEXT NOT NULL,
			start_time TEXT NOT NULL,
			last_pause_time TEXT NOT NULL,
			last_resume_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			prompt TEXT NOT NULL,
			pause INTEGER NOT NULL,
			pending_input TEXT NOT NULL,
			control_action TEXT NOT NULL,
			result TEXT NOT NULL,
			bag TEXT NOT NULL,
			decisions TEXT NOT NULL,
			steps_history TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_state_customer ON workflow_state(customer_id);`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_state_status ON workflow_state(status);`,
		`CREATE TABLE IF NOT EXISTS workflow_event (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instance_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			event TEXT NOT NULL,
			node TEXT NOT NULL,
			status TEXT NOT NULL,
			actor TEXT NOT NULL,
			data TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_event_instance ON workflow_event(instance_id);`,
	}

	for _, q := range stmts {
		_, err := s.db.ExecContext(ctx, q)
		if err != nil {
			return errors.Wrap(err, "failed to ensure schema")
		}
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) UpsertState(ctx context.Context, state *caseflow.ProcessState) error {
	return s.upsertState(ctx, s.db, state)
}

func (s *Store) upsertState(ctx context.Context, e execer, state *caseflow.ProcessState) error {
	bag, err := caseflow.Marshal(state.Bag)
	if err != nil {
		return err
	}

	decisions, err := caseflow.Marshal(state.Decisions)
	if err != nil {
		return err
	}

	history, err := caseflow.Marshal(state.StepsHistory)
	if err != nil {
		return err
	}

	_, err = e.ExecContext(ctx, `
		INSERT INTO workflow_state (
			instance_id, workflow_name, customer_id, started_by, last_actor,
			status, last_node, start_time, last_pause_time, last_resume_time,
			end_time, prompt, pause, pending_input, control_action, result,
			bag, decisions, steps_history, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			last_actor=excluded.last_actor,
			status=excluded.status,
			last_node=excluded.last_node,
			start_time=excluded.start_time,
			last_pause_time=excluded.last_pause_time,
			last_resume_time=excluded.last_resume_time,
			end_time=excluded.end_time,
			prompt=excluded.prompt,
			pause=excluded.pause,
			pending_input=excluded.pending_input,
			control_action=excluded.control_action,
			result=excluded.result,
			bag=excluded.bag,
			decisions=excluded.decisions,
			steps_history=excluded.steps_history,
			updated_at=excluded.updated_at;`,
		state.InstanceID, state.WorkflowName, state.CustomerID, state.StartedBy, state.LastActor,
		string(state.Status), state.LastNode, encodeTime(state.StartTime), encodeTime(state.LastPauseTime),
		encodeTime(state.LastResumeTime), encodeTime(state.EndTime), state.Prompt, state.Pause,
		state.PendingInput, state.ControlAction, state.Result,
		string(bag), string(decisions), string(history), encodeTime(s.clock.Now()),
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert state")
	}

	return nil
}

const stateCols = ` instance_id, workflow_name, customer_id, started_by, last_actor,
	status, last_node, start_time, last_pause_time, last_resume_time,
	end_time, prompt, pause, pending_input, control_action, result,
	bag, decisions, steps_history, updated_at `

func (s *Store) GetState(ctx context.Context, instanceID string) (*caseflow.ProcessState, error) {
	row := s.db.QueryRowContext(ctx, "SELECT"+stateCols+"FROM workflow_state WHERE instance_id=?", instanceID)

	state, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(caseflow.ErrInstanceNotFound, "")
	} else if err != nil {
		return nil, err
	}

	return state, nil
}

func (s *Store) ListStates(ctx context.Context, f caseflow.ListFilter) ([]*caseflow.ProcessState, error) {
	q := "SELECT" + stateCols + "FROM workflow_state WHERE 1=1"
	var args []any

	if f.CustomerID != "" {
		q += " AND customer_id=?"
		args = append(args, f.CustomerID)
	}

	if f.Status != caseflow.StatusUnknown {
		q += " AND status=?"
		args = append(args, string(f.Status))
	}

	if f.StartedBy != "" {
		q += " AND started_by=?"
		args = append(args, f.StartedBy)
	}

	if f.WorkflowName != "" {
		q += " AND workflow_name=?"
		args = append(args, f.WorkflowName)
	}

	q += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list states")
	}
	defer rows.Close()

	var out []*caseflow.ProcessState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, state)
	}

	return out, errors.Wrap(rows.Err(), "")
}

func (s *Store) AppendEvent(ctx context.Context, e *caseflow.AuditEvent) error {
	return s.appendEvent(ctx, s.db, e)
}

func (s *Store) appendEvent(ctx context.Context, ex execer, event *caseflow.AuditEvent) error {
	data, err := caseflow.Marshal(event.Payload)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO workflow_event (instance_id, ts, event, node, status, actor, data)
		VALUES (?, ?, ?, ?, ?, ?, ?);`,
		event.InstanceID, encodeTime(event.Timestamp), string(event.Kind), event.Node,
		string(event.Status), event.Actor, string(data),
	)
	if err != nil {
		return errors.Wrap(err, "failed to append event")
	}

	return nil
}

func (s *Store) GetEvents(ctx context.Context, instanceID string) ([]*caseflow.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, ts, event, node, status, actor, data
		FROM workflow_event WHERE instance_id=? ORDER BY id ASC`, instanceID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	var out []*caseflow.AuditEvent
	for rows.Next() {
		var (
			e      caseflow.AuditEvent
			ts     string
			kind   string
			status string
			data   string
		)
		err := rows.Scan(&e.InstanceID, &ts, &kind, &e.Node, &status, &e.Actor, &data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}

		e.Kind = caseflow.EventKind(kind)
		e.Status = caseflow.Status(status)

		e.Timestamp, err = decodeTime(ts)
		if err != nil {
			return nil, err
		}

		err = caseflow.Unmarshal([]byte(data), &e.Payload)
		if err != nil {
			return nil, err
		}

		out = append(out, &e)
	}

	return out, errors.Wrap(rows.Err(), "")
}

// SaveRun writes the state and its run events in a single transaction.
func (s *Store) SaveRun(ctx context.Context, state *caseflow.ProcessState, events []*caseflow.AuditEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	err = s.upsertState(ctx, tx, state)
	if err != nil {
		return err
	}

	for _, e := range events {
		err = s.appendEvent(ctx, tx, e)
		if err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit run")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (*caseflow.ProcessState, error) {
	var (
		s                                                    caseflow.ProcessState
		status                                               string
		startTime, pauseTime, resumeTime, endTime, updatedAt string
		bag, decisions, history                              string
	)

	err := row.Scan(
		&s.InstanceID, &s.WorkflowName, &s.CustomerID, &s.StartedBy, &s.LastActor,
		&status, &s.LastNode, &startTime, &pauseTime, &resumeTime,
		&endTime, &s.Prompt, &s.Pause, &s.PendingInput, &s.ControlAction, &s.Result,
		&bag, &decisions, &history, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to scan state")
	}

	s.Status = caseflow.Status(status)

	for _, f := range []struct {
		raw  string
		dest *time.Time
	}{
		{startTime, &s.StartTime},
		{pauseTime, &s.LastPauseTime},
		{resumeTime, &s.LastResumeTime},
		{endTime, &s.EndTime},
		{updatedAt, &s.UpdatedAt},
	} {
		t, err := decodeTime(f.raw)
		if err != nil {
			return nil, err
		}
		*f.dest = t
	}

	err = caseflow.Unmarshal([]byte(bag), &s.Bag)
	if err != nil {
		return nil, err
	}

	err = caseflow.Unmarshal([]byte(decisions), &s.Decisions)
	if err != nil {
		return nil, err
	}

	err = caseflow.Unmarshal([]byte(history), &s.StepsHistory)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// Times are stored as fixed width UTC text, with the empty string for the
// zero time, so that lexical ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(timeLayout)
}

func decodeTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to parse stored time")
	}

	return t, nil
}
