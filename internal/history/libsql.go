package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/emarren/vaultflow/pkg/schema"
)

// LibSQLRecorder implements Recorder using libSQL (embedded SQLite fork).
type LibSQLRecorder struct {
	db *sql.DB
}

// NewLibSQLRecorder opens a libSQL database at the given path and applies
// pending migrations. The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLRecorder(ctx context.Context, dbPath string) (*LibSQLRecorder, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &LibSQLRecorder{db: db}, nil
}

// Close closes the database.
func (r *LibSQLRecorder) Close() error { return r.db.Close() }

func (r *LibSQLRecorder) StartRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow_name, trigger_mode, state, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowName, string(run.TriggerMode), string(run.State),
		nullStr(run.Error), timeOrNow(run.StartedAt), nullTime(run.FinishedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "record run %q: %s", run.ID, err.Error()).WithCause(err)
	}
	return nil
}

func (r *LibSQLRecorder) FinishRun(ctx context.Context, runID string, state schema.RunState, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(state), nullStr(errMsg), time.Now().UTC(), runID,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "finish run %q: %s", runID, err.Error()).WithCause(err)
	}
	return checkRowsAffected(res, "run", runID)
}

func (r *LibSQLRecorder) BeginStep(ctx context.Context, entry *Entry) error {
	diags, err := marshalDiags(entry.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO run_entries (run_id, seq, node_id, node_type, resolved_input, output, diagnostics, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.Seq, entry.NodeID, string(entry.NodeType),
		nullRaw(entry.ResolvedInput), nullRaw(entry.Output), diags,
		nullStr(entry.Error), timeOrNow(entry.StartedAt), nullTime(entry.FinishedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore,
			"record step %d of run %q: %s", entry.Seq, entry.RunID, err.Error()).WithCause(err)
	}
	return nil
}

func (r *LibSQLRecorder) FinishStep(ctx context.Context, runID string, seq int, result StepResult) error {
	diags, err := marshalDiags(result.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE run_entries SET output = ?, diagnostics = ?, error = ?, finished_at = ?
		 WHERE run_id = ? AND seq = ?`,
		nullRaw(result.Output), diags, nullStr(result.Error), time.Now().UTC(), runID, seq,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore,
			"finalize step %d of run %q: %s", seq, runID, err.Error()).WithCause(err)
	}
	return checkRowsAffected(res, "history entry", fmt.Sprintf("%s/%d", runID, seq))
}

func (r *LibSQLRecorder) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	var (
		mode, state string
		errMsg      sql.NullString
		finishedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, workflow_name, trigger_mode, state, error, started_at, finished_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.WorkflowName, &mode, &state, &errMsg, &run.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, notFound("run", id)
	}
	if err != nil {
		return nil, err
	}
	run.TriggerMode = schema.TriggerMode(mode)
	run.State = schema.RunState(state)
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}

func (r *LibSQLRecorder) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT id, workflow_name, trigger_mode, state, error, started_at, finished_at FROM runs`
	var conds []string
	var args []any
	if filter.WorkflowName != "" {
		conds = append(conds, "workflow_name = ?")
		args = append(args, filter.WorkflowName)
	}
	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, s := range filter.States {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, fmt.Sprintf("state IN (%s)", strings.Join(placeholders, ", ")))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var (
			mode, state string
			errMsg      sql.NullString
			finishedAt  sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.WorkflowName, &mode, &state, &errMsg, &run.StartedAt, &finishedAt); err != nil {
			return nil, err
		}
		run.TriggerMode = schema.TriggerMode(mode)
		run.State = schema.RunState(state)
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *LibSQLRecorder) ListEntries(ctx context.Context, runID string) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, seq, node_id, node_type, resolved_input, output, diagnostics, error, started_at, finished_at
		 FROM run_entries WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var (
			nodeType                     string
			input, output, diags, errMsg sql.NullString
			finishedAt                   sql.NullTime
		)
		if err := rows.Scan(&e.RunID, &e.Seq, &e.NodeID, &nodeType, &input, &output, &diags, &errMsg, &e.StartedAt, &finishedAt); err != nil {
			return nil, err
		}
		e.NodeType = schema.NodeType(nodeType)
		e.ResolvedInput = rawOrNil(input)
		e.Output = rawOrNil(output)
		if diags.Valid && diags.String != "" {
			if err := json.Unmarshal([]byte(diags.String), &e.Diagnostics); err != nil {
				return nil, fmt.Errorf("decode diagnostics for %s/%d: %w", e.RunID, e.Seq, err)
			}
		}
		if errMsg.Valid {
			e.Error = errMsg.String
		}
		if finishedAt.Valid {
			e.FinishedAt = &finishedAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Helpers ---

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func marshalDiags(diags []string) (any, error) {
	if len(diags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(diags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

var _ Recorder = (*LibSQLRecorder)(nil)
