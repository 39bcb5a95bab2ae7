package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/market"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

// ─── Task Repository ────────────────────────────────────────────────────────

// SaveTask upserts a task document, refreshing updated_at.
func (d *DB) SaveTask(t *domain.Task) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", t.ID, err)
	}
	_, err = d.db.Exec(
		`INSERT INTO tasks (id, status, poster, worker, doc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status, worker = excluded.worker,
		   doc = excluded.doc, updated_at = excluded.updated_at`,
		t.ID, string(t.Status), t.Poster, t.Worker, string(doc),
		t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
	)
	return err
}

// GetTask loads one task document.
func (d *DB) GetTask(id string) (*domain.Task, error) {
	var doc string
	err := d.db.QueryRow(`SELECT doc FROM tasks WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	var t domain.Task
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &t, nil
}

// ListTasks returns task documents, optionally filtered by status,
// newest first. A non-positive limit returns everything.
func (d *DB) ListTasks(status domain.TaskStatus, limit int) ([]*domain.Task, error) {
	if limit <= 0 {
		limit = -1 // sqlite: LIMIT -1 means no limit
	}
	query := `SELECT doc FROM tasks ORDER BY created_at DESC LIMIT ?`
	args := []any{limit}
	if status != "" {
		query = `SELECT doc FROM tasks WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []any{string(status), limit}
	}
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var t domain.Task
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, err
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// ─── Journal ────────────────────────────────────────────────────────────────

// AppendJournal inserts journal entries in order, in one transaction.
func (d *DB) AppendJournal(entries []domain.JournalEntry) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.Exec(
			`INSERT INTO journal (id, timestamp, command, entry_type, account, asset, amount, task_id, memo, balance)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Timestamp.Unix(), e.Command, string(e.EntryType),
			e.Account, string(e.Asset), e.Amount, e.TaskID, e.Memo, e.Balance,
		)
		if err != nil {
			return fmt.Errorf("insert journal %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// JournalEntries returns recent entries for an account, newest first.
func (d *DB) JournalEntries(account string, limit int) ([]domain.JournalEntry, error) {
	rows, err := d.db.Query(
		`SELECT id, timestamp, command, entry_type, account, asset, amount, task_id, memo, balance
		 FROM journal WHERE account = ? ORDER BY seq DESC LIMIT ?`,
		account, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var ts int64
		var taskID, memo sql.NullString
		err := rows.Scan(&e.ID, &ts, &e.Command, &e.EntryType, &e.Account,
			&e.Asset, &e.Amount, &taskID, &memo, &e.Balance)
		if err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0)
		e.TaskID = taskID.String
		e.Memo = memo.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AccountBalance reconstructs an account's balance in asset from the
// journal (balance column of its latest entry).
func (d *DB) AccountBalance(account string, asset domain.Asset) (int64, error) {
	var balance sql.NullInt64
	err := d.db.QueryRow(
		`SELECT balance FROM journal WHERE account = ? AND asset = ? ORDER BY seq DESC LIMIT 1`,
		account, string(asset),
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance.Int64, nil
}

// AllBalances reconstructs every account balance from the journal: the
// balance column of each (account, asset)'s latest entry.
func (d *DB) AllBalances() (map[string]map[domain.Asset]int64, error) {
	rows, err := d.db.Query(
		`SELECT j.account, j.asset, j.balance
		 FROM journal j
		 JOIN (SELECT account, asset, MAX(seq) AS seq
		       FROM journal GROUP BY account, asset) latest
		   ON j.seq = latest.seq`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make(map[string]map[domain.Asset]int64)
	for rows.Next() {
		var account, asset string
		var balance int64
		if err := rows.Scan(&account, &asset, &balance); err != nil {
			return nil, err
		}
		if balances[account] == nil {
			balances[account] = make(map[domain.Asset]int64)
		}
		balances[account][domain.Asset(asset)] = balance
	}
	return balances, rows.Err()
}

// ─── Engine State ───────────────────────────────────────────────────────────

// SaveEngineState persists the engine checkpoint as a JSON blob.
func (d *DB) SaveEngineState(cp market.Checkpoint) error {
	blob, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		`INSERT INTO engine_state (key, value) VALUES ('engine', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		string(blob),
	)
	return err
}

// LoadEngineState loads the engine checkpoint. ok is false when no state
// has been saved yet.
func (d *DB) LoadEngineState() (cp market.Checkpoint, ok bool, err error) {
	var blob string
	qerr := d.db.QueryRow(`SELECT value FROM engine_state WHERE key = 'engine'`).Scan(&blob)
	if qerr == sql.ErrNoRows {
		return cp, false, nil
	}
	if qerr != nil {
		return cp, false, qerr
	}
	if err := json.Unmarshal([]byte(blob), &cp); err != nil {
		return cp, false, err
	}
	return cp, true, nil
}
