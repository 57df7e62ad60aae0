// Package journal persists the committed domain event stream to SQLite as a
// BLAKE3 hash chain, so an operator can prove the record was not edited.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"

	"ticket-ledger/logger"
	"ticket-ledger/models"
)

const table = "journal"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS journal (
		position  INTEGER PRIMARY KEY AUTOINCREMENT,
		id        TEXT NOT NULL UNIQUE,
		run       TEXT NOT NULL,
		seq       INTEGER NOT NULL,
		topic     TEXT NOT NULL,
		at        INTEGER NOT NULL,
		payload   BLOB NOT NULL,
		prev_hash BLOB NOT NULL,
		hash      BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_run_seq ON journal (run, seq)`,
}

var ErrChainBroken = errors.New("journal: hash chain broken")

// Entry is one persisted envelope. Position is global across process runs;
// Seq restarts with every run of the in-memory ledger.
type Entry struct {
	Position int64  `db:"position" json:"position"`
	ID       string `db:"id" json:"id"`
	Run      string `db:"run" json:"run"`
	Seq      int64  `db:"seq" json:"seq"`
	Topic    string `db:"topic" json:"topic"`
	At       int64  `db:"at" json:"at"`
	Payload  []byte `db:"payload" json:"-"`
	PrevHash []byte `db:"prev_hash" json:"-"`
	Hash     []byte `db:"hash" json:"hash"`
}

func (e Entry) Time() time.Time {
	return time.UnixMilli(e.At).UTC()
}

// Decode returns the event payload as a generic map.
func (e Entry) Decode() (map[string]any, error) {
	var out map[string]any
	if err := decMode.Unmarshal(e.Payload, &out); err != nil {
		return nil, fmt.Errorf("decode entry %d: %w", e.Position, err)
	}
	return out, nil
}

// Journal is an append-only SQLite sink for the dispatcher.
type Journal struct {
	db  *dbx.DB
	run string

	mu   sync.Mutex
	last Hash
}

// Open opens or creates the journal at path and resumes its hash chain.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	// one writer keeps the chain append strictly ordered
	sqlDB.SetMaxOpenConns(1)

	db := dbx.NewFromDB(sqlDB, "sqlite")
	for _, stmt := range schema {
		if _, err := db.NewQuery(stmt).Execute(); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("create journal schema: %w", err)
		}
	}

	j := &Journal{db: db, run: uuid.NewString()}
	var tail struct {
		Hash []byte `db:"hash"`
	}
	err = db.Select("hash").From(table).OrderBy("position DESC").Limit(1).One(&tail)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		_ = sqlDB.Close()
		return nil, fmt.Errorf("read journal tail: %w", err)
	default:
		copy(j.last[:], tail.Hash)
	}
	return j, nil
}

func (j *Journal) Name() string { return "journal" }

// Run identifies this process's slice of the journal.
func (j *Journal) Run() string { return j.run }

func (j *Journal) Head() Hash {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// Publish appends env to the chain.
func (j *Journal) Publish(ctx context.Context, env models.Envelope) error {
	payload, err := encMode.Marshal(env.Event)
	if err != nil {
		return fmt.Errorf("encode seq %d: %w", env.Seq, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	next := link(j.last, env.Seq, env.Topic, payload)
	_, err = j.db.Insert(table, dbx.Params{
		"id":        uuid.NewString(),
		"run":       j.run,
		"seq":       int64(env.Seq),
		"topic":     env.Topic,
		"at":        env.At.UTC().UnixMilli(),
		"payload":   payload,
		"prev_hash": j.last[:],
		"hash":      next[:],
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("append seq %d: %w", env.Seq, err)
	}
	j.last = next
	return nil
}

// Entries returns up to limit entries with Position > after.
func (j *Journal) Entries(ctx context.Context, after int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []Entry
	err := j.db.Select("*").
		From(table).
		Where(dbx.NewExp("position > {:after}", dbx.Params{"after": after})).
		OrderBy("position ASC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	return rows, nil
}

// Verify recomputes every link from the first entry and reports the first
// position whose stored hash does not match.
func (j *Journal) Verify(ctx context.Context) (int, error) {
	const page = 500
	var (
		prev    Hash
		after   int64
		checked int
	)
	for {
		rows, err := j.Entries(ctx, after, page)
		if err != nil {
			return checked, err
		}
		for _, row := range rows {
			if !hashEqual(row.PrevHash, prev) {
				return checked, fmt.Errorf("%w: position %d does not follow %s", ErrChainBroken, row.Position, prev)
			}
			want := link(prev, uint64(row.Seq), row.Topic, row.Payload)
			if !hashEqual(row.Hash, want) {
				return checked, fmt.Errorf("%w: position %d hash mismatch", ErrChainBroken, row.Position)
			}
			prev = want
			after = row.Position
			checked++
		}
		if len(rows) < page {
			break
		}
	}
	logger.Debugf(ctx, "journal verified %d entries, head %s", checked, prev)
	return checked, nil
}

func hashEqual(stored []byte, h Hash) bool {
	return len(stored) == len(h) && string(stored) == string(h[:])
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
