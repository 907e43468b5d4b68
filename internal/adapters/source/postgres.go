package source

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/nset-ornl/covid19/internal/domain"
	"github.com/nset-ornl/covid19/internal/ports"
)

// DefaultChunkSize is the number of rows fetched per cursor round-trip.
const DefaultChunkSize = 500

const defaultCursorName = "covid_pipe_cur"

// Config describes the relational source. Query is a skeleton containing a
// {from_to} placeholder that is filled with the optional inclusive date
// range before the cursor is declared.
type Config struct {
	Driver     string // "postgres" (lib/pq) or "pgx"
	ConnString string
	Query      string
	CursorName string
	From       string
	To         string
	ChunkSize  int
	Limit      int64 // <= 0 streams until the query exhausts
}

// Open opens a database handle for the configured driver. Driver selection
// is explicit configuration, not import-time probing.
func Open(cfg Config) (*sql.DB, error) {
	driver := cfg.Driver
	switch driver {
	case "", "postgres":
		driver = "postgres"
	case "pgx":
	default:
		return nil, fmt.Errorf("unknown source driver %q: must be postgres or pgx", cfg.Driver)
	}
	return sql.Open(driver, cfg.ConnString)
}

// Error marks a fatal relational-source failure. It aborts the stream and is
// never retried by the reader.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("source %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Reader pulls rows from a server-side cursor in bounded chunks.
type Reader struct {
	db  *sql.DB
	cfg Config
}

func NewReader(db *sql.DB, cfg Config) *Reader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.CursorName == "" {
		cfg.CursorName = defaultCursorName
	}
	return &Reader{db: db, cfg: cfg}
}

// Stream declares the cursor inside a transaction and yields records until
// the query exhausts or the configured limit is reached. The transaction is
// rolled back on every early exit, which releases the cursor; on clean
// completion the cursor is closed explicitly and the transaction committed.
func (r *Reader) Stream(ctx context.Context) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			yield(nil, &Error{Op: "begin", Err: err})
			return
		}
		defer tx.Rollback() // no-op after a clean commit

		name := r.cfg.CursorName
		declare := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", name, r.buildQuery())
		if _, err := tx.ExecContext(ctx, declare); err != nil {
			yield(nil, &Error{Op: "declare cursor", Err: err})
			return
		}

		fetch := fmt.Sprintf("FETCH %d FROM %s", r.cfg.ChunkSize, name)
		var pulled int64
		for {
			rows, err := tx.QueryContext(ctx, fetch)
			if err != nil {
				yield(nil, &Error{Op: "fetch", Err: err})
				return
			}
			batch, err := scanBatch(rows)
			if err != nil {
				yield(nil, &Error{Op: "scan", Err: err})
				return
			}
			if len(batch) == 0 {
				break
			}
			for _, rec := range batch {
				if !yield(rec, nil) {
					return
				}
				pulled++
				if r.cfg.Limit > 0 && pulled >= r.cfg.Limit {
					r.closeCursor(ctx, tx)
					return
				}
			}
		}
		r.closeCursor(ctx, tx)
	}
}

func (r *Reader) closeCursor(ctx context.Context, tx *sql.Tx) {
	if _, err := tx.ExecContext(ctx, "CLOSE "+r.cfg.CursorName); err != nil {
		return // rollback releases the cursor anyway
	}
	_ = tx.Commit()
}

// buildQuery fills the {from_to} placeholder with the inclusive date range.
// Giving only a lower bound produces an open-ended range; giving only an
// upper bound anchors the range at the Unix epoch.
func (r *Reader) buildQuery() string {
	return strings.ReplaceAll(r.cfg.Query, "{from_to}", buildFromTo(r.cfg.From, r.cfg.To))
}

func buildFromTo(from, to string) string {
	switch {
	case from != "" && to != "":
		return fmt.Sprintf("'%s', '%s'", from, to)
	case from != "":
		return fmt.Sprintf("'%s'", from)
	case to != "":
		return fmt.Sprintf("'1970-01-01', '%s'", to)
	}
	return ""
}

func scanBatch(rows *sql.Rows) ([]domain.Record, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var batch []domain.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(domain.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		batch = append(batch, rec)
	}
	return batch, rows.Err()
}

var _ ports.RecordSource = (*Reader)(nil)
