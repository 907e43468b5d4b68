package source

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nset-ornl/covid19/internal/domain"
)

const testQuery = "select * from public.get_ps_data({from_to})"

func newTestReader(t *testing.T, cfg Config) (*Reader, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	cfg.Query = testQuery
	return NewReader(db, cfg), mock
}

func collect(t *testing.T, r *Reader, max int) ([]domain.Record, error) {
	t.Helper()
	var out []domain.Record
	for rec, err := range r.Stream(context.Background()) {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func TestReaderStreamsAllRows(t *testing.T) {
	r, mock := newTestReader(t, Config{ChunkSize: 2})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DECLARE covid_pipe_cur NO SCROLL CURSOR FOR select * from public.get_ps_data()")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FETCH 2 FROM covid_pipe_cur")).
		WillReturnRows(sqlmock.NewRows([]string{"county_name", "cases"}).
			AddRow("Knox", int64(10)).
			AddRow("Blount", int64(4)))
	mock.ExpectQuery(regexp.QuoteMeta("FETCH 2 FROM covid_pipe_cur")).
		WillReturnRows(sqlmock.NewRows([]string{"county_name", "cases"}))
	mock.ExpectExec(regexp.QuoteMeta("CLOSE covid_pipe_cur")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	recs, err := collect(t, r, 0)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["county_name"] != "Knox" || recs[0]["cases"] != int64(10) {
		t.Fatalf("unexpected first record: %v", recs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReaderStopsAtLimitMidBatch(t *testing.T) {
	r, mock := newTestReader(t, Config{ChunkSize: 5, Limit: 3})

	rows := sqlmock.NewRows([]string{"id"})
	for i := 1; i <= 5; i++ {
		rows.AddRow(int64(i))
	}

	mock.ExpectBegin()
	mock.ExpectExec("DECLARE covid_pipe_cur").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FETCH 5 FROM covid_pipe_cur")).WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("CLOSE covid_pipe_cur")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	recs, err := collect(t, r, 0)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected exactly 3 records, got %d", len(recs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("cursor not closed after limit: %v", err)
	}
}

func TestReaderAbandonedReleasesCursor(t *testing.T) {
	r, mock := newTestReader(t, Config{ChunkSize: 2})

	mock.ExpectBegin()
	mock.ExpectExec("DECLARE covid_pipe_cur").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FETCH 2 FROM covid_pipe_cur").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectRollback()

	recs, err := collect(t, r, 1)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record before abandoning, got %d", len(recs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("abandoned stream left resources open: %v", err)
	}
}

func TestReaderFetchErrorIsFatal(t *testing.T) {
	r, mock := newTestReader(t, Config{ChunkSize: 2})

	mock.ExpectBegin()
	mock.ExpectExec("DECLARE covid_pipe_cur").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FETCH 2 FROM covid_pipe_cur").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := collect(t, r, 0)
	var srcErr *Error
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected *source.Error, got %v", err)
	}
	if srcErr.Op != "fetch" {
		t.Fatalf("expected fetch op, got %q", srcErr.Op)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuildFromTo(t *testing.T) {
	cases := []struct {
		name, from, to, want string
	}{
		{"both", "2020-03-01", "2020-04-01", "'2020-03-01', '2020-04-01'"},
		{"from only", "2020-03-01", "", "'2020-03-01'"},
		{"to only", "", "2020-04-01", "'1970-01-01', '2020-04-01'"},
		{"neither", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := buildFromTo(tc.from, tc.to); got != tc.want {
				t.Fatalf("buildFromTo(%q, %q) = %q, want %q", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
