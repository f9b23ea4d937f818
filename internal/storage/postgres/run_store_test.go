package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

var runCols = []string{
	"id", "seed_url", "max_depth", "pages", "summary_file",
	"report_file", "summary_hash", "started_at", "finished_at",
}

func sampleRun() crawler.RunRecord {
	started := time.Unix(1700000000, 0).UTC()
	return crawler.RunRecord{
		ID:          "0190a2b4-run",
		SeedURL:     "https://example.com",
		MaxDepth:    1,
		Pages:       4,
		SummaryFile: "summary_abc.md",
		ReportFile:  "report_def.md",
		SummaryHash: "deadbeef",
		StartedAt:   started,
		FinishedAt:  started.Add(90 * time.Second),
	}
}

func TestRecordRunInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "crawl_runs")
	require.NoError(t, err)

	run := sampleRun()
	mock.ExpectExec("INSERT INTO crawl_runs").
		WithArgs(
			run.ID,
			run.SeedURL,
			run.MaxDepth,
			run.Pages,
			run.SummaryFile,
			run.ReportFile,
			run.SummaryHash,
			run.StartedAt,
			run.FinishedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRunErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Error(t, store.RecordRun(context.Background(), crawler.RunRecord{}))

	mock.ExpectExec("INSERT INTO crawl_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	err = store.RecordRun(context.Background(), sampleRun())
	require.ErrorContains(t, err, "insert run: connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewRunStoreWithPool(mock, "crawl_runs")
	require.NoError(t, err)

	run := sampleRun()
	mock.ExpectQuery("SELECT (.+) FROM crawl_runs WHERE id").
		WithArgs(run.ID).
		WillReturnRows(pgxmock.NewRows(runCols).AddRow(
			run.ID, run.SeedURL, run.MaxDepth, run.Pages, run.SummaryFile,
			run.ReportFile, run.SummaryHash, run.StartedAt, run.FinishedAt,
		))
	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, run, got)

	mock.ExpectQuery("SELECT (.+) FROM crawl_runs WHERE id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(runCols))
	_, err = store.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, crawler.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewRunStoreWithPool(mock, "crawl_runs")
	require.NoError(t, err)

	first := sampleRun()
	second := sampleRun()
	second.ID = "0190a2b4-older"
	second.FinishedAt = first.FinishedAt.Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM crawl_runs ORDER BY finished_at DESC LIMIT").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(runCols).
			AddRow(first.ID, first.SeedURL, first.MaxDepth, first.Pages, first.SummaryFile,
				first.ReportFile, first.SummaryHash, first.StartedAt, first.FinishedAt).
			AddRow(second.ID, second.SeedURL, second.MaxDepth, second.Pages, second.SummaryFile,
				second.ReportFile, second.SummaryHash, second.StartedAt, second.FinishedAt))

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, []crawler.RunRecord{first, second}, runs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewRunStoreWithPool(mock, "runs_v2")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs_v2").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNameValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRunStoreWithPool(mock, "runs; DROP TABLE users")
	require.Error(t, err)
	_, err = NewRunStoreWithPool(nil, "runs")
	require.Error(t, err)
	_, err = NewRunStore(context.Background(), RunStoreConfig{})
	require.Error(t, err)
}
