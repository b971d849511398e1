package fraud

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/JonMunkholm/synthdata/internal/fraud/migrations"
)

const (
	// SourceTable holds the raw imported transactions.
	SourceTable = "transaction"
	// SnapshotTable holds the cleaned sample the classifier trains on.
	SnapshotTable     = "cleaned_transactions"
	DefaultSampleSize = 200000
)

// ErrEmptySnapshot is returned when the snapshot table has no rows.
var ErrEmptySnapshot = errors.New("cleaned transactions snapshot is empty")

// Store reads and writes the finance database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to PostgreSQL through the pgx database/sql driver.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// NewStore wraps db.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Migrate applies the embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// CleanSQL returns the statements that rebuild the snapshot table from a
// random sample of sampleSize source rows.
func CleanSQL(sampleSize int) []string {
	src := pq.QuoteIdentifier(SourceTable)
	dst := pq.QuoteIdentifier(SnapshotTable)
	return []string{
		"DROP TABLE IF EXISTS " + dst,
		`CREATE TABLE ` + dst + ` AS
WITH sampled AS (
    SELECT * FROM ` + src + ` ORDER BY RANDOM() LIMIT ` + strconv.Itoa(sampleSize) + `
)
SELECT
    type,
    amount,
    oldbalanceorg,
    newbalanceorig,
    oldbalancedest,
    newbalancedest,
    isfraud,
    isflaggedfraud,
    (newbalanceorig - oldbalanceorg) AS balance_delta_orig,
    (newbalancedest - oldbalancedest) AS balance_delta_dest,
    CASE WHEN newbalanceorig = 0 AND oldbalanceorg > 0 THEN 1 ELSE 0 END AS emptied_account,
    CONCAT(type, '_', isfraud) AS type_fraud_combo
FROM sampled
WHERE amount > 0`,
	}
}

// Clean replaces the snapshot table with a fresh cleaned sample and returns
// its row count. The rebuild runs in one transaction.
func (s *Store) Clean(ctx context.Context, sampleSize int) (int64, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	s.logger.Info("cleaning transactions", "sample_size", sampleSize)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range CleanSQL(sampleSize) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("cleaning transactions: %w", err)
		}
	}
	var n int64
	if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM "+pq.QuoteIdentifier(SnapshotTable)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting snapshot rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing snapshot: %w", err)
	}
	s.logger.Info("snapshot created", "table", SnapshotTable, "rows", n)
	return n, nil
}

const loadQuery = `SELECT type, amount, oldbalanceorg, newbalanceorig, oldbalancedest, newbalancedest,
isfraud, isflaggedfraud, balance_delta_orig, balance_delta_dest, emptied_account FROM `

// Load reads the snapshot table.
func (s *Store) Load(ctx context.Context) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx, loadQuery+pq.QuoteIdentifier(SnapshotTable))
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			t                       Transaction
			fraud, flagged, emptied int
		)
		if err := rows.Scan(&t.Type, &t.Amount, &t.OldBalanceOrg, &t.NewBalanceOrig,
			&t.OldBalanceDest, &t.NewBalanceDest, &fraud, &flagged,
			&t.BalanceDeltaOrig, &t.BalanceDeltaDest, &emptied); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		t.IsFraud = fraud != 0
		t.IsFlaggedFraud = flagged != 0
		t.EmptiedAccount = emptied != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptySnapshot
	}
	return out, nil
}

var csvColumns = []string{
	"step", "type", "amount", "nameorig", "oldbalanceorg", "newbalanceorig",
	"namedest", "oldbalancedest", "newbalancedest", "isfraud", "isflaggedfraud",
}

// ImportCSV loads raw transactions in the public payment-simulation CSV
// layout into the source table and returns the number of rows inserted.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader) (int64, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("reading csv header: %w", err)
	}
	pos := make([]int, len(csvColumns))
	for i, want := range csvColumns {
		pos[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				pos[i] = j
			}
		}
		if pos[i] < 0 {
			return 0, fmt.Errorf("csv is missing column %q", want)
		}
	}

	placeholders := make([]string, len(csvColumns))
	for i := range placeholders {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(SourceTable), strings.Join(csvColumns, ", "), strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	var n int64
	args := make([]any, len(csvColumns))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading csv line %d: %w", n+2, err)
		}
		for i, p := range pos {
			if args[i], err = parseField(csvColumns[i], rec[p]); err != nil {
				return 0, fmt.Errorf("csv line %d: %w", n+2, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("inserting csv line %d: %w", n+2, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	s.logger.Info("transactions imported", "rows", n)
	return n, nil
}

func parseField(column, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch column {
	case "type", "nameorig", "namedest":
		return raw, nil
	case "step", "isfraud", "isflaggedfraud":
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column, err)
		}
		return v, nil
	default:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column, err)
		}
		return v, nil
	}
}
