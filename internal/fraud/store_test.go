package fraud

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, quietLogger()), mock
}

func TestCleanSQL(t *testing.T) {
	stmts := CleanSQL(500)
	require.Len(t, stmts, 2)
	assert.Equal(t, `DROP TABLE IF EXISTS "cleaned_transactions"`, stmts[0])
	assert.Contains(t, stmts[1], `FROM "transaction" ORDER BY RANDOM() LIMIT 500`)
	assert.Contains(t, stmts[1], "WHERE amount > 0")
	assert.Contains(t, stmts[1], "CASE WHEN newbalanceorig = 0 AND oldbalanceorg > 0 THEN 1 ELSE 0 END AS emptied_account")
}

func TestClean(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "cleaned_transactions"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "cleaned_transactions" AS`)).
		WillReturnResult(sqlmock.NewResult(0, 180))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "cleaned_transactions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(180))
	mock.ExpectCommit()

	n, err := s.Clean(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, int64(180), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := s.Clean(context.Background(), 10)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var snapshotColumns = []string{
	"type", "amount", "oldbalanceorg", "newbalanceorig", "oldbalancedest", "newbalancedest",
	"isfraud", "isflaggedfraud", "balance_delta_orig", "balance_delta_dest", "emptied_account",
}

func TestLoad(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "cleaned_transactions"`)).
		WillReturnRows(sqlmock.NewRows(snapshotColumns).
			AddRow("TRANSFER", 181.0, 181.0, 0.0, 0.0, 0.0, int64(1), int64(0), -181.0, 0.0, int64(1)).
			AddRow("PAYMENT", 10.0, 50.0, 40.0, 0.0, 0.0, int64(0), int64(0), -10.0, 0.0, int64(0)))

	txs, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "TRANSFER", txs[0].Type)
	assert.True(t, txs[0].IsFraud)
	assert.True(t, txs[0].EmptiedAccount)
	assert.False(t, txs[1].IsFraud)
	assert.Equal(t, -10.0, txs[1].BalanceDeltaOrig)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(snapshotColumns))
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

const paysimCSV = `step,type,amount,nameOrig,oldbalanceOrg,newbalanceOrig,nameDest,oldbalanceDest,newbalanceDest,isFraud,isFlaggedFraud
1,PAYMENT,9839.64,C1231006815,170136.0,160296.36,M1979787155,0.0,0.0,0,0
1,TRANSFER,181.0,C1305486145,181.0,0.0,C553264065,0.0,0.0,1,0
`

func TestImportCSV(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "transaction" (step, type, amount`))
	prep.ExpectExec().
		WithArgs(1, "PAYMENT", 9839.64, "C1231006815", 170136.0, 160296.36, "M1979787155", 0.0, 0.0, 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(1, "TRANSFER", 181.0, "C1305486145", 181.0, 0.0, "C553264065", 0.0, 0.0, 1, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := s.ImportCSV(context.Background(), strings.NewReader(paysimCSV))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportCSVMissingColumn(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.ImportCSV(context.Background(), strings.NewReader("step,type\n1,PAYMENT\n"))
	assert.ErrorContains(t, err, `missing column "amount"`)
}

func TestImportCSVBadNumber(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT")
	mock.ExpectRollback()

	bad := strings.Replace(paysimCSV, "9839.64", "lots", 1)
	_, err := s.ImportCSV(context.Background(), strings.NewReader(bad))
	assert.ErrorContains(t, err, "column amount")
}
