package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var (
	selectCols = []string{"id", "email", "secret_hash", "first_name", "last_name", "verified", "created_at", "updated_at"}
	ts         = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
)

const insertQ = `(?s)^INSERT\s+INTO\s+accounts\s*\(email,\s*secret_hash,\s*first_name,\s*last_name,\s*verified\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs("alice@x.com", []byte("hash"), "Alice", "Smith", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("acc-1", ts, ts))

	a := &models.Account{Email: "alice@x.com", SecretHash: []byte("hash"), FirstName: "Alice", LastName: "Smith"}
	got, err := repo.Create(context.Background(), a)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "acc-1" || !got.CreatedAt.Equal(ts) {
		t.Fatalf("unexpected account: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	_, err := repo.Create(context.Background(), &models.Account{Email: "alice@x.com"})
	if !errors.Is(err, common.ErrDuplicateIdentity) {
		t.Fatalf("want ErrDuplicateIdentity, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Account{Email: "alice@x.com"})
	if !errors.Is(err, common.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
	if !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*email,.*FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("alice@x.com").
		WillReturnRows(sqlmock.NewRows(selectCols).
			AddRow("acc-1", "alice@x.com", []byte("hash"), "Alice", "Smith", true, ts, ts))

	got, err := repo.FindByEmail(context.Background(), "alice@x.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	want := &models.Account{
		ID: "acc-1", Email: "alice@x.com", SecretHash: []byte("hash"),
		FirstName: "Alice", LastName: "Smith", Verified: true, CreatedAt: ts, UpdatedAt: ts,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("account mismatch (-want +got):\n%s", diff)
	}
}

func TestFindByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+accounts\s+WHERE\s+email`).
		WithArgs("ghost@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@x.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("acc-1").
		WillReturnError(errors.New("db err"))

	_, err := repo.FindByID(context.Background(), "acc-1")
	if !errors.Is(err, common.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}

func TestFindByEmailLocked_LockClause(t *testing.T) {
	tests := []struct {
		name string
		mode LockMode
		q    string
	}{
		{"share", LockShare, `(?s)^SELECT.*FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1\s+FOR\s+SHARE$`},
		{"update", LockUpdate, `(?s)^SELECT.*FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1\s+FOR\s+UPDATE$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(tt.q).
				WithArgs("alice@x.com").
				WillReturnRows(sqlmock.NewRows(selectCols).
					AddRow("acc-1", "alice@x.com", []byte("hash"), "", "", true, ts, ts))

			got, err := repo.FindByEmailLocked(context.Background(), "alice@x.com", tt.mode)
			if err != nil {
				t.Fatalf("FindByEmailLocked error: %v", err)
			}
			if got.ID != "acc-1" {
				t.Fatalf("unexpected account: %+v", got)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestUpdateSecret(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+accounts\s+SET\s+secret_hash\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("acc-1", []byte("new")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("acc-2", []byte("new")).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateSecret(context.Background(), "acc-1", []byte("new")); err != nil {
		t.Fatalf("UpdateSecret error: %v", err)
	}
	if err := repo.UpdateSecret(context.Background(), "acc-2", []byte("new")); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound for missing row, got %v", err)
	}
}

func TestSetVerified(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+accounts\s+SET\s+verified\s*=\s*TRUE`
	mock.ExpectExec(q).WithArgs("acc-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("acc-1").WillReturnError(errors.New("conn reset"))

	if err := repo.SetVerified(context.Background(), "acc-1"); err != nil {
		t.Fatalf("SetVerified error: %v", err)
	}
	if err := repo.SetVerified(context.Background(), "acc-1"); !errors.Is(err, common.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+accounts\s+SET\s+first_name\s*=\s*\$2,\s*last_name\s*=\s*\$3`
	mock.ExpectExec(q).WithArgs("acc-1", "Ann", "Lee").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateProfile(context.Background(), "acc-1", models.Profile{FirstName: "Ann", LastName: "Lee"}); err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
