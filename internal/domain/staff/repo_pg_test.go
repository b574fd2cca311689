package staff

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	db := sqlx.NewDb(mockDB, "postgres")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var staffColumns = []string{
	"id", "name", "email", "phone", "role", "center_id",
	"specialization", "upstream_id", "active", "created_at", "updated_at",
}

func TestRepoPG_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRepoPG(db)
	mock.ExpectExec(`INSERT INTO "staff"`).WillReturnResult(sqlmock.NewResult(0, 1))

	centerID := uuid.New()
	m := &Staff{Name: "Asha", Email: "asha@example.org", Role: "doctor", CenterID: &centerID, Active: true}
	if err := repo.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepoPG_GetByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRepoPG(db)
	id, centerID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM "staff" WHERE`).
		WillReturnRows(sqlmock.NewRows(staffColumns).
			AddRow(id.String(), "Asha", "asha@example.org", nil, "doctor", centerID.String(), "Cardiology", "d-1", true, now, now))

	m, err := repo.GetByEmail(context.Background(), "asha@example.org")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID != id || m.CenterID == nil || *m.CenterID != centerID || m.UpstreamID == nil || *m.UpstreamID != "d-1" {
		t.Errorf("unexpected staff %+v", m)
	}
}

func TestRepoPG_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRepoPG(db)
	mock.ExpectQuery(`SELECT (.+) FROM "staff" WHERE`).WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepoPG_SetActive(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRepoPG(db)
	mock.ExpectExec(`UPDATE "staff" SET (.+)"active"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "staff" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetActive(context.Background(), uuid.New(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.SetActive(context.Background(), uuid.New(), true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepoPG_List(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRepoPG(db)
	centerID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "staff" WHERE (.+)"role"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM "staff" WHERE (.+) ORDER BY "name" ASC`).
		WillReturnRows(sqlmock.NewRows(staffColumns).
			AddRow(uuid.New().String(), "Asha", "asha@example.org", nil, "doctor", centerID.String(), nil, nil, true, now, now))

	items, total, err := repo.List(context.Background(), ListFilter{Role: "doctor", CenterID: &centerID}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Specialization != nil {
		t.Errorf("unexpected listing: total=%d items=%+v", total, items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
