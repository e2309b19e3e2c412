package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm", gorm.ErrDuplicatedKey, true},
		{"postgres", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres_other", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite", errors.New("UNIQUE constraint failed: plans.name"), true},
		{"mysql", errors.New("Error 1062: Duplicate entry"), true},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIsForeignKeyErr(t *testing.T) {
	if !IsForeignKeyErr(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("expected postgres 23503 to be a foreign key error")
	}
	if !IsForeignKeyErr(errors.New("FOREIGN KEY constraint failed")) {
		t.Fatalf("expected sqlite message to be a foreign key error")
	}
	if IsForeignKeyErr(errors.New("boom")) {
		t.Fatalf("unexpected match")
	}
}
