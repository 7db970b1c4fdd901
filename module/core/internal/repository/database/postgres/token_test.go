package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTokens_NewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"token"}).
		AddRow("tok-new").
		AddRow("tok-old")
	mock.ExpectQuery(`SELECT token FROM device_tokens`).
		WithArgs("u1").
		WillReturnRows(rows)

	repo := NewTokenRepo(db)
	tokens, err := repo.Tokens(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 2 || tokens[0] != "tok-new" {
		t.Fatalf("tokens = %v, want [tok-new tok-old]", tokens)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTokens_NoneRegistered(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT token FROM device_tokens`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"token"}))

	repo := NewTokenRepo(db)
	tokens, err := repo.Tokens(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("tokens = %v, want empty", tokens)
	}
}
