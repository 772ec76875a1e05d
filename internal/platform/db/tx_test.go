package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx, got %v", tx)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	codeErr := &pgconn.PgError{Code: "23505", ConstraintName: "prescriptions_verification_code_key"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"matching constraint", codeErr, "prescriptions_verification_code_key", true},
		{"any constraint", codeErr, "", true},
		{"wrapped", fmt.Errorf("insert: %w", codeErr), "prescriptions_verification_code_key", true},
		{"other constraint", codeErr, "appointments_qr_code_key", false},
		{"other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
