package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIsolation(t *testing.T) {
	tests := []struct {
		in   string
		want sql.IsolationLevel
	}{
		{"", sql.LevelReadCommitted},
		{"read_committed", sql.LevelReadCommitted},
		{"repeatable_read", sql.LevelRepeatableRead},
		{"serializable", sql.LevelSerializable},
	}
	for _, tt := range tests {
		got, err := parseIsolation(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseIsolation("snapshot")
	assert.Error(t, err)
}

func TestIsConflict(t *testing.T) {
	c := &Client{}

	assert.True(t, c.IsConflict(&pgconn.PgError{Code: codeSerializationFailure}))
	assert.True(t, c.IsConflict(fmt.Errorf("commit: %w", &pgconn.PgError{Code: codeDeadlockDetected})))
	assert.False(t, c.IsConflict(&pgconn.PgError{Code: "23505"}))
	assert.False(t, c.IsConflict(errors.New("connection reset")))
}
