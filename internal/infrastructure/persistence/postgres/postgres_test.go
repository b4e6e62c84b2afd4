package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "s.id, s.name, s.cpf", prefixed("s", "id, name,cpf"))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "abc", nullable("abc"))
}

func TestMigrations_AreOrdered(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, m.Name)
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
}

func TestMigrations_NaturalKeysAreUnique(t *testing.T) {
	var all string
	for _, m := range GetMigrations() {
		all += m.UpSQL
	}
	assert.Contains(t, all, "uq_student_course UNIQUE (student_id, course_id)")
	assert.Contains(t, all, "uq_assessment_key UNIQUE (student_id, course_id, discipline_id)")
}

func TestErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(errors.New("boom")))
	assert.True(t, IsNoRows(fmt.Errorf("find: %w", pgx.ErrNoRows)))
}

func TestConfig_PoolConfig(t *testing.T) {
	cfg, err := Config{URL: "postgres://u:p@localhost:5432/records", MaxConns: 7}.PoolConfig()
	require.NoError(t, err)
	assert.EqualValues(t, 7, cfg.MaxConns)

	_, err = Config{URL: "::not a url"}.PoolConfig()
	assert.Error(t, err)
}
