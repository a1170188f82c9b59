package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "claimdesk/pkg/domain"
)

func TestTenantDDL(t *testing.T) {
	t.Run("quotes the schema everywhere", func(t *testing.T) {
		ddl, err := TenantDDL("acme_insurance")
		require.NoError(t, err)
		assert.NotContains(t, ddl, "{{schema}}")
		assert.Contains(t, ddl, `CREATE TABLE "acme_insurance".claims`)
		assert.Equal(t, 5, strings.Count(ddl, "CREATE TABLE"))
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		_, err := TenantDDL(`x"; DROP SCHEMA public; --`)
		require.Error(t, err)
	})
}

func TestTable(t *testing.T) {
	assert.Equal(t, `"acme"."claims"`, Table(id.Partition{Schema: "acme"}, "claims"))
}

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "claims_claim_number_key"})
	constraint, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "claims_claim_number_key", constraint)

	_, ok = UniqueViolation(errors.New("boom"))
	assert.False(t, ok)

	assert.True(t, DuplicateSchema(&pgconn.PgError{Code: "42P06"}))
}
