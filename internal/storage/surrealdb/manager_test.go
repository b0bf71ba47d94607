package surrealdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	tcommon "github.com/bobmcallan/folio/tests/common"
)

func TestNewManager_ConnectsAndDefinesSchema(t *testing.T) {
	sc := tcommon.StartSurrealDB(t)

	mgr, err := NewManager(context.Background(), testLogger(), &common.SurrealConfig{
		Address:   sc.Address(),
		Namespace: "folio_test",
		Database:  "manager_schema",
		Username:  "root",
		Password:  "root",
	})
	require.NoError(t, err)
	defer mgr.Close()

	assert.Equal(t, "surrealdb", mgr.Backend())

	accounts, err := mgr.AccountStore().ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestNewManager_BadCredentials(t *testing.T) {
	sc := tcommon.StartSurrealDB(t)

	_, err := NewManager(context.Background(), testLogger(), &common.SurrealConfig{
		Address:   sc.Address(),
		Namespace: "folio_test",
		Database:  "bad_creds",
		Username:  "root",
		Password:  "wrong",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign in")
}

func TestIsNotFoundError(t *testing.T) {
	assert.False(t, isNotFoundError(nil))
	assert.True(t, isNotFoundError(errors.New("The table 'x' does not exist")))
	assert.True(t, isNotFoundError(errors.New("record not found")))
	assert.False(t, isNotFoundError(errors.New("connection refused")))
}
