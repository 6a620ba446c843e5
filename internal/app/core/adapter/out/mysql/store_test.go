package mysql

import (
	"errors"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
)

func TestClassify(t *testing.T) {
	s := NewStore(nil, ledger.DefaultRetryPolicy(), nil)

	assert.ErrorIs(t, s.classify(&gomysql.MySQLError{Number: errDeadlock}), ledger.ErrConflict)
	assert.ErrorIs(t, s.classify(&gomysql.MySQLError{Number: errLockWaitTimeout}), ledger.ErrConflict)

	var lerr *ledger.Error
	dup := &gomysql.MySQLError{Number: errDuplicateEntry, Message: "Duplicate entry"}
	assert.ErrorAs(t, s.classify(dup), &lerr)
	assert.Equal(t, "mysql", lerr.Op)
	assert.ErrorIs(t, s.classify(dup), ledger.ErrDuplicateKey)
	assert.NotErrorIs(t, s.classify(dup), ledger.ErrConflict)

	syntax := &gomysql.MySQLError{Number: 1064, Message: "syntax error"}
	assert.ErrorAs(t, s.classify(syntax), &lerr)
	assert.NotErrorIs(t, s.classify(syntax), ledger.ErrDuplicateKey)

	notFound := domain.AccountNotFoundError{AccountNumber: "0000000001"}
	assert.Equal(t, notFound, s.classify(notFound))
	assert.NoError(t, s.classify(nil))

	boom := errors.New("boom")
	assert.Same(t, boom, s.classify(boom))
}

func TestAccountTableName(t *testing.T) {
	assert.Equal(t, "accounts", (&sqlAccount{}).TableName())
}
