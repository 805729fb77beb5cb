package postgres

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morphexe/vestige/internal/storage"
)

func TestIsTransientPostgresError(t *testing.T) {
	assert.True(t, isTransientPostgresError(errors.New("connection reset by peer")))
	assert.True(t, isTransientPostgresError(errors.New("read: i/o timeout")))
	assert.False(t, isTransientPostgresError(errors.New("syntax error at or near SELECT")))
}

func TestClassifyWrapsTransient(t *testing.T) {
	err := classify(errors.New("dial tcp: connection refused"))
	assert.True(t, storage.IsTransient(err))
}

func TestClassifyPassesThroughPermanent(t *testing.T) {
	err := classify(errors.New("column \"foo\" does not exist"))
	assert.False(t, storage.IsTransient(err))
}

func TestQuoteLiteralEscapesQuotes(t *testing.T) {
	assert.Equal(t, "'O''Brien'", quoteLiteral("O'Brien"))
}
