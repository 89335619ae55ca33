package subscription

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := errors.New(`ERROR: duplicate key value violates unique constraint "idx_subscriptions_one_ongoing" (SQLSTATE 23505)`)
	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("create: %w", dup)))

	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(errors.New("ERROR: relation does not exist (SQLSTATE 42P01)")))
}

func TestIsSerializationFailure(t *testing.T) {
	abort := errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)")
	assert.True(t, isSerializationFailure(abort))
	assert.True(t, isSerializationFailure(fmt.Errorf("save: %w", abort)))

	assert.False(t, isSerializationFailure(nil))
	assert.False(t, isSerializationFailure(errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")))
}
