package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUnitOfWork struct {
	beginErr  error
	commitErr error

	begun      bool
	committed  bool
	rolledBack bool
}

func (u *recordingUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if u.beginErr != nil {
		return nil, u.beginErr
	}
	u.begun = true
	return ctx, nil
}

func (u *recordingUnitOfWork) Commit(context.Context) error {
	u.committed = true
	return u.commitErr
}

func (u *recordingUnitOfWork) Rollback(context.Context) error {
	u.rolledBack = true
	return nil
}

func TestWithUnitOfWork(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		uow := &recordingUnitOfWork{}
		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.True(t, uow.committed)
		assert.False(t, uow.rolledBack)
	})

	t.Run("rolls back and returns fn errors unwrapped", func(t *testing.T) {
		sentinel := errors.New("stage regression")
		uow := &recordingUnitOfWork{}
		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
		assert.True(t, uow.rolledBack)
		assert.False(t, uow.committed)
	})

	t.Run("wraps begin failures", func(t *testing.T) {
		uow := &recordingUnitOfWork{beginErr: errors.New("pool exhausted")}
		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return nil })
		assert.ErrorContains(t, err, "begin unit of work")
	})

	t.Run("wraps commit failures", func(t *testing.T) {
		uow := &recordingUnitOfWork{commitErr: errors.New("connection reset")}
		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return nil })
		assert.ErrorContains(t, err, "commit unit of work")
	})
}
