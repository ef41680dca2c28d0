package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"recordstack/internal/types"
)

// ============================================================
// ResetWindowIfElapsed Tests
// ============================================================

func TestQuotaRepository_ResetWindowIfElapsed_ReadsBackState(t *testing.T) {
	db := new(mockDBTX)
	repo := NewQuotaRepository(db)
	ctx := context.Background()

	resetAt := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	plan := types.PlanFree

	// The guarded UPDATE runs first; whether it matched is irrelevant to the
	// caller, only the read-back state matters.
	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"user_1"}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(**types.PlanTier) = &plan
		*dest[1].(*int) = 3
		*dest[2].(*time.Time) = resetAt
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"user_1"}).Return(row)

	w, err := repo.ResetWindowIfElapsed(ctx, "user_1")
	require.NoError(t, err)
	require.NotNil(t, w.PlanName)
	assert.Equal(t, types.PlanFree, *w.PlanName)
	assert.Equal(t, 3, w.APICallsUsed)
	assert.Equal(t, resetAt, w.APIResetAt)

	db.AssertExpectations(t)
}

func TestQuotaRepository_ResetWindowIfElapsed_UnknownPrincipal(t *testing.T) {
	db := new(mockDBTX)
	repo := NewQuotaRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"ghost"}).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"ghost"}).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.ResetWindowIfElapsed(ctx, "ghost")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFound, appErr.Code)
}

func TestQuotaRepository_ResetWindowIfElapsed_UpdateError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewQuotaRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"user_1"}).
		Return(pgconn.CommandTag{}, errors.New("connection reset"))

	_, err := repo.ResetWindowIfElapsed(ctx, "user_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// ============================================================
// ConsumeAPICall Tests
// ============================================================

func TestQuotaRepository_ConsumeAPICall_BelowLimit(t *testing.T) {
	db := new(mockDBTX)
	repo := NewQuotaRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"user_1", 25}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	ok, err := repo.ConsumeAPICall(ctx, "user_1", 25)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuotaRepository_ConsumeAPICall_AtLimit(t *testing.T) {
	db := new(mockDBTX)
	repo := NewQuotaRepository(db)
	ctx := context.Background()

	// The conditional WHERE matched no row: quota exhausted, not an error.
	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"user_1", 25}).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	ok, err := repo.ConsumeAPICall(ctx, "user_1", 25)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuotaRepository_ConsumeAPICall_GuardInSQL(t *testing.T) {
	db := new(mockDBTX)
	repo := NewQuotaRepository(db)
	ctx := context.Background()

	var captured string
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) { captured = args.String(1) }).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	_, err := repo.ConsumeAPICall(ctx, "user_1", 100)
	require.NoError(t, err)

	// The guard must live in the UPDATE itself; a separate read-then-write
	// would over-admit under concurrency.
	assert.Contains(t, captured, "api_calls_used + 1")
	assert.Contains(t, captured, "api_calls_used < $2")
}

func TestQuotaRepository_ConsumeAPICall_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewQuotaRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("deadlock detected"))

	_, err := repo.ConsumeAPICall(ctx, "user_1", 25)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// ============================================================
// CountOwnedRecords Tests
// ============================================================

func TestQuotaRepository_CountOwnedRecords_PerType(t *testing.T) {
	db := new(mockDBTX)
	repo := NewQuotaRepository(db)
	ctx := context.Background()

	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int) = 42
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"user_1"}).Return(row)

	count, err := repo.CountOwnedRecords(ctx, "user_1", types.EntityProductCatalog)
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestQuotaRepository_CountOwnedRecords_UnknownEntityType(t *testing.T) {
	db := new(mockDBTX)
	repo := NewQuotaRepository(db)

	_, err := repo.CountOwnedRecords(context.Background(), "user_1", types.EntityType("system_logs"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEntityType))
	// No query must reach the database for unmapped types.
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuotaRepository_CountOwnedRecords_ExcludesDeletedAndPlatform(t *testing.T) {
	for _, entity := range QuotaGovernedEntityTypes {
		query, ok := ownedCountQueries[entity]
		require.True(t, ok, "missing count query for %s", entity)
		assert.Contains(t, query, "is_deleted = FALSE", "entity %s", entity)
		assert.Contains(t, query, "is_platform_owned = FALSE", "entity %s", entity)
	}
}
