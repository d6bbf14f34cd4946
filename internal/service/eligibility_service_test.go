package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
)

func newEligibilityFixture(users *mockUserRepo) *EligibilityService {
	return NewEligibilityService(users, nil, clock.Fixed{At: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}, zap.NewNop())
}

func TestCheckSubmitBlocksOnlyHardFlags(t *testing.T) {
	users := &mockUserRepo{}
	users.put(student("clean"))
	users.put(softFlagged("soft"))
	users.put(hardFlagged("hard"))
	svc := newEligibilityFixture(users)
	ctx := context.Background()

	_, err := svc.CheckSubmit(ctx, "clean")
	require.NoError(t, err)

	_, err = svc.CheckSubmit(ctx, "soft")
	require.NoError(t, err)

	_, err = svc.CheckSubmit(ctx, "hard")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrFlagged)

	_, err = svc.CheckSubmit(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestIsBulkSelectableExcludesAnyFlag(t *testing.T) {
	svc := newEligibilityFixture(&mockUserRepo{})

	clean := student("clean")
	soft := softFlagged("soft")
	hard := hardFlagged("hard")
	assert.True(t, svc.IsBulkSelectable(&clean))
	assert.False(t, svc.IsBulkSelectable(&soft))
	assert.False(t, svc.IsBulkSelectable(&hard))
	assert.False(t, svc.IsBulkSelectable(nil))
}

func TestListSelectableFiltersFlagged(t *testing.T) {
	users := &mockUserRepo{}
	users.put(student("clean-1"))
	users.put(student("clean-2"))
	users.put(softFlagged("soft"))
	svc := newEligibilityFixture(users)

	selectable, err := svc.ListSelectable(context.Background(), "soc-1")
	require.NoError(t, err)
	assert.Len(t, selectable, 2)
	for _, user := range selectable {
		assert.False(t, user.IsFlagged)
	}
}

func TestSetFlagHardNeedsFacultyAuthority(t *testing.T) {
	users := &mockUserRepo{}
	users.put(student("stu-1"))
	svc := newEligibilityFixture(users)
	ctx := context.Background()

	err := svc.SetFlag(ctx, "stu-1", dto.SetFlagRequest{Type: "HARD", Reason: "repeat curfew violation"},
		&models.JWTClaims{UserID: "eb-1", Role: models.RoleEB})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	err = svc.SetFlag(ctx, "stu-1", dto.SetFlagRequest{Type: "HARD", Reason: "repeat curfew violation"},
		&models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})
	require.NoError(t, err)
	stored := users.users["stu-1"]
	assert.True(t, stored.HardFlagged())
}

func TestSetFlagSoftAllowedForEB(t *testing.T) {
	users := &mockUserRepo{}
	users.put(student("stu-1"))
	svc := newEligibilityFixture(users)

	err := svc.SetFlag(context.Background(), "stu-1", dto.SetFlagRequest{Type: "SOFT", Reason: "pending dues"},
		&models.JWTClaims{UserID: "eb-1", Role: models.RoleEB})
	require.NoError(t, err)

	stored := users.users["stu-1"]
	assert.True(t, stored.IsFlagged)
	require.NotNil(t, stored.FlagType)
	assert.Equal(t, models.FlagSoft, *stored.FlagType)
}

func TestClearFlag(t *testing.T) {
	users := &mockUserRepo{}
	users.put(hardFlagged("stu-1"))
	svc := newEligibilityFixture(users)
	ctx := context.Background()
	actor := &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty}

	require.NoError(t, svc.ClearFlag(ctx, "stu-1", actor))
	assert.False(t, users.users["stu-1"].IsFlagged)

	// clearing twice is a no-op
	require.NoError(t, svc.ClearFlag(ctx, "stu-1", actor))
}
