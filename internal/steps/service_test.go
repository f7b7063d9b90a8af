package steps

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/internal/variants"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/redis/redistest"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, forced string) (Service, *session.Store) {
	t.Helper()
	store := session.NewStore(redistest.New(), 0)
	variantSvc, err := variants.NewService(store, config.VariantsConfig{ForcedVariant: forced})
	require.NoError(t, err)
	svc, err := NewService(store, variantSvc)
	require.NoError(t, err)
	return svc, store
}

func TestServiceInitialState(t *testing.T) {
	svc, _ := newTestService(t, "a")
	view, err := svc.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 1, view.CurrentStep)
	assert.Equal(t, 1, view.MaxStepReached)
	assert.Equal(t, 3, view.TotalSteps)
	require.Len(t, view.Steps, 3)
	assert.True(t, view.Steps[0].Navigable)
	assert.False(t, view.Steps[1].Navigable)
}

func TestServicePersistsAcceptedTransitions(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "a")

	view, err := svc.GoTo(ctx, "s", 3)
	require.NoError(t, err)
	assert.True(t, view.Accepted)

	state, found, err := store.Steps(ctx, "s")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.StepState{Current: 3, MaxReached: 3}, state)

	view, err = svc.Navigate(ctx, "s", 1)
	require.NoError(t, err)
	assert.True(t, view.Accepted)
	assert.Equal(t, 1, view.CurrentStep)
	assert.Equal(t, 3, view.MaxStepReached)
}

func TestServiceIgnoresRejectedNavigation(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "a")

	view, err := svc.Navigate(ctx, "s", 2)
	require.NoError(t, err)
	assert.False(t, view.Accepted)
	assert.Equal(t, 1, view.CurrentStep)

	_, found, err := store.Steps(ctx, "s")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestServiceClampsToVariantStepCount(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "b")
	require.NoError(t, store.SaveVariant(ctx, "s", enums.FlowVariantB))
	require.NoError(t, store.SaveSteps(ctx, "s", types.StepState{Current: 3, MaxReached: 3}))

	view, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalSteps)
	assert.Equal(t, 2, view.CurrentStep)
	assert.Equal(t, 2, view.MaxStepReached)
}

func TestServiceReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, "a")
	_, err := svc.GoTo(ctx, "s", 3)
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx, "s"))
	view, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 1, view.CurrentStep)
	assert.Equal(t, 1, view.MaxStepReached)
}
