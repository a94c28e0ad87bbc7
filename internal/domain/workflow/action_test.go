package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendedActions_PendingApprovalOrder(t *testing.T) {
	actions, err := RecommendedActions(StatusPendingApproval)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	assert.Equal(t, ActionApprove, actions[0].ID)
	assert.Equal(t, ActionReject, actions[1].ID)
	assert.Equal(t, StatusApproved, actions[0].Target)
	assert.Equal(t, EmphasisDestructive, actions[1].Emphasis)
}

func TestRecommendedActions_TerminalStatusesHaveNone(t *testing.T) {
	for _, s := range []Status{StatusReceivedClosed, StatusCancelled} {
		actions, err := RecommendedActions(s)
		require.NoError(t, err)
		assert.Empty(t, actions, "status %s", s)
	}
}

func TestRecommendedActions_TargetsAreAdjacent(t *testing.T) {
	for _, s := range AllStatuses() {
		actions, err := RecommendedActions(s)
		require.NoError(t, err)
		for _, a := range actions {
			assert.NotEmpty(t, a.Label)
			assert.True(t, a.Emphasis.IsValid())
			if a.Transitions() {
				assert.True(t, IsValidTransition(s, a.Target), "%s on %s -> %s", a.ID, s, a.Target)
			}
		}
	}
}

func TestRecommendedActions_NonTerminalStatusesOfferSomething(t *testing.T) {
	for _, s := range AllStatuses() {
		actions, _ := RecommendedActions(s)
		if IsTerminal(s) {
			continue
		}
		assert.NotEmpty(t, actions, "status %s", s)
	}
}

func TestRecommendedActions_ReturnsCopy(t *testing.T) {
	actions, err := RecommendedActions(StatusDraft)
	require.NoError(t, err)
	actions[0].Label = "changed"

	again, _ := RecommendedActions(StatusDraft)
	assert.Equal(t, "Submit for Approval", again[0].Label)
}

func TestRecommendedActions_UnknownStatus(t *testing.T) {
	_, err := RecommendedActions(Status("bogus"))
	assert.True(t, errors.Is(err, ErrUnknownStatus))
}

func TestFindAction(t *testing.T) {
	a, ok := FindAction(StatusAmended, ActionResubmit)
	require.True(t, ok)
	assert.Equal(t, StatusPendingApproval, a.Target)

	edit, ok := FindAction(StatusDraft, ActionEdit)
	require.True(t, ok)
	assert.False(t, edit.Transitions())

	_, ok = FindAction(StatusDraft, ActionApprove)
	assert.False(t, ok)
}

func TestStatusDisplay(t *testing.T) {
	tests := []struct {
		status   Status
		label    string
		emphasis EmphasisTier
	}{
		{StatusDraft, "Draft", EmphasisOutline},
		{StatusPendingApproval, "Pending Approval", EmphasisSecondary},
		{StatusChangeRequested, "Change Requested", EmphasisDestructive},
		{StatusReceivedClosed, "Received & Closed", EmphasisDefault},
		{StatusCancelled, "Cancelled", EmphasisDestructive},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			d, err := StatusDisplay(tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.label, d.Label)
			assert.Equal(t, tt.emphasis, d.Emphasis)
		})
	}
}

func TestStatusDisplay_EveryStatusHasEntry(t *testing.T) {
	for _, s := range AllStatuses() {
		d, err := StatusDisplay(s)
		require.NoError(t, err)
		assert.NotEmpty(t, d.Label)
		assert.True(t, d.Emphasis.IsValid())
	}

	_, err := StatusDisplay(Status("bogus"))
	assert.True(t, errors.Is(err, ErrUnknownStatus))
}
