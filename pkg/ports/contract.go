package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		sc := domain.NewSessionContext(sessionID, time.Now().UTC())
		sc.AppendConversation(domain.ConversationEntry{
			HandlerID: "FIN-031",
			Input:     map[string]any{"event_id": "EVT-1"},
			Output:    map[string]any{"total": float64(42)},
			Timestamp: time.Now().UTC(),
		})
		sc.LearnTopic("FIN-031")

		require.NoError(t, store.Save(ctx, sc), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.SessionID)
		require.Len(t, loaded.Conversations, 1)
		assert.Equal(t, "FIN-031", loaded.Conversations[0].HandlerID)
		assert.Equal(t, []string{"FIN-031"}, loaded.Preferences.PastTopics)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		sc := domain.NewSessionContext(sessionID, time.Now().UTC())
		require.NoError(t, store.Save(ctx, sc))

		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSessionContext(id1, time.Now().UTC()))
		_ = store.Save(ctx, domain.NewSessionContext(id2, time.Now().UTC()))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunConfirmationStoreContract verifies a ConfirmationStore implementation
// against the interface contract.
func RunConfirmationStoreContract(t *testing.T, store ConfirmationStore) {
	ctx := context.Background()
	now := time.Now().UTC()
	id := "contract-confirm-" + now.Format("20060102150405")

	t.Run("Put and Get", func(t *testing.T) {
		c := &domain.PendingConfirmation{
			ID:        id,
			SessionID: "sess-1",
			ProposedAction: domain.ProposedAction{
				HandlerID:   "SITE-037",
				Input:       map[string]any{"rooms_to_release": float64(30)},
				RiskReasons: []string{"irreversible"},
				RiskLevel:   domain.RiskMedium,
			},
			State:     domain.ConfirmationPending,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		}
		require.NoError(t, store.Put(ctx, c))

		loaded, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ConfirmationPending, loaded.State)
		assert.Equal(t, "SITE-037", loaded.ProposedAction.HandlerID)
		assert.Equal(t, []string{"irreversible"}, loaded.ProposedAction.RiskReasons)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+id)
		assert.ErrorIs(t, err, domain.ErrConfirmationNotFound)
	})

	t.Run("Put replaces state", func(t *testing.T) {
		loaded, err := store.Get(ctx, id)
		require.NoError(t, err)
		decidedAt := now.Add(time.Minute)
		require.NoError(t, loaded.Decide(domain.ConfirmationApproved, "approver-1", decidedAt))
		require.NoError(t, store.Put(ctx, loaded))

		reloaded, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ConfirmationApproved, reloaded.State)
		assert.Equal(t, "approver-1", reloaded.DecidedBy)
	})

	t.Run("ListPending", func(t *testing.T) {
		pendingID := id + "-pending"
		c := &domain.PendingConfirmation{
			ID:             pendingID,
			ProposedAction: domain.ProposedAction{HandlerID: "FIN-031"},
			State:          domain.ConfirmationPending,
			CreatedAt:      now,
			ExpiresAt:      now.Add(time.Hour),
		}
		require.NoError(t, store.Put(ctx, c))

		pending, err := store.ListPending(ctx)
		require.NoError(t, err)

		ids := make([]string, 0, len(pending))
		for _, p := range pending {
			ids = append(ids, p.ID)
		}
		assert.Contains(t, ids, pendingID)
		// The approved record from the previous subtest must not appear.
		assert.NotContains(t, ids, id)
	})
}
