package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/peersync/internal/models"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		local    *models.SyncRecord
		incoming *models.SyncRecord
		name     string
		expected Outcome
	}{
		{
			name:     "no local record",
			local:    nil,
			incoming: createTestRecord("id1", 1, "aa"),
			expected: OutcomeApply,
		},
		{
			name:     "higher incoming version",
			local:    createTestRecord("id1", 1, "aa"),
			incoming: createTestRecord("id1", 2, "ff"),
			expected: OutcomeApply,
		},
		{
			name:     "lower incoming version",
			local:    createTestRecord("id1", 3, "ff"),
			incoming: createTestRecord("id1", 2, "00"),
			expected: OutcomeStale,
		},
		{
			name:     "identical version and content",
			local:    createTestRecord("id1", 2, "aa"),
			incoming: createTestRecord("id1", 2, "aa"),
			expected: OutcomeSame,
		},
		{
			name:     "conflict, incoming hash smaller",
			local:    createTestRecord("id1", 2, "bb"),
			incoming: createTestRecord("id1", 2, "aa"),
			expected: OutcomeConflictWon,
		},
		{
			name:     "conflict, local hash smaller",
			local:    createTestRecord("id1", 2, "aa"),
			incoming: createTestRecord("id1", 2, "bb"),
			expected: OutcomeConflictLost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.local, tt.incoming))
		})
	}
}

func TestResolve_Symmetric(t *testing.T) {
	// Обе стороны конфликта должны выбрать одного победителя
	a := createTestRecord("id1", 2, "aa")
	b := createTestRecord("id1", 2, "bb")

	assert.Equal(t, OutcomeConflictWon, Resolve(b, a), "на узле B побеждает запись A")
	assert.Equal(t, OutcomeConflictLost, Resolve(a, b), "на узле A запись B проигрывает")
}

func TestDecide(t *testing.T) {
	entry := func(v uint64, h string) *models.ManifestEntry {
		return &models.ManifestEntry{Version: v, ContentHash: h}
	}

	tests := []struct {
		local    *models.ManifestEntry
		remote   *models.ManifestEntry
		name     string
		expected Action
	}{
		{name: "both missing", expected: ActionNone},
		{name: "missing locally", remote: entry(1, "aa"), expected: ActionRequest},
		{name: "missing remotely", local: entry(1, "aa"), expected: ActionSend},
		{name: "local newer", local: entry(2, "ff"), remote: entry(1, "aa"), expected: ActionSend},
		{name: "remote newer", local: entry(1, "aa"), remote: entry(2, "ff"), expected: ActionRequest},
		{name: "equal", local: entry(2, "aa"), remote: entry(2, "aa"), expected: ActionNone},
		{name: "equal version, local hash smaller", local: entry(2, "aa"), remote: entry(2, "bb"), expected: ActionSend},
		{name: "equal version, remote hash smaller", local: entry(2, "bb"), remote: entry(2, "aa"), expected: ActionRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decide(tt.local, tt.remote))
		})
	}
}

func TestOutcome_Flags(t *testing.T) {
	assert.True(t, OutcomeApply.Replaces())
	assert.True(t, OutcomeConflictWon.Replaces())
	assert.False(t, OutcomeConflictLost.Replaces())
	assert.False(t, OutcomeSame.Replaces())
	assert.False(t, OutcomeStale.Replaces())

	assert.True(t, OutcomeConflictWon.IsConflict())
	assert.True(t, OutcomeConflictLost.IsConflict())
	assert.False(t, OutcomeApply.IsConflict())
	assert.Equal(t, "conflict-lost", OutcomeConflictLost.String())
}
