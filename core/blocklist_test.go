package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlocklistEntry_IsActive(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name      string
		active    bool
		expiresAt *time.Time
		expected  bool
	}{
		{"active with future expiry", true, &future, true},
		{"active without expiry", true, nil, true},
		{"active but expired", true, &past, false},
		{"active expiring exactly now", true, &now, false},
		{"inactive", false, &future, false},
		{"inactive without expiry", false, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &BlocklistEntry{Active: tt.active, ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expected, entry.IsActive(now))
		})
	}
}

func TestBlockSource_IsValid(t *testing.T) {
	assert.True(t, BlockSourceManual.IsValid())
	assert.True(t, BlockSourceAuto.IsValid())
	assert.True(t, BlockSourceCorrelation.IsValid())
	assert.True(t, BlockSourceML.IsValid())
	assert.False(t, BlockSource("firewall").IsValid())
}
