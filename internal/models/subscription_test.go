package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubscriptionStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want StatusKind
	}{
		{"active", StatusActive},
		{"canceled", StatusCanceled},
		{"past_due", StatusPastDue},
		{"trialing", StatusUnknown},
		{"cancelled", StatusUnknown},
		{"Active", StatusUnknown},
		{"", StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseSubscriptionStatus(tt.raw)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestSubscriptionStatus_ScanAndValue(t *testing.T) {
	var s SubscriptionStatus
	require.NoError(t, s.Scan([]byte("past_due")))
	assert.Equal(t, StatusPastDue, s.Kind)

	require.NoError(t, s.Scan("incomplete"))
	assert.Equal(t, StatusUnknown, s.Kind)

	v, err := s.Value()
	require.NoError(t, err)
	assert.Equal(t, "incomplete", v)

	assert.Error(t, s.Scan(42))
}

func TestSubscriptionStatus_JSONKeepsRawString(t *testing.T) {
	b, err := json.Marshal(Subscription{Status: ParseSubscriptionStatus("trialing")})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"trialing"`)

	var sub Subscription
	require.NoError(t, json.Unmarshal([]byte(`{"status":"active"}`), &sub))
	assert.Equal(t, StatusActive, sub.Status.Kind)
}
