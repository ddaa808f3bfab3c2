package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents() []*AuditEvent {
	return []*AuditEvent{
		{
			ID:         1,
			Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			EventType:  EventTypeSecretReveal,
			Status:     EventStatusSuccess,
			ActorEmail: "u@x.com",
			ResourceID: "42",
		},
		{
			ID:         2,
			Timestamp:  time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
			EventType:  EventTypeAccessDenied,
			Status:     EventStatusDenied,
			ActorEmail: "g@x.com",
		},
	}
}

func TestExportJSON(t *testing.T) {
	data, err := exportJSON(sampleEvents())
	require.NoError(t, err)

	var decoded []*AuditEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, EventTypeSecretReveal, decoded[0].EventType)
}

func TestExportNDJSON(t *testing.T) {
	data, err := exportNDJSON(sampleEvents())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var event AuditEvent
		require.NoError(t, json.Unmarshal([]byte(line), &event))
	}
}

func TestExportCSV(t *testing.T) {
	data, err := exportCSV(sampleEvents())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ActorEmail")
	assert.Contains(t, lines[1], "secret.reveal")
	assert.Contains(t, lines[2], "denied")
}
