package job

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueOptions(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		opts []EnqueueOption
		want enqueueConfig
	}{
		{"none", nil, enqueueConfig{}},
		{"queue", []EnqueueOption{InQueue("delivery")}, enqueueConfig{queue: "delivery"}},
		{"empty queue keeps previous", []EnqueueOption{InQueue("delivery"), InQueue("")}, enqueueConfig{queue: "delivery"}},
		{"max attempts", []EnqueueOption{MaxAttempts(3)}, enqueueConfig{maxAttempts: 3}},
		{"non-positive attempts ignored", []EnqueueOption{MaxAttempts(3), MaxAttempts(0), MaxAttempts(-1)}, enqueueConfig{maxAttempts: 3}},
		{"scheduled", []EnqueueOption{ScheduledAt(at)}, enqueueConfig{scheduledAt: at}},
		{"tags", []EnqueueOption{Tags("invoice"), Tags("payment_reminder", "delivery-note")}, enqueueConfig{tags: []string{"invoice", "payment_reminder", "delivery-note"}}},
		{"invalid tags dropped", []EnqueueOption{Tags("", "a", "has space", "ok_tag")}, enqueueConfig{tags: []string{"ok_tag"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := enqueueConfig{}
			for _, opt := range tt.opts {
				opt(&cfg)
			}
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestBuildJobArgs(t *testing.T) {
	t.Parallel()

	args, opts, err := buildJobArgs("deliver_document", map[string]string{"logId": "log-1"},
		InQueue("delivery"), MaxAttempts(3), Tags("invoice"))
	require.NoError(t, err)

	assert.Equal(t, "deliver_document", args.TaskName)
	assert.JSONEq(t, `{"logId":"log-1"}`, string(args.Payload))
	assert.Equal(t, "postbox:task", args.Kind())
	assert.Equal(t, "delivery", opts.Queue)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, []string{"invoice"}, opts.Tags)
	assert.True(t, opts.ScheduledAt.IsZero())

	args, _, err = buildJobArgs("process_due_reminders", nil)
	require.NoError(t, err)
	assert.Empty(t, args.Payload)

	_, _, err = buildJobArgs("deliver_document", func() {})
	require.Error(t, err)

	var decoded taskArgs
	raw, err := json.Marshal(taskArgs{TaskName: "x", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "x", decoded.TaskName)
}
