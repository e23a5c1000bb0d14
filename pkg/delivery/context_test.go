package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogIDExtractor(t *testing.T) {
	t.Parallel()

	extract := LogIDExtractor()

	_, ok := extract(context.Background())
	assert.False(t, ok)

	_, ok = extract(ContextWithLogID(context.Background(), ""))
	assert.False(t, ok)

	attr, ok := extract(ContextWithLogID(context.Background(), "log-1"))
	assert.True(t, ok)
	assert.Equal(t, "log_id", attr.Key)
	assert.Equal(t, "log-1", attr.Value.String())
}
