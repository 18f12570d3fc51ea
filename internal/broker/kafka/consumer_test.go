package kafka

import (
	"testing"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestFromKafka(t *testing.T) {
	msg := kafka.Message{
		Topic:     "image-normalize",
		Partition: 3,
		Offset:    42,
		Key:       []byte("image-id"),
		Value:     []byte(`{"id":"task"}`),
	}

	got := fromKafka(msg)

	assert.Equal(t, "image-normalize", got.Topic)
	assert.Equal(t, 3, got.Partition)
	assert.Equal(t, int64(42), got.Offset)
	assert.Equal(t, []byte("image-id"), got.Key)
	assert.Equal(t, []byte(`{"id":"task"}`), got.Value)
}
