package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupsourcing-replay"
)

func TestEncode_WrapsObjectsInNotification(t *testing.T) {
	batch := replay.Batch{Objects: []replay.ObjectRef{
		{Bucket: "events", Key: "2024/01/a.json", Size: 3},
		{Bucket: "events", Key: "2024/01/b.json", Size: 4},
	}}

	data, err := Encode(batch)
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(data, &envelope))
	require.Len(t, envelope.Records, 1)

	record := envelope.Records[0]
	assert.Equal(t, "aws:sns", record.EventSource)
	assert.Equal(t, "1.0", record.EventVersion)
	assert.Equal(t, "Notification", record.Sns.Type)
	assert.Equal(t, "ReplayInvoke", record.Sns.Subject)
	assert.Equal(t, "1970-01-01T00:00:00.000Z", record.Sns.Timestamp)
	assert.NotNil(t, record.Sns.MessageAttributes)

	var event StorageEvent
	require.NoError(t, json.Unmarshal([]byte(record.Sns.Message), &event))
	require.Len(t, event.Records, 2)
	assert.Equal(t, "events", event.Records[0].S3.Bucket.Name)
	assert.Equal(t, "2024/01/a.json", event.Records[0].S3.Object.Key)
	assert.Equal(t, int64(4), event.Records[1].S3.Size)
}

func TestEncode_UsesNotificationFieldNames(t *testing.T) {
	data, err := Encode(replay.Batch{Objects: []replay.ObjectRef{{Bucket: "b", Key: "k", Size: 1}}})
	require.NoError(t, err)

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	sns, ok := raw["Records"][0]["Sns"].(map[string]any)
	require.True(t, ok)
	for _, field := range []string{"SignatureVersion", "SigningCertUrl", "MessageId", "UnsubscribeUrl", "TopicArn", "Message"} {
		assert.Contains(t, sns, field)
	}
}

func TestEncode_IsDeterministic(t *testing.T) {
	batch := replay.Batch{Objects: []replay.ObjectRef{{Bucket: "b", Key: "k", Size: 1}}}

	first, err := Encode(batch)
	require.NoError(t, err)
	second, err := Encode(batch)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestDecode_ReturnsBatchObjectsInOrder(t *testing.T) {
	objects := []replay.ObjectRef{
		{Bucket: "b", Key: "one", Size: 1},
		{Bucket: "b", Key: "two", Size: 2},
	}
	data, err := Encode(replay.Batch{Objects: objects})
	require.NoError(t, err)

	decoded, err := Decode(data)

	require.NoError(t, err)
	assert.Equal(t, objects, decoded)
}

func TestDecode_InvalidEnvelope(t *testing.T) {
	_, err := Decode([]byte("not json"))

	assert.Error(t, err)
}

func TestDecode_InvalidInnerMessage(t *testing.T) {
	_, err := Decode([]byte(`{"Records":[{"Sns":{"Message":"{broken"}}]}`))

	assert.Error(t, err)
}
