// Package payload wraps batches of object references in the notification
// envelope a downstream function receives from a live object-created trigger:
// a storage event message delivered through a pub/sub notification.
//
// Only the inner message carries real data. The outer notification fields are
// fixed placeholders so consumers can tell replayed deliveries apart.
package payload

import (
	"encoding/json"
	"fmt"

	"github.com/getpup/pupsourcing-replay"
)

// Placeholder values of the outer notification envelope.
const (
	EventSource          = "aws:sns"
	EventVersion         = "1.0"
	EventSubscriptionArn = "arn:aws:sns:us-west-2:0000:s3-sns-lambda-replay-XXXX:1234-123-12-12"
	SignatureVersion     = "1"
	Timestamp            = "1970-01-01T00:00:00.000Z"
	Signature            = "replay"
	MessageID            = "95df01b4-ee98-5cb9-9903-4c221d41eb5e"
	NotificationType     = "Notification"
	Subject              = "ReplayInvoke"
)

// Envelope is the outer notification document.
type Envelope struct {
	Records []NotificationRecord `json:"Records"`
}

// NotificationRecord is a single pub/sub delivery.
type NotificationRecord struct {
	EventSource          string       `json:"EventSource"`
	EventVersion         string       `json:"EventVersion"`
	EventSubscriptionArn string       `json:"EventSubscriptionArn"`
	Sns                  Notification `json:"Sns"`
}

// Notification carries the storage event message as a serialized string.
type Notification struct {
	SignatureVersion  string            `json:"SignatureVersion"`
	Timestamp         string            `json:"Timestamp"`
	Signature         string            `json:"Signature"`
	SigningCertURL    string            `json:"SigningCertUrl"`
	MessageID         string            `json:"MessageId"`
	Message           string            `json:"Message"`
	MessageAttributes map[string]string `json:"MessageAttributes"`
	Type              string            `json:"Type"`
	UnsubscribeURL    string            `json:"UnsubscribeUrl"`
	TopicArn          string            `json:"TopicArn"`
	Subject           string            `json:"Subject"`
}

// StorageEvent is the inner message listing the replayed objects.
type StorageEvent struct {
	Records []StorageRecord `json:"Records"`
}

// StorageRecord references one object.
type StorageRecord struct {
	S3 StorageEntity `json:"s3"`
}

// StorageEntity mirrors the bucket/object part of an object-created record.
// The size sits next to the object, where existing consumers read it.
type StorageEntity struct {
	Bucket StorageBucket `json:"bucket"`
	Object StorageObject `json:"object"`
	Size   int64         `json:"size"`
}

// StorageBucket names the bucket holding the object.
type StorageBucket struct {
	Name string `json:"name"`
}

// StorageObject identifies the object.
type StorageObject struct {
	Key string `json:"key"`
}

// Encode wraps the objects of a batch into a notification envelope.
// Objects keep their batch order inside the inner message.
func Encode(batch replay.Batch) (json.RawMessage, error) {
	event := StorageEvent{Records: make([]StorageRecord, 0, len(batch.Objects))}
	for _, o := range batch.Objects {
		event.Records = append(event.Records, StorageRecord{S3: StorageEntity{
			Bucket: StorageBucket{Name: o.Bucket},
			Object: StorageObject{Key: o.Key},
			Size:   o.Size,
		}})
	}

	message, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode storage event: %w", err)
	}

	envelope := Envelope{Records: []NotificationRecord{{
		EventSource:          EventSource,
		EventVersion:         EventVersion,
		EventSubscriptionArn: EventSubscriptionArn,
		Sns: Notification{
			SignatureVersion:  SignatureVersion,
			Timestamp:         Timestamp,
			Signature:         Signature,
			SigningCertURL:    Signature,
			MessageID:         MessageID,
			Message:           string(message),
			MessageAttributes: map[string]string{},
			Type:              NotificationType,
			UnsubscribeURL:    Signature,
			TopicArn:          "",
			Subject:           Subject,
		},
	}}}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	return data, nil
}

// Decode extracts the object references from an encoded envelope.
func Decode(data []byte) ([]replay.ObjectRef, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	objects := make([]replay.ObjectRef, 0)
	for _, record := range envelope.Records {
		var event StorageEvent
		if err := json.Unmarshal([]byte(record.Sns.Message), &event); err != nil {
			return nil, fmt.Errorf("failed to decode storage event: %w", err)
		}
		for _, r := range event.Records {
			objects = append(objects, replay.ObjectRef{
				Bucket: r.S3.Bucket.Name,
				Key:    r.S3.Object.Key,
				Size:   r.S3.Size,
			})
		}
	}

	return objects, nil
}
