package queue

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	// DefaultMaxNumberOfMessages is also the SQS upper bound for one receive.
	DefaultMaxNumberOfMessages int32 = 10
	// DefaultVisibilityTimeout is in seconds.
	DefaultVisibilityTimeout int32 = 10
)

var (
	// ErrArgumentRequired reports a nil or blank argument.
	ErrArgumentRequired = errors.New("value is required")
	// ErrArgumentEmpty reports a collection argument without elements.
	ErrArgumentEmpty = errors.New("value must contain at least one element")
)

// ArgumentError names the argument that failed validation.
type ArgumentError struct {
	Name string
	Err  error
}

func (e *ArgumentError) Error() string {
	return "invalid argument " + e.Name + ": " + e.Err.Error()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// ReceiveOptions tunes a ReceiveMessage call.
type ReceiveOptions struct {
	MaxNumberOfMessages   int32                              // 1..10
	VisibilityTimeout     int32                              // seconds the messages stay hidden
	WaitTimeSeconds       int32                              // long polling wait, 0 disables
	AttributeNames        []types.MessageSystemAttributeName // system attributes returned per message
	MessageAttributeNames []string                           // custom attributes returned per message
}

// NewReceiveOptions returns the defaults with optFns applied in order.
func NewReceiveOptions(optFns ...func(*ReceiveOptions)) ReceiveOptions {
	o := ReceiveOptions{
		MaxNumberOfMessages: DefaultMaxNumberOfMessages,
		VisibilityTimeout:   DefaultVisibilityTimeout,
		AttributeNames:      []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// SendOptions tunes a SendMessage call.
type SendOptions struct {
	DelaySeconds      int32
	MessageAttributes map[string]types.MessageAttributeValue
}

// NewSendOptions returns the defaults with optFns applied in order.
func NewSendOptions(optFns ...func(*SendOptions)) SendOptions {
	var o SendOptions
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Client defines the queue operations exposed to callers.
type Client interface {
	// CreateQueue creates a queue with the given attributes.
	CreateQueue(ctx context.Context, queueName string, attributes map[string]string) (*sqs.CreateQueueOutput, error)
	// DeleteMessage deletes one message by receipt handle.
	DeleteMessage(ctx context.Context, queueURL, receiptHandle string) (*sqs.DeleteMessageOutput, error)
	// DeleteMessages deletes several messages in one batch request.
	DeleteMessages(ctx context.Context, queueURL string, receiptHandles []string) (*sqs.DeleteMessageBatchOutput, error)
	// DeleteQueue deletes the queue.
	DeleteQueue(ctx context.Context, queueURL string) (*sqs.DeleteQueueOutput, error)
	// GetNumberOfMessages returns the approximate number of visible messages.
	GetNumberOfMessages(ctx context.Context, queueURL string) (int, error)
	// GetQueueAttributes returns every attribute of the queue.
	GetQueueAttributes(ctx context.Context, queueURL string) (*sqs.GetQueueAttributesOutput, error)
	// GetQueueURL resolves a queue name to its URL.
	GetQueueURL(ctx context.Context, queueName string) (string, error)
	// PurgeQueue removes all messages from the queue.
	PurgeQueue(ctx context.Context, queueURL string) (*sqs.PurgeQueueOutput, error)
	// ReceiveAllMessages receives until a call returns no messages.
	ReceiveAllMessages(ctx context.Context, queueURL string, optFns ...func(*ReceiveOptions)) ([]types.Message, error)
	// ReceiveMessages performs a single receive call.
	ReceiveMessages(ctx context.Context, queueURL string, optFns ...func(*ReceiveOptions)) (*sqs.ReceiveMessageOutput, error)
	// SendMessage sends one message.
	SendMessage(ctx context.Context, queueURL, messageBody string, optFns ...func(*SendOptions)) (*sqs.SendMessageOutput, error)
	// SendMessages sends several messages in one batch request.
	SendMessages(ctx context.Context, queueURL string, messages []types.SendMessageBatchRequestEntry) (*sqs.SendMessageBatchOutput, error)
}
