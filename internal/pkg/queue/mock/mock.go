// Package mock provides a queue.Client that answers every call with a canned
// response, for tests and local runs without AWS access.
package mock

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"aws-sqs-helper/internal/pkg/queue"
)

// NumberOfMessages is the count reported by GetNumberOfMessages.
const NumberOfMessages = 7

// URLPrefix is prepended to queue names by CreateQueue and GetQueueURL.
const URLPrefix = "https://sqs.us-east-1.amazonaws.com/000000000000/"

var _ queue.Client = (*Mock)(nil)

// Mock records every call and never fails. Arguments are not validated.
type Mock struct {
	mu    sync.Mutex
	calls []string
}

func New() *Mock {
	return &Mock{}
}

// Calls returns the names of the operations invoked so far, in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Mock) record(op string) {
	m.mu.Lock()
	m.calls = append(m.calls, op)
	m.mu.Unlock()
}

func (m *Mock) CreateQueue(_ context.Context, queueName string, _ map[string]string) (*sqs.CreateQueueOutput, error) {
	m.record("CreateQueue")
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(URLPrefix + queueName)}, nil
}

func (m *Mock) DeleteMessage(_ context.Context, _, _ string) (*sqs.DeleteMessageOutput, error) {
	m.record("DeleteMessage")
	return &sqs.DeleteMessageOutput{}, nil
}

func (m *Mock) DeleteMessages(_ context.Context, _ string, _ []string) (*sqs.DeleteMessageBatchOutput, error) {
	m.record("DeleteMessages")
	return &sqs.DeleteMessageBatchOutput{}, nil
}

func (m *Mock) DeleteQueue(_ context.Context, _ string) (*sqs.DeleteQueueOutput, error) {
	m.record("DeleteQueue")
	return &sqs.DeleteQueueOutput{}, nil
}

func (m *Mock) GetNumberOfMessages(_ context.Context, _ string) (int, error) {
	m.record("GetNumberOfMessages")
	return NumberOfMessages, nil
}

func (m *Mock) GetQueueAttributes(_ context.Context, _ string) (*sqs.GetQueueAttributesOutput, error) {
	m.record("GetQueueAttributes")
	return &sqs.GetQueueAttributesOutput{}, nil
}

func (m *Mock) GetQueueURL(_ context.Context, queueName string) (string, error) {
	m.record("GetQueueURL")
	return URLPrefix + queueName, nil
}

func (m *Mock) PurgeQueue(_ context.Context, _ string) (*sqs.PurgeQueueOutput, error) {
	m.record("PurgeQueue")
	return &sqs.PurgeQueueOutput{}, nil
}

// ReceiveAllMessages always returns exactly one empty message.
func (m *Mock) ReceiveAllMessages(_ context.Context, _ string, _ ...func(*queue.ReceiveOptions)) ([]types.Message, error) {
	m.record("ReceiveAllMessages")
	return []types.Message{{}}, nil
}

func (m *Mock) ReceiveMessages(_ context.Context, _ string, _ ...func(*queue.ReceiveOptions)) (*sqs.ReceiveMessageOutput, error) {
	m.record("ReceiveMessages")
	return &sqs.ReceiveMessageOutput{}, nil
}

func (m *Mock) SendMessage(_ context.Context, _, _ string, _ ...func(*queue.SendOptions)) (*sqs.SendMessageOutput, error) {
	m.record("SendMessage")
	return &sqs.SendMessageOutput{MessageId: aws.String(uuid.NewString())}, nil
}

func (m *Mock) SendMessages(_ context.Context, _ string, _ []types.SendMessageBatchRequestEntry) (*sqs.SendMessageBatchOutput, error) {
	m.record("SendMessages")
	return &sqs.SendMessageBatchOutput{}, nil
}
