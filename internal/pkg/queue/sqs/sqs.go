package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aws-sqs-helper/internal/pkg/logger"
	"aws-sqs-helper/internal/pkg/observability/metrics"
	"aws-sqs-helper/internal/pkg/queue"
)

// DefaultRegion is used when ClientConfig.Region is empty.
const DefaultRegion = "us-east-1"

var (
	ErrNilLogger = errors.New("sqs helper: logger is nil")
	ErrNilAPI    = errors.New("sqs helper: api client is nil")
)

// API is the part of the SQS client used by Helper.
type API interface {
	CreateQueue(context.Context, *sqs.CreateQueueInput, ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	DeleteMessage(context.Context, *sqs.DeleteMessageInput, ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	DeleteMessageBatch(context.Context, *sqs.DeleteMessageBatchInput, ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	DeleteQueue(context.Context, *sqs.DeleteQueueInput, ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error)
	GetQueueAttributes(context.Context, *sqs.GetQueueAttributesInput, ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	GetQueueUrl(context.Context, *sqs.GetQueueUrlInput, ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	PurgeQueue(context.Context, *sqs.PurgeQueueInput, ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error)
	ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(context.Context, *sqs.SendMessageBatchInput, ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
}

var (
	_ API          = (*sqs.Client)(nil)
	_ queue.Client = (*Helper)(nil)
)

// ClientConfig selects the region and an optional endpoint override (local emulators).
type ClientConfig struct {
	Region   string
	Endpoint string
}

// NewClient creates a new sqs client from the shared AWS configuration.
func NewClient(ctx context.Context, cfg ClientConfig) (*sqs.Client, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var optFns []func(*sqs.Options)
	if cfg.Endpoint != "" {
		optFns = append(optFns, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	return sqs.NewFromConfig(awsCfg, optFns...), nil
}

// Helper forwards validated queue operations to SQS and logs every call.
type Helper struct {
	api      API
	logger   *zap.Logger
	validate *validator.Validate
}

// New creates a Helper around api.
func New(log *zap.Logger, api API) (*Helper, error) {
	if log == nil {
		return nil, ErrNilLogger
	}
	if api == nil {
		return nil, ErrNilAPI
	}
	return &Helper{
		api:      api,
		logger:   log,
		validate: newValidator(),
	}, nil
}

func (h *Helper) CreateQueue(ctx context.Context, queueName string, attributes map[string]string) (*sqs.CreateQueueOutput, error) {
	h.trace(ctx, "CreateQueue", zap.String("queueName", queueName), zap.Any("attributes", attributes))

	if err := h.checkArgs(queueNameArgs{QueueName: queueName}); err != nil {
		return nil, err
	}

	return invoke(ctx, h, "CreateQueue", &sqs.CreateQueueInput{
		QueueName:  aws.String(queueName),
		Attributes: attributes,
	}, h.api.CreateQueue)
}

func (h *Helper) DeleteMessage(ctx context.Context, queueURL, receiptHandle string) (*sqs.DeleteMessageOutput, error) {
	h.trace(ctx, "DeleteMessage", zap.String("queueUrl", queueURL), zap.String("receiptHandle", receiptHandle))

	if err := h.checkArgs(deleteMessageArgs{QueueURL: queueURL, ReceiptHandle: receiptHandle}); err != nil {
		return nil, err
	}

	return invoke(ctx, h, "DeleteMessage", &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}, h.api.DeleteMessage)
}

// DeleteMessages deletes the messages in one batch. Entry ids are random UUIDs;
// per-entry failures are reported in the output, not as an error.
func (h *Helper) DeleteMessages(ctx context.Context, queueURL string, receiptHandles []string) (*sqs.DeleteMessageBatchOutput, error) {
	h.trace(ctx, "DeleteMessages", zap.String("queueUrl", queueURL), zap.Strings("receiptHandles", receiptHandles))

	if err := h.checkArgs(deleteMessagesArgs{QueueURL: queueURL, ReceiptHandles: receiptHandles}); err != nil {
		return nil, err
	}

	entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(receiptHandles))
	for _, handle := range receiptHandles {
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(uuid.NewString()),
			ReceiptHandle: aws.String(handle),
		})
	}

	return invoke(ctx, h, "DeleteMessageBatch", &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  entries,
	}, h.api.DeleteMessageBatch)
}

func (h *Helper) DeleteQueue(ctx context.Context, queueURL string) (*sqs.DeleteQueueOutput, error) {
	h.trace(ctx, "DeleteQueue", zap.String("queueUrl", queueURL))

	if err := h.checkArgs(queueURLArgs{QueueURL: queueURL}); err != nil {
		return nil, err
	}

	return invoke(ctx, h, "DeleteQueue", &sqs.DeleteQueueInput{
		QueueUrl: aws.String(queueURL),
	}, h.api.DeleteQueue)
}

// GetNumberOfMessages reads ApproximateNumberOfMessages. A missing attribute counts as zero.
func (h *Helper) GetNumberOfMessages(ctx context.Context, queueURL string) (int, error) {
	h.trace(ctx, "GetNumberOfMessages", zap.String("queueUrl", queueURL))

	if err := h.checkArgs(queueURLArgs{QueueURL: queueURL}); err != nil {
		return 0, err
	}

	out, err := invoke(ctx, h, "GetQueueAttributes", &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	}, h.api.GetQueueAttributes)
	if err != nil {
		return 0, err
	}

	raw, ok := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", types.QueueAttributeNameApproximateNumberOfMessages, raw, err)
	}
	return n, nil
}

func (h *Helper) GetQueueAttributes(ctx context.Context, queueURL string) (*sqs.GetQueueAttributesOutput, error) {
	h.trace(ctx, "GetQueueAttributes", zap.String("queueUrl", queueURL))

	if err := h.checkArgs(queueURLArgs{QueueURL: queueURL}); err != nil {
		return nil, err
	}

	return invoke(ctx, h, "GetQueueAttributes", &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameAll},
	}, h.api.GetQueueAttributes)
}

func (h *Helper) GetQueueURL(ctx context.Context, queueName string) (string, error) {
	h.trace(ctx, "GetQueueURL", zap.String("queueName", queueName))

	if err := h.checkArgs(queueNameArgs{QueueName: queueName}); err != nil {
		return "", err
	}

	out, err := invoke(ctx, h, "GetQueueUrl", &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	}, h.api.GetQueueUrl)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.QueueUrl), nil
}

// PurgeQueue purges the queue. When a purge is already running the service
// error is logged once, at error level, and a nil output with a nil error is returned.
func (h *Helper) PurgeQueue(ctx context.Context, queueURL string) (*sqs.PurgeQueueOutput, error) {
	h.trace(ctx, "PurgeQueue", zap.String("queueUrl", queueURL))

	if err := h.checkArgs(queueURLArgs{QueueURL: queueURL}); err != nil {
		return nil, err
	}

	out, err := invoke(ctx, h, "PurgeQueue", &sqs.PurgeQueueInput{
		QueueUrl: aws.String(queueURL),
	}, h.api.PurgeQueue)

	// invoke has already logged the service error.
	var inProgress *types.PurgeQueueInProgress
	if errors.As(err, &inProgress) {
		return nil, nil
	}
	return out, err
}

// ReceiveAllMessages keeps receiving until a call comes back empty. Received
// messages stay invisible for the visibility timeout, which is what lets the
// loop reach an empty response. On failure or cancellation the messages
// gathered so far are returned together with the error.
func (h *Helper) ReceiveAllMessages(ctx context.Context, queueURL string, optFns ...func(*queue.ReceiveOptions)) ([]types.Message, error) {
	h.trace(ctx, "ReceiveAllMessages", zap.String("queueUrl", queueURL))

	if err := h.checkArgs(queueURLArgs{QueueURL: queueURL}); err != nil {
		return nil, err
	}

	var messages []types.Message
	for {
		out, err := h.ReceiveMessages(ctx, queueURL, optFns...)
		if err != nil {
			return messages, err
		}
		if len(out.Messages) == 0 {
			return messages, nil
		}
		messages = append(messages, out.Messages...)

		if err := ctx.Err(); err != nil {
			return messages, err
		}
	}
}

func (h *Helper) ReceiveMessages(ctx context.Context, queueURL string, optFns ...func(*queue.ReceiveOptions)) (*sqs.ReceiveMessageOutput, error) {
	opts := queue.NewReceiveOptions(optFns...)
	h.trace(ctx, "ReceiveMessages",
		zap.String("queueUrl", queueURL),
		zap.Int32("maxNumberOfMessages", opts.MaxNumberOfMessages),
		zap.Int32("visibilityTimeout", opts.VisibilityTimeout),
		zap.Int32("waitTimeSeconds", opts.WaitTimeSeconds),
		zap.Any("attributeNames", opts.AttributeNames),
		zap.Strings("messageAttributeNames", opts.MessageAttributeNames),
	)

	if err := h.checkArgs(queueURLArgs{QueueURL: queueURL}); err != nil {
		return nil, err
	}

	out, err := invoke(ctx, h, "ReceiveMessage", &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(queueURL),
		MaxNumberOfMessages:         opts.MaxNumberOfMessages,
		VisibilityTimeout:           opts.VisibilityTimeout,
		WaitTimeSeconds:             opts.WaitTimeSeconds,
		MessageSystemAttributeNames: opts.AttributeNames,
		MessageAttributeNames:       opts.MessageAttributeNames,
	}, h.api.ReceiveMessage)
	if err != nil {
		return nil, err
	}
	metrics.MessagesReceived.Add(float64(len(out.Messages)))
	return out, nil
}

func (h *Helper) SendMessage(ctx context.Context, queueURL, messageBody string, optFns ...func(*queue.SendOptions)) (*sqs.SendMessageOutput, error) {
	opts := queue.NewSendOptions(optFns...)
	h.trace(ctx, "SendMessage",
		zap.String("queueUrl", queueURL),
		zap.String("messageBody", messageBody),
		zap.Int32("delaySeconds", opts.DelaySeconds),
		zap.Any("messageAttributes", opts.MessageAttributes),
	)

	if err := h.checkArgs(sendMessageArgs{QueueURL: queueURL, MessageBody: messageBody}); err != nil {
		return nil, err
	}

	out, err := invoke(ctx, h, "SendMessage", &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(messageBody),
		DelaySeconds:      opts.DelaySeconds,
		MessageAttributes: opts.MessageAttributes,
	}, h.api.SendMessage)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()
	return out, nil
}

// SendMessages sends the entries in one batch; per-entry failures are
// reported in the output, not as an error.
func (h *Helper) SendMessages(ctx context.Context, queueURL string, messages []types.SendMessageBatchRequestEntry) (*sqs.SendMessageBatchOutput, error) {
	h.trace(ctx, "SendMessages", zap.String("queueUrl", queueURL), zap.Any("messages", messages))

	if err := h.checkArgs(sendMessagesArgs{QueueURL: queueURL, Messages: messages}); err != nil {
		return nil, err
	}

	out, err := invoke(ctx, h, "SendMessageBatch", &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  messages,
	}, h.api.SendMessageBatch)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Add(float64(len(out.Successful)))
	return out, nil
}

// invoke logs the request, performs the SDK call, records metrics and logs the outcome.
func invoke[In, Out any](ctx context.Context, h *Helper, operation string, input *In,
	call func(context.Context, *In, ...func(*sqs.Options)) (*Out, error)) (*Out, error) {
	h.logger.Debug("sqs request", h.fields(ctx, zap.String("operation", operation), zap.Any("request", input))...)

	start := time.Now()
	out, err := call(ctx, input)
	metrics.ObserveAPICall(operation, time.Since(start), err)

	if err != nil {
		fields := []zap.Field{zap.String("operation", operation), zap.Error(err)}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			fields = append(fields, zap.String("errorCode", apiErr.ErrorCode()))
		}
		h.logger.Error("sqs call failed", h.fields(ctx, fields...)...)
		return nil, fmt.Errorf("sqs %s: %w", operation, err)
	}

	h.logger.Debug("sqs response", h.fields(ctx, zap.String("operation", operation), zap.Any("response", out))...)
	return out, nil
}

// trace logs the facade method being entered with its arguments.
func (h *Helper) trace(ctx context.Context, method string, args ...zap.Field) {
	if !h.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	h.logger.Debug("["+method+"]", h.fields(ctx, args...)...)
}

func (h *Helper) fields(ctx context.Context, fields ...zap.Field) []zap.Field {
	return append(logger.ContextFields(ctx), fields...)
}
