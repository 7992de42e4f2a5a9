package sqs

import (
	"errors"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"aws-sqs-helper/internal/pkg/queue"
)

// Argument holders checked before each SDK call. Field order is the order
// in which failures are reported; the arg tag is the reported name.
type (
	queueNameArgs struct {
		QueueName string `arg:"queueName" validate:"notblank"`
	}

	queueURLArgs struct {
		QueueURL string `arg:"queueUrl" validate:"notblank"`
	}

	deleteMessageArgs struct {
		QueueURL      string `arg:"queueUrl" validate:"notblank"`
		ReceiptHandle string `arg:"receiptHandle" validate:"notblank"`
	}

	deleteMessagesArgs struct {
		QueueURL       string   `arg:"queueUrl" validate:"notblank"`
		ReceiptHandles []string `arg:"receiptHandles" validate:"required,min=1"`
	}

	sendMessageArgs struct {
		QueueURL    string `arg:"queueUrl" validate:"notblank"`
		MessageBody string `arg:"messageBody" validate:"notblank"`
	}

	sendMessagesArgs struct {
		QueueURL string                               `arg:"queueUrl" validate:"notblank"`
		Messages []types.SendMessageBatchRequestEntry `arg:"messages" validate:"required,min=1"`
	}
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("arg")
	})
	// notblank rejects empty and whitespace-only strings.
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// checkArgs converts the first validation failure into a *queue.ArgumentError.
func (h *Helper) checkArgs(args any) error {
	err := h.validate.Struct(args)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	argErr := &queue.ArgumentError{Name: fe.Field(), Err: queue.ErrArgumentRequired}
	if fe.Tag() == "min" {
		argErr.Err = queue.ErrArgumentEmpty
	}
	return argErr
}
