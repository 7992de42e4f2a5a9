package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/spf13/cobra"

	"aws-sqs-helper/configs"
	"aws-sqs-helper/internal/app/monitor"
	"aws-sqs-helper/internal/pkg/cache"
	"aws-sqs-helper/internal/pkg/queue"
)

// Deps builds the backends lazily so that flag values are applied first.
type Deps struct {
	Config   *configs.Config
	NewQueue func(ctx context.Context, cfg *configs.Config) (queue.Client, error)
	NewCache func(ctx context.Context, cfg *configs.Config) (cache.Client, error)
}

type app struct {
	deps  Deps
	queue queue.Client
}

// NewRootCommand returns the sqshelper command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	a := &app{deps: deps}
	cfg := deps.Config

	root := &cobra.Command{
		Use:           "sqshelper",
		Short:         "Thin command line front end for Amazon SQS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.AwsRegion, "region", cfg.AwsRegion, "AWS region")
	root.PersistentFlags().StringVar(&cfg.SqsEndpoint, "endpoint", cfg.SqsEndpoint, "SQS endpoint override")

	root.AddCommand(
		a.createQueueCmd(),
		a.deleteQueueCmd(),
		a.purgeQueueCmd(),
		a.queueURLCmd(),
		a.attributesCmd(),
		a.countCmd(),
		a.sendCmd(),
		a.sendBatchCmd(),
		a.receiveCmd(),
		a.receiveAllCmd(),
		a.deleteCmd(),
		a.deleteBatchCmd(),
		a.snapshotsCmd(),
	)
	return root
}

func (a *app) client(ctx context.Context) (queue.Client, error) {
	if a.queue != nil {
		return a.queue, nil
	}
	q, err := a.deps.NewQueue(ctx, a.deps.Config)
	if err != nil {
		return nil, err
	}
	a.queue = q
	return q, nil
}

// run resolves the queue client and prints fn's result as JSON.
func (a *app) run(fn func(ctx context.Context, q queue.Client) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		q, err := a.client(cmd.Context())
		if err != nil {
			return err
		}
		out, err := fn(cmd.Context(), q)
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parsePairs turns name=value flags into a map.
func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected name=value, got %q", p)
		}
		m[k] = v
	}
	return m, nil
}

func (a *app) createQueueCmd() *cobra.Command {
	var attrs []string
	cmd := &cobra.Command{
		Use:   "create-queue NAME",
		Short: "Create a queue",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "queue attribute as name=value, repeatable")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		attributes, err := parsePairs(attrs)
		if err != nil {
			return err
		}
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			return q.CreateQueue(ctx, args[0], attributes)
		})(cmd, args)
	}
	return cmd
}

func (a *app) deleteQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-queue URL",
		Short: "Delete a queue",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			return q.DeleteQueue(ctx, args[0])
		})(cmd, args)
	}
	return cmd
}

func (a *app) purgeQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge-queue URL",
		Short: "Delete every message in a queue",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			out, err := q.PurgeQueue(ctx, args[0])
			if err != nil {
				return nil, err
			}
			return map[string]any{"queueUrl": args[0], "purgeStarted": out != nil}, nil
		})(cmd, args)
	}
	return cmd
}

func (a *app) queueURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue-url NAME",
		Short: "Resolve a queue name to its URL",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			url, err := q.GetQueueURL(ctx, args[0])
			if err != nil {
				return nil, err
			}
			return map[string]string{"queueUrl": url}, nil
		})(cmd, args)
	}
	return cmd
}

func (a *app) attributesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attributes URL",
		Short: "Show all queue attributes",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			out, err := q.GetQueueAttributes(ctx, args[0])
			if err != nil {
				return nil, err
			}
			return out.Attributes, nil
		})(cmd, args)
	}
	return cmd
}

func (a *app) countCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count URL",
		Short: "Show the approximate number of messages",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			n, err := q.GetNumberOfMessages(ctx, args[0])
			if err != nil {
				return nil, err
			}
			return map[string]any{"queueUrl": args[0], "messages": n}, nil
		})(cmd, args)
	}
	return cmd
}

func (a *app) sendCmd() *cobra.Command {
	var (
		delay int32
		attrs []string
	)
	cmd := &cobra.Command{
		Use:   "send URL BODY",
		Short: "Send one message",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().Int32Var(&delay, "delay", 0, "delivery delay in seconds")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "string message attribute as name=value, repeatable")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		pairs, err := parsePairs(attrs)
		if err != nil {
			return err
		}
		var msgAttrs map[string]types.MessageAttributeValue
		if len(pairs) > 0 {
			msgAttrs = make(map[string]types.MessageAttributeValue, len(pairs))
			for k, v := range pairs {
				msgAttrs[k] = types.MessageAttributeValue{
					DataType:    aws.String("String"),
					StringValue: aws.String(v),
				}
			}
		}
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			return q.SendMessage(ctx, args[0], args[1], func(o *queue.SendOptions) {
				o.DelaySeconds = delay
				o.MessageAttributes = msgAttrs
			})
		})(cmd, args)
	}
	return cmd
}

func (a *app) sendBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send-batch URL BODY...",
		Short: "Send up to ten messages in one request",
		Args:  cobra.MinimumNArgs(2),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		entries := make([]types.SendMessageBatchRequestEntry, 0, len(args)-1)
		for i, body := range args[1:] {
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          aws.String(strconv.Itoa(i)),
				MessageBody: aws.String(body),
			})
		}
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			return q.SendMessages(ctx, args[0], entries)
		})(cmd, args)
	}
	return cmd
}

// receiveFlags registers the receive options on cmd, defaulting to the config.
func (a *app) receiveFlags(cmd *cobra.Command, withMax bool) func(*queue.ReceiveOptions) {
	cfg := a.deps.Config
	var (
		maxMessages       = cfg.ReceiveMaxMessages
		visibilityTimeout = cfg.ReceiveVisibilityTimeout
		waitTime          = cfg.ReceiveWaitTimeSeconds
		messageAttributes []string
	)
	if withMax {
		cmd.Flags().Int32Var(&maxMessages, "max", maxMessages, "maximum messages per receive (1-10)")
	}
	cmd.Flags().Int32Var(&visibilityTimeout, "visibility-timeout", visibilityTimeout, "seconds received messages stay hidden")
	cmd.Flags().Int32Var(&waitTime, "wait", waitTime, "long polling wait in seconds")
	cmd.Flags().StringSliceVar(&messageAttributes, "message-attributes", nil, "message attribute names to return")

	return func(o *queue.ReceiveOptions) {
		o.MaxNumberOfMessages = maxMessages
		o.VisibilityTimeout = visibilityTimeout
		o.WaitTimeSeconds = waitTime
		o.MessageAttributeNames = messageAttributes
	}
}

func (a *app) receiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive URL",
		Short: "Receive one batch of messages",
		Args:  cobra.ExactArgs(1),
	}
	opt := a.receiveFlags(cmd, true)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			out, err := q.ReceiveMessages(ctx, args[0], opt)
			if err != nil {
				return nil, err
			}
			return out.Messages, nil
		})(cmd, args)
	}
	return cmd
}

func (a *app) receiveAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive-all URL",
		Short: "Receive until the queue returns no more messages",
		Args:  cobra.ExactArgs(1),
	}
	opt := a.receiveFlags(cmd, false)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			return q.ReceiveAllMessages(ctx, args[0], opt)
		})(cmd, args)
	}
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete URL RECEIPT_HANDLE",
		Short: "Delete one message",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			return q.DeleteMessage(ctx, args[0], args[1])
		})(cmd, args)
	}
	return cmd
}

func (a *app) deleteBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-batch URL RECEIPT_HANDLE...",
		Short: "Delete up to ten messages in one request",
		Args:  cobra.MinimumNArgs(2),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, q queue.Client) (any, error) {
			return q.DeleteMessages(ctx, args[0], args[1:])
		})(cmd, args)
	}
	return cmd
}

func (a *app) snapshotsCmd() *cobra.Command {
	var queueURL string
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List queue depth snapshots cached by the monitor",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&queueURL, "queue", "", "only show the snapshot of this queue URL")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if a.deps.NewCache == nil || a.deps.Config.CacheRedisEndpoint == "" {
			return errors.New("CACHE_REDIS_ENDPOINT is not set")
		}
		c, err := a.deps.NewCache(cmd.Context(), a.deps.Config)
		if err != nil {
			return err
		}
		prefix := a.deps.Config.CacheSnapshotKeyPrefix

		if queueURL != "" {
			snap, err := monitor.LoadSnapshot(cmd.Context(), c, prefix, queueURL)
			if errors.Is(err, cache.ErrNotFound) {
				return fmt.Errorf("no snapshot cached for %s", queueURL)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, snap)
		}

		snaps, err := monitor.LoadSnapshots(cmd.Context(), c, prefix)
		if err != nil {
			return err
		}
		return printJSON(cmd, snaps)
	}
	return cmd
}
