package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"aws-sqs-helper/configs"
	"aws-sqs-helper/internal/app/cli"
	"aws-sqs-helper/internal/app/monitor"
	"aws-sqs-helper/internal/pkg/cache"
	"aws-sqs-helper/internal/pkg/queue"
	"aws-sqs-helper/internal/pkg/queue/mock"
)

// recordingQueue keeps the arguments the mock ignores.
type recordingQueue struct {
	*mock.Mock
	receiveOpts queue.ReceiveOptions
	sendOpts    queue.SendOptions
	attributes  map[string]string
	entries     []types.SendMessageBatchRequestEntry
	handles     []string
}

func (q *recordingQueue) CreateQueue(ctx context.Context, name string, attributes map[string]string) (*sqs.CreateQueueOutput, error) {
	q.attributes = attributes
	return q.Mock.CreateQueue(ctx, name, attributes)
}

func (q *recordingQueue) ReceiveMessages(ctx context.Context, url string, optFns ...func(*queue.ReceiveOptions)) (*sqs.ReceiveMessageOutput, error) {
	q.receiveOpts = queue.NewReceiveOptions(optFns...)
	return q.Mock.ReceiveMessages(ctx, url, optFns...)
}

func (q *recordingQueue) ReceiveAllMessages(ctx context.Context, url string, optFns ...func(*queue.ReceiveOptions)) ([]types.Message, error) {
	q.receiveOpts = queue.NewReceiveOptions(optFns...)
	return q.Mock.ReceiveAllMessages(ctx, url, optFns...)
}

func (q *recordingQueue) SendMessage(ctx context.Context, url, body string, optFns ...func(*queue.SendOptions)) (*sqs.SendMessageOutput, error) {
	q.sendOpts = queue.NewSendOptions(optFns...)
	return q.Mock.SendMessage(ctx, url, body, optFns...)
}

func (q *recordingQueue) SendMessages(ctx context.Context, url string, entries []types.SendMessageBatchRequestEntry) (*sqs.SendMessageBatchOutput, error) {
	q.entries = entries
	return q.Mock.SendMessages(ctx, url, entries)
}

func (q *recordingQueue) DeleteMessages(ctx context.Context, url string, handles []string) (*sqs.DeleteMessageBatchOutput, error) {
	q.handles = handles
	return q.Mock.DeleteMessages(ctx, url, handles)
}

// staticCache serves fixed entries.
type staticCache struct {
	cache.Client
	entries map[string]string
}

func (c staticCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.entries[key]
	if !ok {
		return "", cache.ErrNotFound
	}
	return v, nil
}

func (c staticCache) ScanPrefix(_ context.Context, prefix string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range c.entries {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

var _ = Describe("sqshelper", func() {
	const url = mock.URLPrefix + "orders"

	var (
		q       *recordingQueue
		cfg     *configs.Config
		deps    cli.Deps
		stdout  *bytes.Buffer
		builtAs *configs.Config
	)

	execute := func(args ...string) error {
		root := cli.NewRootCommand(deps)
		root.SetArgs(args)
		root.SetOut(stdout)
		root.SetErr(&bytes.Buffer{})
		return root.ExecuteContext(context.Background())
	}

	BeforeEach(func() {
		q = &recordingQueue{Mock: mock.New()}
		cfg = &configs.Config{
			AwsRegion:                "us-east-1",
			ReceiveMaxMessages:       10,
			ReceiveVisibilityTimeout: 10,
			CacheSnapshotKeyPrefix:   "sqs-depth-",
		}
		stdout = &bytes.Buffer{}
		builtAs = nil
		deps = cli.Deps{
			Config: cfg,
			NewQueue: func(_ context.Context, c *configs.Config) (queue.Client, error) {
				copied := *c
				builtAs = &copied
				return q, nil
			},
		}
	})

	It("applies the region and endpoint flags before building the client", func() {
		Expect(execute("--region", "eu-west-1", "--endpoint", "http://localhost:4566", "count", url)).To(Succeed())
		Expect(builtAs.AwsRegion).To(Equal("eu-west-1"))
		Expect(builtAs.SqsEndpoint).To(Equal("http://localhost:4566"))
	})

	It("reports client construction errors", func() {
		deps.NewQueue = func(context.Context, *configs.Config) (queue.Client, error) {
			return nil, errors.New("no credentials")
		}
		Expect(execute("count", url)).To(MatchError("no credentials"))
	})

	It("prints the message count", func() {
		Expect(execute("count", url)).To(Succeed())
		Expect(stdout.String()).To(MatchJSON(`{"queueUrl":"` + url + `","messages":7}`))
	})

	It("prints the resolved queue url", func() {
		Expect(execute("queue-url", "orders")).To(Succeed())
		Expect(stdout.String()).To(MatchJSON(`{"queueUrl":"` + url + `"}`))
	})

	It("reports a started purge", func() {
		Expect(execute("purge-queue", url)).To(Succeed())
		Expect(stdout.String()).To(MatchJSON(`{"queueUrl":"` + url + `","purgeStarted":true}`))
	})

	It("passes queue attributes to create-queue", func() {
		Expect(execute("create-queue", "orders", "--attr", "VisibilityTimeout=30", "--attr", "DelaySeconds=5")).To(Succeed())
		Expect(q.attributes).To(Equal(map[string]string{"VisibilityTimeout": "30", "DelaySeconds": "5"}))
		Expect(q.Calls()).To(Equal([]string{"CreateQueue"}))
	})

	It("rejects malformed attributes without calling the queue", func() {
		Expect(execute("create-queue", "orders", "--attr", "VisibilityTimeout")).To(MatchError(ContainSubstring("expected name=value")))
		Expect(q.Calls()).To(BeEmpty())
	})

	It("sends a message with delay and string attributes", func() {
		Expect(execute("send", url, "hello", "--delay", "3", "--attr", "kind=test")).To(Succeed())
		Expect(q.sendOpts.DelaySeconds).To(Equal(int32(3)))
		Expect(q.sendOpts.MessageAttributes).To(HaveKey("kind"))
		Expect(aws.ToString(q.sendOpts.MessageAttributes["kind"].StringValue)).To(Equal("test"))
		Expect(aws.ToString(q.sendOpts.MessageAttributes["kind"].DataType)).To(Equal("String"))
	})

	It("numbers batch entries", func() {
		Expect(execute("send-batch", url, "a", "b")).To(Succeed())
		Expect(q.entries).To(HaveLen(2))
		Expect(aws.ToString(q.entries[0].Id)).To(Equal("0"))
		Expect(aws.ToString(q.entries[1].MessageBody)).To(Equal("b"))
	})

	It("receives with the configured defaults", func() {
		cfg.ReceiveWaitTimeSeconds = 20
		Expect(execute("receive", url)).To(Succeed())
		Expect(q.receiveOpts.MaxNumberOfMessages).To(Equal(int32(10)))
		Expect(q.receiveOpts.VisibilityTimeout).To(Equal(int32(10)))
		Expect(q.receiveOpts.WaitTimeSeconds).To(Equal(int32(20)))
		Expect(q.receiveOpts.AttributeNames).To(ConsistOf(types.MessageSystemAttributeNameAll))
	})

	It("receives with flag overrides", func() {
		Expect(execute("receive", url, "--max", "2", "--visibility-timeout", "60", "--message-attributes", "a,b")).To(Succeed())
		Expect(q.receiveOpts.MaxNumberOfMessages).To(Equal(int32(2)))
		Expect(q.receiveOpts.VisibilityTimeout).To(Equal(int32(60)))
		Expect(q.receiveOpts.MessageAttributeNames).To(Equal([]string{"a", "b"}))
	})

	It("prints every drained message", func() {
		Expect(execute("receive-all", url)).To(Succeed())
		var msgs []types.Message
		Expect(json.Unmarshal(stdout.Bytes(), &msgs)).To(Succeed())
		Expect(msgs).To(HaveLen(1))
	})

	It("deletes by receipt handle", func() {
		Expect(execute("delete", url, "rh-1")).To(Succeed())
		Expect(execute("delete-batch", url, "rh-1", "rh-2")).To(Succeed())
		Expect(q.handles).To(Equal([]string{"rh-1", "rh-2"}))
		Expect(q.Calls()).To(Equal([]string{"DeleteMessage", "DeleteMessages"}))
	})

	It("requires a url argument", func() {
		Expect(execute("delete-queue")).To(HaveOccurred())
		Expect(q.Calls()).To(BeEmpty())
	})

	Describe("snapshots", func() {
		It("needs a cache endpoint", func() {
			Expect(execute("snapshots")).To(MatchError("CACHE_REDIS_ENDPOINT is not set"))
		})

		Context("with a cache", func() {
			var snapshot string

			BeforeEach(func() {
				sampledAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
				snapshot = `{"queueUrl":"` + url + `","messages":3,"sampledAt":"` + sampledAt + `"}`
				cfg.CacheRedisEndpoint = "localhost:6379"
				deps.NewCache = func(context.Context, *configs.Config) (cache.Client, error) {
					return staticCache{entries: map[string]string{
						monitor.SnapshotKey("sqs-depth-", url): snapshot,
					}}, nil
				}
			})

			It("lists cached snapshots", func() {
				Expect(execute("snapshots")).To(Succeed())
				Expect(stdout.String()).To(MatchJSON("[" + snapshot + "]"))
			})

			It("shows the snapshot of one queue", func() {
				Expect(execute("snapshots", "--queue", url)).To(Succeed())
				Expect(stdout.String()).To(MatchJSON(snapshot))
			})

			It("reports a queue without snapshot", func() {
				err := execute("snapshots", "--queue", mock.URLPrefix+"invoices")
				Expect(err).To(MatchError("no snapshot cached for " + mock.URLPrefix + "invoices"))
			})
		})
	})
})
