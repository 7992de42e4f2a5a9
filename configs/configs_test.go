package configs_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"aws-sqs-helper/configs"
)

var envKeys = []string{
	"AWS_REGION", "SQS_ENDPOINT", "LOG_LEVEL",
	"RECEIVE_MAX_MESSAGES", "RECEIVE_VISIBILITY_TIMEOUT", "RECEIVE_WAIT_TIME_SECONDS",
	"MONITOR_QUEUE_URLS", "MONITOR_POLLING_INTERVAL", "HTTP_ADDR",
	"CACHE_REDIS_ENDPOINT", "CACHE_REDIS_DB", "CACHE_SNAPSHOT_KEY_PREFIX", "CACHE_SNAPSHOT_TTL",
	"LEADER_ELECTION_ENABLED", "LEADER_ELECTION_LOCK_NAME", "POD_NAME", "POD_NAMESPACE",
}

// setenv sets key for the current spec and restores the previous value afterwards.
func setenv(key, value string) {
	prev, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetenv(key string) {
	prev, had := os.LookupEnv(key)
	if !had {
		return
	}
	Expect(os.Unsetenv(key)).To(Succeed())
	DeferCleanup(func() { _ = os.Setenv(key, prev) })
}

var _ = Describe("Parse", func() {
	BeforeEach(func() {
		for _, key := range envKeys {
			unsetenv(key)
		}
	})

	It("applies defaults", func() {
		cfg, err := configs.Parse()
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.AwsRegion).To(Equal("us-east-1"))
		Expect(cfg.SqsEndpoint).To(BeEmpty())
		Expect(cfg.LogLevel).To(Equal("info"))
		Expect(cfg.ReceiveMaxMessages).To(Equal(int32(10)))
		Expect(cfg.ReceiveVisibilityTimeout).To(Equal(int32(10)))
		Expect(cfg.ReceiveWaitTimeSeconds).To(BeZero())
		Expect(cfg.MonitorQueueUrls).To(BeEmpty())
		Expect(cfg.HttpAddr).To(Equal(":8080"))
		Expect(cfg.CacheSnapshotKeyPrefix).To(Equal("sqs-depth-"))
		Expect(cfg.LeaderElectionEnabled).To(BeFalse())
		Expect(cfg.LeaderElectionLockName).To(Equal("aws-sqs-helper-monitor-lock"))
	})

	It("derives durations from seconds", func() {
		setenv("MONITOR_POLLING_INTERVAL", "5")
		setenv("CACHE_SNAPSHOT_TTL", "60")

		cfg, err := configs.Parse()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.MonitorPollingDuration).To(Equal(5 * time.Second))
		Expect(cfg.CacheSnapshotDuration).To(Equal(time.Minute))
	})

	It("splits the monitored queue urls", func() {
		setenv("MONITOR_QUEUE_URLS", "https://sqs/a,https://sqs/b")

		cfg, err := configs.Parse()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.MonitorQueueUrls).To(Equal([]string{"https://sqs/a", "https://sqs/b"}))
	})

	It("fails on values that do not parse", func() {
		setenv("RECEIVE_MAX_MESSAGES", "ten")

		_, err := configs.Parse()
		Expect(err).To(MatchError(ContainSubstring("failed to parse env")))
	})

	DescribeTable("rejects invalid values",
		func(key, value, message string) {
			setenv(key, value)

			_, err := configs.Parse()
			Expect(err).To(MatchError(ContainSubstring(message)))
		},
		Entry("zero max messages", "RECEIVE_MAX_MESSAGES", "0", "RECEIVE_MAX_MESSAGES"),
		Entry("too many max messages", "RECEIVE_MAX_MESSAGES", "11", "RECEIVE_MAX_MESSAGES"),
		Entry("negative visibility timeout", "RECEIVE_VISIBILITY_TIMEOUT", "-1", "RECEIVE_VISIBILITY_TIMEOUT"),
		Entry("long wait time", "RECEIVE_WAIT_TIME_SECONDS", "21", "RECEIVE_WAIT_TIME_SECONDS"),
		Entry("zero polling interval", "MONITOR_POLLING_INTERVAL", "0", "MONITOR_POLLING_INTERVAL"),
	)

	It("requires a positive ttl only when redis is configured", func() {
		setenv("CACHE_SNAPSHOT_TTL", "0")
		_, err := configs.Parse()
		Expect(err).NotTo(HaveOccurred())

		setenv("CACHE_REDIS_ENDPOINT", "localhost:6379")
		_, err = configs.Parse()
		Expect(err).To(MatchError(ContainSubstring("CACHE_SNAPSHOT_TTL")))
	})

	It("requires the pod identity for leader election", func() {
		setenv("LEADER_ELECTION_ENABLED", "true")
		_, err := configs.Parse()
		Expect(err).To(MatchError(ContainSubstring("POD_NAME")))

		setenv("POD_NAME", "monitor-0")
		_, err = configs.Parse()
		Expect(err).To(MatchError(ContainSubstring("POD_NAMESPACE")))

		setenv("POD_NAMESPACE", "default")
		cfg, err := configs.Parse()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LeaderElectionEnabled).To(BeTrue())
	})
})
