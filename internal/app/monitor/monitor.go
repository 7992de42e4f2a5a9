package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
	"k8s.io/client-go/tools/leaderelection"

	"aws-sqs-helper/configs"
	"aws-sqs-helper/internal/pkg/cache"
	"aws-sqs-helper/internal/pkg/k8s"
	"aws-sqs-helper/internal/pkg/logger"
	"aws-sqs-helper/internal/pkg/observability/metrics"
	"aws-sqs-helper/internal/pkg/queue"
)

// Snapshot is one queue depth sample as stored in the cache.
type Snapshot struct {
	QueueURL  string    `json:"queueUrl"`
	Messages  int       `json:"messages"`
	SampledAt time.Time `json:"sampledAt"`
}

// SnapshotKey is the cache key of a queue's latest snapshot: prefix plus the
// URL without its scheme, so same-named queues in other accounts or regions
// keep separate keys.
func SnapshotKey(prefix, queueURL string) string {
	u, err := url.Parse(queueURL)
	if err != nil || u.Host == "" {
		return prefix + queueURL
	}
	return prefix + u.Host + u.Path
}

// Default lease timings for leader election.
const (
	DefaultLeaseDuration = 15 * time.Second
	DefaultRenewDeadline = 10 * time.Second
	DefaultRetryPeriod   = 2 * time.Second
)

// QueueMonitor samples the approximate depth of the configured queues.
type QueueMonitor struct {
	Queue     queue.Client
	Cache     cache.Client // optional; snapshots are only exported as metrics when nil
	K8sClient *k8s.Client  // required when leader election is enabled
	Config    *configs.Config

	Now func() time.Time // defaults to time.Now

	// Lease timings; zero values use the defaults above.
	LeaseDuration time.Duration
	RenewDeadline time.Duration
	RetryPeriod   time.Duration
}

// Start runs the polling loop, behind leader election when it is enabled.
func (m *QueueMonitor) Start(ctx context.Context) error {
	if len(m.Config.MonitorQueueUrls) == 0 {
		return errors.New("no queue urls configured to monitor")
	}
	if !m.Config.LeaderElectionEnabled {
		go m.Run(ctx)
		return nil
	}
	return m.StartLeaderElection(ctx)
}

// StartLeaderElection competes for the Lease in the background. Losing the
// lease stops polling; the instance then becomes a candidate again until ctx is done.
func (m *QueueMonitor) StartLeaderElection(ctx context.Context) error {
	if m.K8sClient == nil {
		return errors.New("leader election requires a kubernetes client")
	}

	identity := m.Config.PodName
	lock := m.K8sClient.LeaseLock(m.Config.PodNamespace, m.Config.LeaderElectionLockName, identity)

	electorConfig := leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   orDefault(m.LeaseDuration, DefaultLeaseDuration),
		RenewDeadline:   orDefault(m.RenewDeadline, DefaultRenewDeadline),
		RetryPeriod:     orDefault(m.RetryPeriod, DefaultRetryPeriod),
		ReleaseOnCancel: true,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				logger.Info("Leader acquired")
				go m.Run(ctx)
			},
			OnStoppedLeading: func() {
				logger.Info("Lost leadership")
			},
			OnNewLeader: func(id string) {
				if id == identity {
					logger.Info("Current instance is the leader")
				} else {
					logger.Info("New leader elected", zap.String("identity", id))
				}
			},
		},
	}

	elector, err := leaderelection.NewLeaderElector(electorConfig)
	if err != nil {
		return fmt.Errorf("create leader elector: %w", err)
	}

	go func() {
		for {
			elector.Run(ctx)
			if ctx.Err() != nil {
				return
			}
			logger.Info("Rejoining leader election")
			// Same config as above, so this cannot fail.
			elector, _ = leaderelection.NewLeaderElector(electorConfig)
		}
	}()
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Run samples every queue once per polling interval until ctx is done.
func (m *QueueMonitor) Run(ctx context.Context) {
	logger.Info("Starting queue depth polling",
		zap.Strings("queues", m.Config.MonitorQueueUrls),
		zap.Duration("interval", m.Config.MonitorPollingDuration),
	)

	for {
		m.sampleOnce(ctx)

		select {
		case <-ctx.Done():
			logger.Info("Stopping queue depth polling")
			return
		case <-time.After(m.Config.MonitorPollingDuration):
		}
	}
}

// sampleOnce runs one SampleAll pass; a panic ends the pass, not the loop.
func (m *QueueMonitor) sampleOnce(ctx context.Context) {
	defer m.recoverWorker("monitor-sample")
	m.SampleAll(ctx)
}

// SampleAll samples each configured queue; failures are logged and counted, not returned.
func (m *QueueMonitor) SampleAll(ctx context.Context) {
	for _, queueURL := range m.Config.MonitorQueueUrls {
		if ctx.Err() != nil {
			return
		}
		if _, err := m.Sample(ctx, queueURL); err != nil {
			metrics.QueueSampleFailures.WithLabelValues(queueURL).Inc()
			logger.ErrorCtx(ctx, "Failed to sample queue", zap.String("queueUrl", queueURL), zap.Error(err))
		}
	}
}

// Sample reads the depth of one queue, exports it and stores it in the cache.
// When the queue no longer exists its cached snapshot is removed.
func (m *QueueMonitor) Sample(ctx context.Context, queueURL string) (Snapshot, error) {
	count, err := m.Queue.GetNumberOfMessages(ctx, queueURL)
	if err != nil {
		var notFound *types.QueueDoesNotExist
		if errors.As(err, &notFound) {
			m.dropSnapshot(ctx, queueURL)
		}
		return Snapshot{}, err
	}

	snap := Snapshot{QueueURL: queueURL, Messages: count, SampledAt: m.now().UTC()}
	metrics.QueueLength.WithLabelValues(queueURL).Set(float64(count))

	if m.Cache == nil {
		return snap, nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return snap, err
	}
	key := SnapshotKey(m.Config.CacheSnapshotKeyPrefix, queueURL)
	if err := m.Cache.Set(ctx, key, string(data), m.Config.CacheSnapshotDuration); err != nil {
		return snap, fmt.Errorf("store snapshot %s: %w", key, err)
	}
	return snap, nil
}

func (m *QueueMonitor) dropSnapshot(ctx context.Context, queueURL string) {
	metrics.QueueLength.DeleteLabelValues(queueURL)
	if m.Cache == nil {
		return
	}
	key := SnapshotKey(m.Config.CacheSnapshotKeyPrefix, queueURL)
	if err := m.Cache.Delete(ctx, key); err != nil {
		logger.WarnCtx(ctx, "Failed to drop snapshot", zap.String("key", key), zap.Error(err))
	}
}

// LoadSnapshot returns the cached snapshot of one queue, or cache.ErrNotFound.
func LoadSnapshot(ctx context.Context, c cache.Client, prefix, queueURL string) (Snapshot, error) {
	raw, err := c.Get(ctx, SnapshotKey(prefix, queueURL))
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot of %s: %w", queueURL, err)
	}
	return s, nil
}

// LoadSnapshots returns every cached snapshot under prefix, ordered by queue URL.
// Entries that fail to decode are skipped.
func LoadSnapshots(ctx context.Context, c cache.Client, prefix string) ([]Snapshot, error) {
	raw, err := c.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	snaps := make([]Snapshot, 0, len(raw))
	for key, value := range raw {
		var s Snapshot
		if err := json.Unmarshal([]byte(value), &s); err != nil {
			logger.Warn("Invalid cached snapshot", zap.String("key", key), zap.Error(err))
			continue
		}
		snaps = append(snaps, s)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].QueueURL < snaps[j].QueueURL })
	return snaps, nil
}

func (m *QueueMonitor) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *QueueMonitor) recoverWorker(source string) {
	if r := recover(); r != nil {
		logger.Error("Worker panic",
			zap.String("source", source),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
