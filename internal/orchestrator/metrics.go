package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/babelhq/babel/internal/telemetry"
)

// throughputWindow is the horizon for the Summary's completions-per-second
// figure.
const throughputWindow = 30 * time.Second

// Summary is a point-in-time snapshot of orchestrator activity, readable
// without any metrics exporter configured.
type Summary struct {
	Submitted  int64          `json:"submitted"`
	Completed  int64          `json:"completed"`
	Failed     int64          `json:"failed"`
	Cancelled  int64          `json:"cancelled"`
	QueueDepth map[string]int `json:"queue_depth"`
	ActiveIO   int            `json:"active_io"`
	ActiveCPU  int            `json:"active_cpu"`
	Throughput float64        `json:"throughput_per_sec"`
	Window     time.Duration  `json:"window"`
	LLMPermits int64          `json:"llm_permits"`
}

// metrics records task lifecycle events twice: into otel instruments for
// exporters, and into a local mirror the Summary API reads directly.
type metrics struct {
	submitted metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram

	mu          sync.Mutex
	nSubmitted  int64
	nCompleted  int64
	nFailed     int64
	nCancelled  int64
	completions []time.Time // ring of recent completion stamps
}

func newMetrics(o *Orchestrator) *metrics {
	meter := telemetry.Meter("babel/orchestrator")
	m := &metrics{}

	m.submitted, _ = meter.Int64Counter("babel.tasks.submitted",
		metric.WithDescription("Tasks accepted by the orchestrator"))
	m.completed, _ = meter.Int64Counter("babel.tasks.completed",
		metric.WithDescription("Tasks that finished successfully"))
	m.failed, _ = meter.Int64Counter("babel.tasks.failed",
		metric.WithDescription("Tasks that failed or were cancelled"))
	m.duration, _ = meter.Float64Histogram("babel.task.duration",
		metric.WithDescription("Task execution time"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 500, 1000, 5000))

	queueDepth, _ := meter.Int64ObservableGauge("babel.queue.depth",
		metric.WithDescription("Queued tasks per priority"))
	activeWorkers, _ := meter.Int64ObservableGauge("babel.workers.active",
		metric.WithDescription("Workers currently executing a task"))
	_, _ = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		for pri := PriorityCritical; pri < numPriorities; pri++ {
			depth := int64(o.ioSched.Len(pri) + o.cpuSched.Len(pri))
			obs.ObserveInt64(queueDepth, depth,
				metric.WithAttributes(attribute.String("priority", pri.String())))
		}
		obs.ObserveInt64(activeWorkers, o.io.activeCount(),
			metric.WithAttributes(attribute.String("pool", "io")))
		obs.ObserveInt64(activeWorkers, o.cpu.activeCount(),
			metric.WithAttributes(attribute.String("pool", "cpu")))
		return nil
	}, queueDepth, activeWorkers)

	return m
}

func taskAttrs(t *Task) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("kind", string(t.Kind)),
		attribute.String("priority", t.Priority.String()),
		attribute.Bool("llm", t.IsLLMCall),
	)
}

func (m *metrics) recordSubmitted(ctx context.Context, t *Task) {
	m.submitted.Add(ctx, 1, taskAttrs(t))
	m.mu.Lock()
	m.nSubmitted++
	m.mu.Unlock()
}

func (m *metrics) recordResult(ctx context.Context, t *Task, res *TaskResult) {
	m.duration.Record(ctx, float64(res.Duration)/float64(time.Millisecond), taskAttrs(t))

	m.mu.Lock()
	defer m.mu.Unlock()
	switch res.State {
	case StateCompleted:
		m.completed.Add(ctx, 1, taskAttrs(t))
		m.nCompleted++
	case StateCancelled:
		m.failed.Add(ctx, 1, taskAttrs(t))
		m.nCancelled++
	default:
		m.failed.Add(ctx, 1, taskAttrs(t))
		m.nFailed++
	}

	now := time.Now()
	m.completions = append(m.completions, now)
	m.trimLocked(now)
}

// trimLocked drops completion stamps older than the window. Caller holds mu.
func (m *metrics) trimLocked(now time.Time) {
	cutoff := now.Add(-throughputWindow)
	i := 0
	for i < len(m.completions) && m.completions[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		m.completions = append(m.completions[:0], m.completions[i:]...)
	}
}

func (m *metrics) snapshot() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.trimLocked(now)
	return Summary{
		Submitted:  m.nSubmitted,
		Completed:  m.nCompleted,
		Failed:     m.nFailed,
		Cancelled:  m.nCancelled,
		Throughput: float64(len(m.completions)) / throughputWindow.Seconds(),
		Window:     throughputWindow,
	}
}
