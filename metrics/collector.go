package metrics

// Collector wraps metrics and provides helper methods with pre-filled labels.
type Collector struct {
	run string
}

// NewCollector creates a new Collector for the given run.
func NewCollector(run string) *Collector {
	return &Collector{run: run}
}

// IncJobs increments the finished jobs counter.
func (c *Collector) IncJobs(function, outcome string) {
	JobsTotal.WithLabelValues(c.run, function, outcome).Inc()
}

// IncRetries increments the retries counter.
func (c *Collector) IncRetries(function string) {
	RetriesTotal.WithLabelValues(c.run, function).Inc()
}

// ObserveInvocationDuration records an invocation attempt duration.
func (c *Collector) ObserveInvocationDuration(function string, seconds float64) {
	InvocationDuration.WithLabelValues(c.run, function).Observe(seconds)
}

// SetActiveWorkers sets the active workers gauge.
func (c *Collector) SetActiveWorkers(count int) {
	ActiveWorkers.WithLabelValues(c.run).Set(float64(count))
}

// IncCheckpointWrites increments the checkpoint writes counter.
func (c *Collector) IncCheckpointWrites() {
	CheckpointWritesTotal.WithLabelValues(c.run).Inc()
}

// SetFailedJobs sets the failed jobs gauge.
func (c *Collector) SetFailedJobs(count int) {
	FailedJobs.WithLabelValues(c.run).Set(float64(count))
}
