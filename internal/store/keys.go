package store

import "fmt"

// Keys computes the prefixed key layout of §6.3 from a single
// configured prefix (e.g. "asc:").
type Keys struct {
	Prefix string
}

func (k Keys) JobsSubmit() string         { return k.Prefix + "jobs:submit" }
func (k Keys) Job(id string) string       { return k.Prefix + "jobs:" + id }
func (k Keys) Queue(priority int) string  { return k.Prefix + fmt.Sprintf("queue:p%d", priority) }
func (k Keys) Processing() string         { return k.Prefix + "queue:processing" }
func (k Keys) InProgress(workerID string) string {
	return k.Prefix + "jobs:inprogress:" + workerID
}
func (k Keys) WorkersActive() string      { return k.Prefix + "workers:active" }
func (k Keys) ProxyStats(url string) string { return k.Prefix + "proxy:" + url + ":stats" }
func (k Keys) GovernorHost(host string) string {
	return k.Prefix + "governor:host:" + host
}
func (k Keys) ResultsSuccess() string  { return k.Prefix + "results:success" }
func (k Keys) ResultsFailed() string   { return k.Prefix + "results:failed" }
func (k Keys) StatsCompleted() string  { return k.Prefix + "stats:jobs:completed" }
func (k Keys) StatsFailed() string     { return k.Prefix + "stats:jobs:failed" }

// Queues returns the list of priority-queue keys in strict
// highest-to-lowest priority order, e.g. queue:p10 .. queue:p0, for use
// with a single BRPop call (§4.7 step 1).
func Queues(prefix string) []string {
	k := Keys{Prefix: prefix}
	queues := make([]string, 0, 11)
	for p := 10; p >= 0; p-- {
		queues = append(queues, k.Queue(p))
	}
	return queues
}
