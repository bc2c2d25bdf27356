package types

// HealthStatus represents the health of a single shard.
//
// The health registry is rebuilt wholesale after every successful
// expansion with all shards healthy; external monitoring collaborators
// may degrade individual shards in between.
type HealthStatus int

const (
	// StatusHealthy indicates the shard is serving normally.
	StatusHealthy HealthStatus = iota

	// StatusDegraded indicates an external monitor flagged the shard.
	// Routing is unaffected; the flag is advisory for collaborators.
	StatusDegraded
)

// String returns the string representation of the status.
func (s HealthStatus) String() string {
	switch s {
	case StatusHealthy:
		return "Healthy"
	case StatusDegraded:
		return "Degraded"
	default:
		return "Unknown"
	}
}
