package framer

import "time"

// Config is the Framer's construction-time configuration. It is
// assembled by cmd/fixgateway's flag loader as a plain struct of
// tunables, populated field by field rather than through a config
// library.
type Config struct {
	BindHost string
	BindPort int

	LibraryChannelURI string
	ClusterChannelURI string

	NodeID       int
	OtherNodeIDs []int
	ClusterEnabled bool

	ReplyTimeoutMs int64

	LogFileDir         string
	MonitoringFilePath string

	// MaxCommandsPerTick and MaxReceiversPerTick bound the work each
	// do_work() sub-step may perform, per spec.md §4.1's "bounded work"
	// requirement.
	MaxCommandsPerTick  int
	MaxReceiversPerTick int
}

// DefaultConfig returns sane defaults matching the constants used
// throughout spec.md's scenarios.
func DefaultConfig() Config {
	return Config{
		BindHost:            "0.0.0.0",
		BindPort:            9999,
		ReplyTimeoutMs:      int64(10 * time.Second / time.Millisecond),
		MaxCommandsPerTick:  256,
		MaxReceiversPerTick: 1024,
	}
}
