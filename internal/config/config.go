// Package config loads Framer process configuration from flags and
// environment variables rather than a YAML/Viper stack.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/luxfi/fixgateway/internal/framer"
)

// Config is the fully resolved process configuration: the Framer's own
// tunables (framer.Config) plus the ambient services wired around it.
type Config struct {
	Framer framer.Config

	NatsURL    string
	NatsStream string

	MetricsAddr string
	MetricsNS   string

	MonitorAddr string

	AdminRPCAddr string

	CredentialFile string
}

// Load parses flags (falling back to environment variables, then
// defaults) into a Config. args excludes the program name, matching
// flag.FlagSet.Parse's convention.
func Load(args []string) (Config, error) {
	fc := framer.DefaultConfig()

	fs := flag.NewFlagSet("fixgateway", flag.ContinueOnError)

	bindHost := fs.String("bind-host", envOr("FIXGATEWAY_BIND_HOST", fc.BindHost), "address to accept inbound FIX connections on")
	bindPort := fs.Int("bind-port", envOrInt("FIXGATEWAY_BIND_PORT", fc.BindPort), "port to accept inbound FIX connections on")
	nodeID := fs.Int("node-id", envOrInt("FIXGATEWAY_NODE_ID", fc.NodeID), "this node's cluster member id")
	otherNodeIDs := fs.String("other-node-ids", os.Getenv("FIXGATEWAY_OTHER_NODE_IDS"), "comma-separated cluster peer ids")
	clusterEnabled := fs.Bool("cluster-enabled", os.Getenv("FIXGATEWAY_CLUSTER_ENABLED") == "true", "gate accepts on cluster leadership")
	replyTimeoutMs := fs.Int64("reply-timeout-ms", envOrInt64("FIXGATEWAY_REPLY_TIMEOUT_MS", fc.ReplyTimeoutMs), "library heartbeat reply timeout in milliseconds")
	maxCommandsPerTick := fs.Int("max-commands-per-tick", envOrInt("FIXGATEWAY_MAX_COMMANDS_PER_TICK", fc.MaxCommandsPerTick), "bound on commands drained per do_work tick")
	maxReceiversPerTick := fs.Int("max-receivers-per-tick", envOrInt("FIXGATEWAY_MAX_RECEIVERS_PER_TICK", fc.MaxReceiversPerTick), "bound on receiver endpoints polled per do_work tick")
	monitoringFilePath := fs.String("monitoring-file", os.Getenv("FIXGATEWAY_MONITORING_FILE"), "path to the monitoring counters file")
	logFileDir := fs.String("log-dir", envOr("FIXGATEWAY_LOG_DIR", "."), "directory for session log files")

	natsURL := fs.String("nats-url", envOr("FIXGATEWAY_NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL for the publication bus")
	natsStream := fs.String("nats-stream", envOr("FIXGATEWAY_NATS_STREAM", "FIXGATEWAY"), "JetStream stream name for published events")

	metricsAddr := fs.String("metrics-addr", envOr("FIXGATEWAY_METRICS_ADDR", ":9090"), "listen address for the Prometheus /metrics endpoint")
	metricsNS := fs.String("metrics-namespace", envOr("FIXGATEWAY_METRICS_NAMESPACE", "fixgateway"), "Prometheus metric namespace")

	monitorAddr := fs.String("monitor-addr", envOr("FIXGATEWAY_MONITOR_ADDR", ":9091"), "listen address for the websocket admin/monitoring feed")

	adminRPCAddr := fs.String("admin-rpc-addr", envOr("FIXGATEWAY_ADMIN_RPC_ADDR", ":9092"), "listen address for the gRPC health/reflection admin surface")

	credentialFile := fs.String("credential-file", os.Getenv("FIXGATEWAY_CREDENTIAL_FILE"), "path to a username:bcrypt-hash credential file, empty to allow all logons")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	fc.BindHost = *bindHost
	fc.BindPort = *bindPort
	fc.NodeID = *nodeID
	fc.OtherNodeIDs = parseIntList(*otherNodeIDs)
	fc.ClusterEnabled = *clusterEnabled
	fc.ReplyTimeoutMs = *replyTimeoutMs
	fc.MaxCommandsPerTick = *maxCommandsPerTick
	fc.MaxReceiversPerTick = *maxReceiversPerTick
	fc.MonitoringFilePath = *monitoringFilePath
	fc.LogFileDir = *logFileDir

	return Config{
		Framer:         fc,
		NatsURL:        *natsURL,
		NatsStream:     *natsStream,
		MetricsAddr:    *metricsAddr,
		MetricsNS:      *metricsNS,
		MonitorAddr:    *monitorAddr,
		AdminRPCAddr:   *adminRPCAddr,
		CredentialFile: *credentialFile,
	}, nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func parseIntList(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
