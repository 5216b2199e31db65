package conf

import (
	"strings"
	"time"

	"github.com/go-lynx/logsink/errs"
)

// MongoDB configures the MongoDB backend.
type MongoDB struct {
	URI        string `json:"uri" yaml:"uri"`
	Database   string `json:"database" yaml:"database"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	AuthSource string `json:"auth_source,omitempty" yaml:"auth_source,omitempty"`

	MaxPoolSize uint64 `json:"max_pool_size" yaml:"max_pool_size"`
	MinPoolSize uint64 `json:"min_pool_size" yaml:"min_pool_size"`

	ConnectTimeout         Duration `json:"connect_timeout" yaml:"connect_timeout"`
	ServerSelectionTimeout Duration `json:"server_selection_timeout" yaml:"server_selection_timeout"`
	SocketTimeout          Duration `json:"socket_timeout" yaml:"socket_timeout"`
	HeartbeatInterval      Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`

	EnableTLS bool `json:"enable_tls,omitempty" yaml:"enable_tls,omitempty"`
	// TLSCertFile is a PEM holding the client certificate followed by its
	// private key, as mongod's tlsCertificateKeyFile.
	TLSCertFile string `json:"tls_cert_file,omitempty" yaml:"tls_cert_file,omitempty"`
	TLSCAFile   string `json:"tls_ca_file,omitempty" yaml:"tls_ca_file,omitempty"`

	EnableCompression bool `json:"enable_compression,omitempty" yaml:"enable_compression,omitempty"`
	RetryWrites       bool `json:"retry_writes,omitempty" yaml:"retry_writes,omitempty"`

	// WriteConcernW is the w option; 0 leaves the server default.
	WriteConcernW       int      `json:"write_concern_w,omitempty" yaml:"write_concern_w,omitempty"`
	WriteConcernJournal bool     `json:"write_concern_journal,omitempty" yaml:"write_concern_journal,omitempty"`
	WriteConcernTimeout Duration `json:"write_concern_timeout" yaml:"write_concern_timeout"`

	// Unordered lets InsertMany continue past a failed document.
	Unordered bool `json:"unordered,omitempty" yaml:"unordered,omitempty"`
}

func (m *MongoDB) applyDefaults() {
	if m.URI == "" {
		m.URI = "mongodb://localhost:27017"
	}
	if m.Database == "" {
		m.Database = "logs"
	}
	if m.MaxPoolSize == 0 {
		m.MaxPoolSize = 100
	}
	if m.MinPoolSize == 0 {
		m.MinPoolSize = 5
	}
	if m.ConnectTimeout == 0 {
		m.ConnectTimeout = Seconds(30)
	}
	if m.ServerSelectionTimeout == 0 {
		m.ServerSelectionTimeout = Seconds(30)
	}
	if m.SocketTimeout == 0 {
		m.SocketTimeout = Seconds(30)
	}
	if m.HeartbeatInterval == 0 {
		m.HeartbeatInterval = Seconds(10)
	}
	if m.WriteConcernTimeout == 0 {
		m.WriteConcernTimeout = Seconds(5)
	}
}

func (m *MongoDB) validate() error {
	if !strings.HasPrefix(m.URI, "mongodb://") && !strings.HasPrefix(m.URI, "mongodb+srv://") {
		return errs.InvalidArgument("mongodb.uri must start with mongodb:// or mongodb+srv://")
	}
	if m.Database == "" {
		return errs.InvalidArgument("mongodb.database is empty")
	}
	if m.MinPoolSize > m.MaxPoolSize {
		return errs.InvalidArgument("mongodb.min_pool_size (%d) exceeds max_pool_size (%d)", m.MinPoolSize, m.MaxPoolSize)
	}
	if (m.Username == "") != (m.Password == "") {
		return errs.InvalidArgument("mongodb.username and mongodb.password must be set together")
	}
	if m.WriteConcernW < 0 {
		return errs.InvalidArgument("mongodb.write_concern_w must not be negative")
	}
	return nil
}

// Redis configures the Redis stream backend.
type Redis struct {
	Addrs      []string `json:"addrs" yaml:"addrs"`
	Username   string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string   `json:"password,omitempty" yaml:"password,omitempty"`
	DB         int      `json:"db,omitempty" yaml:"db,omitempty"`
	MasterName string   `json:"master_name,omitempty" yaml:"master_name,omitempty"`
	ClientName string   `json:"client_name,omitempty" yaml:"client_name,omitempty"`

	MinIdleConns int `json:"min_idle_conns" yaml:"min_idle_conns"`
	PoolSize     int `json:"pool_size" yaml:"pool_size"`
	MaxRetries   int `json:"max_retries" yaml:"max_retries"`

	DialTimeout  Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout" yaml:"write_timeout"`
	PoolTimeout  Duration `json:"pool_timeout" yaml:"pool_timeout"`

	TLS                bool `json:"tls,omitempty" yaml:"tls,omitempty"`
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`

	// KeyPrefix is prepended to every destination name to form the stream key.
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
	// MaxLen caps each stream approximately; 0 disables trimming.
	MaxLen int64 `json:"max_len,omitempty" yaml:"max_len,omitempty"`
}

func (r *Redis) applyDefaults() {
	if len(r.Addrs) == 0 {
		r.Addrs = []string{"localhost:6379"}
	}
	if r.MinIdleConns == 0 {
		r.MinIdleConns = 10
	}
	if r.PoolSize == 0 {
		r.PoolSize = 20
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.DialTimeout == 0 {
		r.DialTimeout = Seconds(10)
	}
	if r.ReadTimeout == 0 {
		r.ReadTimeout = Seconds(10)
	}
	if r.WriteTimeout == 0 {
		r.WriteTimeout = Seconds(10)
	}
	if r.PoolTimeout == 0 {
		r.PoolTimeout = Duration(r.ReadTimeout.AsDuration() + time.Second)
	}
}

func (r *Redis) validate() error {
	for _, addr := range r.Addrs {
		if strings.TrimSpace(addr) == "" {
			return errs.InvalidArgument("redis.addrs contains an empty address")
		}
	}
	if r.DB < 0 || r.DB > 15 {
		return errs.InvalidArgument("redis.db must be between 0 and 15, got %d", r.DB)
	}
	if r.MinIdleConns > r.PoolSize {
		return errs.InvalidArgument("redis.min_idle_conns (%d) exceeds pool_size (%d)", r.MinIdleConns, r.PoolSize)
	}
	if r.MaxLen < 0 {
		return errs.InvalidArgument("redis.max_len must not be negative")
	}
	return nil
}
