// Package redis is the Redis Streams destination backend. Each destination
// name maps to a stream key and every document becomes one stream entry.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/go-lynx/logsink/conf"
	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/log"
)

// UniversalOptions translates c into go-redis options. Addresses may carry a
// rediss:// scheme to enable TLS; a master name selects sentinel mode.
func UniversalOptions(c *conf.Redis) (*redis.UniversalOptions, error) {
	if c == nil {
		return nil, errs.InvalidArgument("redis configuration is nil")
	}

	var tlsConfig *tls.Config
	if c.TLS {
		tlsConfig = &tls.Config{InsecureSkipVerify: c.InsecureSkipVerify} //nolint:gosec // opt-in via configuration
	}
	addrs := make([]string, 0, len(c.Addrs))
	for _, addr := range c.Addrs {
		addr = strings.TrimSpace(addr)
		if strings.HasPrefix(strings.ToLower(addr), "rediss://") {
			if tlsConfig == nil {
				tlsConfig = &tls.Config{}
			}
			addr = addr[len("rediss://"):]
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, errs.InvalidArgument("redis.addrs is empty")
	}

	return &redis.UniversalOptions{
		Addrs:                 addrs,
		MasterName:            c.MasterName,
		DB:                    c.DB,
		Username:              c.Username,
		Password:              c.Password,
		ClientName:            c.ClientName,
		MinIdleConns:          c.MinIdleConns,
		PoolSize:              c.PoolSize,
		MaxRetries:            c.MaxRetries,
		DialTimeout:           c.DialTimeout.AsDuration(),
		ReadTimeout:           c.ReadTimeout.AsDuration(),
		WriteTimeout:          c.WriteTimeout.AsDuration(),
		PoolTimeout:           c.PoolTimeout.AsDuration(),
		TLSConfig:             tlsConfig,
		ContextTimeoutEnabled: true,
	}, nil
}

// NewClient creates a client for c. It does not contact the server; use Ping.
func NewClient(c *conf.Redis) (redis.UniversalClient, error) {
	opts, err := UniversalOptions(c)
	if err != nil {
		return nil, err
	}
	log.Infof("creating redis client for %s", strings.Join(opts.Addrs, ","))
	return redis.NewUniversalClient(opts), nil
}

// Ping checks that the server answers.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}
