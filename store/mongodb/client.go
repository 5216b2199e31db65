// Package mongodb is the MongoDB destination backend: client construction,
// a collection catalog for template routing, the insert store and the BSON
// document builder.
package mongodb

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/go-lynx/logsink/conf"
	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/log"
)

// ClientOptions translates c into driver options.
func ClientOptions(c *conf.MongoDB) (*options.ClientOptions, error) {
	if c == nil {
		return nil, errs.InvalidArgument("mongodb configuration is nil")
	}

	opts := options.Client().ApplyURI(c.URI)

	opts.SetMaxPoolSize(c.MaxPoolSize)
	opts.SetMinPoolSize(c.MinPoolSize)

	opts.SetConnectTimeout(c.ConnectTimeout.AsDuration())
	opts.SetServerSelectionTimeout(c.ServerSelectionTimeout.AsDuration())
	opts.SetSocketTimeout(c.SocketTimeout.AsDuration())
	opts.SetHeartbeatInterval(c.HeartbeatInterval.AsDuration())

	if c.Username != "" && c.Password != "" {
		opts.SetAuth(options.Credential{
			Username:   c.Username,
			Password:   c.Password,
			AuthSource: c.AuthSource,
		})
	}

	if c.EnableTLS {
		tc, err := tlsConfig(c)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tc)
	}

	if c.EnableCompression {
		opts.SetCompressors([]string{"zlib", "snappy"})
	}
	if c.RetryWrites {
		opts.SetRetryWrites(true)
	}

	if c.WriteConcernW > 0 || c.WriteConcernJournal {
		wc := &writeconcern.WriteConcern{WTimeout: c.WriteConcernTimeout.AsDuration()}
		if c.WriteConcernW > 0 {
			wc.W = c.WriteConcernW
		}
		if c.WriteConcernJournal {
			journal := true
			wc.Journal = &journal
		}
		opts.SetWriteConcern(wc)
	}

	if err := opts.Validate(); err != nil {
		return nil, errs.InvalidArgument("mongodb options: %v", err)
	}
	return opts, nil
}

// tlsConfig builds the client TLS settings with the driver's helper, keyed
// by the connection string option names it understands.
func tlsConfig(c *conf.MongoDB) (*tls.Config, error) {
	tlsOpts := make(map[string]interface{})
	if c.TLSCertFile != "" {
		tlsOpts["tlsCertificateKeyFile"] = c.TLSCertFile
	}
	if c.TLSCAFile != "" {
		tlsOpts["tlsCAFile"] = c.TLSCAFile
	}
	cfg, err := options.BuildTLSConfig(tlsOpts)
	if err != nil {
		return nil, errs.InvalidArgument("failed to build mongodb TLS config: %v", err)
	}
	return cfg, nil
}

// Connect creates a client and pings the server within the connect timeout.
func Connect(ctx context.Context, c *conf.MongoDB) (*mongo.Client, error) {
	opts, err := ClientOptions(c)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.ConnectTimeout.AsDuration())
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongodb client: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to test mongodb connection: %w", err)
	}

	log.Infof("connected to mongodb, database %s", c.Database)
	return client, nil
}
