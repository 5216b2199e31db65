// Package conf holds the typed logsink configuration. It is read from the
// "logsink" key of a YAML or JSON file through the kratos config package.
package conf

import (
	"fmt"
	"strings"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/record"
)

// Key is the top-level configuration key.
const Key = "logsink"

// Backends
const (
	BackendMemory  = "memory"
	BackendMongoDB = "mongodb"
	BackendRedis   = "redis"
)

// Logsink is the root configuration.
type Logsink struct {
	// Name identifies the destination in logs and metrics.
	Name    string   `json:"name" yaml:"name"`
	Backend string   `json:"backend" yaml:"backend"`
	Route   Route    `json:"route" yaml:"route"`
	Batch   Batch    `json:"batch" yaml:"batch"`
	MongoDB *MongoDB `json:"mongodb,omitempty" yaml:"mongodb,omitempty"`
	Redis   *Redis   `json:"redis,omitempty" yaml:"redis,omitempty"`
	Log     Log      `json:"log" yaml:"log"`
	Metrics Metrics  `json:"metrics" yaml:"metrics"`
}

// Route selects how records are mapped to destinations. Exactly one of
// Collection, Categories and Template is set.
type Route struct {
	// Collection routes everything to one fixed destination.
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	// Categories maps every category name to a destination name.
	Categories map[string]string `json:"categories,omitempty" yaml:"categories,omitempty"`
	// Template builds the destination name from record fields.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`
	// DateFormat replaces the template's default date format.
	DateFormat string `json:"date_format,omitempty" yaml:"date_format,omitempty"`
}

// Route modes
const (
	RouteCollection = "collection"
	RouteCategories = "categories"
	RouteTemplate   = "template"
)

// Mode reports which routing mode is configured, or "" when none or more
// than one is.
func (r Route) Mode() string {
	var modes []string
	if r.Collection != "" {
		modes = append(modes, RouteCollection)
	}
	if len(r.Categories) > 0 {
		modes = append(modes, RouteCategories)
	}
	if r.Template != "" {
		modes = append(modes, RouteTemplate)
	}
	if len(modes) != 1 {
		return ""
	}
	return modes[0]
}

// CategoryNames parses the category keys of the mapping.
func (r Route) CategoryNames() (map[record.Category]string, error) {
	out := make(map[record.Category]string, len(r.Categories))
	for k, name := range r.Categories {
		c, err := record.ParseCategory(k)
		if err != nil {
			return nil, errs.InvalidArgument("route.categories: %v", err)
		}
		if _, dup := out[c]; dup {
			return nil, errs.InvalidArgument("route.categories: %s is listed twice", c)
		}
		if name == "" {
			return nil, errs.InvalidArgument("route.categories: empty destination for %s", c)
		}
		out[c] = name
	}
	return out, nil
}

// Batch configures the record batcher used for streamed input.
type Batch struct {
	MaxRecords    int      `json:"max_records" yaml:"max_records"`
	FlushInterval Duration `json:"flush_interval" yaml:"flush_interval"`
}

// Log configures the process logger.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Metrics configures the Prometheus collectors.
type Metrics struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	// Addr, when set, serves /metrics on this address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Default returns a configuration with every default applied, writing to
// the memory backend under a fixed "logs" destination.
func Default() *Logsink {
	c := &Logsink{Route: Route{Collection: "logs"}}
	c.ApplyDefaults()
	return c
}

// Load reads path and returns the validated configuration.
func Load(path string) (*Logsink, error) {
	cfg := config.New(config.WithSource(file.NewSource(path)))
	defer cfg.Close()

	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	return Scan(cfg)
}

// Scan reads the logsink section of an already loaded config, applies
// defaults and validates the result.
func Scan(cfg config.Config) (*Logsink, error) {
	c := &Logsink{}
	if err := cfg.Value(Key).Scan(c); err != nil {
		return nil, fmt.Errorf("failed to scan %q configuration: %w", Key, err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyDefaults fills unset fields, including the section of the selected backend.
func (c *Logsink) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "logsink"
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.Batch.MaxRecords == 0 {
		c.Batch.MaxRecords = 500
	}
	if c.Batch.FlushInterval == 0 {
		c.Batch.FlushInterval = Seconds(1)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "logsink"
	}

	switch c.Backend {
	case BackendMongoDB:
		if c.MongoDB == nil {
			c.MongoDB = &MongoDB{}
		}
		c.MongoDB.applyDefaults()
	case BackendRedis:
		if c.Redis == nil {
			c.Redis = &Redis{}
		}
		c.Redis.applyDefaults()
	}
}

// Validate checks the configuration. Every problem is reported as
// errs.ErrInvalidArgument.
func (c *Logsink) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendMongoDB:
		if c.MongoDB == nil {
			return errs.InvalidArgument("mongodb section is missing")
		}
		if err := c.MongoDB.validate(); err != nil {
			return err
		}
	case BackendRedis:
		if c.Redis == nil {
			return errs.InvalidArgument("redis section is missing")
		}
		if err := c.Redis.validate(); err != nil {
			return err
		}
	default:
		return errs.InvalidArgument("unknown backend %q", c.Backend)
	}

	switch c.Route.Mode() {
	case RouteCategories:
		if _, err := c.Route.CategoryNames(); err != nil {
			return err
		}
	case "":
		return errs.InvalidArgument("route: exactly one of collection, categories or template must be set")
	}
	if c.Route.DateFormat != "" && c.Route.Mode() != RouteTemplate {
		return errs.InvalidArgument("route.date_format only applies to template routing")
	}

	if c.Batch.MaxRecords < 0 {
		return errs.InvalidArgument("batch.max_records must not be negative")
	}
	if c.Batch.FlushInterval < 0 {
		return errs.InvalidArgument("batch.flush_interval must not be negative")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errs.InvalidArgument("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
