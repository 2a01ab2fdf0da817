package surrealodm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/surrealdb/surrealodm/pkg/config"
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/logger"
	"github.com/surrealdb/surrealodm/pkg/metrics"
	"github.com/surrealdb/surrealodm/pkg/model"
	"github.com/surrealdb/surrealodm/pkg/storage"
	"github.com/surrealdb/surrealodm/pkg/storage/memory"
	"github.com/surrealdb/surrealodm/pkg/storage/sqldoc"
	"github.com/surrealdb/surrealodm/pkg/storage/surreal"
	"github.com/surrealdb/surrealodm/pkg/validation"
)

type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	logWriter  io.Writer
	conn       storage.Connection
}

// WithRegisterer registers the lifecycle metrics with reg instead of the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLogWriter writes logs to w. It takes precedence over the configured log path.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// WithConnection uses c instead of connecting the configured storage driver.
// The client does not close c.
func WithConnection(c storage.Connection) Option {
	return func(o *options) {
		o.conn = c
	}
}

// Client ties a model registry to its storage connection, logger and metrics.
type Client struct {
	registry  *model.Registry
	validator *validation.Validator
	recorder  *metrics.Recorder

	conn     storage.Connection
	ownsConn bool
	logData  *logger.LogData
}

// Open builds a Client from conf and defines every configured model type.
func Open(ctx context.Context, conf *config.Config, opts ...Option) (*Client, error) {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	build := logger.NewBuilder().Level(conf.Log.Level)
	if o.logWriter != nil {
		build.FromBuffer(o.logWriter)
	} else if conf.Log.Path != "" {
		build.FromPath(conf.Log.Path)
	}
	logData, err := build.Make()
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	c := &Client{logData: logData, validator: validation.New()}
	fail := func(err error) (*Client, error) {
		return nil, errors.Join(err, c.Close())
	}

	for _, name := range slices.Sorted(maps.Keys(conf.Schemas)) {
		if conf.Schemas[name] == nil {
			continue
		}
		if err := c.validator.Add(name, conf.Schemas[name]); err != nil {
			return fail(err)
		}
	}

	if c.recorder, err = metrics.New(o.registerer); err != nil {
		return fail(fmt.Errorf("register metrics: %w", err))
	}

	if o.conn != nil {
		c.conn = o.conn
	} else {
		if c.conn, err = connect(ctx, conf.Storage); err != nil {
			return fail(err)
		}
		c.ownsConn = true
	}

	log := logData.Leveled()
	c.registry = model.NewRegistry(
		model.WithConnection(c.conn),
		model.WithDefaultValidator(c.validator),
		model.WithRecorder(c.recorder),
		model.WithLogger(log),
	)

	for _, name := range slices.Sorted(maps.Keys(conf.Models)) {
		if _, err := c.registry.Define(name, TypeOptions(conf.Models[name])...); err != nil {
			return fail(err)
		}
	}

	log.Info("surrealodm ready", "driver", string(conf.Storage.Driver), "models", len(conf.Models))
	return c, nil
}

// TypeOptions translates a configured model into model type options.
func TypeOptions(m *config.Model) []model.TypeOption {
	if m == nil {
		return nil
	}

	var opts []model.TypeOption
	if m.Collection != "" {
		opts = append(opts, model.WithCollection(m.Collection))
	}
	if m.Schema != "" {
		opts = append(opts, model.WithSchema(m.Schema))
	}
	if m.Timestamps {
		opts = append(opts, model.WithTimestamps())
	}
	if len(m.Hidden) > 0 {
		opts = append(opts, model.WithHidden(m.Hidden...))
	}
	for _, key := range slices.Sorted(maps.Keys(m.Casts)) {
		opts = append(opts, model.WithCastNamed(key, m.Casts[key]))
	}
	return opts
}

func connect(ctx context.Context, conf config.Storage) (storage.Connection, error) {
	switch conf.Driver {
	case config.DriverMemory, "":
		return memory.New(), nil
	case config.DriverSQLite, config.DriverPostgres:
		dialect, err := sqldoc.DialectByName(string(conf.Driver))
		if err != nil {
			return nil, err
		}
		store, err := sqldoc.Open(ctx, dialect, conf.URL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSurrealDB:
		store, err := surreal.Open(ctx, surreal.Config{
			URL:       conf.URL,
			Namespace: conf.Namespace,
			Database:  conf.Database,
			Username:  conf.Username,
			Password:  conf.Password,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("connect: %w: %q", constants.ErrUnknownDriver, conf.Driver)
}

// Registry returns the registry holding the configured model types.
func (c *Client) Registry() *model.Registry {
	return c.registry
}

// Model returns the model type registered under name.
func (c *Client) Model(name string) (*model.Type, error) {
	return c.registry.Lookup(name)
}

// Define registers a model type that is not part of the configuration.
func (c *Client) Define(name string, opts ...model.TypeOption) (*model.Type, error) {
	return c.registry.Define(name, opts...)
}

func (c *Client) Validator() *validation.Validator {
	return c.validator
}

func (c *Client) Metrics() *metrics.Recorder {
	return c.recorder
}

// Close closes the storage connection opened by Open and the log file.
func (c *Client) Close() error {
	var errs []error
	if c.ownsConn && c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	if c.logData != nil {
		errs = append(errs, c.logData.Close())
	}
	return errors.Join(errs...)
}
