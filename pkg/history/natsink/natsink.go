// Package natsink publishes change records to NATS JetStream.
package natsink

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/nats-io/nats.go"

	"github.com/pgbind/pgbind/pkg/history"
)

var errConnNotInitialized = errors.New("NATS connection not initialized")

// Config represents NATS sink configuration.
type Config struct {
	Servers       []string `mapstructure:"servers"`
	Stream        string   `mapstructure:"stream"`
	SubjectPrefix string   `mapstructure:"subjectPrefix"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	TLS           struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"certFile"`
		KeyFile  string `mapstructure:"keyFile"`
		CAFile   string `mapstructure:"caFile"`
	} `mapstructure:"tls"`
}

// Sink publishes each change record to subject
// {prefix}.{entity}.{field}, backed by a JetStream stream.
type Sink struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config Config
}

// New decodes the raw configuration map, connects, and ensures the
// stream exists.
func New(raw map[string]any) (*Sink, error) {
	s := &Sink{}
	if err := mapstructure.Decode(raw, &s.config); err != nil {
		return nil, fmt.Errorf("natsink: decode config: %w", err)
	}

	if len(s.config.Servers) == 0 {
		s.config.Servers = []string{nats.DefaultURL}
	}
	s.config.SubjectPrefix = cmp.Or(s.config.SubjectPrefix, "pgbind")
	s.config.Stream = cmp.Or(s.config.Stream, fmt.Sprintf("%s-changes", s.config.SubjectPrefix))

	opts := defaultOptions(s.config)

	var err error
	for _, server := range s.config.Servers {
		s.nc, err = nats.Connect(server, opts...)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("natsink: connect to NATS server: %w", err)
	}

	if s.js, err = s.nc.JetStream(); err != nil {
		s.nc.Close()
		return nil, fmt.Errorf("natsink: create JetStream context: %w", err)
	}

	if err := s.ensureStream(); err != nil {
		s.nc.Close()
		return nil, fmt.Errorf("natsink: ensure stream: %w", err)
	}
	return s, nil
}

func (s *Sink) Change(_ context.Context, c history.Change) error {
	if s.js == nil {
		return errConnNotInitialized
	}

	subject := fmt.Sprintf("%s.%s.%s", s.config.SubjectPrefix, c.Entity, c.Field)
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("natsink: marshal change: %w", err)
	}
	if _, err := s.js.Publish(subject, data); err != nil {
		return fmt.Errorf("natsink: publish change: %w", err)
	}
	return nil
}

// Close drains the connection.
func (s *Sink) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

func (s *Sink) ensureStream() error {
	subject := fmt.Sprintf("%s.>", s.config.SubjectPrefix)
	config := &nats.StreamConfig{
		Name:     s.config.Stream,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
		Replicas: 1,
	}

	_, err := s.js.StreamInfo(s.config.Stream)
	if err == nil {
		return nil
	}
	if err != nats.ErrStreamNotFound {
		return fmt.Errorf("get stream info: %w", err)
	}
	if _, err := s.js.AddStream(config); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

func defaultOptions(c Config) []nats.Option {
	opts := []nats.Option{
		nats.Timeout(5 * time.Second),
		nats.PingInterval(10 * time.Second),
		nats.MaxPingsOutstanding(3),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}

	if c.Username != "" && c.Password != "" {
		opts = append(opts, nats.UserInfo(c.Username, c.Password))
	}

	if c.TLS.Enabled {
		var tlsOpt nats.Option
		if c.TLS.CAFile != "" {
			tlsOpt = nats.RootCAs(c.TLS.CAFile)
		} else if c.TLS.CertFile != "" && c.TLS.KeyFile != "" {
			tlsOpt = nats.ClientCert(c.TLS.CertFile, c.TLS.KeyFile)
		}
		if tlsOpt != nil {
			opts = append(opts, tlsOpt)
		}
	}

	return opts
}
