package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/albapepper/matchday/internal/domain"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	Replicas        int
	DuplicateWindow time.Duration // Window for MsgID dedup
	PublishTimeout  time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "MATCHDAY",
		SubjectPrefix:   "matchday",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
		PublishTimeout:  5 * time.Second,
	}
}

// JetStream publishes lifecycle events to a stream under
// <prefix>.events.<kind> and carries arbitrary messages for other
// components under <prefix>.<subject>.
type JetStream struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
	logger *slog.Logger
}

var _ Publisher = (*JetStream)(nil)

// NewJetStream connects and makes sure the stream exists with cfg.
func NewJetStream(ctx context.Context, cfg JetStreamConfig, logger *slog.Logger) (*JetStream, error) {
	opts := []nats.Option{
		nats.Name("matchday"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", "error", err)
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	s := &JetStream{nc: nc, js: js, config: cfg, logger: logger}
	if err := s.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return s, nil
}

func (s *JetStream) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        s.config.StreamName,
		Description: "Tournament and match lifecycle events",
		Subjects:    []string{s.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      s.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    s.config.Replicas,
		Duplicates:  s.config.DuplicateWindow,
	}
}

// ensureStream creates the stream, or updates it when the limits changed.
func (s *JetStream) ensureStream(ctx context.Context) error {
	sc := s.streamConfig()
	stream, err := s.js.Stream(ctx, sc.Name)
	if err != nil {
		if _, err := s.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		s.logger.Info("Created JetStream stream", "stream", sc.Name)
		return nil
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if info.Config.MaxAge != sc.MaxAge || info.Config.Replicas != sc.Replicas || info.Config.Duplicates != sc.Duplicates {
		if _, err := s.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		s.logger.Info("Updated JetStream stream", "stream", sc.Name)
	}
	return nil
}

// EventSubject is the subject a lifecycle event of kind is published on.
func (s *JetStream) EventSubject(kind domain.EventKind) string {
	return s.config.SubjectPrefix + ".events." + string(kind)
}

// Publish sends evt to the stream. The event ID is the JetStream MsgID, so
// a republished event is dropped by the broker. Failures are logged only.
func (s *JetStream) Publish(ctx context.Context, evt domain.Event) {
	headers := map[string]string{"Event-Type": string(evt.Kind)}
	err := s.send(ctx, s.EventSubject(evt.Kind), evt.ID.String(), headers, evt)
	if err != nil {
		s.logger.Warn("Failed to publish lifecycle event",
			"event_id", evt.ID, "kind", evt.Kind, "subject_id", evt.SubjectID(), "error", err)
	}
}

// Send publishes payload as JSON on <prefix>.<subject> with msgID for dedup.
func (s *JetStream) Send(ctx context.Context, subject, msgID string, headers map[string]string, payload any) error {
	return s.send(ctx, s.config.SubjectPrefix+"."+subject, msgID, headers, payload)
}

func (s *JetStream) send(ctx context.Context, subject, msgID string, headers map[string]string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	for k, v := range headers {
		msg.Header.Set(k, v)
	}
	msg.Header.Set("Event-ID", msgID)

	if s.config.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.PublishTimeout)
		defer cancel()
	}
	ack, err := s.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(msgID),
		jetstream.WithExpectStream(s.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}
	s.logger.Debug("Published to JetStream",
		"subject", subject, "msg_id", msgID, "sequence", ack.Sequence, "duplicate", ack.Duplicate)
	return nil
}

// Healthy reports whether the NATS connection is up.
func (s *JetStream) Healthy() bool {
	return s.nc != nil && s.nc.IsConnected()
}

func (s *JetStream) Close() {
	if s.nc != nil {
		_ = s.nc.Drain()
	}
}
