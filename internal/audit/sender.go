// Package audit posts print outcomes to an external endpoint so warehouse
// systems can reconcile what was physically labelled. Delivery is best
// effort and never blocks the print path.
package audit

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Event string

const (
	EventJobSent     Event = "job_sent"
	EventJobExported Event = "job_exported"
	EventJobFailed   Event = "job_failed"
)

type Record struct {
	JobRef       string `json:"job_ref"`
	Payload      string `json:"payload"`
	Outcome      string `json:"outcome"`
	AttemptCount int    `json:"attempt_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	ExportPath   string `json:"export_path,omitempty"`
}

type envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      Record    `json:"data"`
	Signature string    `json:"signature,omitempty"`
}

type Config struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
	QueueSize  int
}

type task struct {
	event   Event
	payload *envelope
	attempt int
}

type Sender struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
	queue      chan *task
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewSender(cfg Config, log zerolog.Logger) *Sender {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	return &Sender{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log:    log,
		queue:  make(chan *task, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Enabled reports whether an endpoint is configured. A disabled sender
// accepts records and drops them.
func (s *Sender) Enabled() bool {
	return s.cfg.URL != ""
}

func (s *Sender) Start() {
	if !s.Enabled() {
		return
	}
	s.wg.Add(1)
	go s.worker()
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sender) Send(event Event, rec Record) {
	if !s.Enabled() {
		return
	}

	t := &task{
		event: event,
		payload: &envelope{
			Event:     string(event),
			Timestamp: time.Now().UTC(),
			Data:      rec,
		},
	}

	select {
	case s.queue <- t:
	default:
		s.log.Warn().Str("event", string(event)).Str("job_ref", rec.JobRef).
			Msg("audit queue full, dropping event")
	}
}

func (s *Sender) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				s.log.Error().Err(err).Str("event", string(t.event)).
					Int("attempts", t.attempt).Msg("failed to deliver audit event")
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	var lastErr error
	for t.attempt < s.cfg.RetryCount {
		t.attempt++

		err := s.sendRequest(t.payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if isClientError(err) {
			return err
		}

		if t.attempt < s.cfg.RetryCount {
			backoff := s.cfg.RetryDelay * time.Duration(1<<(t.attempt-1))
			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) sendRequest(payload *envelope) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if s.cfg.Secret != "" {
		payload.Signature = signPayload(dataBytes, s.cfg.Secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Audit-Signature", payload.Signature)
	req.Header.Set("X-Audit-Event", payload.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}

	return nil
}

func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "http error: 4")
}
