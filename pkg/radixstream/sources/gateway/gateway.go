// Package gateway implements a TransactionStream that polls a Radix
// Gateway's paginated JSON-over-HTTP transaction stream endpoint.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/ociswap/radixstream/pkg/radixstream"
	"github.com/ociswap/radixstream/pkg/radixstream/sbor"
	"github.com/ociswap/radixstream/pkg/radixstream/sources/wireemitter"
)

const (
	defaultLimitPerPage     = 100
	defaultBufferCapacity   = 1000
	defaultCaughtUpInterval = time.Second
	defaultHTTPTimeout      = 30 * time.Second
)

// Config configures the gateway source.
type Config struct {
	GatewayURL       string
	FromStateVersion uint64
	LimitPerPage     int
	BufferCapacity   int
	CaughtUpInterval time.Duration
	HTTPClient       *http.Client
}

func (c Config) withDefaults() Config {
	if c.LimitPerPage <= 0 {
		c.LimitPerPage = defaultLimitPerPage
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = defaultBufferCapacity
	}
	if c.CaughtUpInterval <= 0 {
		c.CaughtUpInterval = defaultCaughtUpInterval
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return c
}

// Source polls a Radix Gateway's `/transaction/stream` endpoint, converting
// each event's programmatic-JSON payload to this module's placeholder
// binary SBOR envelope before queuing it.
type Source struct {
	cfg    Config
	cancel context.CancelFunc
}

// New returns a Source polling cfg.GatewayURL.
func New(cfg Config) *Source {
	return &Source{cfg: cfg.withDefaults()}
}

// Start spawns the polling goroutine; there is no setup-time failure mode
// for this source since the HTTP client is lazily dialed on first poll.
func (s *Source) Start(ctx context.Context) (<-chan radixstream.Transaction, error) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ch := make(chan radixstream.Transaction, s.cfg.BufferCapacity)
	p := &poller{cfg: s.cfg, stateVersion: s.cfg.FromStateVersion, ch: ch}
	go p.run(runCtx)

	return ch, nil
}

// Stop aborts the polling goroutine.
func (s *Source) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

type requestBody struct {
	FromStateVersion uint64  `json:"from_state_version"`
	LimitPerPage     int     `json:"limit_per_page"`
	OptIns           optIns  `json:"opt_ins"`
	Order            string  `json:"order"`
	KindFilter       string  `json:"kind_filter"`
}

type optIns struct {
	ReceiptEvents bool `json:"receipt_events"`
}

type responseBody struct {
	Items []transactionItem `json:"items"`
}

type transactionItem struct {
	StateVersion uint64   `json:"state_version"`
	IntentHash   string   `json:"intent_hash"`
	ConfirmedAt  *string  `json:"confirmed_at"`
	Receipt      *receipt `json:"receipt"`
}

type receipt struct {
	Events []eventItem `json:"events"`
}

type eventItem struct {
	Name            string              `json:"name"`
	ProgrammaticJSON any                `json:"programmatic_json"`
	Emitter         wireemitter.Emitter `json:"emitter"`
}

type poller struct {
	cfg          Config
	stateVersion uint64
	ch           chan<- radixstream.Transaction
}

func (p *poller) run(ctx context.Context) {
	defer close(p.ch)

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = p.cfg.CaughtUpInterval
	boff.MaxInterval = 30 * time.Second
	boff.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}

		txs, fatal, err := p.poll(ctx)
		if fatal != nil {
			log.Error().Err(fatal).Msg("gateway source: fatal error, closing stream")
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("gateway source: poll failed, retrying")
			if !sleep(ctx, boff.NextBackOff()) {
				return
			}
			continue
		}
		boff.Reset()

		if len(txs) == 0 {
			if !sleep(ctx, p.cfg.CaughtUpInterval) {
				return
			}
			continue
		}

		for _, tx := range txs {
			select {
			case p.ch <- tx:
			case <-ctx.Done():
				return
			}
		}
	}
}

// poll fetches one page. The first return value is the parsed
// transactions; the second is a fatal, non-retryable error (client
// configuration rejected outright by the gateway); the third is a
// transient error the caller should back off and retry.
func (p *poller) poll(ctx context.Context) ([]radixstream.Transaction, error, error) {
	body := requestBody{
		FromStateVersion: p.stateVersion,
		LimitPerPage:     p.cfg.LimitPerPage,
		OptIns:           optIns{ReceiptEvents: true},
		Order:            "Asc",
		KindFilter:       "User",
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err, nil
	}

	url := p.cfg.GatewayURL + "/transaction/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, &radixstream.TransientError{StreamError: radixstream.StreamError{Op: "gateway: request", Err: err}}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, nil, &radixstream.TransientError{StreamError: radixstream.StreamError{Op: "gateway: request", Err: fmt.Errorf("status %d", resp.StatusCode)}}
	}
	if resp.StatusCode/100 != 2 {
		// Any other non-2xx (e.g. 400 bad request) can never succeed on
		// retry: the configuration itself is wrong.
		return nil, fmt.Errorf("gateway: request rejected with status %d", resp.StatusCode), nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &radixstream.TransientError{StreamError: radixstream.StreamError{Op: "gateway: read body", Err: err}}
	}

	var parsed responseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, nil, &radixstream.TransientError{StreamError: radixstream.StreamError{Op: "gateway: decode body", Err: err}}
	}

	txs := make([]radixstream.Transaction, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		events, err := toEvents(item)
		if err != nil {
			return nil, nil, &radixstream.TransientError{StreamError: radixstream.StreamError{Op: "gateway: encode events", Err: err}}
		}
		var confirmedAt *time.Time
		if item.ConfirmedAt != nil {
			if t, err := time.Parse(time.RFC3339, *item.ConfirmedAt); err == nil {
				confirmedAt = &t
			}
		}
		txs = append(txs, radixstream.Transaction{
			IntentHash:   item.IntentHash,
			StateVersion: item.StateVersion,
			ConfirmedAt:  confirmedAt,
			Events:       events,
		})
	}

	if len(txs) > 0 {
		p.stateVersion = txs[len(txs)-1].StateVersion + 1
	}
	return txs, nil, nil
}

func toEvents(item transactionItem) ([]radixstream.Event, error) {
	if item.Receipt == nil {
		return nil, nil
	}
	events := make([]radixstream.Event, 0, len(item.Receipt.Events))
	for _, e := range item.Receipt.Events {
		payload, err := sbor.Encode(e.ProgrammaticJSON)
		if err != nil {
			return nil, err
		}
		events = append(events, radixstream.Event{
			Name:    e.Name,
			Payload: payload,
			Emitter: e.Emitter.ToEmitter(),
		})
	}
	return events, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
