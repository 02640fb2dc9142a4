// Package submit broadcasts signed transactions through redundant relay
// endpoints and tracks them to a terminal state.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/solana"
)

// DefaultEndpoints are the public relay block engines.
var DefaultEndpoints = []string{
	"https://mainnet.block-engine.jito.wtf/api/v1/bundles",
}

const (
	defaultResendInterval = 200 * time.Millisecond
	defaultPollInterval   = 500 * time.Millisecond
	defaultConfirmTimeout = 54 * time.Second
	defaultMaxResends     = 150
)

// Result is the terminal outcome of one submission.
type Result struct {
	Status    domain.TradeStatus
	Signature string
	Err       error
}

// Confirmed reports whether the transaction landed.
func (r *Result) Confirmed() bool {
	return r.Status == domain.TradeConfirmed
}

// Engine drives a submission from broadcast to a terminal state: every
// endpoint gets the bundle concurrently, a resend loop keeps re-posting it
// until confirmation polling settles the outcome.
type Engine struct {
	rpc       solana.RPCClient
	endpoints []string
	http      *http.Client
	log       logrus.FieldLogger

	resendInterval time.Duration
	pollInterval   time.Duration
	confirmTimeout time.Duration
	maxResends     int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEndpoints replaces the relay endpoint set.
func WithEndpoints(endpoints []string) Option {
	return func(e *Engine) { e.endpoints = endpoints }
}

// WithHTTPClient overrides the relay HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.http = c }
}

// WithLogger overrides the engine logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithIntervals tunes the resend and confirmation-poll cadence.
func WithIntervals(resend, poll time.Duration) Option {
	return func(e *Engine) {
		e.resendInterval = resend
		e.pollInterval = poll
	}
}

// WithConfirmTimeout bounds how long a submission may stay unconfirmed.
func WithConfirmTimeout(d time.Duration) Option {
	return func(e *Engine) { e.confirmTimeout = d }
}

// WithMaxResends caps the total resend attempts per submission.
func WithMaxResends(n int) Option {
	return func(e *Engine) { e.maxResends = n }
}

func NewEngine(rpc solana.RPCClient, opts ...Option) *Engine {
	e := &Engine{
		rpc:            rpc,
		endpoints:      DefaultEndpoints,
		http:           &http.Client{Timeout: 10 * time.Second},
		log:            logrus.StandardLogger(),
		resendInterval: defaultResendInterval,
		pollInterval:   defaultPollInterval,
		confirmTimeout: defaultConfirmTimeout,
		maxResends:     defaultMaxResends,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit broadcasts the signed transaction and blocks until it reaches a
// terminal state. An all-endpoints-down first broadcast rejects without any
// confirmation polling.
func (e *Engine) Submit(ctx context.Context, tx *solana.Transaction) (*Result, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	encoded := base58.Encode(raw)
	signature := tx.Signature()

	if accepted := e.broadcast(ctx, encoded); accepted == 0 {
		e.log.WithField("signature", signature).Error("no relay endpoint accepted the bundle")
		return &Result{
			Status:    domain.TradeRejected,
			Signature: signature,
			Err:       fmt.Errorf("no relay endpoint accepted the bundle"),
		}, nil
	}

	resendCtx, stopResend := context.WithCancel(ctx)
	defer stopResend()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.resendLoop(resendCtx, encoded)
	}()

	result := e.awaitConfirmation(ctx, signature)
	stopResend()
	wg.Wait()
	return result, nil
}

// broadcast posts the bundle to every endpoint concurrently and returns how
// many accepted it.
func (e *Engine) broadcast(ctx context.Context, encodedTx string) int {
	var wg sync.WaitGroup
	results := make(chan error, len(e.endpoints))
	for _, endpoint := range e.endpoints {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			results <- e.sendBundle(ctx, url, encodedTx)
		}(endpoint)
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
			observability.DefaultMetrics.BundlesSent.Inc()
		} else {
			observability.DefaultMetrics.RelayRejections.Inc()
			if ctx.Err() == nil {
				e.log.WithError(err).Warn("relay endpoint refused bundle")
			}
		}
	}
	return accepted
}

type bundleRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  [][]string `json:"params"`
}

type bundleResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *Engine) sendBundle(ctx context.Context, endpoint, encodedTx string) error {
	body, err := json.Marshal(bundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  [][]string{{encodedTx}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("post bundle to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay %s: status %d", endpoint, resp.StatusCode)
	}

	var parsed bundleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("relay %s: %w", endpoint, err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("relay %s: %s (%d)", endpoint, parsed.Error.Message, parsed.Error.Code)
	}
	return nil
}

// resendLoop keeps re-posting the bundle until cancelled or the attempt cap
// runs out. Rebroadcasting an already-landed bundle is harmless.
func (e *Engine) resendLoop(ctx context.Context, encodedTx string) {
	ticker := time.NewTicker(e.resendInterval)
	defer ticker.Stop()
	for attempts := 0; attempts < e.maxResends; attempts++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.broadcast(ctx, encodedTx)
		}
	}
}

// awaitConfirmation polls the signature status until it confirms, fails on
// chain, or the timeout lapses.
func (e *Engine) awaitConfirmation(ctx context.Context, signature string) *Result {
	started := time.Now()
	deadline := started.Add(e.confirmTimeout)
	for {
		if time.Now().After(deadline) {
			return &Result{
				Status:    domain.TradeTimedOut,
				Signature: signature,
				Err:       fmt.Errorf("confirmation timed out after %s", e.confirmTimeout),
			}
		}

		status, err := e.rpc.GetSignatureStatus(ctx, signature)
		if err != nil {
			if ctx.Err() != nil {
				return &Result{Status: domain.TradeTimedOut, Signature: signature, Err: ctx.Err()}
			}
			e.log.WithError(err).WithField("signature", signature).Warn("signature status poll failed")
		} else if status != nil {
			if status.Err != nil {
				return &Result{
					Status:    domain.TradeRejected,
					Signature: signature,
					Err:       fmt.Errorf("transaction failed on chain: %v", status.Err),
				}
			}
			switch status.ConfirmationStatus {
			case solana.CommitmentConfirmed, solana.CommitmentFinalized:
				observability.DefaultMetrics.ConfirmationLatency.Observe(time.Since(started).Seconds())
				return &Result{Status: domain.TradeConfirmed, Signature: signature}
			}
		}

		select {
		case <-ctx.Done():
			return &Result{Status: domain.TradeTimedOut, Signature: signature, Err: ctx.Err()}
		case <-time.After(e.pollInterval):
		}
	}
}
