// Package mirror turns decoded peer trades into trades on the bot's own
// wallet: ledger update, sizing, build, submit, settle.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-copy-trader/internal/builder"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/portfolio"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
	"solana-copy-trader/internal/submit"
	"solana-copy-trader/internal/venue"
)

const tablePadding = 28

// Submitter drives a signed transaction to a terminal state.
type Submitter interface {
	Submit(ctx context.Context, tx *solana.Transaction) (*submit.Result, error)
}

// Config wires a Mirror together.
type Config struct {
	RPC       solana.RPCClient
	Router    *venue.Router
	Ledger    *portfolio.Ledger
	Builders  map[string]builder.Builder
	Engine    Submitter
	Records   storage.TradeRecordStore  // optional
	History   storage.TradeHistoryStore // optional
	Logger    logrus.FieldLogger
	OwnWallet string
	BuySOL    float64
}

// Mirror consumes peer transactions and mirrors them. Work is serialized
// per asset so trades on one mint settle in the order the peer made them.
type Mirror struct {
	rpc      solana.RPCClient
	router   *venue.Router
	ledger   *portfolio.Ledger
	builders map[string]builder.Builder
	engine   Submitter
	records  storage.TradeRecordStore
	history  storage.TradeHistoryStore
	log      logrus.FieldLogger

	ownWallet string
	buySOL    float64

	queues *assetQueues
	seen   sync.Map
}

func New(cfg Config) (*Mirror, error) {
	if cfg.RPC == nil || cfg.Router == nil || cfg.Ledger == nil || cfg.Engine == nil {
		return nil, errors.New("mirror: rpc, router, ledger and engine are required")
	}
	if cfg.OwnWallet == "" {
		return nil, errors.New("mirror: own wallet address is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Mirror{
		rpc:       cfg.RPC,
		router:    cfg.Router,
		ledger:    cfg.Ledger,
		builders:  cfg.Builders,
		engine:    cfg.Engine,
		records:   cfg.Records,
		history:   cfg.History,
		log:       log,
		ownWallet: cfg.OwnWallet,
		buySOL:    cfg.BuySOL,
		queues:    newAssetQueues(),
	}, nil
}

// Close drains the per-asset queues and waits for in-flight trades.
func (m *Mirror) Close() {
	m.queues.close()
}

// HandleIncomingSwap routes one peer transaction: decode it, record the
// observation and queue the mirrored trade behind earlier trades on the
// same asset. Duplicate signatures are dropped.
func (m *Mirror) HandleIncomingSwap(ctx context.Context, tx *solana.ParsedTransaction, trader string) {
	if tx == nil || tx.Message == nil {
		return
	}
	if _, dup := m.seen.LoadOrStore(tx.Signature, struct{}{}); dup {
		return
	}

	decoder := m.router.Select(tx.Message.Pubkeys())
	if decoder == nil {
		return
	}

	ev, err := decoder.Decode(ctx, tx, trader)
	if err != nil {
		if errors.Is(err, venue.ErrNoEvent) {
			m.log.WithFields(logrus.Fields{
				"venue":     decoder.Name(),
				"signature": tx.Signature,
			}).Debug("transaction carried no trade for the tracked wallet")
			return
		}
		observability.RecordDecodeError(decoder.Name())
		m.log.WithError(err).WithFields(logrus.Fields{
			"venue":     decoder.Name(),
			"signature": tx.Signature,
		}).Warn("failed to decode peer transaction")
		return
	}

	observability.RecordTradeObserved(decoder.Name(), ev.IsBuy)
	m.recordObservation(ctx, decoder.Name(), tx, trader, ev)

	queued := m.queues.enqueue(ev.Mint, func() {
		m.mirror(context.WithoutCancel(ctx), decoder, tx.Signature, trader, ev)
	})
	if !queued {
		observability.RecordStageError("queue")
		m.log.WithFields(logrus.Fields{
			"asset":     ev.Mint,
			"signature": tx.Signature,
		}).Warn("asset queue full, dropping peer trade")
	}
}

func (m *Mirror) recordObservation(ctx context.Context, venueName string, tx *solana.ParsedTransaction, trader string, ev *domain.TradeEvent) {
	if m.history == nil {
		return
	}
	obs := &domain.TradeObservation{
		Signature:   tx.Signature,
		Slot:        tx.Slot,
		Wallet:      trader,
		Mint:        ev.Mint,
		Venue:       venueName,
		IsBuy:       ev.IsBuy,
		SolAmount:   ev.SolAmount,
		TokenAmount: ev.TokenAmount,
		ObservedAt:  time.Now().UnixMilli(),
	}
	if err := m.history.Insert(ctx, obs); err != nil {
		observability.RecordStageError("history")
		m.log.WithError(err).Warn("failed to record trade observation")
	}
}

// mirror executes one queued trade end to end.
func (m *Mirror) mirror(ctx context.Context, decoder venue.Decoder, peerSig, trader string, ev *domain.TradeEvent) {
	started := time.Now()
	log := m.log.WithFields(logrus.Fields{
		"venue":  decoder.Name(),
		"asset":  ev.Mint,
		"wallet": trader,
	})

	intent, ok := m.applyPeerTrade(ctx, log, ev)
	if !ok {
		return
	}

	b := m.builders[decoder.Name()]
	if b == nil {
		observability.RecordStageError("build")
		log.Error("no builder registered for venue")
		return
	}

	tx, err := retry(ctx, buildAttempts, buildDelay, func() (*solana.Transaction, error) {
		return b.Build(ctx, intent)
	})
	if err != nil {
		observability.RecordStageError("build")
		log.WithError(err).Error("failed to build mirrored transaction")
		return
	}

	res, err := m.submitWithRetry(ctx, tx)
	if res == nil {
		observability.RecordStageError("submit")
		log.WithError(err).Error("failed to submit mirrored transaction")
		m.recordTrade(ctx, decoder.Name(), peerSig, trader, ev, intent, &submit.Result{
			Status:    domain.TradeRejected,
			Signature: tx.Signature(),
			Err:       err,
		})
		return
	}

	m.recordTrade(ctx, decoder.Name(), peerSig, trader, ev, intent, res)
	observability.RecordTradeMirrored(decoder.Name(), string(res.Status))
	observability.RecordMirrorLatency(decoder.Name(), time.Since(started).Seconds())

	if !res.Confirmed() {
		log.WithField("status", res.Status).Error("mirrored transaction did not confirm")
		return
	}

	log.WithField("signature", res.Signature).Info("mirrored transaction confirmed")
	observability.DefaultMetrics.LastTradeMirrored.Set(float64(time.Now().Unix()))
	m.settleOwnSide(ctx, log, decoder, res.Signature)
}

// submitWithRetry re-submits until the transaction confirms or the budget
// runs out, keeping the last terminal result.
func (m *Mirror) submitWithRetry(ctx context.Context, tx *solana.Transaction) (*submit.Result, error) {
	var last *submit.Result
	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		res, err := m.engine.Submit(ctx, tx)
		if err != nil {
			lastErr = err
		} else {
			last = res
			lastErr = res.Err
			if res.Confirmed() {
				return res, nil
			}
		}
		if attempt < submitAttempts {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(submitDelay):
			}
		}
	}
	return last, lastErr
}

// recordTrade persists the outcome of one mirror attempt. Duplicate
// signatures (a re-queued trade that already landed) are ignored.
func (m *Mirror) recordTrade(ctx context.Context, venueName, peerSig, trader string, ev *domain.TradeEvent, intent builder.TradeIntent, res *submit.Result) {
	if m.records == nil {
		return
	}
	side := domain.EntrySell
	if ev.IsBuy {
		side = domain.EntryBuy
	}
	now := time.Now().UnixMilli()
	rec := &domain.TradeRecord{
		Signature:     res.Signature,
		PeerSignature: peerSig,
		PeerWallet:    trader,
		Mint:          ev.Mint,
		Venue:         venueName,
		Side:          side,
		SolAmount:     intent.SolAmount,
		TokenAmount:   intent.TokenAmount,
		Status:        res.Status,
		SubmittedAt:   now,
	}
	if res.Confirmed() {
		rec.ConfirmedAt = &now
	}
	if err := m.records.Insert(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordStageError("records")
		m.log.WithError(err).Warn("failed to persist trade record")
	}
}

// applyPeerTrade updates the shadow ledger and sizes the bot's own trade.
// Returns ok=false when nothing should be mirrored.
func (m *Mirror) applyPeerTrade(ctx context.Context, log logrus.FieldLogger, ev *domain.TradeEvent) (builder.TradeIntent, bool) {
	var intent builder.TradeIntent

	peerPrior := m.ledger.Amount(portfolio.Peer, ev.Mint)
	peerPortfolio, err := m.ledger.ApplyTrade(ctx, portfolio.Peer, domain.EntryFromEvent(ev))
	if err != nil {
		observability.RecordStageError("ledger")
		log.WithError(err).Error("failed to update peer ledger")
		return intent, false
	}
	if !ev.IsBuy && len(peerPortfolio) == 0 {
		log.Warn("peer sold an asset that was never tracked, skipping")
		return intent, false
	}
	log.Info("peer portfolio updated\n" + peerPortfolio.FormatTable(tablePadding))
	m.updatePositionGauges()

	if ev.IsBuy {
		return builder.TradeIntent{Mint: ev.Mint, IsBuy: true, SolAmount: m.buySOL}, true
	}

	own := m.ledger.Amount(portfolio.Own, ev.Mint)
	size := portfolio.SellProportion(peerPrior, own, ev.TokenAmount)
	if size <= 0 {
		log.Warn("nothing of the asset to sell, skipping")
		return intent, false
	}
	return builder.TradeIntent{Mint: ev.Mint, TokenAmount: size}, true
}

// settleOwnSide fetches the bot's confirmed transaction, decodes the
// executed amounts and applies them to the own side of the ledger.
func (m *Mirror) settleOwnSide(ctx context.Context, log logrus.FieldLogger, decoder venue.Decoder, signature string) {
	ownTx, err := retry(ctx, ownTxAttempts, ownTxDelay, func() (*solana.ParsedTransaction, error) {
		tx, err := m.rpc.GetParsedTransaction(ctx, signature)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			return nil, fmt.Errorf("transaction %s not yet available", signature)
		}
		return tx, nil
	})
	if err != nil {
		observability.RecordStageError("settle")
		log.WithError(err).Error("failed to fetch own transaction after confirmation")
		return
	}

	ownEvent, err := decoder.Decode(ctx, ownTx, m.ownWallet)
	if err != nil {
		observability.RecordStageError("settle")
		log.WithError(err).Error("failed to decode own transaction")
		return
	}

	ownPortfolio, err := m.ledger.ApplyTrade(ctx, portfolio.Own, domain.EntryFromEvent(ownEvent))
	if err != nil {
		observability.RecordStageError("ledger")
		log.WithError(err).Error("failed to update own ledger")
		return
	}
	log.Info("own portfolio updated\n" + ownPortfolio.FormatTable(tablePadding))
	m.updatePositionGauges()
}

func (m *Mirror) updatePositionGauges() {
	snap := m.ledger.Snapshot()
	observability.UpdatePositions(len(snap.Peer), len(snap.Own))
}
