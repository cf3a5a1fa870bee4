// Package executor turns actions into external side effects. Each executor
// handles exactly one action kind; expected business failures are reported
// as structured domain.ExecutionFailure values, never panics.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/floorarb/floorarb/internal/crypto"
	"github.com/floorarb/floorarb/internal/domain"
)

// TxBackend is the chain access the submitter needs. Implemented by
// chain.Client.
type TxBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Notifier is the optional operator notification hook.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// TxSubmitter signs and submits arbitrage transactions. It is tolerant of
// duplicate delivery (action-ID dedup) and refuses actions whose deadline
// block has already passed.
type TxSubmitter struct {
	backend  TxBackend
	signer   *crypto.Signer
	store    domain.ArbAttemptStore // optional
	notifier Notifier               // optional
	dedup    *Dedup
	logger   *slog.Logger
}

// NewTxSubmitter creates the transaction executor. store and notifier may
// be nil.
func NewTxSubmitter(backend TxBackend, signer *crypto.Signer, store domain.ArbAttemptStore, notifier Notifier, logger *slog.Logger) *TxSubmitter {
	return &TxSubmitter{
		backend:  backend,
		signer:   signer,
		store:    store,
		notifier: notifier,
		dedup:    NewDedup(10 * time.Minute),
		logger:   logger.With(slog.String("component", "tx_submitter")),
	}
}

// Kind implements engine.Executor.
func (x *TxSubmitter) Kind() domain.ActionKind { return domain.ActionKindSubmitTransaction }

// Execute implements engine.Executor.
func (x *TxSubmitter) Execute(ctx context.Context, act domain.Action) error {
	submit, ok := act.(*domain.SubmitTransactionAction)
	if !ok {
		return fmt.Errorf("executor: unexpected action type %T", act)
	}

	if x.dedup.IsDuplicate(submit.ID) {
		x.logger.Debug("duplicate action skipped", slog.String("action_id", submit.ID))
		return nil
	}

	head, err := x.backend.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("executor: fetch head: %w", err)
	}
	if head >= submit.DeadlineBlock {
		x.record(ctx, submit, "", domain.ArbAttemptExpired, "deadline passed before submission")
		return &domain.ExecutionFailure{
			ActionID:  submit.ID,
			Reason:    fmt.Sprintf("deadline block %d already passed (head %d)", submit.DeadlineBlock, head),
			Retryable: false,
		}
	}

	tx, err := x.buildTx(ctx, submit)
	if err != nil {
		return fmt.Errorf("executor: build transaction: %w", err)
	}
	signed, err := x.signer.SignTx(tx)
	if err != nil {
		return fmt.Errorf("executor: %w", err)
	}

	if err := x.backend.SendTransaction(ctx, signed); err != nil {
		reason, retryable, expected := classifySendError(err)
		if expected {
			x.record(ctx, submit, signed.Hash().Hex(), domain.ArbAttemptRejected, reason)
			return &domain.ExecutionFailure{
				ActionID:  submit.ID,
				Reason:    reason,
				Retryable: retryable,
				Err:       err,
			}
		}
		return fmt.Errorf("executor: send transaction: %w", err)
	}

	x.record(ctx, submit, signed.Hash().Hex(), domain.ArbAttemptSubmitted, "")
	x.logger.Info("arbitrage transaction submitted",
		slog.String("action_id", submit.ID),
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.String("pool", submit.Pool.Hex()),
		slog.String("expected_profit_wei", submit.ExpectedProfitWei.String()),
		slog.Uint64("deadline_block", submit.DeadlineBlock),
	)

	if x.notifier != nil {
		msg := fmt.Sprintf("order %s → pool %s, expected profit %s wei, tx %s",
			submit.OrderHash, submit.Pool.Hex(), submit.ExpectedProfitWei, signed.Hash().Hex())
		if err := x.notifier.Notify(ctx, "arb_submitted", "Arbitrage submitted", msg); err != nil {
			x.logger.Warn("notification failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (x *TxSubmitter) buildTx(ctx context.Context, submit *domain.SubmitTransactionAction) (*types.Transaction, error) {
	nonce, err := x.backend.PendingNonceAt(ctx, x.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := x.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest tip: %w", err)
	}
	header, err := x.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}

	// feeCap = 2*baseFee + tip keeps the transaction includable across a
	// couple of full blocks without overpaying.
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))
	to := submit.To
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   x.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       submit.GasLimit,
		To:        &to,
		Value:     submit.ValueWei,
		Data:      submit.Data,
	}), nil
}

func (x *TxSubmitter) record(ctx context.Context, submit *domain.SubmitTransactionAction, txHash string, status domain.ArbAttemptStatus, detail string) {
	if x.store == nil {
		return
	}
	attempt := domain.ArbAttempt{
		ID:                submit.ID,
		OrderHash:         submit.OrderHash,
		Pool:              submit.Pool,
		Collection:        submit.Collection,
		TokenID:           submit.TokenID.String(),
		ListingPriceWei:   submit.ListingPriceWei.String(),
		ExpectedProfitWei: submit.ExpectedProfitWei.String(),
		DeadlineBlock:     submit.DeadlineBlock,
		TxHash:            txHash,
		Status:            status,
		Detail:            detail,
		CreatedAt:         time.Now().UTC(),
	}
	if err := x.store.Create(ctx, attempt); err != nil {
		x.logger.Warn("arb attempt record failed",
			slog.String("action_id", submit.ID),
			slog.String("error", err.Error()),
		)
	}
}

// classifySendError maps node rejections onto the execution-failure
// taxonomy. Expected business failures (underpriced, nonce races, known
// transactions) must not surface as process errors.
func classifySendError(err error) (reason string, retryable, expected bool) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "underpriced"):
		return "transaction underpriced", true, true
	case strings.Contains(msg, "nonce too low"):
		return "nonce too low", true, true
	case strings.Contains(msg, "already known"):
		return "transaction already known", false, true
	case strings.Contains(msg, "insufficient funds"):
		return "insufficient funds", false, true
	case strings.Contains(msg, "execution reverted"):
		return "execution reverted", false, true
	default:
		return msg, false, false
	}
}
