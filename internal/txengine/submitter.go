// Package txengine signs, broadcasts and confirms transactions with bounded, classified retries.
package txengine

import (
	"context"
	"crypto/ecdsa"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/somnia-runner/internal/progress"
)

// MaxRetries bounds the attempts of one submission.
const MaxRetries = 5

// State is a step of one submission.
type State int

const (
	StateInit State = iota
	StateSigning
	StateBroadcasting
	StateRetryWait
	StateConfirmedSuccess
	StateConfirmedReverted
	StateFatalFailed
	StateRetriesExhausted
)

var stateNames = [...]string{
	"INIT", "SIGNING", "BROADCASTING", "RETRY_WAIT",
	"CONFIRMED_SUCCESS", "CONFIRMED_REVERTED", "FATAL_FAILED", "RETRIES_EXHAUSTED",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

func (s State) Terminal() bool { return s >= StateConfirmedSuccess }

// Backend is the part of the chain connection the submitter needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	SendAndWait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Request describes one logical operation.
type Request struct {
	Skeleton Skeleton
	Key      *ecdsa.PrivateKey
	Kind     string // label for logs, e.g. "Approval" or "Swap"
	Wallet   int
}

// Submitter runs the retry state machine. Only Backend is required.
type Submitter struct {
	Backend Backend
	Signer  Signer
	Report  *progress.Reporter
	TxURL   func(hash string) string

	Rand  *rand.Rand
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
	Trace func(State)
}

func NewSubmitter(b Backend, rep *progress.Reporter, txURL func(string) string) *Submitter {
	return &Submitter{Backend: b, Signer: LegacySigner, Report: rep, TxURL: txURL}
}

// Submit signs and sends req until it reaches a terminal state. The receipt is nil
// unless the transaction was confirmed with status 1. stats sees exactly one Begin
// and exactly one of Succeed or Fail.
func (s *Submitter) Submit(ctx context.Context, req Request, stats *Stats) (*types.Receipt, State) {
	rep := s.reporter()
	now := s.now
	start := now()
	s.trace(StateInit)
	stats.Begin()

	attempt := 0
	for attempt < MaxRetries {
		s.trace(StateSigning)
		rcpt, err := s.attempt(ctx, req, attempt)
		if err == nil {
			if rcpt.Status == types.ReceiptStatusSuccessful {
				stats.Succeed(now().Sub(start))
				rep.Bothf(progress.Success, "Success: Wallet %d │ %s Tx: %s", req.Wallet, req.Kind, s.txURL(rcpt.TxHash))
				s.trace(StateConfirmedSuccess)
				return rcpt, StateConfirmedSuccess
			}
			stats.Fail()
			rep.Bothf(progress.Error, "Error: Wallet %d │ %s failed (reverted by EVM). Tx Hash: %s", req.Wallet, req.Kind, rcpt.TxHash.Hex())
			s.trace(StateConfirmedReverted)
			return nil, StateConfirmedReverted
		}

		rep.Logf(progress.Warn, "Wallet %d │ %s transaction error (Attempt %d): %v", req.Wallet, req.Kind, attempt+1, err)
		class := Classify(err)
		if class == Fatal {
			stats.Fail()
			rep.Bothf(progress.Error, "Error: Wallet %d │ %s failed permanently after error: %v", req.Wallet, req.Kind, err)
			s.trace(StateFatalFailed)
			return nil, StateFatalFailed
		}

		attempt++
		if attempt == MaxRetries {
			break
		}
		d := Backoff(class, attempt, s.Rand)
		if class == RetryTimeout {
			rep.Logf(progress.Info, "Wallet %d │ Retrying %s due to timeout in %d seconds...", req.Wallet, req.Kind, int(d.Seconds()))
		} else {
			rep.Logf(progress.Info, "Wallet %d │ Retrying %s in %d seconds...", req.Wallet, req.Kind, int(d.Seconds()))
		}
		s.trace(StateRetryWait)
		if err := s.sleep(ctx, d); err != nil {
			stats.Fail()
			rep.Bothf(progress.Error, "Error: Wallet %d │ %s interrupted while waiting to retry: %v", req.Wallet, req.Kind, err)
			s.trace(StateFatalFailed)
			return nil, StateFatalFailed
		}
	}

	stats.Fail()
	rep.Bothf(progress.Error, "Error: Wallet %d │ %s failed after %d retries.", req.Wallet, req.Kind, MaxRetries)
	s.trace(StateRetriesExhausted)
	return nil, StateRetriesExhausted
}

// attempt refreshes the nonce, signs and waits for the receipt.
func (s *Submitter) attempt(ctx context.Context, req Request, n int) (*types.Receipt, error) {
	nonce, err := s.Backend.PendingNonceAt(ctx, req.Skeleton.From)
	if err != nil {
		return nil, err
	}
	s.reporter().Logf(progress.Info, "Wallet %d │ Sending %s Transaction (Attempt %d/%d)...", req.Wallet, req.Kind, n+1, MaxRetries)
	signer := s.Signer
	if signer == nil {
		signer = LegacySigner
	}
	signed, err := signer.Sign(req.Skeleton.WithNonce(nonce), req.Key)
	if err != nil {
		return nil, err
	}
	s.trace(StateBroadcasting)
	return s.Backend.SendAndWait(ctx, signed)
}

func (s *Submitter) reporter() *progress.Reporter {
	if s.Report == nil {
		s.Report = progress.NewReporter(nil, nil)
	}
	return s.Report
}

func (s *Submitter) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Submitter) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (s *Submitter) trace(st State) {
	if s.Trace != nil {
		s.Trace(st)
	}
}

func (s *Submitter) txURL(h common.Hash) string {
	if s.TxURL != nil {
		return s.TxURL(h.Hex())
	}
	return h.Hex()
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
