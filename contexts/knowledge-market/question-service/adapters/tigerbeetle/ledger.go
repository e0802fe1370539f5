// Package tigerbeetleadapter moves question funds through a TigerBeetle
// cluster. Accounts are derived deterministically from identity labels, and
// each token gets its own ledger so balances never mix across tokens.
package tigerbeetleadapter

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"log/slog"

	"github.com/google/uuid"
	tb "github.com/tigerbeetle/tigerbeetle-go"
	tbtypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"

	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	"delphi/contexts/knowledge-market/question-service/ports"
)

const (
	accountLabelPrefix  = "acct:"
	transferLabelPrefix = "xfer:"
	transferCode        = 1
	accountCode         = 1
)

type Ledger struct {
	client tb.Client
	logger *slog.Logger
}

func NewLedger(clusterID uint32, addresses []string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := tb.NewClient(tbtypes.ToUint128(uint64(clusterID)), addresses)
	if err != nil {
		return nil, err
	}
	return &Ledger{client: client, logger: logger}, nil
}

func (l *Ledger) Close() {
	l.client.Close()
}

func (l *Ledger) Transfer(ctx context.Context, tokenID string, from string, to string, amount int64) error {
	return l.move(ctx, tokenID, from, to, amount)
}

func (l *Ledger) TransferFrom(ctx context.Context, tokenID string, from string, to string, amount int64) error {
	return l.move(ctx, tokenID, from, to, amount)
}

// SplitTransferFrom submits all legs as one linked chain: TigerBeetle
// rejects the whole chain when any leg fails, so a mid-split rejection can
// never strand the earlier legs.
func (l *Ledger) SplitTransferFrom(ctx context.Context, tokenID string, from string, legs []ports.LedgerLeg) error {
	ledger := ledgerFor(tokenID)
	accounts := []tbtypes.Uint128{accountID(from)}
	transfers := make([]tbtypes.Transfer, 0, len(legs))
	for _, leg := range legs {
		if leg.Amount < 0 {
			return domainerrors.ErrLedgerTransferFailed
		}
		if leg.Amount == 0 {
			continue
		}
		accounts = append(accounts, accountID(leg.To))
		transfers = append(transfers, tbtypes.Transfer{
			ID:              id128(transferLabelPrefix + uuid.NewString()),
			DebitAccountID:  accountID(from),
			CreditAccountID: accountID(leg.To),
			Amount:          tbtypes.ToUint128(uint64(leg.Amount)),
			Ledger:          ledger,
			Code:            transferCode,
			Flags:           tbtypes.TransferFlags{Linked: true}.ToUint16(),
		})
	}
	if len(transfers) == 0 {
		return nil
	}
	// The last event in a linked chain carries no Linked flag.
	transfers[len(transfers)-1].Flags = 0
	if err := l.ensureAccounts(ctx, ledger, accounts...); err != nil {
		return err
	}
	results, err := createTransfers(ctx, l.client, transfers)
	if err != nil {
		l.logError(ctx, "split_transfer_failed", tokenID, from, "", err.Error())
		return domainerrors.ErrLedgerTransferFailed
	}
	for _, result := range results {
		if result.Result != tbtypes.TransferOK {
			l.logError(ctx, "split_transfer_rejected", tokenID, from, "", result.Result.String())
			return domainerrors.ErrLedgerTransferFailed
		}
	}
	return nil
}

func (l *Ledger) move(ctx context.Context, tokenID string, from string, to string, amount int64) error {
	if amount < 0 {
		return domainerrors.ErrLedgerTransferFailed
	}
	if amount == 0 {
		return nil
	}
	ledger := ledgerFor(tokenID)
	if err := l.ensureAccounts(ctx, ledger, accountID(from), accountID(to)); err != nil {
		return err
	}
	transfer := tbtypes.Transfer{
		ID:              id128(transferLabelPrefix + uuid.NewString()),
		DebitAccountID:  accountID(from),
		CreditAccountID: accountID(to),
		Amount:          tbtypes.ToUint128(uint64(amount)),
		Ledger:          ledger,
		Code:            transferCode,
	}
	results, err := createTransfers(ctx, l.client, []tbtypes.Transfer{transfer})
	if err != nil {
		l.logError(ctx, "transfer_failed", tokenID, from, to, err.Error())
		return domainerrors.ErrLedgerTransferFailed
	}
	for _, result := range results {
		if result.Result != tbtypes.TransferOK {
			l.logError(ctx, "transfer_rejected", tokenID, from, to, result.Result.String())
			return domainerrors.ErrLedgerTransferFailed
		}
	}
	return nil
}

func (l *Ledger) ensureAccounts(ctx context.Context, ledger uint32, ids ...tbtypes.Uint128) error {
	accounts := make([]tbtypes.Account, 0, len(ids))
	for _, id := range ids {
		accounts = append(accounts, tbtypes.Account{
			ID:     id,
			Ledger: ledger,
			Code:   accountCode,
		})
	}
	results, err := createAccounts(ctx, l.client, accounts)
	if err != nil {
		return domainerrors.ErrLedgerTransferFailed
	}
	for _, result := range results {
		if result.Result != tbtypes.AccountOK && result.Result != tbtypes.AccountExists {
			return domainerrors.ErrLedgerTransferFailed
		}
	}
	return nil
}

func (l *Ledger) logError(ctx context.Context, event string, tokenID string, from string, to string, detail string) {
	l.logger.ErrorContext(ctx, "token ledger failure",
		slog.String("event", event),
		slog.String("module", "question-service"),
		slog.String("layer", "adapters/tigerbeetle"),
		slog.String("token_id", tokenID),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("error", detail),
	)
}

// id128 deterministically maps a string label to a TigerBeetle Uint128.
func id128(label string) tbtypes.Uint128 {
	sum := sha256.Sum256([]byte(label))
	var raw [16]byte
	copy(raw[:], sum[:16])
	if isZero(raw) || isMax(raw) {
		raw[0] ^= 0x01
	}
	return tbtypes.BytesToUint128(raw)
}

func accountID(identity string) tbtypes.Uint128 {
	return id128(accountLabelPrefix + identity)
}

// ledgerFor maps a token to a stable non-zero ledger number.
func ledgerFor(tokenID string) uint32 {
	sum := sha256.Sum256([]byte(tokenID))
	ledger := binary.LittleEndian.Uint32(sum[:4])
	if ledger == 0 {
		ledger = 1
	}
	return ledger
}

func isZero(raw [16]byte) bool {
	for _, b := range raw[:] {
		if b != 0 {
			return false
		}
	}
	return true
}

func isMax(raw [16]byte) bool {
	for _, b := range raw[:] {
		if b != 0xFF {
			return false
		}
	}
	return true
}

func createTransfers(ctx context.Context, client tb.Client, transfers []tbtypes.Transfer) ([]tbtypes.TransferEventResult, error) {
	type response struct {
		results []tbtypes.TransferEventResult
		err     error
	}
	done := make(chan response, 1)
	go func() {
		results, err := client.CreateTransfers(transfers)
		done <- response{results: results, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.results, res.err
	}
}

func createAccounts(ctx context.Context, client tb.Client, accounts []tbtypes.Account) ([]tbtypes.AccountEventResult, error) {
	type response struct {
		results []tbtypes.AccountEventResult
		err     error
	}
	done := make(chan response, 1)
	go func() {
		results, err := client.CreateAccounts(accounts)
		done <- response{results: results, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.results, res.err
	}
}

var _ ports.TokenLedger = (*Ledger)(nil)
