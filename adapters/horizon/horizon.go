package horizon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
)

const (
	AssetNative = "native"
	AssetUSDC   = "usdc"

	// Circle's USDC issuers
	TestnetUSDCIssuer = "GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5"
	PublicUSDCIssuer  = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"

	maxMemoBytes   = 28
	amountDecimals = 7
	txTimeout      = 300
)

// largest amount an int64 of stroops can carry
var maxAmount = decimal.RequireFromString("922337203685.4775807")

// Horizon builds payment envelopes and relays signed ones through a Horizon server
type Horizon struct {
	client     horizonclient.ClientInterface
	passphrase string
	usdcIssuer string
}

// New creates a Horizon adapter for the given network
func New(client horizonclient.ClientInterface, passphrase, usdcIssuer string) *Horizon {
	return &Horizon{
		client:     client,
		passphrase: passphrase,
		usdcIssuer: usdcIssuer,
	}
}

// ForNetwork returns an adapter for "testnet" or "public". An empty
// horizonURL selects the SDF server for that network.
func ForNetwork(name, horizonURL string) (*Horizon, error) {
	var h *Horizon
	switch strings.ToLower(name) {
	case "testnet", "":
		h = New(horizonclient.DefaultTestNetClient, network.TestNetworkPassphrase, TestnetUSDCIssuer)
	case "public", "mainnet":
		h = New(horizonclient.DefaultPublicNetClient, network.PublicNetworkPassphrase, PublicUSDCIssuer)
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
	if horizonURL != "" {
		h.client = &horizonclient.Client{HorizonURL: horizonURL}
	}
	return h, nil
}

// NetworkPassphrase maps a network name to its passphrase
func NetworkPassphrase(name string) (string, error) {
	switch strings.ToLower(name) {
	case "testnet", "":
		return network.TestNetworkPassphrase, nil
	case "public", "mainnet":
		return network.PublicNetworkPassphrase, nil
	default:
		return "", fmt.Errorf("unknown network %q", name)
	}
}

// WithUSDCIssuer overrides the issuer used for the usdc asset
func (h *Horizon) WithUSDCIssuer(issuer string) *Horizon {
	if issuer != "" {
		h.usdcIssuer = issuer
	}
	return h
}

var _ ports.Network = (*Horizon)(nil)

func (h *Horizon) Passphrase() string {
	return h.passphrase
}

// BuildPayment loads the source account sequence and returns an unsigned
// base64 envelope with a five minute time bound.
func (h *Horizon) BuildPayment(ctx context.Context, p core.Payment) (string, error) {
	if !strkey.IsValidEd25519PublicKey(p.Source) || !strkey.IsValidEd25519PublicKey(p.Destination) {
		return "", core.ErrInvalidPublicKey
	}
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return "", err
	}
	asset, err := h.asset(p.Asset)
	if err != nil {
		return "", err
	}

	var memo txnbuild.Memo
	if p.Memo != "" {
		if len(p.Memo) > maxMemoBytes {
			return "", fmt.Errorf("%w: longer than %d bytes", core.ErrInvalidMemo, maxMemoBytes)
		}
		memo = txnbuild.MemoText(p.Memo)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	account, err := h.client.AccountDetail(horizonclient.AccountRequest{AccountID: p.Source})
	if err != nil {
		return "", fmt.Errorf("%w: load account %s: %v", core.ErrNetwork, p.Source, err)
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: p.Destination,
				Amount:      amount,
				Asset:       asset,
			},
		},
		BaseFee:       txnbuild.MinBaseFee,
		Memo:          memo,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(txTimeout)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}

	envelope, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	return envelope, nil
}

// Submit relays a signed envelope. Rejections carry Horizon's result codes
// in a *core.SubmitError.
func (h *Horizon) Submit(ctx context.Context, signedXDR string) (core.SubmitResult, error) {
	if _, err := txnbuild.TransactionFromXDR(signedXDR); err != nil {
		return core.SubmitResult{}, core.ErrMalformedTransaction
	}
	if err := ctx.Err(); err != nil {
		return core.SubmitResult{}, err
	}

	resp, err := h.client.SubmitTransactionXDR(signedXDR)
	if err != nil {
		return core.SubmitResult{}, submitError(err)
	}
	return core.SubmitResult{Hash: resp.Hash, Ledger: resp.Ledger}, nil
}

// Balances loads the account and splits its balances into native, USDC and
// other issued assets. Liquidity pool shares are skipped.
func (h *Horizon) Balances(ctx context.Context, publicKey string) (core.Balances, error) {
	if !strkey.IsValidEd25519PublicKey(publicKey) {
		return core.Balances{}, core.ErrInvalidPublicKey
	}
	if err := ctx.Err(); err != nil {
		return core.Balances{}, err
	}

	account, err := h.client.AccountDetail(horizonclient.AccountRequest{AccountID: publicKey})
	if err != nil {
		if herr := horizonclient.GetError(err); herr != nil && herr.Problem.Status == http.StatusNotFound {
			return core.Balances{}, core.ErrAccountNotFound
		}
		return core.Balances{}, fmt.Errorf("%w: load account %s: %v", core.ErrNetwork, publicKey, err)
	}

	out := core.Balances{Native: "0", USDC: "0", Assets: []core.AssetBalance{}}
	for _, b := range account.Balances {
		switch b.Type {
		case "native":
			out.Native = b.Balance
		case "credit_alphanum4", "credit_alphanum12":
			out.Assets = append(out.Assets, core.AssetBalance{Code: b.Code, Issuer: b.Issuer, Balance: b.Balance})
			if b.Code == "USDC" && (h.usdcIssuer == "" || b.Issuer == h.usdcIssuer) {
				out.USDC = b.Balance
			}
		}
	}
	return out, nil
}

func submitError(err error) error {
	herr := horizonclient.GetError(err)
	if herr == nil {
		return fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}

	codes, cerr := herr.ResultCodes()
	if cerr != nil || codes == nil {
		return fmt.Errorf("%w: %s", core.ErrNetwork, herr.Problem.Title)
	}
	return &core.SubmitError{
		TransactionCode: codes.TransactionCode,
		OperationCodes:  codes.OperationCodes,
	}
}

func (h *Horizon) asset(name string) (txnbuild.Asset, error) {
	switch strings.ToLower(name) {
	case AssetNative, "xlm", "":
		return txnbuild.NativeAsset{}, nil
	case AssetUSDC:
		if h.usdcIssuer == "" {
			return nil, fmt.Errorf("%w: usdc issuer not configured", core.ErrInvalidAsset)
		}
		return txnbuild.CreditAsset{Code: "USDC", Issuer: h.usdcIssuer}, nil
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidAsset, name)
	}
}

// ParseAmount validates a decimal amount of at most seven fractional digits
// and returns its canonical form.
func ParseAmount(raw string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrInvalidAmount, raw)
	}
	if !d.IsPositive() {
		return "", fmt.Errorf("%w: must be positive", core.ErrInvalidAmount)
	}
	if !d.Equal(d.Truncate(amountDecimals)) {
		return "", fmt.Errorf("%w: more than %d decimal places", core.ErrInvalidAmount, amountDecimals)
	}
	if d.GreaterThan(maxAmount) {
		return "", fmt.Errorf("%w: too large", core.ErrInvalidAmount)
	}
	return d.String(), nil
}

// IsRejected reports whether err came from the network refusing the envelope
func IsRejected(err error) bool {
	var serr *core.SubmitError
	return errors.As(err, &serr)
}
