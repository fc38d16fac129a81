package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const registrarABI = `[
 {"type":"function","name":"available","stateMutability":"view",
  "inputs":[{"name":"label","type":"string"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"register","stateMutability":"nonpayable",
  "inputs":[{"name":"label","type":"string"},{"name":"owner","type":"address"}],
  "outputs":[]}
]`

var (
	ErrLabelTaken          = errors.New("ens label is not available")
	ErrInsufficientFunds   = errors.New("registrar has insufficient funds")
	ErrTransactionFailed   = errors.New("registration transaction failed")
	ErrRegistrarDisabled   = errors.New("ens registrar is not configured")
	ErrInvalidOwnerAddress = errors.New("invalid owner address")
)

// Backend is the subset of ethclient.Client used by the registrar.
type Backend interface {
	bind.DeployBackend
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

var _ Backend = (*ethclient.Client)(nil)

func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return client, nil
}

type RegistrarOptions struct {
	Address             string
	PrivateKey          string
	ParentDomain        string
	GasMarginPct        int64
	MinBalanceEth       float64
	ConfirmationTimeout time.Duration
}

// Registrar issues subdomains under ParentDomain through an L2 registrar
// contract, signing with the registrar key.
type Registrar struct {
	backend      Backend
	contract     common.Address
	abi          abi.ABI
	key          *ecdsa.PrivateKey
	from         common.Address
	parent       string
	gasMarginPct int64
	minBalance   decimal.Decimal
	confirmWait  time.Duration
	logger       *zap.Logger
}

func NewRegistrar(backend Backend, opts RegistrarOptions, logger *zap.Logger) (*Registrar, error) {
	if backend == nil {
		return nil, ErrRegistrarDisabled
	}
	if !common.IsHexAddress(opts.Address) {
		return nil, fmt.Errorf("invalid registrar address %q", opts.Address)
	}
	key, err := parsePrivateKeyHex(opts.PrivateKey)
	if err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(registrarABI))
	if err != nil {
		return nil, fmt.Errorf("parse registrar abi: %w", err)
	}
	parent := strings.Trim(strings.TrimSpace(opts.ParentDomain), ".")
	if parent == "" {
		parent = "oddly.eth"
	}
	margin := opts.GasMarginPct
	if margin < 0 {
		margin = 0
	}
	wait := opts.ConfirmationTimeout
	if wait <= 0 {
		wait = 3 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registrar{
		backend:      backend,
		contract:     common.HexToAddress(opts.Address),
		abi:          parsed,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		parent:       parent,
		gasMarginPct: margin,
		minBalance:   decimal.NewFromFloat(opts.MinBalanceEth),
		confirmWait:  wait,
		logger:       logger.With(zap.String("component", "ens_registrar")),
	}, nil
}

// Subdomain returns "<label>.<parent>".
func (r *Registrar) Subdomain(label string) string {
	return strings.ToLower(strings.TrimSpace(label)) + "." + r.parent
}

func (r *Registrar) SignerAddress() common.Address {
	return r.from
}

func (r *Registrar) Available(ctx context.Context, label string) (bool, error) {
	data, err := r.abi.Pack("available", label)
	if err != nil {
		return false, fmt.Errorf("pack available: %w", err)
	}
	out, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call available: %w", err)
	}
	values, err := r.abi.Unpack("available", out)
	if err != nil {
		return false, fmt.Errorf("unpack available: %w", err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("unexpected available result length %d", len(values))
	}
	ok, isBool := values[0].(bool)
	if !isBool {
		return false, fmt.Errorf("unexpected available result type %T", values[0])
	}
	return ok, nil
}

type Registration struct {
	Subdomain   string
	Owner       common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// Register submits register(label, owner) and blocks until one confirmation.
func (r *Registrar) Register(ctx context.Context, label string, owner string) (*Registration, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOwnerAddress, owner)
	}
	ownerAddr := common.HexToAddress(owner)

	available, err := r.Available(ctx, label)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, fmt.Errorf("%w: %s", ErrLabelTaken, r.Subdomain(label))
	}

	data, err := r.abi.Pack("register", label, ownerAddr)
	if err != nil {
		return nil, fmt.Errorf("pack register: %w", err)
	}
	estimate, err := r.backend.EstimateGas(ctx, ethereum.CallMsg{From: r.from, To: &r.contract, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit := estimate * uint64(100+r.gasMarginPct) / 100

	gasPrice, err := r.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	balance, err := r.backend.BalanceAt(ctx, r.from, nil)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	if balance.Cmp(cost) < 0 {
		return nil, fmt.Errorf("%w: have %s wei, need %s wei", ErrInsufficientFunds, balance, cost)
	}

	nonce, err := r.backend.PendingNonceAt(ctx, r.from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	chainID, err := r.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &r.contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), r.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := r.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	r.logger.Info("ens registration submitted",
		zap.String("subdomain", r.Subdomain(label)),
		zap.String("owner", ownerAddr.Hex()),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("gas_limit", gasLimit),
	)

	waitCtx, cancel := context.WithTimeout(ctx, r.confirmWait)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, r.backend, signed)
	if err != nil {
		return nil, fmt.Errorf("wait for confirmation of %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, fmt.Errorf("%w: %s", ErrTransactionFailed, signed.Hash().Hex())
	}
	reg := &Registration{
		Subdomain: r.Subdomain(label),
		Owner:     ownerAddr,
		TxHash:    signed.Hash(),
		GasUsed:   receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		reg.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return reg, nil
}

type Balance struct {
	Address    common.Address
	Wei        *big.Int
	Ether      decimal.Decimal
	Sufficient bool
}

// Balance reports the registrar signer balance; Sufficient is true above the
// configured minimum.
func (r *Registrar) Balance(ctx context.Context) (*Balance, error) {
	wei, err := r.backend.BalanceAt(ctx, r.from, nil)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	eth := decimal.NewFromBigInt(wei, -18)
	return &Balance{
		Address:    r.from,
		Wei:        wei,
		Ether:      eth,
		Sufficient: eth.GreaterThan(r.minBalance),
	}, nil
}

// GasPrice returns the suggested gas price in wei and gwei.
func (r *Registrar) GasPrice(ctx context.Context) (*big.Int, decimal.Decimal, error) {
	wei, err := r.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("gas price: %w", err)
	}
	return wei, decimal.NewFromBigInt(wei, -9), nil
}
