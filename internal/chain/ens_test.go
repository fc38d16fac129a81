package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const testRegistrarKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeBackend struct {
	parsed     abi.ABI
	available  bool
	balance    *big.Int
	gasPrice   *big.Int
	estimate   uint64
	status     uint64
	sent       []*types.Transaction
	callErr    error
	lastLabels []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	parsed, err := abi.JSON(bytes.NewReader([]byte(registrarABI)))
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return &fakeBackend{
		parsed:    parsed,
		available: true,
		balance:   new(big.Int).Mul(big.NewInt(1), big.NewInt(1e18)),
		gasPrice:  big.NewInt(1_000_000_000),
		estimate:  100_000,
		status:    types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	method, err := f.parsed.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	f.lastLabels = append(f.lastLabels, args[0].(string))
	return method.Outputs.Pack(f.available)
}

func (f *fakeBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return f.estimate, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: f.status, TxHash: txHash, BlockNumber: big.NewInt(42), GasUsed: 90_000}, nil
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(8453), nil
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func newTestRegistrar(t *testing.T, backend Backend) *Registrar {
	t.Helper()
	r, err := NewRegistrar(backend, RegistrarOptions{
		Address:             "0x3596e71996193D6467D9098401452937a199C200",
		PrivateKey:          "0x" + testRegistrarKey,
		ParentDomain:        "oddly.eth",
		GasMarginPct:        20,
		MinBalanceEth:       0.001,
		ConfirmationTimeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewRegistrar: %v", err)
	}
	return r
}

func TestRegistrarAvailable(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestRegistrar(t, fb)

	ok, err := r.Available(context.Background(), "crypto")
	if err != nil || !ok {
		t.Fatalf("Available=%v err=%v want=true", ok, err)
	}
	fb.available = false
	ok, err = r.Available(context.Background(), "crypto")
	if err != nil || ok {
		t.Fatalf("Available=%v err=%v want=false", ok, err)
	}
	if fb.lastLabels[0] != "crypto" {
		t.Fatalf("label=%q", fb.lastLabels[0])
	}
}

func TestRegistrarRegister(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestRegistrar(t, fb)
	owner := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

	reg, err := r.Register(context.Background(), "crypto", owner)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Subdomain != "crypto.oddly.eth" {
		t.Fatalf("subdomain=%s", reg.Subdomain)
	}
	if len(fb.sent) != 1 {
		t.Fatalf("sent=%d want=1", len(fb.sent))
	}
	tx := fb.sent[0]
	if tx.Gas() != 120_000 {
		t.Fatalf("gas=%d want=120000", tx.Gas())
	}
	if tx.Nonce() != 7 || tx.To() == nil || *tx.To() != common.HexToAddress("0x3596e71996193D6467D9098401452937a199C200") {
		t.Fatalf("nonce=%d to=%v", tx.Nonce(), tx.To())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), tx)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	key, _ := crypto.HexToECDSA(testRegistrarKey)
	if sender != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("sender=%s", sender.Hex())
	}
	method, err := fb.parsed.MethodById(tx.Data()[:4])
	if err != nil || method.Name != "register" {
		t.Fatalf("method=%v err=%v", method, err)
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if args[0].(string) != "crypto" || args[1].(common.Address) != common.HexToAddress(owner) {
		t.Fatalf("args=%v", args)
	}
	if reg.TxHash != tx.Hash() || reg.BlockNumber != 42 {
		t.Fatalf("registration=%+v", reg)
	}
}

func TestRegistrarRegisterTaken(t *testing.T) {
	fb := newFakeBackend(t)
	fb.available = false
	r := newTestRegistrar(t, fb)

	_, err := r.Register(context.Background(), "crypto", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	if !errors.Is(err, ErrLabelTaken) {
		t.Fatalf("err=%v want=ErrLabelTaken", err)
	}
	if len(fb.sent) != 0 {
		t.Fatalf("no transaction expected")
	}
}

func TestRegistrarRegisterFailedReceipt(t *testing.T) {
	fb := newFakeBackend(t)
	fb.status = types.ReceiptStatusFailed
	r := newTestRegistrar(t, fb)

	_, err := r.Register(context.Background(), "crypto", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("err=%v want=ErrTransactionFailed", err)
	}
}

func TestRegistrarRegisterInsufficientFunds(t *testing.T) {
	fb := newFakeBackend(t)
	fb.balance = big.NewInt(1000)
	r := newTestRegistrar(t, fb)

	_, err := r.Register(context.Background(), "crypto", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want=ErrInsufficientFunds", err)
	}
	if len(fb.sent) != 0 {
		t.Fatalf("no transaction expected")
	}
}

func TestRegistrarRegisterInvalidOwner(t *testing.T) {
	r := newTestRegistrar(t, newFakeBackend(t))
	if _, err := r.Register(context.Background(), "crypto", "nope"); !errors.Is(err, ErrInvalidOwnerAddress) {
		t.Fatalf("err=%v want=ErrInvalidOwnerAddress", err)
	}
}

func TestRegistrarBalance(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestRegistrar(t, fb)

	bal, err := r.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Sufficient || bal.Ether.String() != "1" {
		t.Fatalf("balance=%+v", bal)
	}

	fb.balance = big.NewInt(1_000_000_000_000_000) // exactly 0.001 ETH
	bal, err = r.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal.Sufficient {
		t.Fatalf("0.001 ETH should not be sufficient")
	}

	_, gwei, err := r.GasPrice(context.Background())
	if err != nil || gwei.String() != "1" {
		t.Fatalf("gwei=%s err=%v", gwei, err)
	}
}

func TestNewRegistrarValidation(t *testing.T) {
	fb := newFakeBackend(t)
	if _, err := NewRegistrar(nil, RegistrarOptions{}, nil); !errors.Is(err, ErrRegistrarDisabled) {
		t.Fatalf("nil backend err=%v", err)
	}
	if _, err := NewRegistrar(fb, RegistrarOptions{Address: "bad", PrivateKey: testRegistrarKey}, nil); err == nil {
		t.Fatalf("expected invalid address error")
	}
	if _, err := NewRegistrar(fb, RegistrarOptions{Address: "0x3596e71996193D6467D9098401452937a199C200"}, nil); err == nil {
		t.Fatalf("expected missing key error")
	}
}
