package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// Wallet is an agent account derived at m/44'/60'/0'/0/{Index}.
type Wallet struct {
	Index      int
	Path       string
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// DeriveWallet derives the Ethereum account at index from a BIP-39 mnemonic.
// The mnemonic checksum is validated; no passphrase is used.
func DeriveWallet(mnemonic string, index int) (*Wallet, error) {
	phrase := strings.Join(strings.Fields(mnemonic), " ")
	if phrase == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidMnemonic)
	}
	if index < 0 || uint64(index) >= uint64(hdkeychain.HardenedKeyStart) {
		return nil, fmt.Errorf("wallet index out of range: %d", index)
	}
	seed, err := bip39.NewSeedWithErrorChecking(phrase, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	key := master
	for _, n := range derivationPath(uint32(index)) {
		key, err = key.Derive(n)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", pathString(index), err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	ecdsaKey, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, fmt.Errorf("convert key: %w", err)
	}
	return &Wallet{
		Index:      index,
		Path:       pathString(index),
		Address:    crypto.PubkeyToAddress(ecdsaKey.PublicKey),
		PrivateKey: ecdsaKey,
	}, nil
}

// NextWalletIndex returns max+1 of the allocated indices, or 0 when none.
// Gaps are never filled.
func NextWalletIndex(existing []int) int {
	next := 0
	for _, idx := range existing {
		if idx+1 > next {
			next = idx + 1
		}
	}
	return next
}

func IsValidAddress(addr string) bool {
	return common.IsHexAddress(strings.TrimSpace(addr))
}

func derivationPath(index uint32) []uint32 {
	return []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
		index,
	}
}

func pathString(index int) string {
	return fmt.Sprintf("m/44'/60'/0'/0/%d", index)
}

func parsePrivateKeyHex(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "0x")
	if raw == "" {
		return nil, fmt.Errorf("empty private key")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}
