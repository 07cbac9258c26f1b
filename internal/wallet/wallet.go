package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ErrNoKey is returned when no signing key is configured
var ErrNoKey = errors.New("wallet: no signing key configured")

type WalletConfig struct {
	// PrivateKey accepts a hex seed (32 bytes), a hex or base58 64-byte
	// ed25519 key, a JSON byte array, or a cborHex "5820..." skey payload
	PrivateKey string
	Network    ledger.Network
	// Address overrides the enterprise address derived from the key
	Address string
}

// Wallet holds the keeper's ed25519 key and signs ledger transactions
type Wallet struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	address string
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, ErrNoKey
	}

	priv, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	pub := priv.Public().(ed25519.PublicKey)

	addr := cfg.Address
	if addr == "" {
		addr, err = ledger.KeyAddress(KeyHash(pub), cfg.Network)
		if err != nil {
			return nil, fmt.Errorf("wallet: derive address: %w", err)
		}
	}

	return &Wallet{priv: priv, pub: pub, address: addr}, nil
}

func (w *Wallet) Address() string              { return w.address }
func (w *Wallet) PublicKey() ed25519.PublicKey { return w.pub }

// KeyHash is the 28-byte blake2b payment credential of a verification key
func KeyHash(pub ed25519.PublicKey) []byte {
	h, _ := blake2b.New(28, nil)
	h.Write(pub)
	return h.Sum(nil)
}

func parsePrivateKey(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		return keyFromBytes(b)
	}

	if raw, err := hex.DecodeString(s); err == nil {
		// text envelope cborHex: 0x58 0x20 prefix on a 32-byte seed
		if len(raw) == ed25519.SeedSize+2 && raw[0] == 0x58 && raw[1] == 0x20 {
			raw = raw[2:]
		}
		return keyFromBytes(raw)
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	return keyFromBytes(raw)
}

func keyFromBytes(b []byte) (ed25519.PrivateKey, error) {
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	default:
		return nil, fmt.Errorf("wallet: expected %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
}
