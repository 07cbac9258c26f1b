package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// Enterprise address headers: type in the high nibble, network id in the low
const (
	headerKeyTestnet    = 0x60
	headerKeyMainnet    = 0x61
	headerScriptTestnet = 0x70
	headerScriptMainnet = 0x71
)

// ScriptAddress derives the enterprise (no staking part) bech32 address
// locked by the given 28-byte script hash.
func ScriptAddress(scriptHash string, network Network) (string, error) {
	h, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(scriptHash), "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid script hash: %w", err)
	}
	return enterpriseAddress(h, network, headerScriptTestnet, headerScriptMainnet)
}

// KeyAddress derives the enterprise address of a 28-byte payment key hash
func KeyAddress(keyHash []byte, network Network) (string, error) {
	return enterpriseAddress(keyHash, network, headerKeyTestnet, headerKeyMainnet)
}

func enterpriseAddress(credential []byte, network Network, testnetHeader, mainnetHeader byte) (string, error) {
	if len(credential) != 28 {
		return "", fmt.Errorf("invalid credential: expected 28 bytes, got %d", len(credential))
	}

	header, hrp := testnetHeader, "addr_test"
	switch network {
	case Mainnet:
		header, hrp = mainnetHeader, "addr"
	case Testnet, "":
	default:
		return "", fmt.Errorf("unknown network %q", network)
	}

	payload := append([]byte{header}, credential...)
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	addr, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("bech32 encode: %w", err)
	}
	return addr, nil
}
