package mocks

import (
	"encoding/hex"
	"fmt"
)

// Signer returns the unsigned bytes untouched
type Signer struct {
	Addr string
	Err  error
}

func (s *Signer) SignTx(unsignedHex string) ([]byte, string, error) {
	if s.Err != nil {
		return nil, "", s.Err
	}
	raw, err := hex.DecodeString(unsignedHex)
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}
	return raw, "signed-" + unsignedHex[:4], nil
}

func (s *Signer) Address() string { return s.Addr }
