package address

import (
	"encoding/hex"
	"fmt"

	"github.com/lashpay/lash-relayer/internal/codec"
	"github.com/lashpay/lash-relayer/internal/config"
	"github.com/lashpay/lash-relayer/internal/types"
)

const PubKeyHashLen = 20

// FromPubKeyHash encodes version || hash160 || checksum.
func FromPubKeyHash(hash []byte, params *config.NetParams) (string, error) {
	if len(hash) != PubKeyHashLen {
		return "", fmt.Errorf("%w: pubkey hash must be %d bytes, got %d", ErrInvalidAddress, PubKeyHashLen, len(hash))
	}
	payload := make([]byte, 0, 1+PubKeyHashLen)
	payload = append(payload, params.PubKeyHashAddrID)
	payload = append(payload, hash...)
	return codec.CheckEncode(payload), nil
}

// FromPublicKey derives the P2PKH address of a serialized public key.
func FromPublicKey(pubKey []byte, params *config.NetParams) string {
	addr, _ := FromPubKeyHash(types.Hash160(pubKey), params)
	return addr
}

// ToPubKeyHash decodes addr, verifying checksum and version, and returns exactly 20 bytes.
func ToPubKeyHash(addr string, params *config.NetParams) ([]byte, error) {
	payload, err := codec.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAddress, addr, err)
	}
	if payload[0] != params.PubKeyHashAddrID {
		return nil, fmt.Errorf("%w %q: version 0x%02x, want 0x%02x", ErrInvalidAddress, addr, payload[0], params.PubKeyHashAddrID)
	}
	hash := payload[1:]
	if len(hash) != PubKeyHashLen {
		return nil, fmt.Errorf("%w %q: payload is %d bytes, want %d", ErrInvalidAddress, addr, len(hash), PubKeyHashLen)
	}
	return hash, nil
}

func Validate(addr string, params *config.NetParams) error {
	_, err := ToPubKeyHash(addr, params)
	return err
}

// ScriptHash is the Electrum scripthash of a locking script: sha256, byte-reversed, hex.
func ScriptHash(pkScript []byte) string {
	return hex.EncodeToString(codec.ReverseBytes(types.SHA256Sum(pkScript)))
}

func AddressScriptHash(addr string, params *config.NetParams) (string, error) {
	hash, err := ToPubKeyHash(addr, params)
	if err != nil {
		return "", err
	}
	return ScriptHash(PayToPubKeyHashScript(hash)), nil
}
