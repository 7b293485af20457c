package address

import (
	"fmt"

	"github.com/lashpay/lash-relayer/internal/codec"
	"github.com/lashpay/lash-relayer/internal/config"
	"github.com/lashpay/lash-relayer/internal/curve"
)

const compressMagic = 0x01

// WIF is a decoded wallet-import-format key.
type WIF struct {
	PrivKey        *curve.PrivateKey
	CompressPubKey bool
}

// DecodeWIF checksum-decodes s, checks the network version byte and the optional
// compression suffix.
func DecodeWIF(s string, params *config.NetParams) (*WIF, error) {
	payload, err := codec.CheckDecode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWIF, err)
	}

	var compress bool
	switch len(payload) {
	case 1 + curve.PrivateKeyLen:
	case 1 + curve.PrivateKeyLen + 1:
		if payload[len(payload)-1] != compressMagic {
			return nil, fmt.Errorf("%w: bad compression flag 0x%02x", ErrInvalidWIF, payload[len(payload)-1])
		}
		compress = true
	default:
		return nil, fmt.Errorf("%w: payload length %d", ErrInvalidWIF, len(payload))
	}
	if payload[0] != params.PrivateKeyID {
		return nil, fmt.Errorf("%w: version 0x%02x, want 0x%02x", ErrInvalidWIF, payload[0], params.PrivateKeyID)
	}

	priv, err := curve.PrivateKeyFromBytes(payload[1 : 1+curve.PrivateKeyLen])
	for i := range payload {
		payload[i] = 0
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWIF, err)
	}
	return &WIF{PrivKey: priv, CompressPubKey: compress}, nil
}

func EncodeWIF(priv *curve.PrivateKey, compress bool, params *config.NetParams) string {
	payload := make([]byte, 0, 2+curve.PrivateKeyLen)
	payload = append(payload, params.PrivateKeyID)
	payload = append(payload, priv.Bytes()...)
	if compress {
		payload = append(payload, compressMagic)
	}
	return codec.CheckEncode(payload)
}

// SerializePubKey returns the public key in the encoding the WIF asks for.
func (w *WIF) SerializePubKey() []byte {
	return w.PrivKey.PubKey().Serialize(w.CompressPubKey)
}

func (w *WIF) Address(params *config.NetParams) string {
	return FromPublicKey(w.SerializePubKey(), params)
}

func (w *WIF) Zero() {
	w.PrivKey.Zero()
}
