package config

import "fmt"

// NetParams holds the chain constants the transaction engine needs.
type NetParams struct {
	Name             string
	PubKeyHashAddrID byte
	PrivateKeyID     byte
	TxVersion        int32
	// HasTxTime marks chains that serialize a 4-byte timestamp right after the version.
	HasTxTime bool
}

var (
	LashMainNetParams = NetParams{
		Name:             "lash",
		PubKeyHashAddrID: 0x30, // 'L'
		PrivateKeyID:     0xb0,
		TxVersion:        1,
		HasTxTime:        true,
	}

	LashTestNetParams = NetParams{
		Name:             "lashtest",
		PubKeyHashAddrID: 0x6f,
		PrivateKeyID:     0xef,
		TxVersion:        1,
		HasTxTime:        true,
	}

	// RegressionNetParams uses the bitcoin regtest layout with no time field.
	RegressionNetParams = NetParams{
		Name:             "regtest",
		PubKeyHashAddrID: 0x6f,
		PrivateKeyID:     0xef,
		TxVersion:        1,
		HasTxTime:        false,
	}
)

func GetNetParams(name string) (*NetParams, error) {
	switch name {
	case "", "lash", "mainnet":
		return &LashMainNetParams, nil
	case "lashtest", "testnet":
		return &LashTestNetParams, nil
	case "regtest":
		return &RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}
