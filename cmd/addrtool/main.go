package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lashpay/lash-relayer/internal/address"
	"github.com/lashpay/lash-relayer/internal/config"
)

func main() {
	var (
		wif         = flag.String("wif", "", "Private key in WIF format")
		addr        = flag.String("address", "", "Address to validate")
		networkType = flag.String("network", "lash", "Network type: lash, lashtest, regtest")
		help        = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help || (*wif == "" && *addr == "") {
		fmt.Println("Usage: addrtool [options]")
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	params, err := config.GetNetParams(*networkType)
	if err != nil {
		log.Fatalf("Invalid network type: %v", err)
	}

	if *wif != "" {
		w, err := address.DecodeWIF(*wif, params)
		if err != nil {
			log.Fatalf("Invalid WIF: %v", err)
		}
		pub := w.SerializePubKey()
		derived := w.Address(params)
		w.Zero()
		fmt.Printf("Address: %s\n", derived)
		fmt.Printf("Public key: %s\n", hex.EncodeToString(pub))
		fmt.Printf("Compressed: %v\n", len(pub) == 33)
		if *addr == "" {
			*addr = derived
		} else if *addr != derived {
			fmt.Printf("Warning: %s does not belong to this key\n", *addr)
		}
	}

	sh, err := address.AddressScriptHash(*addr, params)
	if err != nil {
		log.Fatalf("Invalid address %s: %v", *addr, err)
	}
	fmt.Printf("Valid address on %s: %s\n", params.Name, *addr)
	fmt.Printf("Electrum scripthash: %s\n", sh)
}
