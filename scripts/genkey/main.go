// genkey generates a pairing key for the warden daemon and its extension.
//
// Usage (run from the repo root):
//
//	go run scripts/genkey/main.go
//
// Prints a WARDEN_PAIRING_KEY line suitable for the daemon's .env file. The
// same key goes into the extension's options page. The daemon runs without
// pairing when the variable is unset, which is fine for a single-user
// machine; set it when other local processes cannot be trusted.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

func main() {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "error: generate key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("WARDEN_PAIRING_KEY=%s\n", hex.EncodeToString(key))
}
