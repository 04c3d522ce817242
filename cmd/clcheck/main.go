// Command clcheck verifies CL credential proofs offline, against issuer keys
// read from JSON files.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
