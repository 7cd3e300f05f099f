// Command slsaverify verifies a Sigstore bundle's DSSE signature, Fulcio
// certificate chain, and timestamp proof against a trust root, and prints
// the resulting canonical journal.
package main

import (
	"os"

	"github.com/letmehateu/automata-slsa-sigstore-verifier/cmd/slsaverify/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
