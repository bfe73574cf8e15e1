// Command credctl is an operator tool for the credential registry: it mints
// caller tokens for local use and hashes documents into credential references.
package main

import (
	"os"

	"edureg/cmd/credctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
