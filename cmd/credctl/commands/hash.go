package commands

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/sha3"
)

var hashAlgorithms = map[string]func() hash.Hash{
	"keccak256": sha3.NewLegacyKeccak256,
	"sha3-256":  sha3.New256,
}

// documentHash returns the hex digest of r under the named algorithm.
func documentHash(r io.Reader, algo string) (string, error) {
	newHash, ok := hashAlgorithms[algo]
	if !ok {
		return "", fmt.Errorf("unsupported algorithm %q (want keccak256 or sha3-256)", algo)
	}
	h := newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

func hashCmd() *cobra.Command {
	var algo string

	cmd := &cobra.Command{
		Use:   "hash FILE",
		Short: "Print the reference hash of a document for use as credential_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			digest, err := documentHash(f, algo)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), digest)
			return err
		},
	}

	cmd.Flags().StringVar(&algo, "algo", "keccak256", "digest algorithm: keccak256 or sha3-256")
	return cmd
}
