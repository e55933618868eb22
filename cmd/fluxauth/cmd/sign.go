package cmd

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/fluxauth/adapters/verifier"
	"github.com/spf13/cobra"
)

var (
	signKey          string
	signMessage      string
	signUncompressed bool
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a message with a secp256k1 key",
	Long: `Prints the address of the key and a Bitcoin signed-message signature
over the message, in the form accepted by /id/verifylogin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(signKey, "0x"))
		if err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}
		compressed := !signUncompressed
		sig, err := verifier.Sign(signMessage, key, compressed)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "address:   %s\n", verifier.AddressFromPubKey(&key.PublicKey, compressed))
		fmt.Fprintf(out, "signature: %s\n", sig)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVar(&signKey, "key", "", "Hex encoded private key")
	signCmd.Flags().StringVarP(&signMessage, "message", "m", "", "Message to sign")
	signCmd.Flags().BoolVar(&signUncompressed, "uncompressed", false, "Use the uncompressed public key address")
	_ = signCmd.MarkFlagRequired("key")
	_ = signCmd.MarkFlagRequired("message")
}
