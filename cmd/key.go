package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/PolarWolf314/syc/internal/ui"
	"github.com/PolarWolf314/syc/internal/utils"
	"github.com/PolarWolf314/syc/internal/workflows"
	"github.com/spf13/cobra"
)

// maxBundleBytes bounds a bundle read from stdin.
const maxBundleBytes = 64 << 10

var (
	keyIdentity         string
	keyOverwrite        bool
	keyBundleOut        string
	keyBundlePath       string
	keyExpectedIdentity string
	keyOverride         bool
	keyOut              string
)

// KeyCmd groups identity key management.
var KeyCmd = &cobra.Command{
	Use:   "key",
	Short: "Generate, import and export identity keys",
	Long: `Manages the keypairs held in the vault and the public bundles pinned for peers.

Peers are trusted on first use: the first bundle imported for an identity is
pinned, and a later bundle with a different key is refused until re-imported
with --override.`,
}

func init() {
	keyGenerateCmd.Flags().StringVar(&keyIdentity, "identity", "", "email identity to generate a key for")
	keyGenerateCmd.Flags().BoolVar(&keyOverwrite, "overwrite", false, "replace an existing key and published bundle")
	keyGenerateCmd.Flags().StringVar(&keyBundleOut, "bundle-out", "", "where to publish the public bundle, relative to the data root (default <identity>/public/crypto/did.json)")
	_ = keyGenerateCmd.MarkFlagRequired("identity")

	keyImportCmd.Flags().StringVar(&keyBundlePath, "bundle", "", "peer's did.json relative to the data root, an absolute path, or - for stdin")
	keyImportCmd.Flags().StringVar(&keyExpectedIdentity, "expected-identity", "", "identity the bundle must belong to")
	keyImportCmd.Flags().BoolVar(&keyOverride, "override", false, "re-pin an identity whose key changed")
	_ = keyImportCmd.MarkFlagRequired("bundle")
	_ = keyImportCmd.MarkFlagRequired("expected-identity")

	keyExportCmd.Flags().StringVar(&keyIdentity, "identity", "", "local identity to export")
	keyExportCmd.Flags().StringVar(&keyOut, "out", "", "file to write (default stdout)")
	_ = keyExportCmd.MarkFlagRequired("identity")

	KeyCmd.AddCommand(keyGenerateCmd)
	KeyCmd.AddCommand(keyImportCmd)
	KeyCmd.AddCommand(keyExportCmd)
}

// resetKeyCommandState resets the key commands' global state for testing.
func resetKeyCommandState() {
	keyIdentity = ""
	keyOverwrite = false
	keyBundleOut = ""
	keyBundlePath = ""
	keyExpectedIdentity = ""
	keyOverride = false
	keyOut = ""
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a keypair and publish its public bundle",
	Long: `Generates an X25519 encryption key and an Ed25519 signing key for an identity,
stores them in the vault and publishes the signed public bundle.

Examples:
  syc key generate --identity alice@example.com
  syc key generate --identity alice@example.com --overwrite`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting key generate command")
		spinner, cleanup := startSpinner("Generating key...", verbose)
		defer cleanup()

		env, err := currentEnv()
		if err != nil {
			return fail(spinner, err)
		}

		result, err := workflows.GenerateKey(context.Background(), env, workflows.GenerateKeyOptions{
			Identity:  keyIdentity,
			Overwrite: keyOverwrite,
			BundleOut: keyBundleOut,
		})
		if err != nil {
			return fail(spinner, err)
		}

		spinner.FinalMSG = success("Generated key for "+ui.Highlight.Sprint(result.Identity)) + "\n" +
			"  " + ui.Field("key id", result.KeyID) + "\n" +
			"  " + ui.Field("fingerprint", result.Fingerprint) + "\n" +
			"  " + ui.Field("bundle", ui.Path.Sprint(result.BundlePath))
		return nil
	},
}

var keyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import and pin a peer's public bundle",
	Long: `Verifies a peer's signed did.json and pins its keys for the identity.

Examples:
  syc key import --bundle bob@example.com/public/crypto/did.json --expected-identity bob@example.com
  syc key import --bundle /tmp/bob.json --expected-identity bob@example.com --override
  curl -s https://bob.example.com/did.json | syc key import --bundle - --expected-identity bob@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting key import command")
		spinner, cleanup := startSpinner("Importing bundle...", verbose)
		defer cleanup()

		env, err := currentEnv()
		if err != nil {
			return fail(spinner, err)
		}

		opts := workflows.ImportBundleOptions{
			BundlePath:       keyBundlePath,
			ExpectedIdentity: keyExpectedIdentity,
			Override:         keyOverride,
		}
		if keyBundlePath == "-" {
			if opts.BundleData, err = utils.ReadPiped(os.Stdin, maxBundleBytes); err != nil {
				return fail(spinner, err)
			}
		}

		result, err := workflows.ImportBundle(context.Background(), env, opts)
		if err != nil {
			return fail(spinner, err)
		}

		spinner.FinalMSG = success("Imported bundle for "+ui.Highlight.Sprint(result.Identity)) + "\n" +
			"  " + ui.Field("fingerprint", result.Fingerprint) + "\n" +
			"  " + ui.Field("trust", result.State)
		return nil
	},
}

var keyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a local identity's signed public bundle",
	Long: `Writes the signed public bundle of a local identity. Trust pins are not changed.

Examples:
  syc key export --identity alice@example.com
  syc key export --identity alice@example.com --out alice.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting key export command")

		env, err := currentEnv()
		if err != nil {
			fmt.Println(formatError(err))
			return reportedError{err}
		}

		result, err := workflows.ExportBundle(context.Background(), env, workflows.ExportBundleOptions{
			Identity: keyIdentity,
			Out:      keyOut,
		})
		if err != nil {
			fmt.Println(formatError(err))
			return reportedError{err}
		}

		// No spinner: the bundle itself may be the output.
		if result.Path == "" {
			fmt.Println(string(result.Data))
			return nil
		}
		fmt.Println(success("Exported bundle for " + ui.Highlight.Sprint(result.Identity) + " to " + ui.Path.Sprint(result.Path)))
		return nil
	},
}
