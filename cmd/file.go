package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/PolarWolf314/syc/internal/ui"
	"github.com/PolarWolf314/syc/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	fileRelative   string
	fileSender     string
	fileRecipients []string
	fileIdentity   string
	fileInput      string
)

// FileCmd groups file encryption commands.
var FileCmd = &cobra.Command{
	Use:   "file",
	Short: "Encrypt, decrypt, inspect and reshare files",
	Long: `Moves files between the plaintext shadow root and the encrypted datasites root.

Every encrypted file is an envelope naming its sender and recipients. Only a
listed recipient holding the matching private key can decrypt it.`,
}

func init() {
	fileEncryptCmd.Flags().StringVar(&fileRelative, "relative", "", "path below the shadow and data roots")
	fileEncryptCmd.Flags().StringVar(&fileSender, "sender", "", "local identity encrypting the file")
	fileEncryptCmd.Flags().StringArrayVar(&fileRecipients, "recipient", nil, "identity that may decrypt (repeatable, default the sender)")
	_ = fileEncryptCmd.MarkFlagRequired("relative")
	_ = fileEncryptCmd.MarkFlagRequired("sender")

	fileDecryptCmd.Flags().StringVar(&fileRelative, "relative", "", "path below the data and shadow roots")
	fileDecryptCmd.Flags().StringVar(&fileIdentity, "identity", "", "local identity decrypting the file")
	_ = fileDecryptCmd.MarkFlagRequired("relative")
	_ = fileDecryptCmd.MarkFlagRequired("identity")

	fileInspectCmd.Flags().StringVar(&fileInput, "input", "", "envelope file to inspect, relative to the data root or absolute")
	fileInspectCmd.Flags().StringVar(&fileIdentity, "identity", "", "check this identity against the recipients")
	_ = fileInspectCmd.MarkFlagRequired("input")

	fileReshareCmd.Flags().StringVar(&fileRelative, "relative", "", "path below the data root")
	fileReshareCmd.Flags().StringVar(&fileIdentity, "identity", "", "current recipient performing the reshare")
	fileReshareCmd.Flags().StringArrayVar(&fileRecipients, "recipient", nil, "identity that may decrypt afterwards (repeatable)")
	_ = fileReshareCmd.MarkFlagRequired("relative")
	_ = fileReshareCmd.MarkFlagRequired("identity")
	_ = fileReshareCmd.MarkFlagRequired("recipient")

	FileCmd.AddCommand(fileEncryptCmd)
	FileCmd.AddCommand(fileDecryptCmd)
	FileCmd.AddCommand(fileInspectCmd)
	FileCmd.AddCommand(fileReshareCmd)
}

// resetFileCommandState resets the file commands' global state for testing.
func resetFileCommandState() {
	fileRelative = ""
	fileSender = ""
	fileRecipients = nil
	fileIdentity = ""
	fileInput = ""
}

var fileEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a shadow-root file into the datasites root",
	Long: `Encrypts <shadow-root>/<relative> for the given recipients and writes the
envelope to <data-root>/<relative>.

Examples:
  syc file encrypt --relative alice@example.com/shared/notes.txt \
    --sender alice@example.com --recipient alice@example.com --recipient bob@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting file encrypt command")
		spinner, cleanup := startSpinner("Encrypting file...", verbose)
		defer cleanup()

		env, err := currentEnv()
		if err != nil {
			return fail(spinner, err)
		}

		result, err := workflows.EncryptFile(context.Background(), env, workflows.EncryptFileOptions{
			Relative:   fileRelative,
			Sender:     fileSender,
			Recipients: fileRecipients,
		})
		if err != nil {
			return fail(spinner, err)
		}

		spinner.FinalMSG = success("Encrypted "+ui.Path.Sprint(fileRelative)+" for:") + "\n" + ui.List(result.Recipients)
		return nil
	},
}

var fileDecryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt a datasites-root file into the shadow root",
	Long: `Decrypts <data-root>/<relative> with the identity's private key and writes the
plaintext to <shadow-root>/<relative>.

Examples:
  syc file decrypt --relative alice@example.com/shared/notes.txt --identity bob@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting file decrypt command")
		spinner, cleanup := startSpinner("Decrypting file...", verbose)
		defer cleanup()

		env, err := currentEnv()
		if err != nil {
			return fail(spinner, err)
		}

		result, err := workflows.DecryptFile(context.Background(), env, workflows.DecryptFileOptions{
			Relative: fileRelative,
			Identity: fileIdentity,
		})
		if err != nil {
			return fail(spinner, err)
		}

		spinner.FinalMSG = success("Decrypted "+ui.Path.Sprint(fileRelative)+" from "+ui.Highlight.Sprint(result.Sender)) + "\n" +
			"  " + ui.Field("written to", ui.Path.Sprint(result.Target))
		return nil
	},
}

var fileInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show an envelope's public metadata",
	Long: `Prints the sender and recipients of an envelope. No key is needed. With
--identity, reports whether that identity can decrypt the file.

Examples:
  syc file inspect --input alice@example.com/shared/notes.txt
  syc file inspect --input /tmp/notes.txt --identity bob@example.com --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting file inspect command")

		env, err := currentEnv()
		if err != nil {
			fmt.Println(formatError(err))
			return reportedError{err}
		}

		result, err := workflows.InspectFile(context.Background(), env, workflows.InspectFileOptions{
			Input:    fileInput,
			Identity: fileIdentity,
		})
		if err != nil {
			fmt.Println(formatError(err))
			return reportedError{err}
		}

		fmt.Print(formatMetadata(result, verbose))
		return nil
	},
}

func formatMetadata(result *workflows.InspectFileResult, verbose bool) string {
	meta := result.Metadata
	var b strings.Builder
	line := func(label string, value interface{}) {
		b.WriteString(ui.Field(label, value))
		b.WriteString("\n")
	}

	line("envelope magic", meta.Magic)
	line("version", meta.Version)
	line("sender", meta.Sender)
	line("recipients", len(meta.Recipients))
	if verbose {
		line("sender fingerprint", meta.SenderFingerprint)
		line("suite", meta.Suite)
		line("prelude bytes", meta.PreludeSize)
		line("ciphertext bytes", meta.CiphertextSize)
		b.WriteString(ui.List(meta.Recipients))
	}

	if fileIdentity != "" {
		switch {
		case result.Verified:
			b.WriteString(success(ui.Highlight.Sprint(fileIdentity)+" can decrypt this file") + "\n")
		case result.IsRecipient:
			b.WriteString(ui.Info.Sprint("ℹ") + " " + ui.Highlight.Sprint(fileIdentity) + " is a recipient " + ui.Muted.Sprint("no local key to verify") + "\n")
		default:
			b.WriteString(ui.Error.Sprint("✗") + " " + ui.Highlight.Sprint(fileIdentity) + " is not a recipient\n")
		}
	}
	return b.String()
}

var fileReshareCmd = &cobra.Command{
	Use:   "reshare",
	Short: "Re-encrypt a file for a new set of recipients",
	Long: `Decrypts a file as a current recipient and re-encrypts it for a new recipient
list. Use it when an identity gains read access after the file was written.

Examples:
  syc file reshare --relative alice@example.com/shared/notes.txt --identity alice@example.com \
    --recipient alice@example.com --recipient bob@example.com --recipient charlie@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting file reshare command")
		spinner, cleanup := startSpinner("Resharing file...", verbose)
		defer cleanup()

		env, err := currentEnv()
		if err != nil {
			return fail(spinner, err)
		}

		result, err := workflows.ReshareFile(context.Background(), env, workflows.ReshareFileOptions{
			Relative:   fileRelative,
			Holder:     fileIdentity,
			Recipients: fileRecipients,
		})
		if err != nil {
			return fail(spinner, err)
		}

		spinner.FinalMSG = success("Reshared "+ui.Path.Sprint(fileRelative)+" for:") + "\n" + ui.List(result.Recipients)
		return nil
	},
}
