package cmd

import (
	"errors"

	"github.com/PolarWolf314/syc/internal/configs"
	logger "github.com/PolarWolf314/syc/internal/logging"
	"github.com/PolarWolf314/syc/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	debug      bool
	vaultPath  string
	dataRoot   string
	shadowRoot string
	Logger     logger.Logger

	RootCmd = &cobra.Command{
		Use:   "syc",
		Short: "syc - recipient-bound envelope encryption for synced datasites",
		Long: `syc encrypts files in a synced datasite so that only the identities named
as recipients can read them, gates access with syft.pub.yaml rules and records
every access attempt in a per-user access log.

Usage:
  syc <command> [flags]

Available Commands:
  key      Generate, import and export identity keys
  file     Encrypt, decrypt, inspect and reshare files
  log      View the access log
  serve    Run the sync gate
  acl      Inspect access rules

Run 'syc help <command>' for more details on a specific command.
`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.CommandPath(), verbose, debug)
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "vault directory (default $SYC_VAULT or ~/.syc)")
	RootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "encrypted datasites root (overrides datasite.json)")
	RootCmd.PersistentFlags().StringVar(&shadowRoot, "shadow-root", "", "plaintext shadow root (overrides datasite.json)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	RootCmd.AddCommand(KeyCmd)
	RootCmd.AddCommand(FileCmd)
	RootCmd.AddCommand(logCmd)
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(AclCmd)
}

// currentEnv resolves the vault selected by the global flags.
func currentEnv() (workflows.Env, error) {
	settings, err := configs.NewSettings(vaultPath, dataRoot, shadowRoot)
	if err != nil {
		return workflows.Env{}, err
	}
	Logger.Debugf("Vault: %s, data root: %s, shadow root: %s", settings.VaultPath, settings.DataRoot, settings.ShadowRoot)
	return workflows.Env{Settings: settings, Log: Logger}, nil
}

// reportedError marks an error whose message was already shown to the user.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already printed by a command.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	vaultPath = ""
	dataRoot = ""
	shadowRoot = ""
	resetKeyCommandState()
	resetFileCommandState()
	resetLogCommandState()
	resetServeCommandState()
	resetAclCommandState()
}
