package cmd

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/syc/internal/ui"
	"github.com/PolarWolf314/syc/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	aclPath       string
	aclIdentity   string
	aclCapability string
	aclDir        string
	aclPattern    string
	aclGrantees   []string
)

// AclCmd groups access rule tooling.
var AclCmd = &cobra.Command{
	Use:   "acl",
	Short: "Inspect and edit syft.pub.yaml access rules",
}

func init() {
	aclCheckCmd.Flags().StringVar(&aclPath, "path", "", "path relative to the encrypted root")
	aclCheckCmd.Flags().StringVar(&aclIdentity, "identity", "", "requesting identity (default anonymous)")
	aclCheckCmd.Flags().StringVar(&aclCapability, "capability", "read", "read, write or admin")
	_ = aclCheckCmd.MarkFlagRequired("path")

	aclGrantCmd.Flags().StringVar(&aclDir, "dir", "", "directory holding the rule file, relative to the encrypted root")
	aclGrantCmd.Flags().StringVar(&aclPattern, "pattern", "**", "rule pattern, relative to the directory")
	aclGrantCmd.Flags().StringVar(&aclCapability, "capability", "read", "read, write or admin")
	aclGrantCmd.Flags().StringArrayVar(&aclGrantees, "identity", nil, "identity to grant (repeatable, * for everyone)")
	_ = aclGrantCmd.MarkFlagRequired("dir")
	_ = aclGrantCmd.MarkFlagRequired("identity")

	AclCmd.AddCommand(aclCheckCmd)
	AclCmd.AddCommand(aclGrantCmd)
}

// resetAclCommandState resets the acl command's global state for testing.
func resetAclCommandState() {
	aclPath = ""
	aclIdentity = ""
	aclCapability = "read"
	aclDir = ""
	aclPattern = "**"
	aclGrantees = nil
}

var aclCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Show how the rules decide one access",
	Long: `Evaluates the rules under the encrypted root the way the gate does and
prints the decision with the deciding rule. Nothing is accessed or logged.

Examples:
  syc acl check --path alice@example.com/shared/hello.txt --identity bob@example.com
  syc acl check --path alice@example.com/shared/syft.pub.yaml --capability admin --identity bob@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting acl check command")
		spinner, cleanup := startSpinner("Evaluating rules...", verbose)
		defer cleanup()

		env, err := currentEnv()
		if err != nil {
			return fail(spinner, err)
		}

		result, err := workflows.CheckAccess(context.Background(), env, workflows.CheckAccessOptions{
			Path:       aclPath,
			Identity:   aclIdentity,
			Capability: aclCapability,
		})
		if err != nil {
			return fail(spinner, err)
		}

		who := "anyone"
		if aclIdentity != "" {
			who = ui.Highlight.Sprint(aclIdentity)
		}
		var msg string
		if result.Decision.Allowed {
			msg = success(fmt.Sprintf("%s may %s %s", who, result.Capability, ui.Path.Sprint(aclPath)))
		} else {
			msg = ui.Error.Sprint("✗") + " " + fmt.Sprintf("%s may not %s %s", who, result.Capability, ui.Path.Sprint(aclPath))
		}
		msg += "\n  " + ui.Field("reason", result.Decision.Reason)
		if result.Decision.Pattern != "" {
			msg += "\n  " + ui.Field("rule", result.Decision.Dir+" "+result.Decision.Pattern)
		}
		if verbose {
			msg += "\n  " + ui.Field("rule files", len(result.RuleDirs)) + "\n" + ui.List(result.RuleDirs)
		}
		spinner.FinalMSG = msg
		return nil
	},
}

var aclGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant identities a capability in a rule file",
	Long: `Adds identities to the rule for a pattern in a directory's syft.pub.yaml,
creating the file or the rule if needed. Other rules are kept.

Identities granted access after a file was encrypted still need a recipient
entry; see 'syc file reshare'.

Examples:
  syc acl grant --dir alice@example.com/shared --identity bob@example.com
  syc acl grant --dir alice@example.com/public --identity '*'
  syc acl grant --dir alice@example.com/shared --pattern "*.csv" --capability write --identity bob@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting acl grant command")
		spinner, cleanup := startSpinner("Updating rules...", verbose)
		defer cleanup()

		env, err := currentEnv()
		if err != nil {
			return fail(spinner, err)
		}

		result, err := workflows.GrantAccess(context.Background(), env, workflows.GrantAccessOptions{
			Dir:        aclDir,
			Pattern:    aclPattern,
			Capability: aclCapability,
			Identities: aclGrantees,
		})
		if err != nil {
			return fail(spinner, err)
		}

		if len(result.Added) == 0 {
			spinner.FinalMSG = ui.Info.Sprint("ℹ") + " Nothing to change; every identity already holds " + aclCapability + " on " + ui.Path.Sprint(result.Rule.Pattern)
			return nil
		}
		spinner.FinalMSG = success(fmt.Sprintf("Granted %s on %s in %s to:", aclCapability, ui.Path.Sprint(result.Rule.Pattern), ui.Path.Sprint(result.Path))) + "\n" +
			ui.List(result.Added)
		return nil
	},
}
