package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/erwangranger/RHAI3-demo/pkg/rbac"
	"github.com/erwangranger/RHAI3-demo/pkg/serving"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check cluster login, RBAC permissions and the serving stack",
	Long: `Run every precondition the demo needs before touching the cluster: a
logged-in session, the RBAC permissions for provisioning and teardown, and
an installed, established model serving CRD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := newKubeClient()
		if err != nil {
			return err
		}
		user, err := checkPreconditions(ctx, client)
		if err != nil {
			return err
		}
		log.Printf("🔐 Logged in as %s", user)

		if err := rbac.VerifyPermissions(ctx, client.Clientset, namespaceName); err != nil {
			return &ExitError{Code: ExitPrecondition, Err: err}
		}
		log.Printf("✅ All required permissions granted for namespace %q", namespaceName)

		deployer := serving.NewDeployer(client.Dynamic, client.APIExtensions)
		if err := deployer.CheckServingCRD(ctx); err != nil {
			return &ExitError{Code: ExitPrecondition, Err: err}
		}
		log.Printf("✅ Model serving CRD is installed and established")

		log.Printf("🎉 Cluster is ready for the demo")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
