package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/erwangranger/RHAI3-demo/pkg/namespace"
	"github.com/erwangranger/RHAI3-demo/pkg/waiter"
)

var (
	downMaxWait      int
	downPollInterval int
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Tear down the demo namespace and wait for it to disappear",
	Long: `Delete the demo namespace and poll until the cluster confirms it is gone.

The namespace is checked immediately after the deletion request, then every
poll interval until it disappears or the maximum wait elapses. Namespace
deletion cascades, so this removes the model deployment and pull secrets too.`,
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

		manager := namespace.NewManager(client.Clientset)
		config := waiter.Config{
			Kind:         "namespace",
			MaxWait:      time.Duration(downMaxWait) * time.Second,
			PollInterval: time.Duration(downPollInterval) * time.Second,
		}
		if err := config.Validate(); err != nil {
			return err
		}

		return runTeardown(ctx, manager, config, namespaceName)
	},
}

// runTeardown drives the delete-and-wait flow and maps every terminal state
// to its exit code. A namespace that is already gone, before or during the
// deletion request, is success with nothing to do.
func runTeardown(ctx context.Context, resources waiter.ResourceClient, config waiter.Config, name string) error {
	exists, err := resources.Exists(ctx, name)
	if err != nil {
		return &ExitError{Code: ExitCheckFailed, Err: fmt.Errorf("existence pre-check for namespace %q failed: %w", name, err)}
	}
	if !exists {
		log.Printf("✅ Namespace %q does not exist, nothing to delete", name)
		return nil
	}

	w := waiter.New(resources, config)

	if err := w.RequestDeletion(ctx, name); err != nil {
		if errors.Is(err, waiter.ErrNotFound) {
			// Gone between the pre-check and the request.
			log.Printf("✅ Namespace %q does not exist, nothing to delete", name)
			return nil
		}
		return &ExitError{Code: ExitRequestFailed, Err: err}
	}

	result, err := w.AwaitAbsence(ctx, name)
	if err != nil {
		return &ExitError{Code: ExitCheckFailed, Err: err}
	}

	switch result.Outcome {
	case waiter.OutcomeDeleted:
		log.Printf("🎉 Teardown complete: namespace %q deleted after %ds (%d checks)",
			name, result.ElapsedSeconds(), result.Checks)
		return nil
	case waiter.OutcomeTimedOut:
		return &ExitError{
			Code: ExitTimedOut,
			Err: fmt.Errorf("namespace %q still terminating after %ds; check progress with: kubectl get namespace %s",
				name, result.ElapsedSeconds(), name),
		}
	default:
		return fmt.Errorf("wait for namespace %q ended in unexpected state %q", name, result.Outcome)
	}
}

func init() {
	rootCmd.AddCommand(downCmd)

	downCmd.Flags().IntVar(&downMaxWait, "max-wait", getEnvIntOrDefault("MAX_WAIT_TIME", 300), "Maximum seconds to wait for the namespace to disappear")
	downCmd.Flags().IntVar(&downPollInterval, "poll-interval", getEnvIntOrDefault("POLL_INTERVAL", 5), "Seconds between existence checks")
}
