// Package cmd implements the rhai3 command tree.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	kubeclient "github.com/erwangranger/RHAI3-demo/pkg/kubernetes"
)

// Exit codes for the terminal states of the lifecycle flows. Success and
// nothing-to-delete exit 0; anything unclassified exits 1.
const (
	ExitPrecondition  = 2
	ExitTimedOut      = 3
	ExitRequestFailed = 4
	ExitCheckFailed   = 5
)

// ExitError carries a process exit code alongside its cause.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

var (
	namespaceName  string
	kubeconfigPath string
)

var rootCmd = &cobra.Command{
	Use:   "rhai3",
	Short: "Provision and tear down the RH AI 3.0 demo on an OpenShift AI cluster",
	Long: `rhai3 drives the full lifecycle of the RH AI 3.0 demo: it provisions the
demo namespace with pull secrets and a model deployment, reports GPU usage,
smoke-tests the served model, and tears everything down again while waiting
for the deletion to converge.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion wires build metadata into the version output.
func SetVersion(version, commit, date string) {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&namespaceName, "namespace", getEnvOrDefault("NAMESPACE", "demo-rh-ai-3-0"), "Demo namespace")
	rootCmd.PersistentFlags().StringVar(&kubeconfigPath, "kubeconfig", getEnvOrDefault("KUBECONFIG", ""), "Path to the kubeconfig (defaults to standard loading rules)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️  Ignoring non-numeric %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// newKubeClient builds the cluster client. A missing kubeconfig counts as a
// precondition failure, like the cluster tool not being installed.
func newKubeClient() (*kubeclient.Client, error) {
	client, err := kubeclient.NewClient(&kubeclient.Config{Kubeconfig: kubeconfigPath})
	if err != nil {
		return nil, &ExitError{Code: ExitPrecondition, Err: err}
	}
	return client, nil
}

// checkPreconditions verifies the cluster session is authenticated and
// returns the logged-in username.
func checkPreconditions(ctx context.Context, client *kubeclient.Client) (string, error) {
	user, err := client.WhoAmI(ctx)
	if err != nil {
		if errors.Is(err, kubeclient.ErrNotLoggedIn) {
			return "", &ExitError{Code: ExitPrecondition, Err: fmt.Errorf("%v: log in (oc login) and retry", err)}
		}
		return "", &ExitError{Code: ExitPrecondition, Err: err}
	}
	return user, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
