package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	k8s "k8s.io/client-go/kubernetes"

	"github.com/erwangranger/RHAI3-demo/pkg/namespace"
	"github.com/erwangranger/RHAI3-demo/pkg/registry"
	"github.com/erwangranger/RHAI3-demo/pkg/serving"
)

var (
	upDisplayName      string
	upDescription      string
	upModelURI         string
	upProfilePath      string
	upRegistryURIs     []string
	upRegistryUser     string
	upRegistryPassword string
	upRegistryEmail    string
	upWait             bool
	upMaxWait          int
	upDryRun           bool
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Provision the demo namespace and deploy the model",
	Long: `Provision everything the demo needs: the namespace with its dashboard
labels, pull secrets for the model registries, and the KServe
InferenceService that serves the model.

Every step is idempotent, so rerunning up converges an existing namespace
instead of failing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		profile, err := buildProfile()
		if err != nil {
			return err
		}

		if upDryRun {
			manifest, err := serving.RenderYAML(namespaceName, profile)
			if err != nil {
				return err
			}
			fmt.Print(manifest)
			return nil
		}

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
		if err := manager.Ensure(ctx, &namespace.Spec{
			Name:        namespaceName,
			DisplayName: upDisplayName,
			Description: upDescription,
		}); err != nil {
			return err
		}

		modelSecret, err := applyPullSecrets(ctx, client.Clientset, manager, profile)
		if err != nil {
			return err
		}
		if profile.PullSecret == "" {
			profile.PullSecret = modelSecret
		}

		deployer := serving.NewDeployer(client.Dynamic, client.APIExtensions)
		if err := deployer.CheckServingCRD(ctx); err != nil {
			return &ExitError{Code: ExitPrecondition, Err: err}
		}
		if _, err := deployer.Deploy(ctx, namespaceName, profile); err != nil {
			return err
		}

		if upWait {
			timeout := time.Duration(upMaxWait) * time.Second
			if err := deployer.AwaitReady(ctx, namespaceName, profile.Name, timeout); err != nil {
				return &ExitError{Code: ExitTimedOut, Err: err}
			}
		}

		log.Printf("🎉 Namespace %q is up, model %q serving as InferenceService %q",
			namespaceName, profile.ModelURI, profile.Name)
		return nil
	},
}

// buildProfile resolves the model profile: defaults, then the profile file,
// then flag overrides.
func buildProfile() (*serving.Profile, error) {
	profile := serving.DefaultProfile()
	if upProfilePath != "" {
		loaded, err := serving.LoadProfile(upProfilePath)
		if err != nil {
			return nil, err
		}
		profile = loaded
	}
	if upModelURI != "" {
		profile.ModelURI = upModelURI
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// applyPullSecrets creates or refreshes one pull secret per registry and
// links them to the namespace default service account. Without credentials
// the step is skipped, which is fine for public registries. Returns the
// secret backing the first registry so the deployment can reference it.
func applyPullSecrets(ctx context.Context, clientset k8s.Interface, manager *namespace.Manager, profile *serving.Profile) (string, error) {
	creds := registry.Credentials{
		Username: upRegistryUser,
		Password: upRegistryPassword,
		Email:    upRegistryEmail,
	}
	if creds.Empty() {
		if len(upRegistryURIs) > 0 {
			return "", fmt.Errorf("registry credentials required for %d registry URIs: set --registry-user and --registry-password (or REGISTRY_USER/REGISTRY_PASSWORD)", len(upRegistryURIs))
		}
		log.Printf("💤 No registry credentials provided, skipping pull secret setup")
		return "", nil
	}

	uris := upRegistryURIs
	if len(uris) == 0 {
		uris = []string{profile.ModelURI}
	}

	var modelSecret string
	for _, uri := range uris {
		ref, err := registry.ParseURI(uri)
		if err != nil {
			return "", fmt.Errorf("registry URI %q: %w", uri, err)
		}

		secret, err := registry.BuildPullSecret(ref, creds)
		if err != nil {
			return "", err
		}
		if err := registry.Apply(ctx, clientset, namespaceName, secret); err != nil {
			return "", err
		}
		if err := manager.AttachPullSecret(ctx, namespaceName, secret.Name); err != nil {
			return "", err
		}

		if modelSecret == "" {
			modelSecret = secret.Name
		}
	}
	return modelSecret, nil
}

func init() {
	rootCmd.AddCommand(upCmd)

	upCmd.Flags().StringVar(&upDisplayName, "display-name", getEnvOrDefault("DISPLAY_NAME", "RH AI 3.0 Demo"), "Display name shown on the OpenShift AI dashboard")
	upCmd.Flags().StringVar(&upDescription, "description", "Namespace for the RH AI 3.0 demo", "Namespace description")
	upCmd.Flags().StringVar(&upModelURI, "model-uri", getEnvOrDefault("MODEL_URI", ""), "Model image URI (overrides the profile)")
	upCmd.Flags().StringVar(&upProfilePath, "profile", "", "Path to a YAML model profile")
	upCmd.Flags().StringArrayVar(&upRegistryURIs, "registry-uri", nil, "Registry URI to create a pull secret for (repeatable; defaults to the model registry)")
	upCmd.Flags().StringVar(&upRegistryUser, "registry-user", getEnvOrDefault("REGISTRY_USER", ""), "Registry username")
	upCmd.Flags().StringVar(&upRegistryPassword, "registry-password", getEnvOrDefault("REGISTRY_PASSWORD", ""), "Registry password or token")
	upCmd.Flags().StringVar(&upRegistryEmail, "registry-email", getEnvOrDefault("REGISTRY_EMAIL", ""), "Registry account email")
	upCmd.Flags().BoolVar(&upWait, "wait", false, "Wait for the InferenceService to report Ready")
	upCmd.Flags().IntVar(&upMaxWait, "max-wait", getEnvIntOrDefault("MAX_WAIT_TIME", 300), "Maximum seconds to wait for readiness with --wait")
	upCmd.Flags().BoolVar(&upDryRun, "dry-run", false, "Print the InferenceService manifest without touching the cluster")
}
