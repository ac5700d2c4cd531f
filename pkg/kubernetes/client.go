package kubernetes

import (
	"context"
	"errors"
	"fmt"

	authenticationv1 "k8s.io/api/authentication/v1"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ErrNotLoggedIn signals that the API server rejected our credentials. The
// caller should tell the user to log in again rather than retry.
var ErrNotLoggedIn = errors.New("cluster session is unauthenticated")

// Client bundles the typed, dynamic and apiextensions clients sharing a
// single REST config.
type Client struct {
	RESTConfig    *rest.Config
	Clientset     kubernetes.Interface
	Dynamic       dynamic.Interface
	APIExtensions apiextensionsclientset.Interface
}

// NewClient builds a Client from the standard kubeconfig loading rules, with
// an in-cluster fallback so the same binary works from a pod.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	restCfg, err := loadRESTConfig(config.Kubeconfig)
	if err != nil {
		return nil, err
	}
	return NewClientFromRESTConfig(restCfg, config)
}

// NewClientFromRESTConfig builds a Client from an existing rest.Config.
func NewClientFromRESTConfig(restCfg *rest.Config, config *Config) (*Client, error) {
	if restCfg == nil {
		return nil, fmt.Errorf("REST config is nil")
	}
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	restCfg.QPS = config.QPS
	restCfg.Burst = config.Burst
	_ = rest.AddUserAgent(restCfg, config.UserAgent)

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("build clientset: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("build dynamic client: %w", err)
	}
	apiextensionsClient, err := apiextensionsclientset.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("build apiextensions client: %w", err)
	}

	return &Client{
		RESTConfig:    restCfg,
		Clientset:     clientset,
		Dynamic:       dynamicClient,
		APIExtensions: apiextensionsClient,
	}, nil
}

// loadRESTConfig resolves cluster credentials: explicit path or standard
// kubeconfig locations first, then the in-cluster service account.
func loadRESTConfig(explicitPath string) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	loadingRules.ExplicitPath = explicitPath

	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err == nil {
		return cfg, nil
	}

	if inCluster, icErr := rest.InClusterConfig(); icErr == nil {
		return inCluster, nil
	}

	return nil, fmt.Errorf("no usable cluster configuration (kubeconfig or in-cluster): %w", err)
}

// Ping verifies the API server answers a version probe. The discovery call
// carries no context; the parameter keeps the signature uniform for callers.
func (c *Client) Ping(_ context.Context) error {
	if _, err := c.Clientset.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("cluster API unreachable: %w", err)
	}
	return nil
}

// WhoAmI returns the username the API server sees for our credentials.
// An unauthenticated or rejected session maps to ErrNotLoggedIn so callers
// can distinguish it from connectivity problems.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	review, err := c.Clientset.AuthenticationV1().SelfSubjectReviews().Create(
		ctx, &authenticationv1.SelfSubjectReview{}, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err) {
			return "", fmt.Errorf("%w: %v", ErrNotLoggedIn, err)
		}
		return "", fmt.Errorf("query current identity: %w", err)
	}
	return review.Status.UserInfo.Username, nil
}
