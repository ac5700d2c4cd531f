// Package kubernetes provides construction of the clients used to talk to the
// demo cluster.
package kubernetes

// Config holds the cluster connection configuration
type Config struct {
	// Kubeconfig is an explicit kubeconfig path. When empty the standard
	// loading rules apply ($KUBECONFIG, then ~/.kube/config), with an
	// in-cluster fallback for pod deployments.
	Kubeconfig string
	// UserAgent identifies this tool to the API server.
	UserAgent string
	QPS       float32
	Burst     int
}

// applyDefaults applies reasonable defaults if not set.
func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = "rhai3-demo"
	}
	if c.QPS <= 0 {
		c.QPS = 20
	}
	if c.Burst <= 0 {
		c.Burst = 50
	}
}
