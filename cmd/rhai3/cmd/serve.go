package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	k8s "k8s.io/client-go/kubernetes"

	"github.com/erwangranger/RHAI3-demo/pkg/gpu"
	"github.com/erwangranger/RHAI3-demo/pkg/namespace"
	"github.com/erwangranger/RHAI3-demo/pkg/server"
	"github.com/erwangranger/RHAI3-demo/pkg/stats"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control surface",
	Long: `Start the HTTP server that exposes the demo lifecycle:

- health and readiness probes
- the GPU pod inventory as JSON
- namespace status and teardown
- Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newKubeClient()
		if err != nil {
			return err
		}

		manager := namespace.NewManager(client.Clientset)
		recorder := stats.NewMetricsRecorder()

		srv := server.New(
			&server.Config{Port: servePort, Namespace: namespaceName},
			manager,
			clusterGPUs{clientset: client.Clientset},
			client,
			recorder,
		)

		log.Printf("   Teardown endpoint: POST /api/v1/namespaces/%s/teardown", namespaceName)
		return srv.Start()
	},
}

// clusterGPUs adapts the inventory scan to the server's lister interface.
type clusterGPUs struct {
	clientset k8s.Interface
}

func (c clusterGPUs) ListGPUPods(ctx context.Context, namespace string) (*gpu.Inventory, error) {
	return gpu.ListGPUPods(ctx, c.clientset, namespace)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", getEnvOrDefault("PORT", server.DefaultPort), "HTTP server port")
}
