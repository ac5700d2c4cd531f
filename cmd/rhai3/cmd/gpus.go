package cmd

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/erwangranger/RHAI3-demo/pkg/gpu"
)

var (
	gpusAllNamespaces bool
	gpusJSON          bool
	gpusLocal         bool
)

var gpusCmd = &cobra.Command{
	Use:   "gpus",
	Short: "List pods requesting GPUs, or local devices with --local",
	Long: `Scan the cluster for pods requesting GPU resources (nvidia.com/gpu,
amd.com/gpu) and report who holds them. With --local, query the NVIDIA
devices of this machine through NVML instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if gpusLocal {
			return runLocalGPUs()
		}

		ctx := cmd.Context()

		client, err := newKubeClient()
		if err != nil {
			return err
		}

		scope := namespaceName
		if gpusAllNamespaces {
			scope = ""
		}

		inventory, err := gpu.ListGPUPods(ctx, client.Clientset, scope)
		if err != nil {
			return err
		}

		if gpusJSON {
			return printJSON(inventory)
		}
		fmt.Print(renderGPUTable(inventory))
		return nil
	},
}

// renderGPUTable formats the inventory the way demo operators read it live.
func renderGPUTable(inventory *gpu.Inventory) string {
	if len(inventory.Pods) == 0 {
		return "No pods requesting GPUs found\n"
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("NAMESPACE", "POD", "NODE", "PHASE", "RESOURCE", "GPUS")
	for _, pod := range inventory.Pods {
		table.AddRow(pod.Namespace, pod.Pod, pod.Node, pod.Phase, pod.Resource, fmt.Sprintf("%d", pod.GPUs))
	}

	return fmt.Sprintf("%s\n\nTotal GPUs requested: %d across %d pods\n",
		table.String(), inventory.TotalGPUs, len(inventory.Pods))
}

func runLocalGPUs() error {
	devices, err := gpu.LocalDevices()
	if err != nil {
		return fmt.Errorf("local GPU query failed: %w", err)
	}

	if gpusJSON {
		return printJSON(devices)
	}
	if len(devices) == 0 {
		fmt.Println("No local NVIDIA devices found")
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("INDEX", "NAME", "MEMORY", "UTIL", "TEMP")
	for _, d := range devices {
		table.AddRow(
			fmt.Sprintf("%d", d.Index),
			d.Name,
			fmt.Sprintf("%d/%d MiB", d.MemoryUsedMB, d.MemoryTotalMB),
			fmt.Sprintf("%.0f%%", d.UtilizationPercent),
			fmt.Sprintf("%d°C", d.TemperatureC),
		)
	}
	fmt.Println(table.String())
	return nil
}

func init() {
	rootCmd.AddCommand(gpusCmd)

	gpusCmd.Flags().BoolVarP(&gpusAllNamespaces, "all-namespaces", "A", false, "Scan every namespace instead of the demo namespace")
	gpusCmd.Flags().BoolVar(&gpusJSON, "json", false, "Print JSON instead of a table")
	gpusCmd.Flags().BoolVar(&gpusLocal, "local", false, "Query local NVIDIA devices through NVML")
}
