// Package gpu inventories GPU consumption: pods claiming GPU resources on
// the cluster, and local devices via NVML when compiled in.
package gpu

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// gpuResourceNames are the extended resources counted as GPUs.
var gpuResourceNames = []corev1.ResourceName{
	"nvidia.com/gpu",
	"amd.com/gpu",
}

// PodGPUs is one pod's GPU claim.
type PodGPUs struct {
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	Node      string `json:"node,omitempty"`
	Phase     string `json:"phase"`
	// Resource names the claimed GPU resource(s), comma separated.
	Resource string `json:"resource"`
	GPUs     int64  `json:"gpus"`
}

// Inventory is the cluster-wide (or per-namespace) GPU pod listing.
type Inventory struct {
	Pods      []PodGPUs `json:"pods"`
	TotalGPUs int64     `json:"total_gpus"`
}

// ListGPUPods lists pods claiming GPU resources. An empty namespace scans
// all namespaces.
func ListGPUPods(ctx context.Context, clientset kubernetes.Interface, namespace string) (*Inventory, error) {
	pods, err := clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		scope := namespace
		if scope == "" {
			scope = "all namespaces"
		}
		return nil, fmt.Errorf("list pods in %s: %w", scope, err)
	}

	inventory := &Inventory{Pods: []PodGPUs{}}
	for i := range pods.Items {
		pod := &pods.Items[i]

		var total int64
		var resources []string
		for _, name := range gpuResourceNames {
			count := podGPUCount(pod, name)
			if count > 0 {
				total += count
				resources = append(resources, string(name))
			}
		}
		if total == 0 {
			continue
		}

		inventory.Pods = append(inventory.Pods, PodGPUs{
			Namespace: pod.Namespace,
			Pod:       pod.Name,
			Node:      pod.Spec.NodeName,
			Phase:     string(pod.Status.Phase),
			Resource:  strings.Join(resources, ","),
			GPUs:      total,
		})
		inventory.TotalGPUs += total
	}
	return inventory, nil
}

// podGPUCount sums a GPU resource over the pod's containers. Requests are
// authoritative when set; limits are the fallback (the scheduler treats
// extended resources that way).
func podGPUCount(pod *corev1.Pod, name corev1.ResourceName) int64 {
	var total int64
	for _, container := range pod.Spec.Containers {
		if quantity, ok := container.Resources.Requests[name]; ok && quantity.Value() > 0 {
			total += quantity.Value()
			continue
		}
		if quantity, ok := container.Resources.Limits[name]; ok {
			total += quantity.Value()
		}
	}
	return total
}
