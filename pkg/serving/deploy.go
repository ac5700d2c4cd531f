package serving

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/dynamic"
	sigsyaml "sigs.k8s.io/yaml"
)

// servingCRDName is the CRD the model serving stack installs.
const servingCRDName = "inferenceservices.serving.kserve.io"

var inferenceServiceGVR = schema.GroupVersionResource{
	Group:    "serving.kserve.io",
	Version:  "v1beta1",
	Resource: "inferenceservices",
}

// Deployer manages InferenceServices through the dynamic client.
type Deployer struct {
	dynamicClient dynamic.Interface
	apiextensions apiextensionsclientset.Interface
}

// NewDeployer creates a Deployer.
func NewDeployer(dynamicClient dynamic.Interface, apiextensions apiextensionsclientset.Interface) *Deployer {
	return &Deployer{
		dynamicClient: dynamicClient,
		apiextensions: apiextensions,
	}
}

// CheckServingCRD verifies the InferenceService CRD is installed and
// established. Deploying without it would produce an opaque API error, so
// this runs as a precondition with install guidance.
func (d *Deployer) CheckServingCRD(ctx context.Context) error {
	crd, err := d.apiextensions.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, servingCRDName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("InferenceService CRD not found: enable the model serving component of OpenShift AI (or install KServe) before deploying")
		}
		return fmt.Errorf("check InferenceService CRD: %w", err)
	}

	for _, condition := range crd.Status.Conditions {
		if condition.Type == apiextensionsv1.Established && condition.Status == apiextensionsv1.ConditionTrue {
			return nil
		}
	}
	return fmt.Errorf("InferenceService CRD exists but is not established yet; wait for the serving stack to finish initializing")
}

// BuildInferenceService renders the InferenceService object for a profile.
func BuildInferenceService(namespace string, profile *Profile) *unstructured.Unstructured {
	model := map[string]interface{}{
		"modelFormat": map[string]interface{}{
			"name": profile.Format,
		},
		"runtime":    profile.Runtime,
		"storageUri": profile.ModelURI,
	}
	if profile.GPUs > 0 {
		gpus := strconv.Itoa(profile.GPUs)
		model["resources"] = map[string]interface{}{
			"requests": map[string]interface{}{"nvidia.com/gpu": gpus},
			"limits":   map[string]interface{}{"nvidia.com/gpu": gpus},
		}
	}

	predictor := map[string]interface{}{
		"minReplicas": int64(profile.Replicas),
		"maxReplicas": int64(profile.Replicas),
		"model":       model,
	}
	if profile.PullSecret != "" {
		predictor["imagePullSecrets"] = []interface{}{
			map[string]interface{}{"name": profile.PullSecret},
		}
	}

	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": inferenceServiceGVR.Group + "/" + inferenceServiceGVR.Version,
			"kind":       "InferenceService",
			"metadata": map[string]interface{}{
				"name":      profile.Name,
				"namespace": namespace,
				"labels": map[string]interface{}{
					"app.kubernetes.io/managed-by": "rhai3",
					"opendatahub.io/dashboard":     "true",
				},
				"annotations": map[string]interface{}{
					"openshift.io/display-name":        profile.DisplayName,
					"serving.kserve.io/deploymentMode": "RawDeployment",
				},
			},
			"spec": map[string]interface{}{
				"predictor": predictor,
			},
		},
	}
}

// RenderYAML returns the InferenceService manifest as YAML for dry runs.
func RenderYAML(namespace string, profile *Profile) (string, error) {
	obj := BuildInferenceService(namespace, profile)
	data, err := sigsyaml.Marshal(obj.Object)
	if err != nil {
		return "", fmt.Errorf("render InferenceService manifest: %w", err)
	}
	return string(data), nil
}

// Deploy creates the InferenceService, or replaces the spec of an existing
// one. Idempotent.
func (d *Deployer) Deploy(ctx context.Context, namespace string, profile *Profile) (*unstructured.Unstructured, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	desired := BuildInferenceService(namespace, profile)
	client := d.dynamicClient.Resource(inferenceServiceGVR).Namespace(namespace)

	existing, err := client.Get(ctx, profile.Name, metav1.GetOptions{})
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("get InferenceService %s/%s: %w", namespace, profile.Name, err)
		}
		created, err := client.Create(ctx, desired, metav1.CreateOptions{})
		if err != nil {
			return nil, fmt.Errorf("create InferenceService %s/%s: %w", namespace, profile.Name, err)
		}
		log.Printf("🚀 InferenceService %s/%s created (model %s)", namespace, profile.Name, profile.ModelURI)
		return created, nil
	}

	existing.Object["spec"] = desired.Object["spec"]
	mergeStringMap(existing, desired, "labels")
	mergeStringMap(existing, desired, "annotations")
	updated, err := client.Update(ctx, existing, metav1.UpdateOptions{})
	if err != nil {
		return nil, fmt.Errorf("update InferenceService %s/%s: %w", namespace, profile.Name, err)
	}
	log.Printf("🔄 InferenceService %s/%s updated (model %s)", namespace, profile.Name, profile.ModelURI)
	return updated, nil
}

// mergeStringMap copies desired metadata.<field> entries over existing ones.
func mergeStringMap(existing, desired *unstructured.Unstructured, field string) {
	desiredMap, found, _ := unstructured.NestedStringMap(desired.Object, "metadata", field)
	if !found {
		return
	}
	existingMap, found, _ := unstructured.NestedStringMap(existing.Object, "metadata", field)
	if !found || existingMap == nil {
		existingMap = map[string]string{}
	}
	for k, v := range desiredMap {
		existingMap[k] = v
	}
	_ = unstructured.SetNestedStringMap(existing.Object, existingMap, "metadata", field)
}

// Delete removes the InferenceService. Missing services are not an error.
func (d *Deployer) Delete(ctx context.Context, namespace, name string) error {
	err := d.dynamicClient.Resource(inferenceServiceGVR).Namespace(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete InferenceService %s/%s: %w", namespace, name, err)
	}
	return nil
}

// AwaitReady polls the InferenceService Ready condition until it turns true
// or the timeout elapses. The returned error carries the last observed
// condition message to make stalls debuggable.
func (d *Deployer) AwaitReady(ctx context.Context, namespace, name string, timeout time.Duration) error {
	log.Printf("⏳ Waiting up to %s for InferenceService %s/%s to become ready", timeout, namespace, name)

	lastState := "no Ready condition reported yet"
	err := wait.PollUntilContextTimeout(ctx, 5*time.Second, timeout, true,
		func(ctx context.Context) (bool, error) {
			isvc, err := d.dynamicClient.Resource(inferenceServiceGVR).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				if apierrors.IsNotFound(err) {
					lastState = "InferenceService not found"
					return false, nil
				}
				return false, err
			}

			conditions, found, _ := unstructured.NestedSlice(isvc.Object, "status", "conditions")
			if !found {
				return false, nil
			}
			for _, c := range conditions {
				condition, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				if condition["type"] != "Ready" {
					continue
				}
				if condition["status"] == "True" {
					return true, nil
				}
				if message, ok := condition["message"].(string); ok && message != "" {
					lastState = message
				} else {
					lastState = fmt.Sprintf("Ready=%v", condition["status"])
				}
			}
			return false, nil
		})
	if err != nil {
		return fmt.Errorf("InferenceService %s/%s not ready after %s (%s): %w", namespace, name, timeout, lastState, err)
	}

	log.Printf("✅ InferenceService %s/%s is ready", namespace, name)
	return nil
}
