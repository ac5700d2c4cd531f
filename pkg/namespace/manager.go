// Package namespace manages the demo namespace: creation with the dashboard
// labels, teardown, and pull secret wiring on the default service account.
package namespace

import (
	"context"
	"fmt"
	"log"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/erwangranger/RHAI3-demo/pkg/waiter"
)

const (
	// LabelDashboard makes the namespace visible in the OpenShift AI dashboard.
	LabelDashboard = "opendatahub.io/dashboard"
	// LabelModelMesh opts the namespace out of the legacy ModelMesh stack.
	LabelModelMesh = "modelmesh-enabled"
	// LabelManagedBy marks every object this tool owns.
	LabelManagedBy = "app.kubernetes.io/managed-by"
	// ManagedByValue is the owner recorded under LabelManagedBy.
	ManagedByValue = "rhai3"

	// AnnotationDisplayName is the OpenShift console display name.
	AnnotationDisplayName = "openshift.io/display-name"
	// AnnotationDescription is the OpenShift console description.
	AnnotationDescription = "openshift.io/description"

	// defaultServiceAccount is the SA that pulls model images.
	defaultServiceAccount = "default"
	// serviceAccountWait bounds the wait for the namespace controller to
	// provision the default SA after namespace creation.
	serviceAccountWait = 30 * time.Second
)

// Spec describes the namespace to provision.
type Spec struct {
	Name        string
	DisplayName string
	Description string
}

// Validate checks the provisioning spec.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("namespace name is required")
	}
	return nil
}

// Status is the observable state of a demo namespace.
type Status struct {
	Name        string `json:"name"`
	Exists      bool   `json:"exists"`
	Phase       string `json:"phase,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Managed     bool   `json:"managed"`
}

// Manager handles namespace lifecycle against the cluster API.
type Manager struct {
	clientset kubernetes.Interface
}

// NewManager creates a namespace Manager.
func NewManager(clientset kubernetes.Interface) *Manager {
	return &Manager{clientset: clientset}
}

// demoLabels returns the labels applied to every managed namespace.
func demoLabels() map[string]string {
	return map[string]string{
		LabelDashboard: "true",
		LabelModelMesh: "false",
		LabelManagedBy: ManagedByValue,
	}
}

// Ensure creates the namespace with the demo labels and annotations, or
// merges them into an existing namespace. Idempotent.
func (m *Manager) Ensure(ctx context.Context, spec *Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	annotations := map[string]string{}
	if spec.DisplayName != "" {
		annotations[AnnotationDisplayName] = spec.DisplayName
	}
	if spec.Description != "" {
		annotations[AnnotationDescription] = spec.Description
	}

	existing, err := m.clientset.CoreV1().Namespaces().Get(ctx, spec.Name, metav1.GetOptions{})
	if err == nil {
		if existing.Status.Phase == corev1.NamespaceTerminating {
			return fmt.Errorf("namespace %q is terminating; wait for the deletion to finish before provisioning", spec.Name)
		}
		changed := mergeInto(&existing.ObjectMeta, demoLabels(), annotations)
		if !changed {
			log.Printf("✅ Namespace %q already exists with demo labels", spec.Name)
			return nil
		}
		if _, err := m.clientset.CoreV1().Namespaces().Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
			return fmt.Errorf("update namespace %s: %w", spec.Name, err)
		}
		log.Printf("✅ Namespace %q already exists, demo labels merged", spec.Name)
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("get namespace %s: %w", spec.Name, err)
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:        spec.Name,
			Labels:      demoLabels(),
			Annotations: annotations,
		},
	}
	if _, err := m.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("create namespace %s: %w", spec.Name, err)
	}
	log.Printf("🚀 Namespace %q created", spec.Name)
	return nil
}

// mergeInto adds missing labels/annotations, reporting whether anything changed.
func mergeInto(meta *metav1.ObjectMeta, labels, annotations map[string]string) bool {
	changed := false
	if meta.Labels == nil {
		meta.Labels = map[string]string{}
	}
	for k, v := range labels {
		if meta.Labels[k] != v {
			meta.Labels[k] = v
			changed = true
		}
	}
	if len(annotations) > 0 && meta.Annotations == nil {
		meta.Annotations = map[string]string{}
	}
	for k, v := range annotations {
		if meta.Annotations[k] != v {
			meta.Annotations[k] = v
			changed = true
		}
	}
	return changed
}

// Exists reports whether the namespace is still present. Not found is
// (false, nil); other errors are check failures.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	_, err := m.clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		return true, nil
	}
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("get namespace %s: %w", name, err)
}

// Status returns the namespace state for status reporting.
func (m *Manager) Status(ctx context.Context, name string) (*Status, error) {
	ns, err := m.clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return &Status{Name: name, Exists: false}, nil
		}
		return nil, fmt.Errorf("get namespace %s: %w", name, err)
	}
	return &Status{
		Name:        name,
		Exists:      true,
		Phase:       string(ns.Status.Phase),
		DisplayName: ns.Annotations[AnnotationDisplayName],
		Managed:     ns.Labels[LabelManagedBy] == ManagedByValue,
	}, nil
}

// Delete issues the namespace deletion request. A missing namespace maps to
// waiter.ErrNotFound so callers can report "nothing to delete".
func (m *Manager) Delete(ctx context.Context, name string) error {
	err := m.clientset.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if err == nil {
		return nil
	}
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("namespace %s: %w", name, waiter.ErrNotFound)
	}
	return fmt.Errorf("delete namespace %s: %w", name, err)
}

// AttachPullSecret appends the secret to the service account's
// imagePullSecrets. The default SA is provisioned asynchronously after
// namespace creation, so the lookup polls briefly. Idempotent.
func (m *Manager) AttachPullSecret(ctx context.Context, namespace, secretName string) error {
	var sa *corev1.ServiceAccount
	err := wait.PollUntilContextTimeout(ctx, time.Second, serviceAccountWait, true,
		func(ctx context.Context) (bool, error) {
			got, err := m.clientset.CoreV1().ServiceAccounts(namespace).Get(ctx, defaultServiceAccount, metav1.GetOptions{})
			if err != nil {
				if apierrors.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			sa = got
			return true, nil
		})
	if err != nil {
		return fmt.Errorf("service account %s/%s not available: %w", namespace, defaultServiceAccount, err)
	}

	for _, ref := range sa.ImagePullSecrets {
		if ref.Name == secretName {
			log.Printf("✅ Pull secret %q already linked to %s/%s", secretName, namespace, defaultServiceAccount)
			return nil
		}
	}

	sa.ImagePullSecrets = append(sa.ImagePullSecrets, corev1.LocalObjectReference{Name: secretName})
	if _, err := m.clientset.CoreV1().ServiceAccounts(namespace).Update(ctx, sa, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("link pull secret %s to %s/%s: %w", secretName, namespace, defaultServiceAccount, err)
	}
	log.Printf("🔗 Pull secret %q linked to %s/%s", secretName, namespace, defaultServiceAccount)
	return nil
}
