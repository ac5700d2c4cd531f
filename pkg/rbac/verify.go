// Package rbac verifies the demo holds the cluster permissions it needs
// before any mutation happens.
package rbac

import (
	"context"
	"fmt"
	"strings"

	authv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// RequiredPermission represents a permission that needs to be verified
type RequiredPermission struct {
	APIGroup  string
	Resource  string
	Verb      string
	Namespace string // empty for cluster-scoped
}

// String renders the permission the way the missing-permission report lists it.
func (p RequiredPermission) String() string {
	resource := p.Resource
	if p.APIGroup != "" {
		resource = p.Resource + "." + p.APIGroup
	}
	scope := "cluster-scoped"
	if p.Namespace != "" {
		scope = "namespace=" + p.Namespace
	}
	return fmt.Sprintf("%s %s (%s)", p.Verb, resource, scope)
}

// GetRequiredPermissions returns the list of permissions the provision and
// teardown workflows need against the target namespace.
func GetRequiredPermissions(namespace string) []RequiredPermission {
	return []RequiredPermission{
		// Cluster-scoped permissions (namespace lifecycle)
		{APIGroup: "", Resource: "namespaces", Verb: "get", Namespace: ""},
		{APIGroup: "", Resource: "namespaces", Verb: "create", Namespace: ""},
		{APIGroup: "", Resource: "namespaces", Verb: "delete", Namespace: ""},

		// Cluster-scoped permissions (GPU inventory scans every namespace)
		{APIGroup: "", Resource: "pods", Verb: "list", Namespace: ""},

		// Cluster-scoped permissions (serving CRD presence check)
		{APIGroup: "apiextensions.k8s.io", Resource: "customresourcedefinitions", Verb: "get", Namespace: ""},

		// Namespace-scoped permissions (pull secret and service account wiring)
		{APIGroup: "", Resource: "secrets", Verb: "get", Namespace: namespace},
		{APIGroup: "", Resource: "secrets", Verb: "create", Namespace: namespace},
		{APIGroup: "", Resource: "secrets", Verb: "update", Namespace: namespace},
		{APIGroup: "", Resource: "serviceaccounts", Verb: "get", Namespace: namespace},
		{APIGroup: "", Resource: "serviceaccounts", Verb: "update", Namespace: namespace},

		// Namespace-scoped permissions (model deployment)
		{APIGroup: "serving.kserve.io", Resource: "inferenceservices", Verb: "get", Namespace: namespace},
		{APIGroup: "serving.kserve.io", Resource: "inferenceservices", Verb: "create", Namespace: namespace},
		{APIGroup: "serving.kserve.io", Resource: "inferenceservices", Verb: "update", Namespace: namespace},
		{APIGroup: "serving.kserve.io", Resource: "inferenceservices", Verb: "delete", Namespace: namespace},
	}
}

// VerifyPermissions checks that the current identity holds every required
// permission, accumulating anything missing into a single error.
func VerifyPermissions(ctx context.Context, clientset kubernetes.Interface, namespace string) error {
	permissions := GetRequiredPermissions(namespace)
	var missingPermissions []string

	for _, perm := range permissions {
		allowed, err := CheckPermission(ctx, clientset, perm)
		if err != nil {
			return fmt.Errorf("failed to check permission %s: %w", perm, err)
		}

		if !allowed {
			missingPermissions = append(missingPermissions, "  - "+perm.String())
		}
	}

	if len(missingPermissions) > 0 {
		return fmt.Errorf("missing required RBAC permissions:\n%s\n\nGrant them to your user or service account and rerun",
			strings.Join(missingPermissions, "\n"))
	}

	return nil
}

// CheckPermission verifies if a specific permission is granted
func CheckPermission(ctx context.Context, clientset kubernetes.Interface, perm RequiredPermission) (bool, error) {
	sar := &authv1.SelfSubjectAccessReview{
		Spec: authv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authv1.ResourceAttributes{
				Verb:      perm.Verb,
				Group:     perm.APIGroup,
				Resource:  perm.Resource,
				Namespace: perm.Namespace,
			},
		},
	}

	result, err := clientset.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, sar, metav1.CreateOptions{})
	if err != nil {
		return false, err
	}

	return result.Status.Allowed, nil
}
