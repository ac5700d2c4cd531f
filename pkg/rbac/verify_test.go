package rbac_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	authv1 "k8s.io/api/authorization/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/erwangranger/RHAI3-demo/pkg/rbac"
)

var _ = Describe("RBAC Verification", func() {
	Describe("GetRequiredPermissions", func() {
		It("should return non-empty permission list", func() {
			namespace := "demo-rh-ai-3-0"
			permissions := rbac.GetRequiredPermissions(namespace)
			Expect(permissions).NotTo(BeEmpty())
		})

		It("should include cluster-scoped namespace lifecycle permissions", func() {
			namespace := "demo-rh-ai-3-0"
			permissions := rbac.GetRequiredPermissions(namespace)

			var hasNamespaceGet, hasNamespaceCreate, hasNamespaceDelete bool
			for _, perm := range permissions {
				if perm.APIGroup == "" && perm.Resource == "namespaces" && perm.Namespace == "" {
					switch perm.Verb {
					case "get":
						hasNamespaceGet = true
					case "create":
						hasNamespaceCreate = true
					case "delete":
						hasNamespaceDelete = true
					}
				}
			}

			Expect(hasNamespaceGet).To(BeTrue(), "Missing cluster-scoped namespaces get permission")
			Expect(hasNamespaceCreate).To(BeTrue(), "Missing cluster-scoped namespaces create permission")
			Expect(hasNamespaceDelete).To(BeTrue(), "Missing cluster-scoped namespaces delete permission")
		})

		It("should include cluster-wide pod list permission for the GPU inventory", func() {
			namespace := "demo-rh-ai-3-0"
			permissions := rbac.GetRequiredPermissions(namespace)

			var hasPodList bool
			for _, perm := range permissions {
				if perm.APIGroup == "" && perm.Resource == "pods" && perm.Verb == "list" && perm.Namespace == "" {
					hasPodList = true
				}
			}

			Expect(hasPodList).To(BeTrue(), "Missing cluster-scoped pods list permission")
		})

		It("should include cluster-scoped CRD permission", func() {
			namespace := "demo-rh-ai-3-0"
			permissions := rbac.GetRequiredPermissions(namespace)

			var hasCRDGet bool
			for _, perm := range permissions {
				if perm.APIGroup == "apiextensions.k8s.io" && perm.Resource == "customresourcedefinitions" && perm.Verb == "get" && perm.Namespace == "" {
					hasCRDGet = true
				}
			}

			Expect(hasCRDGet).To(BeTrue(), "Missing cluster-scoped CRD get permission")
		})

		It("should include namespace-scoped InferenceService permissions", func() {
			namespace := "demo-rh-ai-3-0"
			permissions := rbac.GetRequiredPermissions(namespace)

			var hasCreate, hasDelete bool
			for _, perm := range permissions {
				if perm.APIGroup == "serving.kserve.io" && perm.Resource == "inferenceservices" && perm.Namespace == namespace {
					switch perm.Verb {
					case "create":
						hasCreate = true
					case "delete":
						hasDelete = true
					}
				}
			}

			Expect(hasCreate).To(BeTrue(), "Missing namespace-scoped inferenceservices create permission for namespace %s", namespace)
			Expect(hasDelete).To(BeTrue(), "Missing namespace-scoped inferenceservices delete permission for namespace %s", namespace)
		})

		It("should scope every namespaced permission to the given namespace", func() {
			namespace := "another-demo"
			permissions := rbac.GetRequiredPermissions(namespace)

			for _, perm := range permissions {
				if perm.Namespace != "" {
					Expect(perm.Namespace).To(Equal(namespace))
				}
			}
		})
	})

	Describe("RequiredPermission String", func() {
		It("should render core cluster-scoped permissions without a group suffix", func() {
			perm := rbac.RequiredPermission{Resource: "namespaces", Verb: "delete"}
			Expect(perm.String()).To(Equal("delete namespaces (cluster-scoped)"))
		})

		It("should render grouped namespaced permissions with the group suffix", func() {
			perm := rbac.RequiredPermission{
				APIGroup:  "serving.kserve.io",
				Resource:  "inferenceservices",
				Verb:      "create",
				Namespace: "demo-rh-ai-3-0",
			}
			Expect(perm.String()).To(Equal("create inferenceservices.serving.kserve.io (namespace=demo-rh-ai-3-0)"))
		})
	})

	Describe("CheckPermission", func() {
		It("should return allowed for permitted actions", func() {
			clientset := fake.NewSimpleClientset()

			// Mock the SelfSubjectAccessReview response
			clientset.PrependReactor("create", "selfsubjectaccessreviews", func(action k8stesting.Action) (bool, runtime.Object, error) {
				createAction := action.(k8stesting.CreateAction)
				sar := createAction.GetObject().(*authv1.SelfSubjectAccessReview)
				sar.Status = authv1.SubjectAccessReviewStatus{
					Allowed: true,
				}
				return true, sar, nil
			})

			perm := rbac.RequiredPermission{
				APIGroup:  "serving.kserve.io",
				Resource:  "inferenceservices",
				Verb:      "create",
				Namespace: "demo-rh-ai-3-0",
			}

			allowed, err := rbac.CheckPermission(context.Background(), clientset, perm)
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeTrue())
		})

		It("should return denied for forbidden actions", func() {
			clientset := fake.NewSimpleClientset()

			// Mock the SelfSubjectAccessReview response
			clientset.PrependReactor("create", "selfsubjectaccessreviews", func(action k8stesting.Action) (bool, runtime.Object, error) {
				createAction := action.(k8stesting.CreateAction)
				sar := createAction.GetObject().(*authv1.SelfSubjectAccessReview)
				sar.Status = authv1.SubjectAccessReviewStatus{
					Allowed: false,
				}
				return true, sar, nil
			})

			perm := rbac.RequiredPermission{
				APIGroup:  "",
				Resource:  "namespaces",
				Verb:      "delete",
				Namespace: "",
			}

			allowed, err := rbac.CheckPermission(context.Background(), clientset, perm)
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})

		It("should surface review API failures", func() {
			clientset := fake.NewSimpleClientset()

			clientset.PrependReactor("create", "selfsubjectaccessreviews", func(action k8stesting.Action) (bool, runtime.Object, error) {
				return true, nil, errors.New("apiserver unavailable")
			})

			perm := rbac.RequiredPermission{Resource: "pods", Verb: "list"}

			_, err := rbac.CheckPermission(context.Background(), clientset, perm)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("VerifyPermissions", func() {
		It("should succeed when every permission is granted", func() {
			clientset := fake.NewSimpleClientset()

			clientset.PrependReactor("create", "selfsubjectaccessreviews", func(action k8stesting.Action) (bool, runtime.Object, error) {
				createAction := action.(k8stesting.CreateAction)
				sar := createAction.GetObject().(*authv1.SelfSubjectAccessReview)
				sar.Status = authv1.SubjectAccessReviewStatus{
					Allowed: true,
				}
				return true, sar, nil
			})

			err := rbac.VerifyPermissions(context.Background(), clientset, "demo-rh-ai-3-0")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should list every denied permission in one error", func() {
			clientset := fake.NewSimpleClientset()

			// Deny only the serving group; everything else is granted.
			clientset.PrependReactor("create", "selfsubjectaccessreviews", func(action k8stesting.Action) (bool, runtime.Object, error) {
				createAction := action.(k8stesting.CreateAction)
				sar := createAction.GetObject().(*authv1.SelfSubjectAccessReview)
				sar.Status = authv1.SubjectAccessReviewStatus{
					Allowed: sar.Spec.ResourceAttributes.Group != "serving.kserve.io",
				}
				return true, sar, nil
			})

			err := rbac.VerifyPermissions(context.Background(), clientset, "demo-rh-ai-3-0")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("missing required RBAC permissions"))
			Expect(err.Error()).To(ContainSubstring("create inferenceservices.serving.kserve.io (namespace=demo-rh-ai-3-0)"))
			Expect(err.Error()).To(ContainSubstring("delete inferenceservices.serving.kserve.io (namespace=demo-rh-ai-3-0)"))
			Expect(err.Error()).NotTo(ContainSubstring("delete namespaces"))
		})

		It("should stop on review API failures", func() {
			clientset := fake.NewSimpleClientset()

			clientset.PrependReactor("create", "selfsubjectaccessreviews", func(action k8stesting.Action) (bool, runtime.Object, error) {
				return true, nil, errors.New("apiserver unavailable")
			})

			err := rbac.VerifyPermissions(context.Background(), clientset, "demo-rh-ai-3-0")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to check permission"))
		})
	})
})
