// Package registry turns model registry references into image pull secrets.
package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/docker/distribution/reference"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	managedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "rhai3"
)

// Reference is a parsed registry reference for a model image.
type Reference struct {
	// Raw is the input as given, scheme included.
	Raw string
	// Host is the registry hostname (with port if present).
	Host string
	// Repository is the path within the registry.
	Repository string
	Tag        string
	Digest     string
}

// SecretName derives the deterministic pull secret name for the registry host.
func (r *Reference) SecretName() string {
	host := strings.NewReplacer(".", "-", ":", "-").Replace(strings.ToLower(r.Host))
	return host + "-pull"
}

// ParseURI parses a model registry reference. Modelcar URIs use oci:// and
// skopeo-style inputs use docker://; both prefixes and bare image references
// are accepted and normalized the way the container runtimes do it.
func ParseURI(raw string) (*Reference, error) {
	trimmed := strings.TrimSpace(raw)
	for _, scheme := range []string{"oci://", "docker://"} {
		if strings.HasPrefix(trimmed, scheme) {
			trimmed = strings.TrimPrefix(trimmed, scheme)
			break
		}
	}
	if trimmed == "" {
		return nil, fmt.Errorf("empty registry reference")
	}

	named, err := reference.ParseNormalizedNamed(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse registry reference %q: %w", raw, err)
	}

	ref := &Reference{
		Raw:        raw,
		Host:       reference.Domain(named),
		Repository: reference.Path(named),
	}
	if tagged, ok := named.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	if digested, ok := named.(reference.Digested); ok {
		ref.Digest = digested.Digest().String()
	}
	return ref, nil
}

// Credentials for a registry host. Empty credentials mean the registry is
// treated as public and no secret is generated.
type Credentials struct {
	Username string
	Password string
	Email    string
}

// Empty reports whether no usable credentials were provided.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// DockerConfigJSON represents ~/.docker/config.json file info.
type DockerConfigJSON struct {
	Auths DockerConfig `json:"auths"`
}

// DockerConfig represents the config file used by the docker CLI.
type DockerConfig map[string]DockerConfigEntry

// DockerConfigEntry represents an auth entry in the dockerconfigjson.
type DockerConfigEntry struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Email    string `json:"email,omitempty"`
	Auth     string `json:"auth,omitempty"`
}

// BuildPullSecret renders a kubernetes.io/dockerconfigjson Secret granting
// pull access to the reference's registry host.
func BuildPullSecret(ref *Reference, creds Credentials) (*corev1.Secret, error) {
	if ref == nil || ref.Host == "" {
		return nil, fmt.Errorf("registry reference with a host is required")
	}
	if creds.Empty() {
		return nil, fmt.Errorf("credentials for %s are required to build a pull secret", ref.Host)
	}

	config := DockerConfigJSON{
		Auths: DockerConfig{
			ref.Host: {
				Username: creds.Username,
				Password: creds.Password,
				Email:    creds.Email,
				Auth:     base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password)),
			},
		},
	}
	payload, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal docker config for %s: %w", ref.Host, err)
	}

	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:   ref.SecretName(),
			Labels: map[string]string{managedByLabel: managedByValue},
		},
		Type: corev1.SecretTypeDockerConfigJson,
		Data: map[string][]byte{corev1.DockerConfigJsonKey: payload},
	}, nil
}

// Apply creates the secret in the namespace, or updates it when the stored
// data differs. Unchanged secrets are left alone.
func Apply(ctx context.Context, clientset kubernetes.Interface, namespace string, secret *corev1.Secret) error {
	existing, err := clientset.CoreV1().Secrets(namespace).Get(ctx, secret.Name, metav1.GetOptions{})
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return fmt.Errorf("get secret %s/%s: %w", namespace, secret.Name, err)
		}
		if _, err := clientset.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("create secret %s/%s: %w", namespace, secret.Name, err)
		}
		log.Printf("🔑 Pull secret %s/%s created", namespace, secret.Name)
		return nil
	}

	if secretDataEqual(existing, secret) {
		log.Printf("✅ Pull secret %s/%s is up to date", namespace, secret.Name)
		return nil
	}

	existing.Type = secret.Type
	existing.Data = secret.Data
	if existing.Labels == nil {
		existing.Labels = map[string]string{}
	}
	for k, v := range secret.Labels {
		existing.Labels[k] = v
	}
	if _, err := clientset.CoreV1().Secrets(namespace).Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update secret %s/%s: %w", namespace, secret.Name, err)
	}
	log.Printf("🔑 Pull secret %s/%s updated", namespace, secret.Name)
	return nil
}

func secretDataEqual(a, b *corev1.Secret) bool {
	if a.Type != b.Type || len(a.Data) != len(b.Data) {
		return false
	}
	for k, v := range b.Data {
		if string(a.Data[k]) != string(v) {
			return false
		}
	}
	return true
}
