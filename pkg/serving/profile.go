// Package serving deploys the demo model as a KServe InferenceService.
package serving

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/erwangranger/RHAI3-demo/pkg/registry"
)

const (
	// DefaultFormat is the model format announced to the serving runtime.
	DefaultFormat = "vLLM"
	// DefaultRuntime is the ServingRuntime the predictor binds to.
	DefaultRuntime = "vllm-runtime"
)

// Profile describes one servable model. Profiles are loadable from YAML so a
// demo can swap models without rebuilding.
type Profile struct {
	// Name is the InferenceService name, a DNS-1123 label.
	Name        string `yaml:"name"`
	DisplayName string `yaml:"displayName"`
	// ModelURI locates the modelcar image (oci://...).
	ModelURI string `yaml:"modelUri"`
	Runtime  string `yaml:"runtime"`
	Format   string `yaml:"format"`
	GPUs     int    `yaml:"gpus"`
	Replicas int    `yaml:"replicas"`
	// PullSecret is attached to the predictor when set.
	PullSecret string `yaml:"pullSecret"`
}

// DefaultProfile returns the granite modelcar the demo ships with.
func DefaultProfile() *Profile {
	return &Profile{
		Name:        "granite-3-1-8b-instruct",
		DisplayName: "Granite 3.1 8B Instruct",
		ModelURI:    "oci://registry.redhat.io/rhelai1/modelcar-granite-3-1-8b-instruct-quantized-w4a16:1.5",
		Runtime:     DefaultRuntime,
		Format:      DefaultFormat,
		GPUs:        1,
		Replicas:    1,
	}
}

// LoadProfile reads a model profile from a YAML file. Unknown keys are
// rejected so typos surface instead of silently deploying defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model profile: %w", err)
	}

	profile := &Profile{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(profile); err != nil {
		return nil, fmt.Errorf("parse model profile %s: %w", path, err)
	}

	profile.applyDefaults()
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("model profile %s: %w", path, err)
	}
	return profile, nil
}

// applyDefaults fills the optional fields.
func (p *Profile) applyDefaults() {
	if p.DisplayName == "" {
		p.DisplayName = p.Name
	}
	if p.Runtime == "" {
		p.Runtime = DefaultRuntime
	}
	if p.Format == "" {
		p.Format = DefaultFormat
	}
	if p.Replicas == 0 {
		p.Replicas = 1
	}
}

// Validate checks the profile is deployable.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if errs := validation.IsDNS1123Label(p.Name); len(errs) > 0 {
		return fmt.Errorf("model name %q is not a valid DNS label: %s", p.Name, errs[0])
	}
	if p.ModelURI == "" {
		return fmt.Errorf("model URI is required")
	}
	if _, err := registry.ParseURI(p.ModelURI); err != nil {
		return err
	}
	if p.GPUs < 0 {
		return fmt.Errorf("gpu count must not be negative, got %d", p.GPUs)
	}
	if p.Replicas < 1 {
		return fmt.Errorf("replicas must be at least 1, got %d", p.Replicas)
	}
	return nil
}
