package labels

import (
	"fmt"
	"sort"
)

// Standard label keys.
const (
	// KeyRun identifies the workflow session that created a resource.
	KeyRun = "amiforge.io/run"

	// KeyKind identifies what the resource is used for (security-group, key-pair, ...).
	KeyKind = "amiforge.io/kind"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "amiforge.io/managed-by"

	// KeyTemporary is set on resources that teardown is expected to remove.
	KeyTemporary = "amiforge.io/temporary"

	// KeyName carries a human-readable name (the EC2 console shows the "Name" tag).
	KeyName = "Name"
)

// Kind values.
const (
	KindSecurityGroup = "security-group"
	KindKeyPair       = "key-pair"
	KindInstance      = "instance"
	KindVolume        = "volume"
	KindSnapshot      = "snapshot"
	KindImage         = "image"
)

// ManagedByAmiforge is the value of KeyManagedBy.
const ManagedByAmiforge = "amiforge"

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a label builder with the run identifier pre-set.
func NewLabelBuilder(runID uint32) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyRun:       RunValue(runID),
			KeyManagedBy: ManagedByAmiforge,
		},
	}
}

// WithKind adds the resource kind.
func (lb *LabelBuilder) WithKind(kind string) *LabelBuilder {
	lb.labels[KeyKind] = kind
	return lb
}

// Temporary marks the resource for removal at teardown.
func (lb *LabelBuilder) Temporary() *LabelBuilder {
	lb.labels[KeyTemporary] = "true"
	return lb
}

// WithName sets the display name.
func (lb *LabelBuilder) WithName(name string) *LabelBuilder {
	if name != "" {
		lb.labels[KeyName] = name
	}
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// HCloud returns labels valid for Hetzner Cloud, which rejects spaces and
// most punctuation in values. KeyName is dropped since servers carry names.
func (lb *LabelBuilder) HCloud() map[string]string {
	result := lb.Build()
	delete(result, KeyName)
	return result
}

// Keys returns the label keys in sorted order, for deterministic tag requests.
func (lb *LabelBuilder) Keys() []string {
	keys := make([]string, 0, len(lb.labels))
	for k := range lb.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RunValue formats a run identifier as a label value.
func RunValue(runID uint32) string {
	return fmt.Sprintf("%08x", runID)
}

// SelectorForRun returns a label selector matching every resource of one run.
func SelectorForRun(runID uint32) string {
	return KeyRun + "=" + RunValue(runID)
}
