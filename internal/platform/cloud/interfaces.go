package cloud

import "context"

// Compute manages access rules, credentials and instances.
type Compute interface {
	CreateSecurityGroup(ctx context.Context, name, description string, rules []IngressRule, tags map[string]string) (string, error)
	DeleteSecurityGroup(ctx context.Context, id string) error
	// CreateKeyPair returns a key pair whose PrivateKey is populated.
	CreateKeyPair(ctx context.Context, name string, tags map[string]string) (*KeyPair, error)
	DeleteKeyPair(ctx context.Context, kp *KeyPair) error
	// RunInstances launches at most one instance. An empty result is a
	// provider contract breach the caller must treat as fatal.
	RunInstances(ctx context.Context, in RunInstanceInput) ([]Instance, error)
	DescribeInstance(ctx context.Context, id string) (*Instance, error)
	TerminateInstance(ctx context.Context, id string) error
}

// BlockStorage manages volumes and their snapshots.
type BlockStorage interface {
	CreateVolume(ctx context.Context, sizeGiB int32, zone string, tags map[string]string) (string, error)
	DescribeVolume(ctx context.Context, id string) (*Volume, error)
	AttachVolume(ctx context.Context, volumeID, instanceID, device string) error
	DetachVolume(ctx context.Context, volumeID string) error
	DeleteVolume(ctx context.Context, id string) error
	CreateSnapshot(ctx context.Context, volumeID, description string, tags map[string]string) (string, error)
	DescribeSnapshot(ctx context.Context, id string) (*Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// ImageRegistrar registers snapshots as launchable images.
type ImageRegistrar interface {
	RegisterImage(ctx context.Context, in RegisterImageInput) (string, error)
}

// ImageCapturer creates an image from the root disk of a stopped instance.
type ImageCapturer interface {
	CreateImageFromInstance(ctx context.Context, instanceID, name, description string, tags map[string]string) (string, error)
	DescribeImage(ctx context.Context, id string) (*Image, error)
	DeregisterImage(ctx context.Context, id string) error
}

// Classifier reports whether a describe error is transient: the resource
// is not yet visible or the request was throttled.
type Classifier func(err error) bool

// AlwaysTransient treats every describe error as transient.
func AlwaysTransient(error) bool { return true }
