package cloud

import "github.com/imamik/amiforge/internal/util/keygen"

// Kind names a resource type provisioned by a workflow.
type Kind string

// Resource kinds.
const (
	KindSecurityGroup Kind = "security-group"
	KindKeyPair       Kind = "key-pair"
	KindInstance      Kind = "instance"
	KindVolume        Kind = "volume"
	KindSnapshot      Kind = "snapshot"
	KindImage         Kind = "image"
)

// InstanceState is the lifecycle state of a compute instance.
type InstanceState string

// Instance states.
const (
	InstancePending      InstanceState = "pending"
	InstanceRunning      InstanceState = "running"
	InstanceStopping     InstanceState = "stopping"
	InstanceStopped      InstanceState = "stopped"
	InstanceShuttingDown InstanceState = "shutting-down"
	InstanceTerminated   InstanceState = "terminated"
	InstanceUnknown      InstanceState = "unknown"
)

// VolumeState is the lifecycle state of a block volume.
type VolumeState string

// Volume states.
const (
	VolumeCreating  VolumeState = "creating"
	VolumeAvailable VolumeState = "available"
	VolumeInUse     VolumeState = "in-use"
	VolumeDeleting  VolumeState = "deleting"
	VolumeDeleted   VolumeState = "deleted"
	VolumeError     VolumeState = "error"
)

// AttachmentState is the state of a volume's attachment. Empty means the
// volume has no attachment record.
type AttachmentState string

// Attachment states.
const (
	AttachmentAttaching AttachmentState = "attaching"
	AttachmentAttached  AttachmentState = "attached"
	AttachmentDetaching AttachmentState = "detaching"
	AttachmentDetached  AttachmentState = "detached"
)

// SnapshotState is the lifecycle state of a volume snapshot.
type SnapshotState string

// Snapshot states.
const (
	SnapshotPending   SnapshotState = "pending"
	SnapshotCompleted SnapshotState = "completed"
	SnapshotFailed    SnapshotState = "failed"
)

// ImageState is the lifecycle state of a registered or captured image.
type ImageState string

// Image states.
const (
	ImagePending   ImageState = "pending"
	ImageAvailable ImageState = "available"
	ImageFailed    ImageState = "failed"
)

// Instance is the last observed view of a compute instance.
type Instance struct {
	ID    string
	State InstanceState
	// PublicHost is a DNS name or address reachable over SSH. Empty until assigned.
	PublicHost string
	// Zone is the placement (availability zone, datacenter) of the instance.
	Zone string
}

// Volume is the last observed view of a block volume.
type Volume struct {
	ID         string
	State      VolumeState
	Attachment AttachmentState
	SizeGiB    int32
}

// Snapshot is the last observed view of a volume snapshot.
type Snapshot struct {
	ID    string
	State SnapshotState
	// Progress is the provider's progress string, such as "42%".
	Progress string
}

// Image is the last observed view of a machine image.
type Image struct {
	ID    string
	State ImageState
}

// KeyPair is a one-time SSH credential.
type KeyPair struct {
	Name string
	// ID is the provider identifier, if different from Name.
	ID string
	// PrivateKey is PEM-encoded. It exists only in memory.
	PrivateKey []byte
}

// Wipe zeroes the private key material.
func (k *KeyPair) Wipe() {
	if k == nil {
		return
	}
	keygen.Wipe(k.PrivateKey)
	k.PrivateKey = nil
}

// IngressRule opens inbound traffic on a port range.
type IngressRule struct {
	Protocol string
	FromPort int32
	ToPort   int32
	CIDR     string
}

// SSHFromAnywhere opens port 22 to every address.
func SSHFromAnywhere() IngressRule {
	return IngressRule{Protocol: "tcp", FromPort: 22, ToPort: 22, CIDR: "0.0.0.0/0"}
}

// BlockDevice maps a device name to its backing storage: either a volume
// (created from SnapshotID or sized by VolumeSizeGiB) or an instance-store
// scratch disk named by VirtualName.
type BlockDevice struct {
	DeviceName          string
	SnapshotID          string
	VolumeSizeGiB       int32
	DeleteOnTermination bool
	VirtualName         string
}

// Ephemeral reports whether the device is backed by instance storage.
func (b BlockDevice) Ephemeral() bool {
	return b.VirtualName != ""
}

// RunInstanceInput describes a single-instance launch.
type RunInstanceInput struct {
	ImageID         string
	InstanceType    string
	KeyName         string
	SecurityGroupID string
	// UserData is passed verbatim; providers handle any required encoding.
	UserData     string
	BlockDevices []BlockDevice
	Zone         string
	Tags         map[string]string
}

// RegisterImageInput describes an image registration from existing snapshots.
type RegisterImageInput struct {
	Name           string
	Description    string
	Architecture   string
	KernelID       string
	RootDeviceName string
	BlockDevices   []BlockDevice
}
