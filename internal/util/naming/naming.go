package naming

import (
	"fmt"

	"github.com/google/uuid"
)

// Prefix is shared by every temporary resource so leaked ones are easy to find.
const Prefix = "amiforge"

// RunID returns a random 32-bit identifier for one workflow session.
func RunID() uint32 {
	return uuid.New().ID()
}

// SecurityGroup names the temporary SSH access group of an upload run.
func SecurityGroup(runID uint32) string {
	return fmt.Sprintf("%s-tmp-%x", Prefix, runID)
}

// InstallerSecurityGroup names the temporary group of an installer run,
// which also exposes the installer console.
func InstallerSecurityGroup(runID uint32) string {
	return fmt.Sprintf("%s-vnc-tmp-%x", Prefix, runID)
}

// KeyPair names the one-time SSH credential of a run.
func KeyPair(runID uint32) string {
	return fmt.Sprintf("%s-tmp-%x", Prefix, runID)
}

// Server names a temporary build server on providers that require server names.
func Server(runID uint32) string {
	return fmt.Sprintf("%s-build-%x", Prefix, runID)
}

// Image returns a unique image name derived from its source.
func Image(source string) string {
	return fmt.Sprintf("%s AMI - %s - uuid-%s", Prefix, source, uuid.NewString())
}

// SnapshotImageDescription describes an image registered straight from a snapshot.
func SnapshotImageDescription(snapshotID string) string {
	return fmt.Sprintf("Created directly from volume snapshot %s", snapshotID)
}

// InstalledImageDescription describes an image captured from an installer run.
func InstalledImageDescription(baseImage string) string {
	return fmt.Sprintf("Created from modified snapshot of AMI %s", baseImage)
}

// SnapshotDescription describes the snapshot of an uploaded file.
func SnapshotDescription(source string) string {
	return fmt.Sprintf("%s snapshot of file %q", Prefix, source)
}
