// Package image turns raw disk images and unattended installs into
// launchable machine images.
//
// Two workflows drive short-lived cloud resources to completion:
//
//   - Uploader boots a utility instance, streams a local or S3 disk image
//     onto a fresh volume over SSH and snapshots the volume.
//   - Installer boots an installer image with an answer file, waits for
//     the installer to power the instance off and captures its root disk.
//
// Every resource a workflow creates is recorded in a Session together with
// a release guard. Guards run exactly once, in a fixed order, whether the
// workflow succeeds or fails. A guard that fails is logged as a warning and
// never hides the error that stopped the workflow.
//
// Registrar registers a finished snapshot as an image with a PV-GRUB boot
// loader looked up in the region catalog.
package image
