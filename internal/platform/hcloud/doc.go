// Package hcloud implements the compute and image-capture capabilities on
// Hetzner Cloud, so the installer workflow can run there as well as on EC2.
//
// # Mapping
//
// Hetzner has no security groups, key pairs minted by the provider, or
// machine images in the EC2 sense. The client maps them as follows:
//
//   - security group: a firewall with inbound rules, applied to the server at create
//   - key pair: an RSA key generated locally, with the public half uploaded as an SSH key
//   - instance: a server; status "off" is reported as stopped
//   - captured image: a snapshot image of the server's root disk
//
// IDs are the decimal form of Hetzner's numeric IDs.
//
// # Generic Operations
//
// DeleteOperation provides idempotent resource deletion with automatic retry logic:
//   - Handles resource locking with exponential backoff
//   - Returns success if resource doesn't exist
//   - Configurable timeouts and retry parameters
//
// # Retry and Timeout Configuration
//
// Delete budgets and retry parameters come from config.Timeouts:
//
//   - AMIFORGE_TIMEOUT_DELETE: Resource deletion timeout (default: 2m)
//   - AMIFORGE_RETRY_MAX_ATTEMPTS: Maximum retry attempts (default: 5)
//   - AMIFORGE_RETRY_INITIAL_DELAY: Initial retry delay (default: 2s)
package hcloud
