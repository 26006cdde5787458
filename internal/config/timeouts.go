package config

import (
	"os"
	"strconv"
	"time"
)

// Wait is the budget of one polled stage.
type Wait struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	InstanceRunning   Wait          // Instance leaving pending after launch
	SSHReachable      Wait          // No-op remote command succeeding
	VolumeAvailable   Wait          // New volume becoming available
	VolumeAttached    Wait          // Attachment reaching attached
	AttachSettle      time.Duration // Fixed delay after attach before writing
	SnapshotCompleted Wait          // Snapshot reaching completed
	VolumeDetached    Wait          // Volume back to available after detach
	InstanceGone      Wait          // Instance reaching terminated during teardown
	InstallerStopped  Wait          // Installer powering the instance off
	ImageSettle       time.Duration // Delay before the first describe of a captured image
	ImageAvailable    Wait          // Captured image leaving pending
	Delete            time.Duration // Budget for one retried delete call
	SSHDial           time.Duration // TCP connect + handshake for one remote command
	RetryMaxAttempts  int           // Maximum number of retry attempts for delete calls
	RetryInitialDelay time.Duration // Initial delay between retries
	RetryMaxDelay     time.Duration // Cap on the delay between retries
	RetryMultiplier   float64       // Growth factor of the delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - AMIFORGE_TIMEOUT_INSTANCE_RUNNING (default: 300s, polled every 1s)
//   - AMIFORGE_TIMEOUT_SSH (default: 300s, tried every 1s)
//   - AMIFORGE_TIMEOUT_VOLUME_AVAILABLE (default: 600s, polled every 10s)
//   - AMIFORGE_TIMEOUT_VOLUME_ATTACH (default: 120s, polled every 10s)
//   - AMIFORGE_ATTACH_SETTLE (default: 20s)
//   - AMIFORGE_TIMEOUT_SNAPSHOT (default: 1200s, polled every 10s)
//   - AMIFORGE_TIMEOUT_VOLUME_DETACH (default: 120s, polled every 10s)
//   - AMIFORGE_TIMEOUT_TERMINATE (default: 60s, polled every 5s)
//   - AMIFORGE_TIMEOUT_INSTALLER (default: 1800s, polled every 10s)
//   - AMIFORGE_TIMEOUT_IMAGE (default: 1200s, polled every 10s)
//   - AMIFORGE_TIMEOUT_DELETE (default: 2m)
//   - AMIFORGE_TIMEOUT_SSH_DIAL (default: 30s)
//   - AMIFORGE_RETRY_MAX_ATTEMPTS (default: 5)
//   - AMIFORGE_RETRY_INITIAL_DELAY (default: 2s)
//   - AMIFORGE_RETRY_MAX_DELAY (default: 30s)
//   - AMIFORGE_RETRY_MULTIPLIER (default: 2)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		InstanceRunning:   Wait{parseDuration("AMIFORGE_TIMEOUT_INSTANCE_RUNNING", 300*time.Second), time.Second},
		SSHReachable:      Wait{parseDuration("AMIFORGE_TIMEOUT_SSH", 300*time.Second), time.Second},
		VolumeAvailable:   Wait{parseDuration("AMIFORGE_TIMEOUT_VOLUME_AVAILABLE", 600*time.Second), 10 * time.Second},
		VolumeAttached:    Wait{parseDuration("AMIFORGE_TIMEOUT_VOLUME_ATTACH", 120*time.Second), 10 * time.Second},
		AttachSettle:      parseDuration("AMIFORGE_ATTACH_SETTLE", 20*time.Second),
		SnapshotCompleted: Wait{parseDuration("AMIFORGE_TIMEOUT_SNAPSHOT", 1200*time.Second), 10 * time.Second},
		VolumeDetached:    Wait{parseDuration("AMIFORGE_TIMEOUT_VOLUME_DETACH", 120*time.Second), 10 * time.Second},
		InstanceGone:      Wait{parseDuration("AMIFORGE_TIMEOUT_TERMINATE", 60*time.Second), 5 * time.Second},
		InstallerStopped:  Wait{parseDuration("AMIFORGE_TIMEOUT_INSTALLER", 1800*time.Second), 10 * time.Second},
		ImageSettle:       10 * time.Second,
		ImageAvailable:    Wait{parseDuration("AMIFORGE_TIMEOUT_IMAGE", 1200*time.Second), 10 * time.Second},
		Delete:            parseDuration("AMIFORGE_TIMEOUT_DELETE", 2*time.Minute),
		SSHDial:           parseDuration("AMIFORGE_TIMEOUT_SSH_DIAL", 30*time.Second),
		RetryMaxAttempts:  parseInt("AMIFORGE_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("AMIFORGE_RETRY_INITIAL_DELAY", 2*time.Second),
		RetryMaxDelay:     parseDuration("AMIFORGE_RETRY_MAX_DELAY", 30*time.Second),
		RetryMultiplier:   parseFloat("AMIFORGE_RETRY_MULTIPLIER", 2),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set, fails to parse or is not positive, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

// parseFloat parses a growth factor from an environment variable.
// Values below 1 would shrink the delay and fall back to the default.
func parseFloat(envVar string, defaultVal float64) float64 {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 1 {
		return defaultVal
	}

	return f
}

// TestTimeouts returns short timeouts for tests that exercise real waits.
func TestTimeouts() *Timeouts {
	short := Wait{Timeout: 200 * time.Millisecond, Interval: 10 * time.Millisecond}
	return &Timeouts{
		InstanceRunning:   short,
		SSHReachable:      short,
		VolumeAvailable:   short,
		VolumeAttached:    short,
		SnapshotCompleted: short,
		VolumeDetached:    short,
		InstanceGone:      short,
		InstallerStopped:  short,
		ImageAvailable:    short,
		Delete:            5 * time.Second,
		SSHDial:           2 * time.Second,
		RetryMaxAttempts:  3,
		RetryInitialDelay: 10 * time.Millisecond,
		RetryMaxDelay:     50 * time.Millisecond,
		RetryMultiplier:   2,
	}
}
