// Package installer prepares unattended installer scripts (kickstart or
// preseed files) that are passed to an instance as user data.
package installer

import (
	"regexp"
	"strings"
)

// Distro is the installer family a script is written for.
type Distro string

const (
	DistroUnknown Distro = ""
	// DistroRPM scripts are kickstart files.
	DistroRPM Distro = "rpm"
	// DistroDebian scripts are debian-installer preseed files.
	DistroDebian Distro = "debian"
)

// PasswordVariable is the placeholder replaced by Render.
const PasswordVariable = "adminpw"

var placeholder = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\})`)

// Render substitutes $adminpw and ${adminpw} with password. "$$" becomes a
// single "$"; every other placeholder is left untouched.
func Render(script, password string) string {
	return placeholder.ReplaceAllStringFunc(script, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		switch {
		case sub[1] != "":
			return "$"
		case sub[2] == PasswordVariable, sub[3] == PasswordVariable:
			return password
		default:
			return m
		}
	})
}

var (
	preseedLine  = regexp.MustCompile(`^d-i\s+debian-installer`)
	packagesLine = regexp.MustCompile(`^%packages`)
	ksPoweroff   = regexp.MustCompile(`^poweroff`)
	dPoweroff    = regexp.MustCompile(`^d-i\s+debian-installer/exit/poweroff\s+boolean\s+true`)
	ksURL        = regexp.MustCompile(`^url.*--url=(\S+)`)
	ksVNC        = regexp.MustCompile(`^vnc.*--password=(\S+)`)
	ksSSH        = regexp.MustCompile(`^ssh.*--password=(\S+)`)
	dConsole     = regexp.MustCompile(`^d-i\s+network-console/password\s+password\s+(\S+)`)
	dBaseURLHint = regexp.MustCompile(`^#ubuntu_baseurl=(\S+)`)
)

// DetectDistro reports which installer a script targets by its first
// distinctive line.
func DetectDistro(script string) Distro {
	for _, line := range strings.Split(script, "\n") {
		switch {
		case preseedLine.MatchString(line):
			return DistroDebian
		case packagesLine.MatchString(line):
			return DistroRPM
		}
	}
	return DistroUnknown
}

// Info is what a script tells about the install it drives.
type Info struct {
	Distro     Distro
	InstallURL string
	// ConsolePassword protects the remote installer console, if enabled.
	ConsolePassword string
	// ConsoleCommand is a format string taking the instance address.
	ConsoleCommand string
	// Poweroff is set if the installer powers the machine off when done.
	// Completion is detected by the instance stopping, so a script without
	// it never finishes.
	Poweroff bool
}

// Inspect extracts Info from a rendered script.
func Inspect(script string) Info {
	info := Info{Distro: DetectDistro(script)}
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimRight(line, "\r")
		switch info.Distro {
		case DistroRPM:
			inspectKickstart(&info, line)
		case DistroDebian:
			inspectPreseed(&info, line)
		}
	}
	return info
}

func inspectKickstart(info *Info, line string) {
	if m := ksURL.FindStringSubmatch(line); m != nil {
		info.InstallURL = m[1]
		return
	}
	if m := ksVNC.FindStringSubmatch(line); m != nil {
		info.ConsolePassword = m[1]
		info.ConsoleCommand = "vncviewer %s:1"
		return
	}
	if m := ksSSH.FindStringSubmatch(line); m != nil {
		info.ConsolePassword = m[1]
		info.ConsoleCommand = "ssh root@%s"
		return
	}
	if ksPoweroff.MatchString(line) {
		info.Poweroff = true
	}
}

func inspectPreseed(info *Info, line string) {
	if m := dConsole.FindStringSubmatch(line); m != nil {
		info.ConsolePassword = m[1]
		info.ConsoleCommand = "ssh installer@%s"
		return
	}
	if m := dBaseURLHint.FindStringSubmatch(line); m != nil {
		info.InstallURL = m[1]
	}
	if dPoweroff.MatchString(line) {
		info.Poweroff = true
	}
}

// HasPoweroff reports whether script powers the machine off after the
// install, using the directive of its distro.
func HasPoweroff(script string) bool {
	return Inspect(script).Poweroff
}

// PoweroffHint names the directive a script of distro must contain.
func PoweroffHint(d Distro) string {
	switch d {
	case DistroRPM:
		return "a 'poweroff' line"
	case DistroDebian:
		return "a 'd-i debian-installer/exit/poweroff boolean true' line"
	default:
		return "a power-off directive"
	}
}
