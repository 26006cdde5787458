package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const kickstart = `install
url --url=http://dl.fedoraproject.org/pub/fedora/linux/releases/20/Fedora/x86_64/os/
rootpw $adminpw
vnc --password=${adminpw}
poweroff

%packages
@core
%end
`

const preseed = `d-i debian-installer/locale string en_US
#ubuntu_baseurl=http://us.archive.ubuntu.com/ubuntu/dists/precise/
d-i passwd/root-password password $adminpw
d-i network-console/password password r00tme
d-i debian-installer/exit/poweroff boolean true
`

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{name: "bare", script: "rootpw $adminpw", want: "rootpw s3cret"},
		{name: "braced", script: "rootpw ${adminpw}x", want: "rootpw s3cretx"},
		{name: "escaped dollar", script: "echo $$adminpw", want: "echo $adminpw"},
		{name: "unknown placeholder", script: "echo $HOME ${PATH}", want: "echo $HOME ${PATH}"},
		{name: "longer identifier", script: "echo $adminpwd", want: "echo $adminpwd"},
		{name: "lone dollar", script: "cost $ 5", want: "cost $ 5"},
		{name: "unterminated brace", script: "echo ${adminpw", want: "echo ${adminpw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Render(tt.script, "s3cret"))
		})
	}
}

func TestRender_PasswordIsLiteral(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "rootpw $1$abc$$", Render("rootpw $adminpw", "$1$abc$$"))
}

func TestDetectDistro(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DistroRPM, DetectDistro(kickstart))
	assert.Equal(t, DistroDebian, DetectDistro(preseed))
	assert.Equal(t, DistroUnknown, DetectDistro("#!/bin/sh\necho hi\n"))
}

func TestInspect_Kickstart(t *testing.T) {
	t.Parallel()

	info := Inspect(Render(kickstart, "pw"))
	assert.Equal(t, Info{
		Distro:          DistroRPM,
		InstallURL:      "http://dl.fedoraproject.org/pub/fedora/linux/releases/20/Fedora/x86_64/os/",
		ConsolePassword: "pw",
		ConsoleCommand:  "vncviewer %s:1",
		Poweroff:        true,
	}, info)
}

func TestInspect_Preseed(t *testing.T) {
	t.Parallel()

	info := Inspect(preseed)
	assert.Equal(t, Info{
		Distro:          DistroDebian,
		InstallURL:      "http://us.archive.ubuntu.com/ubuntu/dists/precise/",
		ConsolePassword: "r00tme",
		ConsoleCommand:  "ssh installer@%s",
		Poweroff:        true,
	}, info)
}

func TestHasPoweroff(t *testing.T) {
	t.Parallel()

	assert.True(t, HasPoweroff(kickstart))
	assert.True(t, HasPoweroff(preseed))
	assert.False(t, HasPoweroff("%packages\n@core\n%end\n# poweroff\n"))
	assert.False(t, HasPoweroff("d-i debian-installer/locale string en_US\npoweroff\n"))
	assert.False(t, HasPoweroff("poweroff\n"), "scripts of unknown type are not inspected")
}

func TestPoweroffHint(t *testing.T) {
	t.Parallel()

	assert.Contains(t, PoweroffHint(DistroRPM), "poweroff")
	assert.Contains(t, PoweroffHint(DistroDebian), "d-i debian-installer/exit/poweroff boolean true")
	assert.NotEmpty(t, PoweroffHint(DistroUnknown))
}
