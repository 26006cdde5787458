package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// UtilityImage describes the image that boots the upload helper instance.
type UtilityImage struct {
	ImageID string `yaml:"image"`
	// CommandPrefix escalates privileges for User (usually "sudo").
	CommandPrefix string `yaml:"command_prefix"`
	User          string `yaml:"user"`
}

type catalogFile struct {
	UtilityImages map[string]UtilityImage      `yaml:"utility_images"`
	BootLoaders   map[string]map[string]string `yaml:"boot_loaders"`
}

// Catalog holds the per-region tables. It is immutable once built; every
// accessor returns copies.
type Catalog struct {
	utility     map[string]UtilityImage
	bootLoaders map[string]map[string]string
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file, or returns the default catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}

	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	return ParseCatalog(data)
}

// ParseCatalog parses a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw catalogFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	c := &Catalog{
		utility:     make(map[string]UtilityImage, len(raw.UtilityImages)),
		bootLoaders: make(map[string]map[string]string, len(raw.BootLoaders)),
	}

	for region, img := range raw.UtilityImages {
		if img.ImageID == "" {
			return nil, fmt.Errorf("utility image for region %s has no image id", region)
		}
		if img.User == "" {
			img.User = "root"
		}
		c.utility[region] = img
	}

	for region, arches := range raw.BootLoaders {
		copied := make(map[string]string, len(arches))
		for arch, id := range arches {
			if id == "" {
				return nil, fmt.Errorf("boot loader for region %s arch %s is empty", region, arch)
			}
			copied[arch] = id
		}
		c.bootLoaders[region] = copied
	}

	return c, nil
}

// UtilityImage returns the utility image for a region.
func (c *Catalog) UtilityImage(region string) (UtilityImage, bool) {
	img, ok := c.utility[region]
	return img, ok
}

// BootLoader returns the PV-GRUB kernel id for a region and architecture.
func (c *Catalog) BootLoader(region, arch string) (string, bool) {
	id, ok := c.bootLoaders[region][arch]
	return id, ok
}

// Regions returns every region with a utility image or a boot loader, sorted.
func (c *Catalog) Regions() []string {
	seen := make(map[string]struct{}, len(c.utility))
	for r := range c.utility {
		seen[r] = struct{}{}
	}
	for r := range c.bootLoaders {
		seen[r] = struct{}{}
	}

	regions := make([]string, 0, len(seen))
	for r := range seen {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}
