package solarapi

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Sentinel texts for codes missing from the published tables. Firmware
// updates add codes, so lookups never fail.
const (
	UnknownStatusText        = "Unknown status"
	UnknownStatusDescription = "Status code is not documented"
	UnknownInverterStatus    = "Unknown"
	UnknownModelName         = "Unknown device type"
)

type statusEntry struct {
	Text        string `yaml:"text"`
	Description string `yaml:"description"`
}

// Catalog holds the static code tables of the Solar API.
type Catalog struct {
	RequestStatus struct {
		Success []int               `yaml:"success"`
		Codes   map[int]statusEntry `yaml:"codes"`
	} `yaml:"request_status"`
	InverterStatus map[int]string `yaml:"inverter_status"`
	DeviceTypes    map[int]string `yaml:"device_types"`

	success map[int]bool
}

var (
	catalogOnce    sync.Once
	defaultCatalog *Catalog
)

// ParseCatalog decodes a catalog from YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status catalog: %w", err)
	}

	c.success = make(map[int]bool, len(c.RequestStatus.Success))
	for _, code := range c.RequestStatus.Success {
		c.success[code] = true
	}

	return &c, nil
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	catalogOnce.Do(func() {
		c, err := ParseCatalog(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// StatusText returns the short name of a request status code.
func (c *Catalog) StatusText(code int) string {
	if e, ok := c.RequestStatus.Codes[code]; ok {
		return e.Text
	}
	return UnknownStatusText
}

// StatusDescription returns the long description of a request status code.
func (c *Catalog) StatusDescription(code int) string {
	if e, ok := c.RequestStatus.Codes[code]; ok {
		return e.Description
	}
	return UnknownStatusDescription
}

// StatusOK reports whether the code belongs to the success set.
func (c *Catalog) StatusOK(code int) bool {
	return c.success[code]
}

// InverterStatusText maps an inverter StatusCode to text.
func (c *Catalog) InverterStatusText(code int) string {
	if s, ok := c.InverterStatus[code]; ok {
		return s
	}
	return UnknownInverterStatus
}

// ModelName maps a device type (DT) to a model name.
func (c *Catalog) ModelName(deviceType int) string {
	if s, ok := c.DeviceTypes[deviceType]; ok {
		return s
	}
	return UnknownModelName
}

// StatusText looks up code in the embedded catalog.
func StatusText(code int) string { return DefaultCatalog().StatusText(code) }

// StatusDescription looks up code in the embedded catalog.
func StatusDescription(code int) string { return DefaultCatalog().StatusDescription(code) }

// StatusOK looks up code in the embedded catalog.
func StatusOK(code int) bool { return DefaultCatalog().StatusOK(code) }

// InverterStatusText looks up code in the embedded catalog.
func InverterStatusText(code int) string { return DefaultCatalog().InverterStatusText(code) }

// ModelName looks up deviceType in the embedded catalog.
func ModelName(deviceType int) string { return DefaultCatalog().ModelName(deviceType) }
