// Package catalog resolves station labels to the imei of the physical
// station they are printed on.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog is the read-only label/station lookup consumed by hold operations
type Catalog interface {
	FindLabel(label string) (string, bool)
	FindImeiByLabel(label string) (string, bool)
}

// Station is one catalog entry
type Station struct {
	Label string `yaml:"label" json:"label"`
	IMEI  string `yaml:"imei" json:"imei"`
}

// StaticCatalog is an in-memory catalog
type StaticCatalog struct {
	mu       sync.RWMutex
	stations map[string]string
}

var _ Catalog = (*StaticCatalog)(nil)

// NewStaticCatalog builds a catalog from the given stations
func NewStaticCatalog(stations []Station) *StaticCatalog {
	c := &StaticCatalog{stations: make(map[string]string, len(stations))}
	for _, s := range stations {
		c.stations[s.Label] = s.IMEI
	}
	return c
}

// NewSeededCatalog generates labels QWER0001..QWERnnnn, each paired with
// imei-0000000001..imei-nnnnnnnnnn
func NewSeededCatalog(count int) *StaticCatalog {
	stations := make([]Station, 0, count)
	for i := 1; i <= count; i++ {
		stations = append(stations, Station{
			Label: fmt.Sprintf("QWER%04d", i),
			IMEI:  fmt.Sprintf("imei-%010d", i),
		})
	}
	return NewStaticCatalog(stations)
}

type catalogFile struct {
	Stations []Station `yaml:"stations"`
}

// LoadFile reads a YAML catalog of the form:
//
//	stations:
//	  - label: QWER0001
//	    imei: imei-0000000001
func LoadFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(file.Stations))
	for _, s := range file.Stations {
		if s.Label == "" {
			return nil, fmt.Errorf("catalog entry without label")
		}
		if seen[s.Label] {
			return nil, fmt.Errorf("duplicate catalog label %q", s.Label)
		}
		seen[s.Label] = true
	}
	return NewStaticCatalog(file.Stations), nil
}

// FindLabel returns the label when it is catalogued
func (c *StaticCatalog) FindLabel(label string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.stations[label]; !ok {
		return "", false
	}
	return label, true
}

// FindImeiByLabel returns the station imei for a label. Entries without an
// imei are reported as absent.
func (c *StaticCatalog) FindImeiByLabel(label string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	imei, ok := c.stations[label]
	if !ok || imei == "" {
		return "", false
	}
	return imei, true
}

// Stations returns all entries sorted by label
func (c *StaticCatalog) Stations() []Station {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Station, 0, len(c.stations))
	for label, imei := range c.stations {
		out = append(out, Station{Label: label, IMEI: imei})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Len returns the number of catalogued labels
func (c *StaticCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stations)
}
