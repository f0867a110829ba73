package services

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/domain/concierge"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
)

// CatalogEntry describes one bookable category and the option values guests may pick.
type CatalogEntry struct {
	Category        types.ServiceCategory `yaml:"category" json:"category"`
	Title           string                `yaml:"title" json:"title"`
	Description     string                `yaml:"description" json:"description,omitempty"`
	LeadTimeMinutes int                   `yaml:"lead_time_minutes" json:"lead_time_minutes"`

	Rooms         []string `yaml:"rooms,omitempty" json:"rooms,omitempty"`
	Vehicles      []string `yaml:"vehicles,omitempty" json:"vehicles,omitempty"`
	MaxPassengers int      `yaml:"max_passengers,omitempty" json:"max_passengers,omitempty"`
	Treatments    []string `yaml:"treatments,omitempty" json:"treatments,omitempty"`
	MaxGuests     int      `yaml:"max_guests,omitempty" json:"max_guests,omitempty"`
}

type catalogFile struct {
	Categories []CatalogEntry `yaml:"categories"`
}

type ServiceCatalog interface {
	Entries() []CatalogEntry
	Entry(category types.ServiceCategory) (CatalogEntry, bool)
	// Validate decodes raw for category and checks every value against the catalog.
	Validate(category types.ServiceCategory, raw []byte) (concierge.Options, error)
}

const defaultCatalogYAML = `
categories:
  - category: cleaning
    title: Housekeeping
    description: Extra cleaning on top of the daily service.
    lead_time_minutes: 120
    rooms: [living, kitchen, master, guest, terrace, pool]
  - category: transport
    title: Private transfer
    description: Chauffeured car to or from the villa.
    lead_time_minutes: 180
    vehicles: [sedan, suv, van]
    max_passengers: 7
  - category: salon
    title: In-villa spa
    description: Treatments delivered at the villa.
    lead_time_minutes: 240
    treatments: [massage, facial, manicure, pedicure, haircut]
    max_guests: 4
`

type serviceCatalog struct {
	entries []CatalogEntry
	byCat   map[types.ServiceCategory]CatalogEntry
}

// LoadServiceCatalog reads the catalog at path, or the built-in one when path is empty.
func LoadServiceCatalog(path string) (ServiceCatalog, error) {
	raw := []byte(defaultCatalogYAML)
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read service catalog: %w", err)
		}
		raw = b
	}
	return ParseServiceCatalog(raw)
}

func ParseServiceCatalog(raw []byte) (ServiceCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse service catalog: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("service catalog has no categories")
	}
	c := &serviceCatalog{byCat: make(map[types.ServiceCategory]CatalogEntry, len(f.Categories))}
	for _, e := range f.Categories {
		switch e.Category {
		case concierge.CategoryCleaning:
			if len(e.Rooms) == 0 {
				return nil, fmt.Errorf("service catalog: cleaning needs rooms")
			}
		case concierge.CategoryTransport:
			if len(e.Vehicles) == 0 || e.MaxPassengers <= 0 {
				return nil, fmt.Errorf("service catalog: transport needs vehicles and max_passengers")
			}
		case concierge.CategorySalon:
			if len(e.Treatments) == 0 || e.MaxGuests <= 0 {
				return nil, fmt.Errorf("service catalog: salon needs treatments and max_guests")
			}
		default:
			return nil, fmt.Errorf("service catalog: unknown category %q", e.Category)
		}
		if _, dup := c.byCat[e.Category]; dup {
			return nil, fmt.Errorf("service catalog: duplicate category %q", e.Category)
		}
		if e.LeadTimeMinutes < 0 {
			e.LeadTimeMinutes = 0
		}
		c.byCat[e.Category] = e
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func (c *serviceCatalog) Entries() []CatalogEntry {
	return slices.Clone(c.entries)
}

func (c *serviceCatalog) Entry(category types.ServiceCategory) (CatalogEntry, bool) {
	e, ok := c.byCat[category]
	return e, ok
}

func (c *serviceCatalog) Validate(category types.ServiceCategory, raw []byte) (concierge.Options, error) {
	entry, ok := c.byCat[category]
	if !ok {
		return nil, apierr.Validation("unknown service category " + string(category))
	}
	opts, err := concierge.DecodeOptions(category, raw)
	if err != nil {
		return nil, apierr.Validation(err.Error())
	}

	switch o := opts.(type) {
	case concierge.CleaningOptions:
		if len(o.Rooms) == 0 {
			return nil, apierr.Validation("pick at least one room")
		}
		for i, r := range o.Rooms {
			r = strings.ToLower(strings.TrimSpace(r))
			if !slices.Contains(entry.Rooms, r) {
				return nil, apierr.Validation("unknown room " + r)
			}
			o.Rooms[i] = r
		}
		slices.Sort(o.Rooms)
		o.Rooms = slices.Compact(o.Rooms)
		return o, nil
	case concierge.TransportOptions:
		o.Pickup = strings.TrimSpace(o.Pickup)
		o.Dropoff = strings.TrimSpace(o.Dropoff)
		if o.Pickup == "" || o.Dropoff == "" {
			return nil, apierr.Validation("pickup and dropoff are required")
		}
		if o.Passengers < 1 || o.Passengers > entry.MaxPassengers {
			return nil, apierr.Validation(fmt.Sprintf("passengers must be between 1 and %d", entry.MaxPassengers))
		}
		o.Vehicle = strings.ToLower(strings.TrimSpace(o.Vehicle))
		if o.Vehicle == "" {
			o.Vehicle = entry.Vehicles[0]
		}
		if !slices.Contains(entry.Vehicles, o.Vehicle) {
			return nil, apierr.Validation("unknown vehicle " + o.Vehicle)
		}
		return o, nil
	case concierge.SalonOptions:
		o.Treatment = strings.ToLower(strings.TrimSpace(o.Treatment))
		if !slices.Contains(entry.Treatments, o.Treatment) {
			return nil, apierr.Validation("unknown treatment " + o.Treatment)
		}
		if o.Guests == 0 {
			o.Guests = 1
		}
		if o.Guests < 1 || o.Guests > entry.MaxGuests {
			return nil, apierr.Validation(fmt.Sprintf("guests must be between 1 and %d", entry.MaxGuests))
		}
		return o, nil
	}
	return nil, apierr.Validation("unsupported options")
}
