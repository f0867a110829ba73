package concierge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Category string

const (
	CategoryCleaning  Category = "cleaning"
	CategoryTransport Category = "transport"
	CategorySalon     Category = "salon"
)

// Options is the tagged variant of per-category form data.
type Options interface {
	Category() Category
}

type CleaningOptions struct {
	Rooms []string `json:"rooms"`
	Deep  bool     `json:"deep"`
}

func (CleaningOptions) Category() Category { return CategoryCleaning }

type TransportOptions struct {
	Pickup     string `json:"pickup"`
	Dropoff    string `json:"dropoff"`
	Passengers int    `json:"passengers"`
	Vehicle    string `json:"vehicle"`
}

func (TransportOptions) Category() Category { return CategoryTransport }

type SalonOptions struct {
	Treatment string `json:"treatment"`
	Guests    int    `json:"guests"`
}

func (SalonOptions) Category() Category { return CategorySalon }

// DecodeOptions parses raw into the variant for category, rejecting unknown fields.
func DecodeOptions(category Category, raw []byte) (Options, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	dec := func(v any) error {
		d := json.NewDecoder(bytes.NewReader(raw))
		d.DisallowUnknownFields()
		return d.Decode(v)
	}
	switch category {
	case CategoryCleaning:
		var o CleaningOptions
		if err := dec(&o); err != nil {
			return nil, fmt.Errorf("cleaning options: %w", err)
		}
		return o, nil
	case CategoryTransport:
		var o TransportOptions
		if err := dec(&o); err != nil {
			return nil, fmt.Errorf("transport options: %w", err)
		}
		return o, nil
	case CategorySalon:
		var o SalonOptions
		if err := dec(&o); err != nil {
			return nil, fmt.Errorf("salon options: %w", err)
		}
		return o, nil
	}
	return nil, fmt.Errorf("unknown service category %q", category)
}
