package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is one decoded resource document. Kind selects which of the
// typed fields is set.
type Document struct {
	Kind        string
	Domain      *DomainDoc
	Network     *NetworkDoc
	Pool        *PoolDoc
	Volume      *VolumeDoc
	Reservation *ReservationDoc
	Seed        *SeedDoc
}

// Name returns the resource name the document declares.
func (d Document) Name() string {
	switch d.Kind {
	case KindDomain:
		return d.Domain.Name
	case KindNetwork:
		return d.Network.Name
	case KindPool:
		return d.Pool.Name
	case KindVolume:
		return d.Volume.Pool + "/" + d.Volume.Name
	case KindReservation:
		return d.Reservation.Network + "/" + d.Reservation.MAC
	case KindSeed:
		return d.Seed.Pool + "/" + d.Seed.Volume
	}
	return ""
}

// Load reads and validates every document in a YAML file.
func Load(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	docs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// Parse decodes a YAML stream of resource documents. Every document is
// normalized and validated; the first invalid document fails the parse.
func Parse(r io.Reader) ([]Document, error) {
	dec := yaml.NewDecoder(r)

	var docs []Document
	for i := 1; ; i++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if node.Kind == 0 {
			continue
		}

		doc, err := decodeDocument(&node)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no resource documents found")
	}
	return docs, nil
}

func decodeDocument(node *yaml.Node) (Document, error) {
	var envelope struct {
		Kind string `yaml:"kind"`
	}
	if err := node.Decode(&envelope); err != nil {
		return Document{}, err
	}

	doc := Document{Kind: envelope.Kind}
	switch envelope.Kind {
	case KindDomain:
		var d DomainDoc
		if err := node.Decode(&d); err != nil {
			return Document{}, err
		}
		d.normalize()
		if err := d.Validate(); err != nil {
			return Document{}, fmt.Errorf("domain %q: %w", d.Name, err)
		}
		doc.Domain = &d
	case KindNetwork:
		var d NetworkDoc
		if err := node.Decode(&d); err != nil {
			return Document{}, err
		}
		d.normalize()
		if err := d.Validate(); err != nil {
			return Document{}, fmt.Errorf("network %q: %w", d.Name, err)
		}
		doc.Network = &d
	case KindPool:
		var d PoolDoc
		if err := node.Decode(&d); err != nil {
			return Document{}, err
		}
		d.normalize()
		if err := d.Validate(); err != nil {
			return Document{}, fmt.Errorf("pool %q: %w", d.Name, err)
		}
		doc.Pool = &d
	case KindVolume:
		var d VolumeDoc
		if err := node.Decode(&d); err != nil {
			return Document{}, err
		}
		d.normalize()
		if err := d.Validate(); err != nil {
			return Document{}, fmt.Errorf("volume %q: %w", d.Name, err)
		}
		doc.Volume = &d
	case KindReservation:
		var d ReservationDoc
		if err := node.Decode(&d); err != nil {
			return Document{}, err
		}
		d.normalize()
		if err := d.Validate(); err != nil {
			return Document{}, fmt.Errorf("reservation on %q: %w", d.Network, err)
		}
		doc.Reservation = &d
	case KindSeed:
		var d SeedDoc
		if err := node.Decode(&d); err != nil {
			return Document{}, err
		}
		d.normalize()
		if err := d.Validate(); err != nil {
			return Document{}, fmt.Errorf("seed %q: %w", d.FQDN, err)
		}
		doc.Seed = &d
	case "":
		return Document{}, fmt.Errorf("missing kind")
	default:
		return Document{}, fmt.Errorf("unknown kind %q", envelope.Kind)
	}

	return doc, nil
}
