// Package zonestore loads, persists and serves zone data. Providers hand
// zones to the hub, which merges them into one tree, publishes immutable
// snapshots, and routes dynamic updates back to the provider that owns the
// zone.
package zonestore

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Protryon/adns/internal/dns/common/rrdata"
	"github.com/Protryon/adns/internal/dns/domain"
)

// defaultRecordTTL applies when a record document omits its TTL.
const defaultRecordTTL = 300

// recordDoc is one record in a zone document.
type recordDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	TTL  uint32 `yaml:"ttl,omitempty"`
	Data string `yaml:"data"`
}

// zoneDoc is the YAML form of a zone. Names may be written relative to the
// zone apex; any name that already ends with the apex is taken as absolute.
type zoneDoc struct {
	Authoritative bool                `yaml:"authoritative"`
	AllowMD5TSIG  bool                `yaml:"allow_md5_tsig,omitempty"`
	SOA           string              `yaml:"soa,omitempty"`
	Nameservers   []string            `yaml:"nameservers,omitempty"`
	TSIGKeys      map[string]string   `yaml:"tsig_keys,omitempty"`
	Records       []recordDoc         `yaml:"records,omitempty"`
	Zones         map[string]*zoneDoc `yaml:"zones,omitempty"`
}

// fileDoc is the top level of a zone file: zones keyed by apex.
type fileDoc struct {
	Zones map[string]*zoneDoc `yaml:"zones"`
}

// absolute resolves a document name against the zone apex: "@" is the apex
// itself, names ending with the apex are already absolute, anything else is
// relative.
func absolute(raw string, apex domain.Name) (domain.Name, error) {
	raw = strings.TrimSpace(raw)
	if raw == "@" || raw == "" {
		return apex, nil
	}
	name, err := domain.ParseName(raw)
	if err != nil {
		return "", err
	}
	if name.EndsWith(apex) && !apex.IsRoot() {
		return name, nil
	}
	if apex.IsRoot() {
		return name, nil
	}
	return domain.ParseName(string(name) + "." + string(apex))
}

// parseZoneDoc converts a document into a zone rooted at apex.
func parseZoneDoc(apex domain.Name, doc *zoneDoc) (*domain.Zone, error) {
	zone := &domain.Zone{
		Name:          apex,
		Authoritative: doc.Authoritative,
		AllowMD5TSIG:  doc.AllowMD5TSIG,
	}
	if doc.SOA != "" {
		soa, err := domain.ParseSOA(doc.SOA)
		if err != nil {
			return nil, fmt.Errorf("zone %s: %w", apex, err)
		}
		zone.SOA = &soa
	}
	for _, ns := range doc.Nameservers {
		name, err := absolute(ns, apex)
		if err != nil {
			return nil, fmt.Errorf("zone %s nameserver: %w", apex, err)
		}
		zone.Nameservers = append(zone.Nameservers, name)
	}
	if len(doc.TSIGKeys) > 0 {
		zone.TSIGKeys = make(map[string]domain.TSIGKey, len(doc.TSIGKeys))
		for rawName, secret := range doc.TSIGKeys {
			keyName, err := absolute(rawName, apex)
			if err != nil {
				return nil, fmt.Errorf("zone %s tsig key name: %w", apex, err)
			}
			material, err := base64.StdEncoding.DecodeString(secret)
			if err != nil {
				return nil, fmt.Errorf("zone %s tsig key %s: %w", apex, keyName, err)
			}
			zone.TSIGKeys[keyName.Key()] = domain.TSIGKey{Secret: material}
		}
	}
	for _, rd := range doc.Records {
		name, err := absolute(rd.Name, apex)
		if err != nil {
			return nil, fmt.Errorf("zone %s record name: %w", apex, err)
		}
		rrType, err := domain.ParseRRType(rd.Type)
		if err != nil {
			return nil, fmt.Errorf("zone %s record %s: %w", apex, name, err)
		}
		ttl := rd.TTL
		if ttl == 0 {
			ttl = defaultRecordTTL
		}
		rr, err := rrdata.NewRecord(name, rrType, ttl, rd.Data)
		if err != nil {
			return nil, fmt.Errorf("zone %s record %s %s: %w", apex, name, rrType, err)
		}
		zone.Records = append(zone.Records, rr)
	}
	for rawSub, subDoc := range doc.Zones {
		subApex, err := absolute(rawSub, apex)
		if err != nil {
			return nil, fmt.Errorf("zone %s subzone name: %w", apex, err)
		}
		sub, err := parseZoneDoc(subApex, subDoc)
		if err != nil {
			return nil, err
		}
		zone.Zones = append(zone.Zones, sub)
	}
	sort.Slice(zone.Zones, func(i, j int) bool { return zone.Zones[i].Name < zone.Zones[j].Name })
	return zone, nil
}

// ParseZones decodes a zone file's YAML into apex-rooted zones.
func ParseZones(data []byte) ([]*domain.Zone, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("zone file: %w", err)
	}
	var zones []*domain.Zone
	for rawApex, zdoc := range doc.Zones {
		apex, err := domain.ParseName(rawApex)
		if err != nil {
			return nil, fmt.Errorf("zone apex %q: %w", rawApex, err)
		}
		zone, err := parseZoneDoc(apex, zdoc)
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return zones, nil
}

// renderZoneDoc converts a zone back into its document form, with absolute
// names throughout. Records decoded off the wire are rendered back to
// presentation form.
func renderZoneDoc(zone *domain.Zone) (*zoneDoc, error) {
	doc := &zoneDoc{
		Authoritative: zone.Authoritative,
		AllowMD5TSIG:  zone.AllowMD5TSIG,
	}
	if zone.SOA != nil {
		doc.SOA = zone.SOA.String()
	}
	for _, ns := range zone.Nameservers {
		doc.Nameservers = append(doc.Nameservers, string(ns))
	}
	if len(zone.TSIGKeys) > 0 {
		doc.TSIGKeys = make(map[string]string, len(zone.TSIGKeys))
		for name, key := range zone.TSIGKeys {
			doc.TSIGKeys[name] = base64.StdEncoding.EncodeToString(key.Secret)
		}
	}
	for _, rr := range zone.Records {
		text := rr.Text
		if text == "" {
			decoded, err := rrdata.Decode(rr.Type, rr.Data)
			if err != nil {
				return nil, fmt.Errorf("zone %s record %s %s: %w", zone.Name, rr.Name, rr.Type, err)
			}
			text = decoded
		}
		doc.Records = append(doc.Records, recordDoc{
			Name: string(rr.Name),
			Type: rr.Type.String(),
			TTL:  rr.TTL,
			Data: text,
		})
	}
	for _, sub := range zone.Zones {
		subDoc, err := renderZoneDoc(sub)
		if err != nil {
			return nil, err
		}
		if doc.Zones == nil {
			doc.Zones = map[string]*zoneDoc{}
		}
		doc.Zones[string(sub.Name)] = subDoc
	}
	return doc, nil
}

// RenderZones encodes zones into zone-file YAML, the inverse of ParseZones.
func RenderZones(zones []*domain.Zone) ([]byte, error) {
	doc := fileDoc{Zones: map[string]*zoneDoc{}}
	for _, zone := range zones {
		zdoc, err := renderZoneDoc(zone)
		if err != nil {
			return nil, err
		}
		doc.Zones[string(zone.Name)] = zdoc
	}
	return yaml.Marshal(&doc)
}
