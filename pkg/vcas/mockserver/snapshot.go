package mockserver

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk record of a real server's channel set,
// written by the collector and consumed by the mock server so it can
// serve a realistic catalog offline.
type Snapshot struct {
	Metadata       SnapshotMetadata         `yaml:"metadata"`
	Directories    map[string][]string      `yaml:"directories,omitempty"`
	ChannelDetails map[string]ChannelRecord `yaml:"channel_details"`
}

// SnapshotMetadata describes where and when the snapshot was taken.
type SnapshotMetadata struct {
	Server        string    `yaml:"server"`
	CollectedAt   time.Time `yaml:"collected_at"`
	TotalChannels int       `yaml:"total_channels"`
}

// ChannelRecord is one channel's collected metadata and last value.
type ChannelRecord struct {
	Type        string `yaml:"type"`
	Units       string `yaml:"units"`
	Description string `yaml:"description,omitempty"`
	Value       string `yaml:"value,omitempty"`
}

// LoadSnapshot reads and parses a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if len(snap.ChannelDetails) == 0 {
		return nil, fmt.Errorf("snapshot %s has no channels", path)
	}
	return &snap, nil
}

// Save writes the snapshot to path, filling in the channel count.
func (s *Snapshot) Save(path string) error {
	s.Metadata.TotalChannels = len(s.ChannelDetails)
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ChannelCount returns the number of channels in the snapshot.
func (s *Snapshot) ChannelCount() int {
	return len(s.ChannelDetails)
}

// Names returns the sorted channel names.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.ChannelDetails))
	for name := range s.ChannelDetails {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog turns the snapshot into a live catalog. Collected values seed
// both the initial value and the regeneration baseline, so the mock
// keeps producing values near what the real server last reported.
func (s *Snapshot) Catalog(host, port string) *Catalog {
	entries := make(map[string]*Descriptor, len(s.ChannelDetails))
	for name, ch := range s.ChannelDetails {
		entries[name] = &Descriptor{
			Type:  ch.Type,
			Units: ch.Units,
			Descr: ch.Description,
			Val:   ch.Value,
			Host:  host,
			Port:  port,
		}
	}
	cat := NewCatalog(entries)
	for name, ch := range s.ChannelDetails {
		if ch.Value != "" {
			cat.snapshotVals[name] = ch.Value
		}
	}
	return cat
}
