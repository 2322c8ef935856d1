// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calstore keeps named touch calibrations in a YAML file so that a
// panel calibrated once can be reused by every tool.
package calstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/touch_panel/internal/xpt2046"
)

// ErrSlotNotFound is returned by Load when the slot was never saved.
var ErrSlotNotFound = errors.New("calstore: slot not found")

const fileVersion = 1

// Entry is one saved calibration.
type Entry struct {
	Calibration xpt2046.Calibration `yaml:"calibration" json:"calibration"`
	// Rotation the raw values were taken with.
	Rotation int       `yaml:"rotation" json:"rotation"`
	SavedAt  time.Time `yaml:"saved_at" json:"saved_at"`
}

type file struct {
	Version int              `yaml:"version"`
	Slots   map[string]Entry `yaml:"slots"`
}

// Store is a calibration file. It is safe for concurrent use within one
// process.
type Store struct {
	path string
	mu   sync.Mutex
}

func Open(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Save validates e and writes it to slot, keeping the other slots.
func (s *Store) Save(slot string, e Entry) error {
	if slot == "" {
		return fmt.Errorf("calstore: empty slot name")
	}
	if err := e.Calibration.Validate(); err != nil {
		return fmt.Errorf("calstore: slot %q: %w", slot, err)
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return err
	}
	f.Slots[slot] = e
	return s.write(f)
}

// Load returns the entry saved in slot. A missing file reads as an empty
// store.
func (s *Store) Load(slot string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return Entry{}, err
	}
	e, ok := f.Slots[slot]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q in %s", ErrSlotNotFound, slot, s.path)
	}
	if err := e.Calibration.Validate(); err != nil {
		return Entry{}, fmt.Errorf("calstore: slot %q: %w", slot, err)
	}
	return e, nil
}

// Slots lists the saved slot names in order.
func (s *Store) Slots() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Slots))
	for name := range f.Slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes slot. Deleting a missing slot is not an error.
func (s *Store) Delete(slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := f.Slots[slot]; !ok {
		return nil
	}
	delete(f.Slots, slot)
	return s.write(f)
}

func (s *Store) read() (*file, error) {
	f := &file{Version: fileVersion, Slots: map[string]Entry{}}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("calstore: read %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(b, f); err != nil {
		return nil, fmt.Errorf("calstore: parse %s: %w", s.path, err)
	}
	if f.Version > fileVersion {
		return nil, fmt.Errorf("calstore: %s has version %d, newest known is %d", s.path, f.Version, fileVersion)
	}
	if f.Slots == nil {
		f.Slots = map[string]Entry{}
	}
	return f, nil
}

// write replaces the file through a temporary file in the same directory.
func (s *Store) write(f *file) error {
	f.Version = fileVersion
	b, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("calstore: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("calstore: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("calstore: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("calstore: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("calstore: write %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("calstore: replace %s: %w", s.path, err)
	}
	return nil
}
