// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package session

import (
	"reflect"
	"testing"

	"github.com/fufel/trailmap/internal/models"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want []string
	}{
		{"prefixed", "m-42", []string{"m-42", "42"}},
		{"unprefixed", "42", []string{"42", "m-42"}},
		{"solo", "solo-99", []string{"solo-99", "m-solo-99"}},
		{"prefixed solo", "m-solo-99", []string{"m-solo-99", "solo-99"}},
		{"upper prefix", "M-42", []string{"M-42", "42"}},
		{"trimmed", "/m-42 ", []string{"m-42", "42"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Candidates(tt.id); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

type mapStore map[string]*models.Session

func (m mapStore) Load(id string) (*models.Session, bool) {
	s, ok := m[id]
	return s, ok
}

func TestFinder_RegistryBeforeDurable(t *testing.T) {
	r := NewRegistry()
	live := newSession("m-42", "p1")
	live.SampleCount = 7
	r.PutSession(live)

	stale := newSession("m-42", "p1")
	stale.SampleCount = 3
	f := NewFinder(r, mapStore{"m-42": stale})

	got, ok := f.Find("42")
	if !ok {
		t.Fatal("Find(42) missed")
	}
	if got.SampleCount != 7 {
		t.Errorf("SampleCount = %d, want in-memory copy (7)", got.SampleCount)
	}
}

func TestFinder_FallsBackToDurable(t *testing.T) {
	f := NewFinder(NewRegistry(), mapStore{"solo-99": newSession("solo-99", "p1")})

	for _, id := range []string{"solo-99", "m-solo-99"} {
		if _, ok := f.Find(id); !ok {
			t.Errorf("Find(%q) missed durable store", id)
		}
	}
	if _, ok := f.Find("solo-100"); ok {
		t.Error("Find(solo-100) should miss")
	}
}

func TestFinder_NilStore(t *testing.T) {
	f := NewFinder(NewRegistry(), nil)
	if _, ok := f.Find("anything"); ok {
		t.Error("empty finder should miss")
	}
}
