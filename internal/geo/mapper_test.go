// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package geo

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestWorldToUV_KnownPoints(t *testing.T) {
	const (
		worldSize = 4000.0
		scale     = 0.5
		margin    = 500.0
	)
	px := worldSize*scale + margin*2

	tests := []struct {
		name  string
		x, z  float64
		wantU float64
		wantV float64
	}{
		{"center", 0, 0, (margin + worldSize*scale/2) / px, (margin + worldSize*scale/2) / px},
		{"west edge", -worldSize / 2, 0, margin / px, (margin + worldSize*scale/2) / px},
		{"east edge", worldSize / 2, 0, (margin + worldSize*scale) / px, (margin + worldSize*scale/2) / px},
		{"north east corner", worldSize / 2, worldSize / 2, (margin + worldSize*scale) / px, (margin + worldSize*scale) / px},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uv := WorldToUV(tt.x, tt.z, worldSize, scale, margin)
			if math.Abs(uv.U-tt.wantU) > 1e-9 {
				t.Errorf("U = %v, want %v", uv.U, tt.wantU)
			}
			if math.Abs(uv.V-tt.wantV) > 1e-9 {
				t.Errorf("V = %v, want %v", uv.V, tt.wantV)
			}
		})
	}
}

func TestWorldToUV_OutOfBoundsClamps(t *testing.T) {
	uv := WorldToUV(-1e9, 1e9, 4000, 0.5, 500)
	if uv.U != 0 {
		t.Errorf("far west should clamp U to 0, got %v", uv.U)
	}
	if uv.V != 1 {
		t.Errorf("far north should clamp V to 1, got %v", uv.V)
	}
}

func TestWorldToUV_AlwaysNormalized(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		worldSize := rapid.Float64Range(100, 10000).Draw(t, "worldSize")
		scale := rapid.Float64Range(0.01, 4).Draw(t, "scale")
		margin := rapid.Float64Range(0, 2000).Draw(t, "margin")
		x := rapid.Float64Range(-1e6, 1e6).Draw(t, "x")
		z := rapid.Float64Range(-1e6, 1e6).Draw(t, "z")

		uv := WorldToUV(x, z, worldSize, scale, margin)
		if uv.U < 0 || uv.U > 1 || uv.V < 0 || uv.V > 1 {
			t.Fatalf("uv out of range: %+v", uv)
		}
	})
}

func TestUVToWorld_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		worldSize := rapid.Float64Range(100, 10000).Draw(t, "worldSize")
		scale := rapid.Float64Range(0.01, 4).Draw(t, "scale")
		margin := rapid.Float64Range(0, 2000).Draw(t, "margin")
		x := rapid.Float64Range(-worldSize/2, worldSize/2).Draw(t, "x")
		z := rapid.Float64Range(-worldSize/2, worldSize/2).Draw(t, "z")

		uv := WorldToUV(x, z, worldSize, scale, margin)
		gotX, gotZ := UVToWorld(uv.U, uv.V, worldSize, scale, margin)
		if math.Abs(gotX-x) > 1e-6*worldSize || math.Abs(gotZ-z) > 1e-6*worldSize {
			t.Fatalf("round trip (%v,%v) -> (%v,%v)", x, z, gotX, gotZ)
		}
	})
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{1.5, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGridCell(t *testing.T) {
	const worldSize = 4000.0
	cells := GridCells(worldSize)
	if cells != 27 {
		t.Fatalf("GridCells(4000) = %d, want 27", cells)
	}

	// North-west corner is column A, row 0.
	if got := GridCell(-worldSize/2, worldSize/2, worldSize); got != "A0" {
		t.Errorf("north-west corner = %q, want A0", got)
	}
	// South-east corner is the last column and last row.
	if got := GridCell(worldSize/2, -worldSize/2, worldSize); got != "AA26" {
		t.Errorf("south-east corner = %q, want AA26", got)
	}
	// Out-of-bounds positions clamp to edge cells.
	if got := GridCell(-1e9, 1e9, worldSize); got != "A0" {
		t.Errorf("out-of-bounds = %q, want A0", got)
	}
}

func TestGridLetter(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
	}
	for _, tt := range tests {
		if got := gridLetter(tt.in); got != tt.want {
			t.Errorf("gridLetter(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
