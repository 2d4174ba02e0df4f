// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package geo converts world positions to normalized map UV coordinates.
//
// The transform is the single source of truth for mapping a world position
// onto the rendered map image. It must be applied identically when samples
// are recorded and when overlays (grid, labels) are derived, so recorded
// (u,v) values stay visually aligned with independently drawn layers.
package geo

import (
	"math"
	"strconv"
)

// GridCellBase is the world-unit edge length the game uses to derive map
// grid cells. The effective cell size divides the world evenly.
const GridCellBase = 146.28572

// UV is a normalized [0,1]x[0,1] position on the rendered map image.
type UV struct {
	U float64
	V float64
}

// MapPixelSize returns the edge length in pixels of the rendered map image
// for the given world size, scale factor and margin.
func MapPixelSize(worldSize, scale float64, margin float64) float64 {
	return worldSize*scale + margin*2
}

// WorldToUV maps a world (x,z) position to normalized map coordinates:
//
//	u = (margin + (x + worldSize/2) * scale) / (worldSize*scale + margin*2)
//
// Out-of-bounds positions clamp to [0,1] rather than failing.
func WorldToUV(x, z, worldSize, scale, margin float64) UV {
	px := MapPixelSize(worldSize, scale, margin)
	return UV{
		U: Clamp01((margin + (x+worldSize/2)*scale) / px),
		V: Clamp01((margin + (z+worldSize/2)*scale) / px),
	}
}

// UVToWorld inverts WorldToUV for in-bounds coordinates. Useful for
// translating dashboard click positions back to world space.
func UVToWorld(u, v, worldSize, scale, margin float64) (x, z float64) {
	px := MapPixelSize(worldSize, scale, margin)
	x = (u*px-margin)/scale - worldSize/2
	z = (v*px-margin)/scale - worldSize/2
	return x, z
}

// Clamp01 clamps f to the closed interval [0,1]. NaN clamps to 0.
func Clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// GridCells returns the number of grid cells along one world edge.
func GridCells(worldSize float64) int {
	return int(math.Floor(worldSize/GridCellBase + 0.001))
}

// GridCell returns the map grid label (for example "A0" or "AB12") for a
// world (x,z) position. Columns run west to east as letters, rows run north
// to south as digits, matching the in-game map overlay.
func GridCell(x, z, worldSize float64) string {
	cells := GridCells(worldSize)
	if cells <= 0 {
		return ""
	}
	cellSize := worldSize / float64(cells)

	col := int(math.Floor((x + worldSize/2) / cellSize))
	row := int(math.Floor((worldSize/2 - z) / cellSize))
	if col < 0 {
		col = 0
	}
	if col >= cells {
		col = cells - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= cells {
		row = cells - 1
	}
	return gridLetter(col) + strconv.Itoa(row)
}

// gridLetter converts a zero-based column index to spreadsheet-style
// letters: 0 -> "A", 25 -> "Z", 26 -> "AA".
func gridLetter(i int) string {
	i++
	s := ""
	for i > 0 {
		i--
		s = string(rune('A'+i%26)) + s
		i /= 26
	}
	return s
}
