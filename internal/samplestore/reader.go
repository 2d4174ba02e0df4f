// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package samplestore

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fufel/trailmap/internal/models"
)

// ReadAll streams a record file and returns at most maxCount samples. When
// the file holds more records than maxCount, every Nth record is selected
// with stride N = max(1, total/maxCount); given the same file and maxCount
// the result is identical across calls. The selection starts at the first
// record, so the final record is not guaranteed to be included.
//
// Malformed lines are skipped, not fatal. A missing file reads as empty.
func ReadAll(path string, maxCount int) ([]models.Sample, error) {
	if path == "" || maxCount <= 0 {
		return nil, nil
	}

	total, err := CountRecords(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	stride := 1
	if total > maxCount {
		stride = total / maxCount
		if stride < 1 {
			stride = 1
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening record file: %w", err)
	}
	defer f.Close()

	out := make([]models.Sample, 0, min(total, maxCount))
	idx := -1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if skippable(line) {
			continue
		}
		idx++
		if stride > 1 && idx%stride != 0 {
			continue
		}

		rec, ok := parseRecord(line)
		if !ok {
			continue
		}
		out = append(out, rec)
		if len(out) >= maxCount {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning record file: %w", err)
	}
	return out, nil
}

// CountRecords returns the number of data records in a file, excluding the
// header and blank lines.
func CountRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if !skippable(scanner.Text()) {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

func skippable(line string) bool {
	return strings.TrimSpace(line) == "" || strings.HasPrefix(line, "t,")
}

func parseRecord(line string) (models.Sample, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 5 {
		return models.Sample{}, false
	}
	var vals [5]float64
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return models.Sample{}, false
		}
		vals[i] = v
	}
	return models.Sample{T: vals[0], WX: vals[1], WZ: vals[2], U: vals[3], V: vals[4]}, true
}
