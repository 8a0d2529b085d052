// Package domain contains the core value types and errors for serialbridge.
//
// This package has no dependencies on infrastructure concerns (serial I/O,
// HTTP, logging) and contains only plain values.
//
// # Entities
//
//   - [Frame]: one decoded unit of device data with its arrival time
//   - [Slot]: a published reading (current or last changed), absent until first publish
//   - [Snapshot]: a consistent copy of both slots plus publish counters
package domain
