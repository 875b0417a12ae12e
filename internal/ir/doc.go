// Package ir provides the value model and closed enumerations shared by
// every hollow package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - no float types anywhere; numbers are int64
//   - HoleKind, HoleStatus, EdgeKind and Action are closed sets
//   - all JSON tags use snake_case
//   - logical clocks (seq) only, never wall-clock timestamps
package ir
