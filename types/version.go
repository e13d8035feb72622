// Package types defines identity types shared across meshforge packages.
//
//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical project version.
// The CLI, the mesh frame format and the completion event share this version.
const Version = "0.3.0"
