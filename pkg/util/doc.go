// Package util provides small shared helpers used across popshop packages.
//
//   - TruncateBody — cap request/response bodies for safe logging
package util
