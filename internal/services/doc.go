// Package services defines shared utilities consumed by the batch driver and
// the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, file paths and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can tell a
//     stalled encode from a bad configuration with errors.Is.
package services
