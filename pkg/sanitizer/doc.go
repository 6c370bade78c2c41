// Package sanitizer normalizes user and device input before validation and
// storage.
//
// All functions are idempotent and never fail: invalid input collapses to an
// empty string or an empty slice.
//
// Normalization includes:
//   - Plates: upper-case letters and digits only, so "ka 01-ab 1234" and
//     "KA01AB1234" identify the same car
//   - Strings: collapse whitespace, trim leading/trailing spaces
//   - Slices: drop duplicates and empty values after normalization
package sanitizer
