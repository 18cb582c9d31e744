// Package sanitizer normalizes user-supplied booking input before validation
// and storage.
//
// All normalization functions are idempotent: applying them twice yields the
// same result as applying them once. Invalid input is handled without errors,
// by returning an empty string or leaving the value for the validator to
// reject.
//
// Normalization includes:
//   - Phone numbers: E.164 (+[country][number]), national numbers resolved
//     against a default region
//   - Names: drop control characters, collapse whitespace
//   - Emails: trim and lowercase
package sanitizer
