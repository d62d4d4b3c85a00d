// Package config loads, normalizes, and validates shelfmark configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the CLI needs: staging and store directories, external tool paths, and
// logging options.
//
// External tool paths are deliberately not required at load time. A missing
// tool path surfaces as a configuration error on the first use of the filter
// that needs it, so unrelated filters keep working.
package config
