// Package config handles configuration loading, parsing, and validation
// from a .env file, an optional config.yaml, and TASKHIVE_ environment
// variables. Values are validated with go-playground/validator struct tags.
package config
