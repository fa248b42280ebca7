// Package output provides output formatting for tlsmesh-cli.
//
// Commands build a Table for human output; the same data is written as
// JSON or YAML when --output asks for machine-readable formats.
package output
