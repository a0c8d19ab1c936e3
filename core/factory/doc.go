// Package factory holds generic registries used to build pluggable sinks and
// stores from their configuration block.
package factory
