// Package logging builds the structured slog logger used across the
// admission layer. Output format and level come from configuration;
// components receive the logger explicitly and scope it with a
// "component" attribute.
package logging
