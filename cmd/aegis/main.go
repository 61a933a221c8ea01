// Aegis is a resource-admission layer: tiered rate limiting, response
// caching, and background job dispatch over a shared key-value store.
//
// Usage:
//
//	# Start the admission service with the default configuration
//	aegis run
//
//	# Start with a custom configuration file
//	aegis run --config /etc/aegis/config.yaml
//
//	# Validate a configuration file without starting
//	aegis validate --config /etc/aegis/config.yaml
//
//	# Show version information
//	aegis version
package main

func main() {
	Execute()
}
