// Package config loads and validates the agent configuration.
//
// Configuration comes from a YAML file with environment variable
// overrides layered on top, then passes a single validation step before
// anything else starts. It is read once; nothing re-reads it at
// runtime.
//
// Security Considerations:
//   - The credentials secret and the pairing token belong in
//     environment variables, not in the file
//   - When they are in the file, it needs restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/edgehog/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Realm)
package config
