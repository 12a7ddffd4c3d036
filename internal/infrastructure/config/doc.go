// Package config handles loading and validating rpihome configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with a dotenv file and environment variables
//   - Validation of required fields (bind address, protected key)
//   - Default value handling
//
// Security Considerations:
//   - The protected key should be set via RPIHOME_PROTECTED_KEY
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/rpihome/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Address)
package config
