// Package config handles configuration loading for the workbench host.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from WORKBENCH_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/workbench/workbench.yaml
//  3. ~/.config/workbench/workbench.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	data:
//	  dir: "${WORKBENCH_DATA_DIR}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  shutdown_timeout: "10s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "localhost:8800"
//	  shutdown_timeout: "10s"
//
// Data directory (auth state, default history database):
//
//	data:
//	  dir: "/var/lib/workbench"
//
// Workspace roots the host may expose (absolute paths):
//
//	workspace:
//	  roots:
//	    - "/home/dev/projects"
//
// Conversation history:
//
//	history:
//	  path: "/var/lib/workbench/history.db"   # default: <data.dir>/history.db
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - server.http_addr and data.dir are present
//   - Workspace roots are absolute paths
//   - Duration format validity
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
