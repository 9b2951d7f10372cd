// Package config loads runtime configuration for the msgbox client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     address:port of the msgbox server
//	-r int        connection attempts before giving up
//	-d duration   delay between connection attempts
//	-t duration   dial and request timeout
//
// # JSON schema
//
// Durations accept strings like "1s" or integer nanoseconds:
//
//	{
//	  "server_addr": "127.0.0.1:64623",
//	  "connect_retries": 3,
//	  "retry_delay": "1s",
//	  "timeout": "10s"
//	}
package config
