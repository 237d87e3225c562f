// Package config loads the mitra-client YAML configuration.
//
// A minimal file:
//
//	gateway:
//	  base_url: http://localhost:5000
//	  timeout: 30s
//	storage:
//	  path: ~/.local/share/mitra/sessions.db
//	chat:
//	  max_message_length: 4000
//	  recent_limit: 15
//	logging:
//	  level: info
//	  format: text
//
// ${VAR} references are expanded from the environment before parsing.
package config
