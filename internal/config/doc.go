// Package config handles configuration loading for talkai-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Fields left empty fall back to conventional environment
// variables and then to defaults, so the gateway runs with no file at all.
//
// # Configuration File
//
// Locations (in order):
//
//  1. The --config flag
//  2. Path from TALKAI_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/talkai/gateway.yaml (or ~/.config/talkai/gateway.yaml)
//
// Files ending in .toml are decoded as TOML; anything else as YAML.
//
// # Environment
//
// Values can reference environment variables with ${VAR_NAME}:
//
//	model:
//	  api_key: "${GOOGLE_API_KEY}"
//
// Fields left empty also fall back to PORT, DOCUMENTS_PATH, SQLITE_DB_PATH
// and GOOGLE_API_KEY.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:3000"
//	  ws_path: "/api/v1/talkAi"
//	  allowed_origins: ["chat.example.com"]
//	model:
//	  provider: "gemini"
//	  name: "gemini-2.0-flash"
//	  temperature: 0.2
//	sessions:
//	  send_buffer: 32
//	  write_timeout: "10s"
//	  inbound_queue: 8
//	  max_replay_turns: 0
//	  greeting_prompt: ""
//	approvals:
//	  timeout: "5m"          # "0" waits until the session closes
//	tools:
//	  documents_path: "data/documents"
//	  databases_path: "data/sqlite"
//	  search_url: "https://lite.duckduckgo.com/lite/?q="
//	  fetch_command: "curl"
//	  allowed_commands: ["curl"]
//	  command_timeout: "20s"
//	  max_output_bytes: 16384
//	database:
//	  path: "/var/lib/talkai/audit.db"  # empty disables the approval ledger
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
