package config

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	DefaultProxyListen   = ":2000"
	DefaultProxyUpstream = "https://api.deepseek.com"
	DefaultProxyTimeout  = 60
)

func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		DataDirectory:  "~/.local/share/seekchat",
		StorageBackend: BackendFile,
		Proxy: ProxyConfig{
			Listen:         DefaultProxyListen,
			Upstream:       DefaultProxyUpstream,
			TimeoutSeconds: DefaultProxyTimeout,
		},
	}
}

func GenerateConfigTemplate() string {
	return `# seekchat configuration
# Location: ~/.config/seekchat/config.toml
# This file uses TOML format: https://toml.io
#
# The API key, API base URL and model are not configured here. They live in
# the settings record next to your chats and are edited from the settings
# screen (ctrl+o) or overridden per run with SEEKCHAT_API_KEY,
# SEEKCHAT_API_BASE and SEEKCHAT_MODEL.

# Directory where chats and settings are stored
data_directory = "~/.local/share/seekchat"

# "file" keeps chats.json/settings.json, "sqlite" keeps seekchat.db
storage_backend = "file"

# System role for new chats (optional)
# Example: "You are a helpful coding assistant."
default_system_role = ""

# Upper bound for a whole streamed answer, 0 = no limit
request_timeout_seconds = 0

[proxy]
# Address "seekchat proxy" listens on
listen = ":2000"

# Requests are forwarded to upstream + original path
upstream = "https://api.deepseek.com"

# Key injected as "Authorization: Bearer <api_key>"
api_key = ""

timeout_seconds = 60
`
}
