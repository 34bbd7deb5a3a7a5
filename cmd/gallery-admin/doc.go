// Command gallery-admin manages access settings for the media gallery
// server from the command line.
//
// It supports the following operations:
//   - set-secret: set the admin secret required for sensitive settings
//   - public-access: enable or disable anonymous read access
//   - status: show the current access configuration
//
// Usage:
//
//	gallery-admin <command>
//
// Commands:
//
//	set-secret            Prompt for a new admin secret and store its
//	                      bcrypt hash in the settings database. The
//	                      secret itself is never persisted.
//
//	public-access on|off  Toggle anonymous read access to the gallery.
//
//	status                Display whether an admin secret is configured
//	                      and whether public access is enabled.
//
// Environment:
//
//	DATA_DIR - Path to the data directory (default: /data)
//
// Notes:
//
// The stored hash is authoritative: once set-secret has run, the
// server's ADMIN_SECRET environment variable no longer authorizes
// sensitive settings writes. Clearing a forgotten secret means deleting
// the admin_secret_hash row from settings.db.
package main
