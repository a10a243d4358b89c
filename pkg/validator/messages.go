// Package validator applies pattern- and whitelist-based security rules
// to queries before they reach an executor adapter, matching spec.md §4.1.
package validator

// category names the rejection message bucket a blocked rule belongs to.
type category string

const (
	catFileRead     category = "file_read"
	catFileWrite    category = "file_write"
	catSystemCmd    category = "system_cmd"
	catPrivilege    category = "privilege"
	catServerConfig category = "server_config"
	catDestructive  category = "destructive"
	catInfoLeak     category = "info_leak"
	catExtension    category = "extension"
	catNetwork      category = "network"
	catAuth         category = "auth"
	catReplication  category = "replication"
	catAdmin        category = "admin"
)

// messages holds the friendly, non-technical rejection text shown to a
// student for each blocked-query category.
var messages = map[category]string{
	catFileRead:     "Nice try! Reading server files is not allowed in the sandbox.",
	catFileWrite:    "Nope! Writing files to the server is off limits here.",
	catSystemCmd:    "Good attempt, but executing system commands is blocked.",
	catPrivilege:    "Access denied! You can only work with your sandbox data.",
	catServerConfig: "Sorry, server configuration changes are not permitted.",
	catDestructive:  "Whoa there! Destructive server operations are blocked.",
	catInfoLeak:     "Sneaky! But accessing server internals is not allowed.",
	catExtension:    "Extensions and plugins are disabled in the sandbox.",
	catNetwork:      "Network operations from the sandbox? Not today!",
	catAuth:         "Authentication and user management is off limits.",
	catReplication:  "Replication commands are not available in the sandbox.",
	catAdmin:        "Admin commands are blocked. This is a learning sandbox!",
}
