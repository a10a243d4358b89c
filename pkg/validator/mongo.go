package validator

var mongoRules = compileSQLRules([]struct {
	pattern string
	cat     category
}{
	// Admin commands
	{`\badminCommand\b`, catAdmin},
	{`\brunCommand\b`, catAdmin},
	{`\bgetSiblingDB\b`, catAdmin},
	{`\bgetMongo\b`, catAdmin},
	{`\bshutdownServer\b`, catDestructive},
	{`\bfsyncLock\b`, catDestructive},
	{`\bfsyncUnlock\b`, catDestructive},

	// Code execution
	{`\$where\b`, catSystemCmd},
	{`\beval\b`, catSystemCmd},
	{`\bsystem\b`, catSystemCmd},
	{`\$function\b`, catSystemCmd},
	{`\$accumulator\b`, catSystemCmd},
	{`\bmapReduce\b`, catSystemCmd},

	// Auth / users
	{`\bcreateUser\b`, catAuth},
	{`\bdropUser\b`, catAuth},
	{`\bupdateUser\b`, catAuth},
	{`\bgrantRolesToUser\b`, catAuth},
	{`\brevokeRolesFromUser\b`, catAuth},
	{`\bcreateRole\b`, catAuth},

	// Database-level destructive
	{`\bdropDatabase\b`, catDestructive},

	// Server info
	{`\bserverStatus\b`, catInfoLeak},
	{`\bhostInfo\b`, catInfoLeak},
	{`\blistDatabases\b`, catInfoLeak},
	{`\bcurrentOp\b`, catInfoLeak},
	{`\bgetCmdLineOpts\b`, catInfoLeak},
	{`\bgetLog\b`, catInfoLeak},

	// Replication
	{`\breplSetGetStatus\b`, catReplication},
	{`\breplSetInitiate\b`, catReplication},
	{`\bisMaster\b`, catReplication},

	// Arbitrary JS in string
	{`\bprocess\s*\.`, catSystemCmd},
	{`\brequire\s*\(`, catSystemCmd},
	{`\bchild_process\b`, catSystemCmd},
	{`\bspawn\s*\(`, catSystemCmd},
	{`\bexec\s*\(`, catSystemCmd},
})

// ValidateMongo checks a document-store query against the blocklist.
// Unlike ValidateSQL, the raw query is matched directly: Mongo queries
// have no comment syntax to strip.
func ValidateMongo(query string) error {
	for _, rule := range mongoRules {
		if rule.pattern.MatchString(query) {
			return blockedError(rule.message)
		}
	}
	return nil
}
