package validator

import "regexp"

type sqlRule struct {
	pattern *regexp.Regexp
	message string
}

// sqlRules is the ordered blocklist applied to the three relational
// backends after comment-stripping and whitespace collapse. Order
// matters only in that the first match wins; rules are grouped by
// concern to mirror spec.md §4.1's table.
var sqlRules = compileSQLRules([]struct {
	pattern string
	cat     category
}{
	// File system access
	{`\bpg_read_file\b`, catFileRead},
	{`\bpg_read_binary_file\b`, catFileRead},
	{`\bpg_stat_file\b`, catFileRead},
	{`\blo_import\b`, catFileRead},
	{`\blo_export\b`, catFileWrite},
	{`\bload_file\b`, catFileRead},
	{`\binto\s+outfile\b`, catFileWrite},
	{`\binto\s+dumpfile\b`, catFileWrite},
	{`\battach\s+database\b`, catFileRead},

	// System command execution
	{`\bcopy\b.*\bto\s+program\b`, catSystemCmd},
	{`\bcopy\b.*\bfrom\s+program\b`, catSystemCmd},
	{`\bpg_execute_server_program\b`, catSystemCmd},

	// Privilege escalation / user info
	{`\bpg_shadow\b`, catPrivilege},
	{`\bpg_authid\b`, catPrivilege},
	{`\bpg_auth_members\b`, catPrivilege},
	{`\bpg_roles\b`, catPrivilege},
	{`\bpg_user\b`, catPrivilege},
	{`\binformation_schema\.user_privileges\b`, catPrivilege},
	{`\bmysql\.user\b`, catPrivilege},
	{`\bmysql\.db\b`, catPrivilege},
	{`\bmysql\.tables_priv\b`, catPrivilege},
	{`\bmysql\.columns_priv\b`, catPrivilege},
	{`\bmysql\.global_priv\b`, catPrivilege},
	{`\bperformance_schema\b`, catPrivilege},

	// Server configuration
	{`\bset\s+global\b`, catServerConfig},
	{`\balter\s+system\b`, catServerConfig},
	{`\bpg_reload_conf\b`, catServerConfig},
	{`\bpg_terminate_backend\b`, catServerConfig},
	{`\bpg_cancel_backend\b`, catServerConfig},
	{`\bpg_sleep\b`, catServerConfig},

	// Dangerous DDL / admin
	{`\bcreate\s+role\b`, catAuth},
	{`\bcreate\s+user\b`, catAuth},
	{`\balter\s+role\b`, catAuth},
	{`\balter\s+user\b`, catAuth},
	{`\bdrop\s+role\b`, catAuth},
	{`\bdrop\s+user\b`, catAuth},
	{`\bgrant\b`, catAuth},
	{`\brevoke\b`, catAuth},
	{`\bcreate\s+extension\b`, catExtension},
	{`\bcreate\s+(?:or\s+replace\s+)?function\b`, catSystemCmd},
	{`\bcreate\s+(?:or\s+replace\s+)?procedure\b`, catSystemCmd},
	{`\bcreate\s+trigger\b`, catSystemCmd},
	{`\bcreate\s+event\b`, catSystemCmd},
	{`\bdo\s*\$`, catSystemCmd},

	// Session isolation (prevent schema/db escape)
	{`\bcreate\s+schema\b`, catDestructive},
	{`\bdrop\s+schema\b`, catDestructive},
	{`\bset\s+search_path\b`, catServerConfig},
	{`\buse\s+\w`, catServerConfig},

	// Destructive server-wide operations
	{`\bdrop\s+database\b`, catDestructive},
	{`\bcreate\s+database\b`, catDestructive},
	{`\bdrop\s+tablespace\b`, catDestructive},

	// Network / external access
	{`\bdblink\b`, catNetwork},
	{`\bpostgres_fdw\b`, catNetwork},
	{`\bcreate\s+server\b`, catNetwork},
	{`\bcreate\s+foreign\b`, catNetwork},

	// Information leaking
	{`\bpg_ls_dir\b`, catInfoLeak},
	{`\bpg_ls_logdir\b`, catInfoLeak},
	{`\bpg_ls_waldir\b`, catInfoLeak},
	{`\bcurrent_setting\b`, catInfoLeak},
	{`\bpg_hba_file_rules\b`, catInfoLeak},
	{`\bshow\s+variables\b`, catInfoLeak},
	{`\bshow\s+grants\b`, catInfoLeak},
	{`\bshow\s+(?:master|slave|replica)\b`, catReplication},
})

func compileSQLRules(defs []struct {
	pattern string
	cat     category
}) []sqlRule {
	rules := make([]sqlRule, 0, len(defs))
	for _, d := range defs {
		rules = append(rules, sqlRule{
			pattern: regexp.MustCompile(`(?i)` + d.pattern),
			message: messages[d.cat],
		})
	}
	return rules
}

var (
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// stripSQLComments removes block and line comments before matching so a
// commented-out keyword cannot be used to hide it from the blocklist,
// then collapses whitespace to normalize spacing tricks.
func stripSQLComments(query string) string {
	cleaned := blockCommentRe.ReplaceAllString(query, " ")
	cleaned = lineCommentRe.ReplaceAllString(cleaned, " ")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return trimSpace(cleaned)
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// ValidateSQL checks a PostgreSQL/MariaDB/SQLite-family query against
// the blocklist, comments stripped first. The first matching rule wins.
func ValidateSQL(query string) error {
	cleaned := stripSQLComments(query)
	for _, rule := range sqlRules {
		if rule.pattern.MatchString(cleaned) {
			return blockedError(rule.message)
		}
	}
	return nil
}
