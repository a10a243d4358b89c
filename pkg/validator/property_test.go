package validator

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
)

// TestProperty_SQLBlockingIsCaseInsensitive checks that a query built
// around a blocked keyword is rejected regardless of how its letters are
// cased, since ValidateSQL matches case-insensitively.
func TestProperty_SQLBlockingIsCaseInsensitive(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("DROP DATABASE is blocked under any casing", prop.ForAll(
		func(caseMask uint16) bool {
			keyword := randomCase("drop database", caseMask)
			err := ValidateSQL(keyword + " students")
			return err != nil
		},
		gen.UInt16(),
	))

	properties.Property("an ordinary SELECT is never blocked regardless of whitespace padding", prop.ForAll(
		func(padding uint8) bool {
			if padding > 20 {
				padding = 20
			}
			query := strings.Repeat(" ", int(padding)) + "SELECT name FROM students"
			return ValidateSQL(query) == nil
		},
		gen.UInt8(),
	))

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties.TestingRun(t, params)
}

// TestProperty_RedisUnknownCommandAlwaysBlocked checks that any command
// string absent from both the whitelist and the dangerous map is always
// rejected, whatever arguments follow it.
func TestProperty_RedisUnknownCommandAlwaysBlocked(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a made-up command name is always blocked", prop.ForAll(
		func(suffix string, arg string) bool {
			command := "ZZNOTACOMMAND" + suffix
			if redisAllowedCommands[strings.ToUpper(command)] {
				return true
			}
			if _, dangerous := redisDangerousCommands[strings.ToUpper(command)]; dangerous {
				return true
			}
			err := ValidateRedis(command + " " + arg)
			return err != nil
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties.TestingRun(t, params)
}

// TestProperty_ValidateDispatchesByKind checks that Validate never panics
// and defaults to no-op for a kind with no registered rules.
func TestProperty_ValidateDispatchesByKind(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("unknown kinds are never blocked", prop.ForAll(
		func(query string) bool {
			return Validate(executor.Kind("unknown"), query) == nil
		},
		gen.AlphaString(),
	))

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties.TestingRun(t, params)
}

func randomCase(s string, mask uint16) string {
	var b strings.Builder
	for i, r := range s {
		if mask&(1<<uint(i%16)) != 0 {
			b.WriteRune(toUpperRune(r))
		} else {
			b.WriteRune(toLowerRune(r))
		}
	}
	return b.String()
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
