package workspace

import (
	"fmt"
	"strings"
)

// EnvVar is one key=value pair parsed from an env file.
type EnvVar struct {
	Key   string
	Value string
}

// ParseEnv extracts the key=value pairs from env-file content. Comments,
// blank lines, and lines without '=' are skipped; an "export " prefix and
// surrounding single or double quotes are stripped. Later assignments of
// the same key win, matching shell semantics.
func ParseEnv(content string) []EnvVar {
	index := map[string]int{}
	var vars []EnvVar

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		value = unquote(value)

		if i, ok := index[key]; ok {
			vars[i].Value = value
			continue
		}
		index[key] = len(vars)
		vars = append(vars, EnvVar{Key: key, Value: value})
	}
	return vars
}

// UpsertEnvVar returns content with key set to value: an existing
// assignment is rewritten in place, otherwise a new line is appended.
func UpsertEnvVar(content, key, value string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimPrefix(strings.TrimSpace(line), "export ")
		eq := strings.Index(trimmed, "=")
		if eq <= 0 {
			continue
		}
		if strings.TrimSpace(trimmed[:eq]) == key {
			lines[i] = fmt.Sprintf("%s=%s", key, value)
			return strings.Join(lines, "\n")
		}
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + fmt.Sprintf("%s=%s\n", key, value)
}

// placeholderValues are sentinel values meaning "not filled in yet".
// A key holding one of these is incomplete, not in conflict with a real
// remote value.
var placeholderValues = []string{
	"",
	"changeme",
	"change-me",
	"change_me",
	"todo",
	"fixme",
	"xxx",
	"your-key-here",
	"your_key_here",
	"...",
}

// IsPlaceholder reports whether value is a fill-me-in sentinel rather
// than a real secret.
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, p := range placeholderValues {
		if v == p {
			return true
		}
	}
	// Angle-bracket templates like <your token> count too.
	return strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">")
}

// unquote strips one layer of matching single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
