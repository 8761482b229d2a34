package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SetProjectValue writes a key into the project's .babel/config.yaml,
// updating the key in place when present (even commented out) and appending
// it otherwise. Comments and unrelated keys survive untouched, which matters
// because config.yaml is tracked in version control.
func SetProjectValue(projectRoot, key, value string) error {
	configPath := filepath.Join(projectRoot, BabelDirName, "config.yaml")

	content, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read config.yaml: %w", err)
		}
		content = nil
	}

	newContent := updateYamlKey(string(content), key, value)
	if err := os.WriteFile(configPath, []byte(newContent), 0o600); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}
	return nil
}

// updateYamlKey updates a key in yaml content, handling commented-out keys.
// Missing keys are appended at the end.
func updateYamlKey(content, key, value string) string {
	newLine := fmt.Sprintf("%s: %s", key, formatYamlValue(value))
	keyPattern := regexp.MustCompile(`^(\s*)(#\s*)?` + regexp.QuoteMeta(key) + `\s*:`)

	found := false
	var result []string

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if !found && keyPattern.MatchString(line) {
			matches := keyPattern.FindStringSubmatch(line)
			indent := ""
			if len(matches) > 1 {
				indent = matches[1]
			}
			result = append(result, indent+newLine)
			found = true
		} else {
			result = append(result, line)
		}
	}

	if !found {
		if len(result) > 0 && result[len(result)-1] != "" {
			result = append(result, "")
		}
		result = append(result, newLine)
	}

	return strings.Join(result, "\n") + "\n"
}

// formatYamlValue quotes a value only when YAML would otherwise reinterpret it.
func formatYamlValue(value string) string {
	lower := strings.ToLower(value)
	if lower == "true" || lower == "false" {
		return lower
	}
	if isNumeric(value) || isDuration(value) {
		return value
	}
	if needsQuoting(value) {
		return fmt.Sprintf("%q", value)
	}
	return value
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '-' && i == 0 {
			continue
		}
		if c == '.' {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isDuration(s string) bool {
	if len(s) < 2 {
		return false
	}
	suffix := s[len(s)-1]
	if suffix != 's' && suffix != 'm' && suffix != 'h' {
		return false
	}
	return isNumeric(s[:len(s)-1])
}

func needsQuoting(s string) bool {
	special := []string{":", "#", "[", "]", "{", "}", ",", "&", "*", "!", "|", ">", "'", "\"", "%", "@", "`"}
	for _, c := range special {
		if strings.Contains(s, c) {
			return true
		}
	}
	return strings.TrimSpace(s) != s
}
