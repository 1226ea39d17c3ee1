package sandboxworker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// artifactFrontmatter is the minimal shape every SYNC-phase markdown file
// must carry (§4.6 "Spec output validation", §4.7 artifact generation):
// an id in one of the REQ-/TSK-/TKT- families plus a status field.
type artifactFrontmatter struct {
	ID     string `yaml:"id"`
	Status string `yaml:"status"`
}

// ValidateSpecOutput walks dir and checks that every .md file has a
// parseable YAML frontmatter block with a non-empty id matching one of
// the known artifact prefixes. It returns the first validation failure
// found, or nil if the directory is entirely valid. Used only when the
// worker was started with RequireSpecSkill set.
func ValidateSpecOutput(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		fm, err := extractFrontmatter(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		var parsed artifactFrontmatter
		if err := yaml.Unmarshal(fm, &parsed); err != nil {
			return fmt.Errorf("%s: parse frontmatter: %w", path, err)
		}
		if !hasValidArtifactID(parsed.ID) {
			return fmt.Errorf("%s: missing or malformed artifact id %q", path, parsed.ID)
		}
		return nil
	})
}

func extractFrontmatter(raw []byte) ([]byte, error) {
	const delim = "---"
	text := string(raw)
	if !strings.HasPrefix(text, delim) {
		return nil, fmt.Errorf("no frontmatter delimiter at start of file")
	}
	rest := text[len(delim):]
	end := strings.Index(rest, delim)
	if end < 0 {
		return nil, fmt.Errorf("unterminated frontmatter block")
	}
	return []byte(rest[:end]), nil
}

func hasValidArtifactID(id string) bool {
	for _, prefix := range []string{"REQ-", "TSK-", "TKT-"} {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}
