package skills

import (
	"os"
	"path/filepath"
	"strings"
)

// SkillsPathEnvVar is the environment variable listing overlay directories.
const SkillsPathEnvVar = "SKILLS_PATH"

// DefaultOverlayDirs are tried in order; missing directories are skipped.
var DefaultOverlayDirs = []string{
	"config/skills",      // Development: relative to working directory
	"/app/config/skills", // Container: mounted config path
}

// ResolveSkillDirs returns overlay directories from SKILLS_PATH (a
// path-list like PATH) or DefaultOverlayDirs.
func ResolveSkillDirs() []string {
	if env := strings.TrimSpace(os.Getenv(SkillsPathEnvVar)); env != "" {
		return splitSearchPaths(env)
	}
	return DefaultOverlayDirs
}

func splitSearchPaths(value string) []string {
	parts := strings.Split(value, string(os.PathListSeparator))
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}
