package zotero

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DatabaseName is the file name of the library database.
const DatabaseName = "zotero.sqlite"

// Candidates returns the database locations probed on the given OS,
// in priority order.
func Candidates(home, goos string) []string {
	switch goos {
	case "windows":
		return []string{
			filepath.Join(home, "Zotero", DatabaseName),
			filepath.Join(home, "Documents", "Zotero", DatabaseName),
		}
	case "darwin":
		return []string{
			filepath.Join(home, "Zotero", DatabaseName),
		}
	default:
		candidates := []string{
			filepath.Join(home, "Zotero", DatabaseName),
			filepath.Join(home, ".zotero", "zotero", DatabaseName),
		}
		profiles := filepath.Join(home, ".zotero", "zotero")
		entries, err := os.ReadDir(profiles)
		if err != nil {
			return candidates
		}
		for _, e := range entries {
			if e.IsDir() && strings.HasSuffix(e.Name(), ".default") {
				candidates = append(candidates, filepath.Join(profiles, e.Name(), "zotero", DatabaseName))
			}
		}
		return candidates
	}
}

// FindDatabase returns the first existing candidate database.
func FindDatabase(home, goos string) (string, bool) {
	for _, path := range Candidates(home, goos) {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// DefaultDatabase probes the current user's well-known locations.
func DefaultDatabase() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return FindDatabase(home, runtime.GOOS)
}
