package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// SortScriptLines returns the BUR script with its lines sorted and empty
// lines dropped. Scripts are sorted before submission so that identical
// proposals always produce identical request bodies.
func SortScriptLines(script string) string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// ScriptHash returns a short content hash of a normalized script, used to
// deduplicate submissions within a run.
func ScriptHash(script string) string {
	sum := sha256.Sum256([]byte(SortScriptLines(script)))
	return hex.EncodeToString(sum[:])[:16]
}
