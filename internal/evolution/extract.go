// File: internal/evolution/extract.go
package evolution

import (
	"regexp"
	"strings"
)

// fencedBlockRegex matches a triple-backtick fenced block, optionally tagged
// json or jsonc, capturing its trimmed content.
var fencedBlockRegex = regexp.MustCompile("(?s)```(?:json|jsonc)?[ \\t]*\\n?(.*?)\\n?[ \\t]*```")

// ExtractPlaybook pulls the candidate playbook out of a raw model response.
// Models often reason in prose before emitting the final structured artifact,
// so when one or more fenced blocks are present the LAST one wins. With no
// fenced block at all, the whole trimmed response is the candidate — absence
// of formatting is never a failure here.
func ExtractPlaybook(response string) string {
	matches := fencedBlockRegex.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(response)
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}
