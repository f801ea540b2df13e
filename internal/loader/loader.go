package loader

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	pkgerrors "github.com/orbyt/workflow-engine/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// LoadFile reads a workflow document from disk and parses it, mirroring the
// teacher's ParseConfig (internal/config/parser.go): read the file, then
// hand the bytes to Parse. A read failure is wrapped as a pkg/errors
// LoadError before classification folds it into the domain taxonomy.
func LoadFile(path string) (map[string]interface{}, Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Document{}, workflow.ClassifyException(pkgerrors.NewLoadError(path, err))
	}
	return parse(path, data)
}

// Parse decodes raw bytes with no path context (e.g. an in-memory document
// supplied by an embedder rather than read from disk).
func Parse(raw []byte) (map[string]interface{}, Document, error) {
	return parse("", raw)
}

// parse decodes raw into two independent representations of the same
// document:
//   - raw: a map[string]interface{} preserving every key verbatim,
//     including unknown or reserved ones. The security phase (spec 4.7.1)
//     needs this form because a typed struct silently drops any field it
//     doesn't declare, which would hide exactly the `_`-prefixed or
//     reserved keys that phase exists to catch.
//   - doc: the typed Document, decoded independently from the same bytes,
//     used by every later phase.
//
// Both decodes come from the same []byte so they can never diverge. A decode
// failure is wrapped as a pkg/errors ParseError (carrying path/line) before
// classification folds it into the domain taxonomy.
func parse(path string, raw []byte) (map[string]interface{}, Document, error) {
	var asMap map[string]interface{}
	if err := yaml.Unmarshal(raw, &asMap); err != nil {
		return nil, Document{}, parseError(path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, Document{}, parseError(path, err)
	}

	return asMap, doc, nil
}

func parseError(path string, err error) *workflow.Error {
	line := extractLine(err)
	wrapped := pkgerrors.NewParseError(path, line, err)
	classified := workflow.ClassifyException(wrapped)
	if line > 0 {
		classified = classified.WithContext(map[string]interface{}{"line": line})
	}
	return classified
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}
	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
