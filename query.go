package gqlrealtime

import (
	"fmt"
	"strings"
)

// requireOperationNameOnMultiOp implements spec.md §4.8's "multi-operation
// documents require an explicit operation name." Full document parsing is
// out of scope (spec.md §1); this is a narrow lexical count of top-level
// "query"/"mutation"/"subscription" keywords at brace depth 0 that begin a
// line (after optional spaces or tabs); it is
// deliberately conservative and only used to catch the common mistake of
// sending a multi-operation document without OperationName, not to
// validate GraphQL syntax.
func requireOperationNameOnMultiOp(req Request) error {
	if req.OperationName != "" {
		return nil
	}
	if countTopLevelOperations(req.Query) > 1 {
		return fmt.Errorf("gqlrealtime: document defines more than one operation; OperationName is required")
	}
	return nil
}

func countTopLevelOperations(query string) int {
	depth := 0
	count := 0
	atLineStart := true
	i := 0
	n := len(query)
	for i < n {
		c := query[i]
		switch c {
		case '{':
			depth++
			i++
			continue
		case '}':
			depth--
			i++
			continue
		case '\n':
			atLineStart = true
			i++
			continue
		}
		if depth == 0 && (atLineStart || i == 0) {
			for _, kw := range []string{"query", "mutation", "subscription"} {
				if strings.HasPrefix(query[i:], kw) && startsNewOperation(query, i, len(kw)) {
					count++
					break
				}
			}
		}
		if c != ' ' && c != '\t' {
			atLineStart = false
		}
		i++
	}
	return count
}

func startsNewOperation(query string, i, kwLen int) bool {
	if i+kwLen >= len(query) {
		return i+kwLen == len(query)
	}
	after := query[i+kwLen]
	return after == ' ' || after == '\t' || after == '\n' || after == '{' || after == '('
}
