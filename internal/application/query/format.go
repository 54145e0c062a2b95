package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/TRAXX-Intelligence/pkg/client"
)

// labelKeys are tried in order to name a row in a numbered summary.
var labelKeys = []string{"name", "label", "title", "id"}

// maxSummaryFields bounds the extra fields shown per row of a multi-row
// summary.
const maxSummaryFields = 3

// FormatRemote renders a reasoning reply.  One row becomes a field list,
// several rows a numbered summary of at most maxRows with a "+N more" tail,
// and the explanation is appended.  Without rows the first non-empty of
// answer, response and message is used.  ok is false when the reply has
// nothing to show.
func FormatRemote(resp *client.QueryResponse, maxRows int) (string, bool) {
	if !resp.HasSignal() {
		return "", false
	}
	if maxRows < 1 {
		maxRows = 8
	}

	var parts []string
	switch n := len(resp.Rows); {
	case n == 1:
		parts = append(parts, fieldList(resp.Rows[0]))
	case n > 1:
		parts = append(parts, rowSummary(resp.Rows, maxRows))
	case resp.Answer != "":
		parts = append(parts, resp.Answer)
	}
	if resp.Explanation != "" {
		parts = append(parts, resp.Explanation)
	}
	return strings.Join(parts, "\n\n"), true
}

func sortedKeys(row map[string]interface{}) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fieldList(row map[string]interface{}) string {
	keys := sortedKeys(row)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s: %s", k, formatValue(row[k]))
	}
	return strings.Join(lines, "\n")
}

func rowSummary(rows []map[string]interface{}, maxRows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results:", len(rows))
	b.WriteString(list(len(rows), maxRows, func(i int) string {
		return rowLine(rows[i])
	}))
	return b.String()
}

func rowLine(row map[string]interface{}) string {
	label, labelKey := "", ""
	for _, k := range labelKeys {
		if v, ok := row[k]; ok && v != nil {
			label, labelKey = formatValue(v), k
			break
		}
	}

	var fields []string
	for _, k := range sortedKeys(row) {
		if k == labelKey {
			continue
		}
		if len(fields) == maxSummaryFields {
			fields = append(fields, "…")
			break
		}
		fields = append(fields, fmt.Sprintf("%s=%s", k, formatValue(row[k])))
	}

	switch {
	case label == "":
		return strings.Join(fields, ", ")
	case len(fields) == 0:
		return label
	}
	return fmt.Sprintf("%s (%s)", label, strings.Join(fields, ", "))
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.2f", x)
	case bool:
		return fmt.Sprintf("%t", x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

//Personal.AI order the ending
