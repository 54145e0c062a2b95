package query

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/TRAXX-Intelligence/pkg/client"
)

func TestFormatRemote_SingleRowFieldList(t *testing.T) {
	text, ok := FormatRemote(&client.QueryResponse{
		Rows: []map[string]interface{}{{"id": "t-1", "battery": float64(12), "ok": false}},
	}, 8)
	assert.True(t, ok)
	assert.Equal(t, "battery: 12\nid: t-1\nok: false", text)
}

func TestFormatRemote_ManyRowsNumbered(t *testing.T) {
	var rows []map[string]interface{}
	for i := 0; i < 10; i++ {
		rows = append(rows, map[string]interface{}{"name": fmt.Sprintf("Kit %d", i), "battery": float64(i) + 0.5})
	}
	text, ok := FormatRemote(&client.QueryResponse{Rows: rows, Explanation: "Sorted by battery."}, 8)
	assert.True(t, ok)

	lines := strings.Split(text, "\n")
	assert.Equal(t, "Found 10 results:", lines[0])
	assert.Equal(t, "1. Kit 0 (battery=0.50)", lines[1])
	assert.Equal(t, "8. Kit 7 (battery=7.50)", lines[8])
	assert.Equal(t, "+2 more", lines[9])
	assert.True(t, strings.HasSuffix(text, "\n\nSorted by battery."))
}

func TestFormatRemote_RowWithoutLabel(t *testing.T) {
	text, _ := FormatRemote(&client.QueryResponse{Rows: []map[string]interface{}{
		{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"},
		{"value": "t-9"},
	}}, 8)
	assert.Contains(t, text, "1. a=1, b=2, c=3, …")
	assert.Contains(t, text, "2. value=t-9")
}

func TestFormatRemote_NestedValuesAsJSON(t *testing.T) {
	text, _ := FormatRemote(&client.QueryResponse{Rows: []map[string]interface{}{
		{"id": "f-1", "location": map[string]interface{}{"lat": 39.5}, "note": nil},
	}}, 8)
	assert.Contains(t, text, `location: {"lat":39.5}`)
	assert.Contains(t, text, "note: -")
}

func TestFormatRemote_AnswerText(t *testing.T) {
	text, ok := FormatRemote(&client.QueryResponse{Answer: "All kits are healthy."}, 8)
	assert.True(t, ok)
	assert.Equal(t, "All kits are healthy.", text)

	text, ok = FormatRemote(&client.QueryResponse{Answer: "Two kits.", Explanation: "Counted by site."}, 8)
	assert.True(t, ok)
	assert.Equal(t, "Two kits.\n\nCounted by site.", text)
}

func TestFormatRemote_RowsWinOverAnswer(t *testing.T) {
	text, _ := FormatRemote(&client.QueryResponse{
		Rows:   []map[string]interface{}{{"id": "t-1"}},
		Answer: "ignored",
	}, 8)
	assert.Equal(t, "id: t-1", text)
}

func TestFormatRemote_NoSignal(t *testing.T) {
	_, ok := FormatRemote(&client.QueryResponse{ConversationID: "c-1"}, 8)
	assert.False(t, ok)
	_, ok = FormatRemote(nil, 8)
	assert.False(t, ok)
}

//Personal.AI order the ending
