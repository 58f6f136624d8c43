package chat

import (
	"reflect"

	"github.com/cloudwego/eino/schema"
)

// extractText pulls the assistant text out of an agent-graph result. Graphs
// return either a message value, a mapping with a "content" key (possibly
// nested under "messages"), or a bare string; the accessor tolerates all of
// them and reports false when no text is present.
func extractText(result any) (string, bool) {
	switch v := result.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case *schema.Message:
		if v == nil {
			return "", false
		}
		return v.Content, v.Content != ""
	case schema.Message:
		return v.Content, v.Content != ""
	case map[string]any:
		if msgs, ok := v["messages"].([]any); ok && len(msgs) > 0 {
			return extractText(msgs[len(msgs)-1])
		}
		if content, ok := v["content"].(string); ok {
			return content, content != ""
		}
		return "", false
	}
	return extractField(result, "Content")
}

// extractField looks up a string field by name on an arbitrary struct or
// struct pointer.
func extractField(result any, name string) (string, bool) {
	rv := reflect.ValueOf(result)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "", false
	}
	field := rv.FieldByName(name)
	if !field.IsValid() || field.Kind() != reflect.String {
		return "", false
	}
	s := field.String()
	return s, s != ""
}
