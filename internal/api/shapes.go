package api

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
)

// Item is one decoded list element: the raw object plus the type tag some
// endpoints wrap items in, plus position metadata filled in by the pager.
type Item struct {
	Raw  map[string]any
	Type string

	ItemPosition       int
	Offset             int
	TotalNumberOfItems int
}

// Decode maps the raw object onto a typed entity. Decoding is weakly typed
// because the API is inconsistent about numeric versus string IDs.
func (it *Item) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to build decoder")
	}
	if err := dec.Decode(it.Raw); err != nil {
		return errors.Wrap(err, "failed to decode item")
	}
	return nil
}

// envelope covers both list dialects. A response without an items key is a
// single wrapped resource, not a list; the pager branches on the declared
// shape, never on the endpoint name.
type envelope struct {
	Items              []map[string]any
	Limit              int
	Offset             int
	TotalNumberOfItems int
	Cursor             string
	hasItems           bool
	single             map[string]any
}

// parseEnvelope reads a response body into the uniform envelope.
func parseEnvelope(body []byte) (*envelope, error) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, errors.Wrap(err, "failed to parse list response")
	}

	env := &envelope{}
	rawItems, ok := root["items"]
	if !ok {
		env.single = root
		return env, nil
	}
	env.hasItems = true

	list, _ := rawItems.([]any)
	for _, el := range list {
		if m, ok := el.(map[string]any); ok {
			env.Items = append(env.Items, m)
		}
	}

	env.Limit = intField(root, "limit")
	env.Offset = intField(root, "offset")
	env.TotalNumberOfItems = intField(root, "totalNumberOfItems")
	if c, ok := root["cursor"].(string); ok {
		env.Cursor = c
	}
	return env, nil
}

// unwrapItem peels the wrappers list endpoints apply around their elements:
// v1 wraps as {"item": {...}, "type": "..."}, v2 as {"data": {...},
// "itemType": "..."}. Returns the inner object and its type tag.
func unwrapItem(m map[string]any) (map[string]any, string) {
	if typ, ok := m["itemType"].(string); ok {
		if inner, ok := m["data"].(map[string]any); ok {
			return inner, typ
		}
	}
	typ, _ := m["type"].(string)
	if inner, ok := m["item"].(map[string]any); ok {
		return inner, typ
	}
	return m, typ
}

func intField(m map[string]any, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}
