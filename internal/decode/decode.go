// Package decode turns raw response text into a tree.Value according to the
// declared content type.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/tree"
)

// RootKey wraps plain text responses so they can be addressed by path.
const RootKey = "root"

func init() {
	mxj.SetAttrPrefix("@")
}

// Decode parses raw according to contentType, matched by substring: "json",
// "xml", then "text". Unknown types and parse failures yield an empty map
// together with an error wrapping ir.ErrUnsupportedContentType; callers are
// expected to warn rather than fail.
func Decode(raw, contentType string) (tree.Value, error) {
	ct := strings.ToLower(contentType)
	var (
		v   tree.Value
		err error
	)
	switch {
	case strings.Contains(ct, "json"):
		v, err = tree.Parse([]byte(raw))
	case strings.Contains(ct, "xml"):
		v, err = decodeXML(raw)
	case strings.Contains(ct, "text"):
		v, err = decodeText(raw)
	default:
		err = errors.New("no decoder")
	}
	if err != nil {
		return tree.NewMap(), fmt.Errorf("decode %q: %w: %v", contentType, ir.ErrUnsupportedContentType, err)
	}
	return v, nil
}

func decodeXML(raw string) (tree.Value, error) {
	m, err := mxj.NewMapXml([]byte(raw))
	if err != nil {
		return tree.Value{}, err
	}
	return tree.FromAny(map[string]any(m)), nil
}

// decodeText embeds the body verbatim as the value of RootKey, so bodies that
// are JSON literals keep their type. Anything else is stored as a string.
func decodeText(raw string) (tree.Value, error) {
	if v, err := tree.Parse([]byte(`{"` + RootKey + `": ` + raw + `}`)); err == nil {
		return v, nil
	}
	quoted, err := json.Marshal(raw)
	if err != nil {
		return tree.Value{}, err
	}
	return tree.Parse([]byte(`{"` + RootKey + `": ` + string(quoted) + `}`))
}

// Encode renders v as compact JSON.
func Encode(v tree.Value) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
