package snapshot

import (
	"strings"

	"github.com/Jeffail/gabs"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// unportable are the index settings a cluster assigns itself. Carrying
// them over to another cluster makes index creation fail.
var unportable = []string{"uuid", "creation_date", "version", "provided_name", "store", "routing", "resize"}

const schemaShape = `{
  "type": "object",
  "properties": {
    "settings": {"type": "object"},
    "mappings": {"type": "object"}
  }
}`

// replicasPatch is merged into every restored schema; CI clusters are
// a single node, where replicas would leave the index yellow.
const replicasPatch = `{"settings":{"index":{"number_of_replicas":0}}}`

// portableSchema turns the GET /{index} response for index into the
// contents of schema.json.
func portableSchema(index string, described []byte) ([]byte, error) {
	parsed, err := gabs.ParseJSON(described)
	if err != nil {
		return nil, errors.Wrap(err, "parsing index description")
	}
	if entry := parsed.Search(index); entry == nil || entry.Data() == nil {
		return nil, errors.Errorf("index description has no entry for %s", index)
	}

	schema := gabs.New()
	for _, section := range []string{"settings", "mappings"} {
		var value interface{} = map[string]interface{}{}
		if found := parsed.Search(index, section); found != nil && found.Data() != nil {
			value = found.Data()
		}
		if _, err := schema.Set(value, section); err != nil {
			return nil, errors.Wrapf(err, "copying %s", section)
		}
	}
	for _, key := range unportable {
		// absent keys are fine
		schema.Delete("settings", "index", key)
	}
	return schema.BytesIndent("", "  "), nil
}

// restorableSchema checks the contents of schema.json and returns the
// body to create the index with.
func restorableSchema(raw []byte) ([]byte, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schemaShape), gojsonschema.NewStringLoader(string(raw)))
	if err != nil {
		return nil, errors.Wrap(err, "reading schema")
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, errors.Errorf("invalid schema: %s", strings.Join(problems, "; "))
	}
	patched, err := jsonpatch.MergePatch(raw, []byte(replicasPatch))
	if err != nil {
		return nil, errors.Wrap(err, "forcing replicas to 0")
	}
	return patched, nil
}
