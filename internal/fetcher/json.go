package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONObject decodes a single JSON object from a reader. Numbers are
// kept as json.Number so timestamp keys and values lose no precision.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}
