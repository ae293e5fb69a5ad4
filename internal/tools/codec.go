package tools

import "encoding/json"

// jsonRemarshal re-encodes a decoded JSON value (map[string]any, as
// produced by the dispatcher from the wire) into a typed struct. This
// is a one-shot JSON round trip, not a hot path, so it is simpler and
// less error-prone than hand-rolled field-by-field extraction.
func jsonRemarshal(in map[string]any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
