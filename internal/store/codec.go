// Package store holds encoding helpers shared by the persistence backends.
package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EncodeEmbedding serializes a feature vector to the bracketed literal form
// both the REST datastore and pgvector accept ("[0.1,0.2,...]"). An empty
// vector encodes to "".
func EncodeEmbedding(vector []float32) string {
	if len(vector) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// EncodeMetadata serializes the metadata map to a JSON string, the shape the
// datastore's text column expects. Nil maps encode to "".
func EncodeMetadata(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}
