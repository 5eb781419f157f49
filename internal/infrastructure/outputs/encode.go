package outputs

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zlib"

	"github.com/akave-ai/nbstreamer/internal/model"
)

// Encode serializes msg to compact GELF JSON, zlib-compressed when compress is set.
func Encode(msg *model.GELFMessage, compress bool) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal gelf: %w", err)
	}
	if !compress {
		return payload, nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress gelf: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress gelf: %w", err)
	}
	return buf.Bytes(), nil
}
