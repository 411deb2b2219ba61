package ingest

import (
	"fmt"
	"strings"

	"github.com/basekick-labs/pointmap/pkg/models"
	"github.com/rs/zerolog"
)

// Supported payload formats
const (
	FormatLineProtocol = "line"
	FormatMsgPack      = "msgpack"
)

// Encoder serializes points into a write payload
type Encoder interface {
	EncodePoint(p models.Point) ([]byte, error)
	EncodeBatch(points []models.Point) ([]byte, error)
}

// NewEncoder returns the encoder for format
func NewEncoder(format string, logger zerolog.Logger) (Encoder, error) {
	switch strings.ToLower(format) {
	case FormatLineProtocol, "":
		return NewLineProtocolEncoder(), nil
	case FormatMsgPack:
		return NewMessagePackEncoder(logger), nil
	default:
		return nil, fmt.Errorf("unsupported payload format %q", format)
	}
}
