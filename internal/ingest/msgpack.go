package ingest

import (
	"fmt"

	"github.com/basekick-labs/pointmap/pkg/models"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// MessagePackEncoder encodes points in Arc's MessagePack row format.
// A single point is written as {m, t, fields, tags}; several points are
// wrapped as {batch: [...]}. Timestamps are written in microseconds.
type MessagePackEncoder struct {
	logger zerolog.Logger
}

// NewMessagePackEncoder creates a new MessagePack encoder
func NewMessagePackEncoder(logger zerolog.Logger) *MessagePackEncoder {
	return &MessagePackEncoder{
		logger: logger.With().Str("component", "msgpack-encoder").Logger(),
	}
}

// EncodePoint encodes a single point as a row payload
func (e *MessagePackEncoder) EncodePoint(p models.Point) ([]byte, error) {
	row, err := toPayload(p)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal msgpack: %w", err)
	}
	return data, nil
}

// EncodeBatch encodes points as a batch payload
func (e *MessagePackEncoder) EncodeBatch(points []models.Point) ([]byte, error) {
	batch := models.MsgPackBatch{Batch: make([]models.MsgPackPayload, 0, len(points))}
	for i := range points {
		row, err := toPayload(points[i])
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		batch.Batch = append(batch.Batch, row)
	}

	data, err := msgpack.Marshal(&batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal msgpack batch: %w", err)
	}

	e.logger.Debug().
		Int("points", len(points)).
		Int("bytes", len(data)).
		Msg("Encoded msgpack batch")

	return data, nil
}

func toPayload(p models.Point) (models.MsgPackPayload, error) {
	if p.Measurement == "" {
		return models.MsgPackPayload{}, fmt.Errorf("point has no measurement")
	}
	if len(p.Fields) == 0 {
		return models.MsgPackPayload{}, fmt.Errorf("%w: measurement %q", ErrNoFields, p.Measurement)
	}
	if err := p.CheckTime(); err != nil {
		return models.MsgPackPayload{}, fmt.Errorf("measurement %q: %w", p.Measurement, err)
	}

	row := models.MsgPackPayload{
		M:      p.Measurement,
		Fields: p.Fields,
		Tags:   p.Tags,
	}
	// The epoch is a valid explicit timestamp, so presence is tracked by pointer
	if p.HasTime() {
		t := p.UnixMicro()
		row.T = &t
	}
	return row, nil
}
