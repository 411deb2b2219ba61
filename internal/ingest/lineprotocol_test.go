package ingest

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/basekick-labs/pointmap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineProtocolEncoder_EncodePoint(t *testing.T) {
	enc := NewLineProtocolEncoder()

	tests := []struct {
		name  string
		point models.Point
		want  string
	}{
		{
			name: "service metric",
			point: models.Point{
				Measurement: "service_metric",
				Fields: map[string]interface{}{
					"id":          "svc-1",
					"entity_id":   "svcA",
					"value":       int64(42),
					"time_bucket": int64(20240101120000),
				},
				Tags: map[string]string{"_time_bucket": "20240101120000"},
			},
			want: `service_metric,_time_bucket=20240101120000 entity_id="svcA",id="svc-1",time_bucket=20240101120000i,value=42i`,
		},
		{
			name: "typed fields",
			point: models.Point{
				Measurement: "status",
				Fields: map[string]interface{}{
					"active": true,
					"bytes":  uint64(1024),
					"ratio":  0.5,
					"whole":  float64(3),
				},
			},
			want: `status active=true,bytes=1024u,ratio=0.5,whole=3`,
		},
		{
			name: "timestamp in nanoseconds",
			point: models.Point{
				Measurement: "cpu",
				Fields:      map[string]interface{}{"usage": 90.5},
				Time:        1609459200000,
				TimeUnit:    time.Millisecond,
			},
			want: `cpu usage=90.5 1609459200000000000`,
		},
		{
			name: "escaping",
			point: models.Point{
				Measurement: "http requests,v2",
				Fields:      map[string]interface{}{"msg key": `say "hi" \o/`},
				Tags:        map[string]string{"path=x": "/a b,c"},
			},
			want: `http\ requests\,v2,path\=x=/a\ b\,c msg\ key="say \"hi\" \\o/"`,
		},
		{
			name: "newlines escaped",
			point: models.Point{
				Measurement: "m\nx",
				Fields:      map[string]interface{}{"id": "a\nb", "k\r": 1},
				Tags:        map[string]string{"_time_bucket": "x\ny"},
			},
			want: `m\nx,_time_bucket=x\ny id="a\nb",k\r=1i`,
		},
		{
			name: "nil and non-finite fields skipped",
			point: models.Point{
				Measurement: "m",
				Fields: map[string]interface{}{
					"a": nil,
					"b": math.NaN(),
					"c": math.Inf(1),
					"d": int32(-7),
				},
			},
			want: `m d=-7i`,
		},
		{
			name: "empty tag values skipped",
			point: models.Point{
				Measurement: "m",
				Fields:      map[string]interface{}{"v": 1},
				Tags:        map[string]string{"empty": "", "host": "a"},
			},
			want: `m,host=a v=1i`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.EncodePoint(tt.point)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestLineProtocolEncoder_Errors(t *testing.T) {
	enc := NewLineProtocolEncoder()

	_, err := enc.EncodePoint(models.Point{Fields: map[string]interface{}{"v": 1}})
	assert.Error(t, err)

	_, err = enc.EncodePoint(models.Point{Measurement: "m", Fields: map[string]interface{}{"v": nil}})
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestLineProtocolEncoder_OneLinePerPoint(t *testing.T) {
	enc := NewLineProtocolEncoder()

	got, err := enc.EncodeBatch([]models.Point{{
		Measurement: "m",
		Fields:      map[string]interface{}{"id": "a\nb", "msg": "line1\r\nline2"},
		Tags:        map[string]string{"_time_bucket": "x\ny", "host\n": "h"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(got), "\n"))
	assert.NotContains(t, string(got), "\r")
}

func TestLineProtocolEncoder_TimestampOutOfRange(t *testing.T) {
	enc := NewLineProtocolEncoder()

	// Milliseconds labelled as seconds overflow int64 nanoseconds
	_, err := enc.EncodePoint(models.Point{
		Measurement: "m",
		Fields:      map[string]interface{}{"v": 1},
		Time:        1704110400000,
		TimeUnit:    time.Second,
	})
	assert.ErrorIs(t, err, models.ErrTimeOutOfRange)

	_, err = enc.EncodeBatch([]models.Point{{
		Measurement: "m",
		Fields:      map[string]interface{}{"v": 1},
		Time:        -1704110400000,
		TimeUnit:    time.Second,
	}})
	assert.ErrorIs(t, err, models.ErrTimeOutOfRange)
}

func TestLineProtocolEncoder_EncodeBatch(t *testing.T) {
	enc := NewLineProtocolEncoder()

	points := []models.Point{
		{Measurement: "a", Fields: map[string]interface{}{"v": 1}},
		{Measurement: "b", Fields: map[string]interface{}{"v": "x"}},
	}

	got, err := enc.EncodeBatch(points)
	require.NoError(t, err)
	assert.Equal(t, "a v=1i\nb v=\"x\"\n", string(got))

	points = append(points, models.Point{Measurement: "c"})
	_, err = enc.EncodeBatch(points)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "point 2:"))
}

func TestLineProtocolEncoder_InvalidUTF8(t *testing.T) {
	enc := NewLineProtocolEncoder()

	got, err := enc.EncodePoint(models.Point{
		Measurement: "m",
		Fields:      map[string]interface{}{"msg": "bad\xffbyte"},
	})
	require.NoError(t, err)
	assert.Equal(t, "m msg=\"bad\uFFFDbyte\"", string(got))
}
