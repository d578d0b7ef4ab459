package hw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRational(t *testing.T) {
	assert.Equal(t, Rational{Num: 1500, Den: 1000}, ToRational(1.5))
	assert.Equal(t, Rational{Num: 250, Den: 1000}, ToRational(0.25))
	assert.Equal(t, Rational{Num: 0, Den: 1000}, ToRational(0))
	assert.Equal(t, Rational{Num: -2000, Den: 1000}, ToRational(-2))
	assert.InDelta(t, 1.5, ToRational(1.5).Float(), 1e-6)
	assert.Equal(t, float32(0), Rational{}.Float())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Success", StatusSuccess.String())
	assert.Equal(t, "Argument is invalid", StatusEINVAL.String())
	assert.Equal(t, "Bad address", StatusEFAULT.String())
	assert.Equal(t, "UNKNOWN", Status(999).String())
	assert.NoError(t, StatusSuccess.Err())
	assert.EqualError(t, StatusEIO.Err(), "I/O error (status 7)")
}

func TestParameterString(t *testing.T) {
	assert.Equal(t, "ISO", ParamISO.String())
	assert.Equal(t, "CAPTURE", ParamCapture.String())
	assert.Equal(t, "CAMERA_CUSTOM_SENSOR_CONFIG", ParamCustomSensorConfig.String())
	assert.Equal(t, "Unknown parameter [42]", Parameter(42).String())
}

func TestAwbMode(t *testing.T) {
	m, err := ParseAwbMode("tungsten")
	assert.NoError(t, err)
	assert.Equal(t, AwbTungsten, m)
	assert.Equal(t, "horizon", AwbHorizon.String())

	_, err = ParseAwbMode("moonlight")
	assert.Error(t, err)
}

func TestEncodingString(t *testing.T) {
	assert.Equal(t, "BGR3", EncodingBGR24.String())
	assert.Equal(t, "I420", EncodingI420.String())
}

func TestBufferPayload(t *testing.T) {
	b := &Buffer{Data: []byte{0, 1, 2, 3, 4}, Offset: 1, Length: 3}
	assert.Equal(t, []byte{1, 2, 3}, b.Payload())

	b.Length = 10
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Payload())

	b.Offset = 9
	assert.Nil(t, b.Payload())
}
