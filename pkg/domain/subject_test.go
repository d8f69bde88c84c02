package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func decodeJSON(t *testing.T, raw string) interface{} {
	t.Helper()
	var v interface{}
	assert.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestDecodeSubjectString(t *testing.T) {
	assert.Equal(t, "Derecho Civil", DecodeSubject(decodeJSON(t, `"Derecho Civil"`)))
}

func TestDecodeSubjectListOfStrings(t *testing.T) {
	assert.Equal(t, "Civil, Penal", DecodeSubject(decodeJSON(t, `["Civil", "Penal"]`)))
}

func TestDecodeSubjectObjectDescription(t *testing.T) {
	assert.Equal(t, "Derecho Fiscal", DecodeSubject(decodeJSON(t, `{"description": "Derecho Fiscal"}`)))
}

func TestDecodeSubjectObjectCode(t *testing.T) {
	assert.Equal(t, "1a/J. 12/2020", DecodeSubject(decodeJSON(t, `{"code": "1a/J. 12/2020"}`)))
}

func TestDecodeSubjectListOfObjects(t *testing.T) {
	got := DecodeSubject(decodeJSON(t, `[{"description": "Civil"}, {"code": "X-1"}]`))
	assert.Equal(t, "Civil, X-1", got)
}

func TestDecodeSubjectFallback(t *testing.T) {
	assert.Equal(t, "N/A", DecodeSubject(nil))
	assert.Equal(t, "N/A", DecodeSubject(decodeJSON(t, `""`)))
	assert.Equal(t, "N/A", DecodeSubject(decodeJSON(t, `{}`)))
	assert.Equal(t, "N/A", DecodeSubject(decodeJSON(t, `[]`)))
}
