package apperr

import (
	"errors"
	"fmt"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("%w: cashup C1", ErrCashupClosed)
	require.True(t, errors.Is(err, ErrCashupClosed))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, http.StatusConflict, KindOf(err).HTTPStatus())

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, KindOf(ErrDataIntegrity).HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindOf(Validation("cashupId is required")).HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindOf(ErrCashupNotFound).HTTPStatus())
}

func TestMessage(t *testing.T) {
	driverErr := errors.New("duplicate key value violates unique constraint")
	wrapped := fmt.Errorf("insert cashup: %w", fmt.Errorf("exec: %w", driverErr))
	assert.Equal(t, driverErr.Error(), Message(wrapped))

	classified := fmt.Errorf("%w: terminal T1", ErrTerminalNotFound)
	assert.Equal(t, "terminal not found: terminal T1", Message(classified))

	integrity := Wrap(KindIntegrity, driverErr, "cashup C1 belongs to another terminal")
	assert.Equal(t, KindIntegrity, KindOf(integrity))
	assert.Equal(t, driverErr, RootCause(integrity))
	assert.Empty(t, Message(nil))
}

func TestWriteHTTP(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHTTP(w, fmt.Errorf("%w: token expired", ErrUnauthorized))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var res Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, Response{Status: -1, Error: true, Message: "unauthorized: token expired"}, res)
}
