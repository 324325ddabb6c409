package result

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSucceed(t *testing.T) {
	r := Succeed(42)
	require.True(t, r.IsSuccessful)
	require.Equal(t, http.StatusOK, r.StatusCode)
	require.Equal(t, 42, r.Data)
	require.NoError(t, r.Err())
}

func TestFailure_CoercesStatusAndMessages(t *testing.T) {
	r := Failure[int](http.StatusOK, "  ", "")
	require.False(t, r.IsSuccessful)
	require.Equal(t, http.StatusInternalServerError, r.StatusCode)
	require.Equal(t, []string{DefaultErrorMessage}, r.ErrorMessages)

	r = Failure[int](http.StatusBadRequest, "Bad request")
	require.Equal(t, http.StatusBadRequest, r.StatusCode)
	require.Equal(t, "Bad request", r.Message())
}

func TestPropagate_KeepsStatusAndMessages(t *testing.T) {
	src := Failure[string](http.StatusNotFound, "Product not found")
	dst := Propagate[int](src)
	require.False(t, dst.IsSuccessful)
	require.Equal(t, http.StatusNotFound, dst.StatusCode)
	require.Equal(t, []string{"Product not found"}, dst.ErrorMessages)
}

func TestErr_ExposesStatus(t *testing.T) {
	err := Failure[int](http.StatusServiceUnavailable, "a", "b").Err()
	var resErr *Error
	require.True(t, errors.As(err, &resErr))
	require.Equal(t, http.StatusServiceUnavailable, resErr.StatusCode)
	require.Equal(t, "a; b", err.Error())
}

func TestEnvelopeJSONShape(t *testing.T) {
	payload, err := json.Marshal(Failure[*int](http.StatusBadRequest, "Insufficient balance to create pre-order."))
	require.NoError(t, err)
	require.JSONEq(t, `{"data":null,"errorMessages":["Insufficient balance to create pre-order."],"isSuccessful":false,"statusCode":400}`, string(payload))
}
