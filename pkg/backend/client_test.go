package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepulse/riskcore/pkg/models"
)

func TestHTTPClientSubmitCommand(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/commands", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"commandId":"cmd-42","status":"accepted","message":"queued"}`))
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client := NewHTTPClient(srv.URL, nil, 10, logger)

	result, err := client.SubmitCommand(context.Background(), &models.PositionCommand{
		Type:       models.CommandCloseAll,
		PositionID: "pos-1",
		Symbol:     "BTCUSDT",
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, "cmd-42", result.CommandID)
	assert.Equal(t, "accepted", result.Status)
	assert.Equal(t, "close_all", gotBody["type"])
	assert.Equal(t, "pos-1", gotBody["positionId"])
}

func TestHTTPClientSubmitCommandBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "position already closed", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client := NewHTTPClient(srv.URL, nil, 10, logger)

	_, err := client.SubmitCommand(context.Background(), &models.PositionCommand{
		Type:       models.CommandReverse,
		PositionID: "pos-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
