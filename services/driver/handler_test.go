package driver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	"github.com/AminderM/Magic-33-sub001/services/driver/mocks"
	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLoads struct {
	id string
}

func (m *memoryLoads) ActiveLoad() (string, bool) { return m.id, m.id != "" }

func (m *memoryLoads) SetActiveLoad(loadID string) { m.id = loadID }

func (m *memoryLoads) ClearActiveLoad() { m.id = "" }

type fakeControl struct {
	enableErr    error
	reconnectErr error
	tracking     bool
	reconnects   int
}

func (f *fakeControl) Enable() error {
	if f.enableErr != nil {
		return f.enableErr
	}
	f.tracking = true
	return nil
}

func (f *fakeControl) Disable() { f.tracking = false }

func (f *fakeControl) Tracking() bool { return f.tracking }

func (f *fakeControl) Reconnect() error {
	f.reconnects++
	return f.reconnectErr
}

func newTestHandler(t *testing.T) (*echo.Echo, *mocks.MockSender, *memoryLoads, *Publisher) {
	e, sender, loads, pub, _ := newControlledHandler(t)
	return e, sender, loads, pub
}

func newControlledHandler(t *testing.T) (*echo.Echo, *mocks.MockSender, *memoryLoads, *Publisher, *fakeControl) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	loads := &memoryLoads{}
	pub := NewPublisher(sender, loads, logger.NewNopLogger())
	control := &fakeControl{}

	e := echo.New()
	NewHandler(pub, loads, control).RegisterRoutes(e)
	return e, sender, loads, pub, control
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Status(t *testing.T) {
	e, sender, _, pub := newTestHandler(t)
	sender.EXPECT().State().Return(models.StateClosed).AnyTimes()

	first := fixedSample()
	second := fixedSample()
	second.Latitude = 41.9
	second.Timestamp = first.Timestamp.Add(time.Minute)
	_, err := pub.Publish(first)
	require.NoError(t, err)
	_, err = pub.Publish(second)
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/api/driver/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st PublisherStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, models.StateClosed, st.Connection)
	assert.Equal(t, 2, st.Dropped)
	require.NotNil(t, st.LastSample)
	assert.Equal(t, 41.9, st.LastSample.Latitude)

	rec = do(e, http.MethodGet, "/api/driver/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.LocationSample
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.True(t, second.Timestamp.Equal(history[0].Timestamp), "most recent first")
	assert.True(t, first.Timestamp.Equal(history[1].Timestamp))
}

func TestHandler_Tracking(t *testing.T) {
	tests := []struct {
		name             string
		method           string
		enableErr        error
		expectedCode     int
		expectedTracking bool
	}{
		{name: "enable", method: http.MethodPost, expectedCode: http.StatusOK, expectedTracking: true},
		{name: "permission denied", method: http.MethodPost, enableErr: ErrPermissionDenied, expectedCode: http.StatusForbidden},
		{name: "source failure", method: http.MethodPost, enableErr: errors.New("port busy"), expectedCode: http.StatusServiceUnavailable},
		{name: "disable", method: http.MethodDelete, expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _, _, control := newControlledHandler(t)
			control.enableErr = tt.enableErr
			control.tracking = tt.method == http.MethodDelete

			rec := do(e, tt.method, "/api/driver/tracking", "")
			require.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, tt.expectedTracking, control.tracking)

			if rec.Code == http.StatusOK {
				var resp TrackingResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedTracking, resp.Tracking)
			}
		})
	}
}

func TestHandler_Reconnect(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{name: "accepted", expectedCode: http.StatusAccepted},
		{name: "stream closed", err: errors.New("stream manager is closed"), expectedCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sender, _, _, control := newControlledHandler(t)
			sender.EXPECT().State().Return(models.StateConnecting).AnyTimes()
			control.reconnectErr = tt.err

			rec := do(e, http.MethodPost, "/api/driver/reconnect", "")
			require.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, 1, control.reconnects)
		})
	}
}

func TestHandler_Load(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		body         string
		expectedCode int
		expectedLoad string
	}{
		{name: "set", method: http.MethodPut, body: `{"load_id":"LD-9"}`, expectedCode: http.StatusOK, expectedLoad: "LD-9"},
		{name: "missing id", method: http.MethodPut, body: `{}`, expectedCode: http.StatusBadRequest},
		{name: "bad body", method: http.MethodPut, body: `{"load_id":`, expectedCode: http.StatusBadRequest},
		{name: "read", method: http.MethodGet, expectedCode: http.StatusOK},
		{name: "clear", method: http.MethodDelete, expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, loads, _ := newTestHandler(t)

			rec := do(e, tt.method, "/api/driver/load", tt.body)
			require.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, tt.expectedLoad, loads.id)

			if rec.Code == http.StatusOK {
				var resp LoadResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedLoad != "", resp.Active)
				assert.Equal(t, tt.expectedLoad, resp.LoadID)
			}
		})
	}
}
