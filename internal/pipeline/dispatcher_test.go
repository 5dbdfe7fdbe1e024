package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/pipeline"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Typed Mocks ---

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) Get(ctx context.Context, id string) (*notification.UserRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.UserRecord), args.Error(1)
}

func (m *mockDirectory) All(ctx context.Context) ([]notification.UserRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notification.UserRecord), args.Error(1)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Send(ctx context.Context, payload notification.DeliveryPayload) (*notification.DeliveryResult, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.DeliveryResult), args.Error(1)
}

var settings = pipeline.Settings{AppID: "app-123", Locale: "en"}

func TestDispatcher_Validation(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name string
		req  notification.NotificationRequest
	}{
		{name: "Missing title", req: notification.NotificationRequest{Description: "D"}},
		{name: "Missing description", req: notification.NotificationRequest{Title: "T"}},
		{name: "Both missing", req: notification.NotificationRequest{RecipientID: "u1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := new(mockDirectory)
			prov := new(mockProvider)
			d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())

			res, err := d.Dispatch(ctx, tc.req)

			require.Error(t, err)
			assert.ErrorIs(t, err, pipeline.ErrInvalidRequest)
			assert.Nil(t, res)
			dir.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
			dir.AssertNotCalled(t, "All", mock.Anything)
			prov.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestDispatcher_SingleRecipient(t *testing.T) {
	ctx := context.Background()
	req := notification.NotificationRequest{Title: "T", Description: "D", RecipientID: "u1"}

	t.Run("Success - Delivers to the recipient's token", func(t *testing.T) {
		dir := new(mockDirectory)
		prov := new(mockProvider)
		dir.On("Get", mock.Anything, "u1").Return(&notification.UserRecord{ID: "u1", DeviceToken: "tokA"}, nil)

		expected := notification.DeliveryPayload{
			AppID:            "app-123",
			Contents:         map[string]string{"en": "D"},
			Headings:         map[string]string{"en": "T"},
			IncludePlayerIDs: []string{"tokA"},
			Locale:           "en",
		}
		prov.On("Send", mock.Anything, expected).
			Return(&notification.DeliveryResult{StatusCode: http.StatusOK, Body: json.RawMessage(`{"id":"abc"}`)}, nil).
			Once()

		d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
		res, err := d.Dispatch(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.JSONEq(t, `{"id":"abc"}`, string(res.Body))
		assert.Equal(t, 1, res.Recipients)
		dir.AssertNotCalled(t, "All", mock.Anything)
		prov.AssertExpectations(t)
	})

	t.Run("Success - Unknown recipient short-circuits", func(t *testing.T) {
		dir := new(mockDirectory)
		prov := new(mockProvider)
		dir.On("Get", mock.Anything, "u1").Return(nil, nil)

		d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
		res, err := d.Dispatch(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.JSONEq(t, `{"message":"No subscribed players to notify."}`, string(res.Body))
		prov.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("Success - Recipient without token short-circuits", func(t *testing.T) {
		dir := new(mockDirectory)
		prov := new(mockProvider)
		dir.On("Get", mock.Anything, "u1").Return(&notification.UserRecord{ID: "u1"}, nil)

		d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
		res, err := d.Dispatch(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, 0, res.Recipients)
		assert.JSONEq(t, `{"message":"No subscribed players to notify."}`, string(res.Body))
		prov.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Directory error is internal", func(t *testing.T) {
		dir := new(mockDirectory)
		prov := new(mockProvider)
		dir.On("Get", mock.Anything, "u1").Return(nil, errors.New("permission denied"))

		d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
		_, err := d.Dispatch(ctx, req)

		require.Error(t, err)
		assert.NotErrorIs(t, err, pipeline.ErrInvalidRequest)
		assert.NotErrorIs(t, err, pipeline.ErrDeliveryFailed)
		prov.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}

func TestDispatcher_Broadcast(t *testing.T) {
	ctx := context.Background()

	users := []notification.UserRecord{
		{ID: "u1", DeviceToken: "tokA"},
		{ID: "u2", DeviceToken: "tokB"},
		{ID: "u3"},
		{ID: "u4", DeviceToken: "tokA"},
	}

	for _, recipient := range []string{"", notification.AllRecipients} {
		t.Run(fmt.Sprintf("Success - Deduplicates tokens (recipient=%q)", recipient), func(t *testing.T) {
			dir := new(mockDirectory)
			prov := new(mockProvider)
			dir.On("All", mock.Anything).Return(users, nil)

			var sent notification.DeliveryPayload
			prov.On("Send", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { sent = args.Get(1).(notification.DeliveryPayload) }).
				Return(&notification.DeliveryResult{StatusCode: http.StatusOK, Body: json.RawMessage(`{"id":"x","recipients":2}`)}, nil).
				Once()

			d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
			res, err := d.Dispatch(ctx, notification.NotificationRequest{Title: "T", Description: "D", RecipientID: recipient})

			require.NoError(t, err)
			assert.Equal(t, 2, res.Recipients)
			assert.ElementsMatch(t, []string{"tokA", "tokB"}, sent.IncludePlayerIDs)
			dir.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
			prov.AssertNumberOfCalls(t, "Send", 1)
		})
	}

	t.Run("Success - Empty directory short-circuits", func(t *testing.T) {
		dir := new(mockDirectory)
		prov := new(mockProvider)
		dir.On("All", mock.Anything).Return([]notification.UserRecord{{ID: "u1"}}, nil)

		d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
		res, err := d.Dispatch(ctx, notification.NotificationRequest{Title: "T", Description: "D"})

		require.NoError(t, err)
		assert.JSONEq(t, `{"message":"No subscribed players to notify."}`, string(res.Body))
		prov.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Enumeration error is internal", func(t *testing.T) {
		dir := new(mockDirectory)
		prov := new(mockProvider)
		dir.On("All", mock.Anything).Return(nil, errors.New("iterator failed"))

		d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
		_, err := d.Dispatch(ctx, notification.NotificationRequest{Title: "T", Description: "D"})

		require.Error(t, err)
		assert.NotErrorIs(t, err, pipeline.ErrDeliveryFailed)
		prov.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}

func TestDispatcher_DeliveryFailures(t *testing.T) {
	ctx := context.Background()
	req := notification.NotificationRequest{Title: "T", Description: "D", RecipientID: "u1"}

	t.Run("Transport failure maps to ErrDeliveryFailed without retry", func(t *testing.T) {
		dir := new(mockDirectory)
		prov := new(mockProvider)
		dir.On("Get", mock.Anything, "u1").Return(&notification.UserRecord{ID: "u1", DeviceToken: "tokA"}, nil)
		prov.On("Send", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: connection refused", dispatch.ErrTransport))

		d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
		_, err := d.Dispatch(ctx, req)

		require.Error(t, err)
		assert.ErrorIs(t, err, pipeline.ErrDeliveryFailed)
		prov.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("Malformed provider response is internal", func(t *testing.T) {
		dir := new(mockDirectory)
		prov := new(mockProvider)
		dir.On("Get", mock.Anything, "u1").Return(&notification.UserRecord{ID: "u1", DeviceToken: "tokA"}, nil)
		prov.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("provider returned malformed JSON"))

		d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
		_, err := d.Dispatch(ctx, req)

		require.Error(t, err)
		assert.NotErrorIs(t, err, pipeline.ErrDeliveryFailed)
		prov.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("Provider error status is relayed verbatim", func(t *testing.T) {
		dir := new(mockDirectory)
		prov := new(mockProvider)
		dir.On("Get", mock.Anything, "u1").Return(&notification.UserRecord{ID: "u1", DeviceToken: "tokA"}, nil)
		body := json.RawMessage(`{"errors":["All included players are not subscribed"]}`)
		prov.On("Send", mock.Anything, mock.Anything).
			Return(&notification.DeliveryResult{StatusCode: http.StatusBadRequest, Body: body}, nil)

		d := pipeline.NewDispatcher(dir, prov, settings, newTestLogger())
		res, err := d.Dispatch(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, body, res.Body)
	})
}
