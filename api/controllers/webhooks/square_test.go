package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susplants/shop-backend/internal/payments"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/types"
)

const testSigningSecret = "whsec_test"

type fakeWebhookService struct {
	events []*payments.WebhookEvent
	err    error
}

func (f *fakeWebhookService) HandleEvent(_ context.Context, event *payments.WebhookEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type fakeSquareClient struct {
	secret string
}

func (f *fakeSquareClient) SigningSecret() string { return f.secret }

type fakeGuard struct {
	marked  []string
	deleted []string
	dup     bool
	err     error
}

func (f *fakeGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.marked = append(f.marked, eventID)
	return f.dup, nil
}

func (f *fakeGuard) Delete(_ context.Context, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return nil
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func eventPayload(t *testing.T, eventID string) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"event_id": eventID,
		"type":     "payment.updated",
		"data": map[string]any{
			"type": "payment",
			"id":   "sq-pay-1",
			"object": map[string]any{
				"payment": map[string]any{
					"id":       "sq-pay-1",
					"status":   "COMPLETED",
					"order_id": "sq-ord-1",
					"note":     "CART1765700000000ABC123",
				},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func postWebhook(t *testing.T, handler http.HandlerFunc, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Square-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestSquareWebhook_validEvent(t *testing.T) {
	svc := &fakeWebhookService{}
	guard := &fakeGuard{}
	handler := SquareWebhook(svc, &fakeSquareClient{secret: testSigningSecret}, guard, testLogger())

	payload := eventPayload(t, "evt-1")
	rec := postWebhook(t, handler, payload, signPayload(testSigningSecret, payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 1)
	assert.Equal(t, "evt-1", svc.events[0].EventID)
	assert.Equal(t, "CART1765700000000ABC123", svc.events[0].Data.Object.Payment.Note)
	assert.Equal(t, []string{"evt-1"}, guard.marked)
	assert.Empty(t, guard.deleted)
}

func TestSquareWebhook_missingSignature(t *testing.T) {
	svc := &fakeWebhookService{}
	handler := SquareWebhook(svc, &fakeSquareClient{secret: testSigningSecret}, &fakeGuard{}, testLogger())

	rec := postWebhook(t, handler, eventPayload(t, "evt-1"), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.events)
}

func TestSquareWebhook_invalidSignature(t *testing.T) {
	svc := &fakeWebhookService{}
	handler := SquareWebhook(svc, &fakeSquareClient{secret: testSigningSecret}, &fakeGuard{}, testLogger())

	payload := eventPayload(t, "evt-1")
	rec := postWebhook(t, handler, payload, signPayload("wrong-secret", payload))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, svc.events)
}

func TestSquareWebhook_tamperedPayload(t *testing.T) {
	svc := &fakeWebhookService{}
	handler := SquareWebhook(svc, &fakeSquareClient{secret: testSigningSecret}, &fakeGuard{}, testLogger())

	payload := eventPayload(t, "evt-1")
	signature := signPayload(testSigningSecret, payload)
	tampered := bytes.Replace(payload, []byte("COMPLETED"), []byte("CANCELED!"), 1)

	rec := postWebhook(t, handler, tampered, signature)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, svc.events)
}

func TestSquareWebhook_duplicateDelivery(t *testing.T) {
	svc := &fakeWebhookService{}
	guard := &fakeGuard{dup: true}
	handler := SquareWebhook(svc, &fakeSquareClient{secret: testSigningSecret}, guard, testLogger())

	payload := eventPayload(t, "evt-1")
	rec := postWebhook(t, handler, payload, signPayload(testSigningSecret, payload))

	// the duplicate is acknowledged so Square stops retrying
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.events)

	var envelope types.SuccessEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Data)
}

func TestSquareWebhook_handlerErrorReleasesGuard(t *testing.T) {
	svc := &fakeWebhookService{err: assert.AnError}
	guard := &fakeGuard{}
	handler := SquareWebhook(svc, &fakeSquareClient{secret: testSigningSecret}, guard, testLogger())

	payload := eventPayload(t, "evt-1")
	rec := postWebhook(t, handler, payload, signPayload(testSigningSecret, payload))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// the mark is released so Square's retry can be processed
	assert.Equal(t, []string{"evt-1"}, guard.deleted)
}
