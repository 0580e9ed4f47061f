package subscription_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

type recordedRequest struct {
	method string
	path   string
	form   map[string][]string
	query  map[string][]string
}

type stripeStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (s *stripeStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		form:   r.PostForm,
		query:  r.URL.Query(),
	})
	status, body := s.status, s.body
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *stripeStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stripeStub) last(t *testing.T) recordedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

const subscriptionJSON = `{"id":"sub_1","object":"subscription","status":"active","cancel_at_period_end":false}`

func newStripeStub(t *testing.T, status int, body string) (*stripeStub, *subscription.StripeGateway) {
	t.Helper()
	stub := &stripeStub{status: status, body: body}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	gw, err := subscription.NewStripeGateway(subscription.StripeConfig{
		SecretKey: "sk_test_123",
		APIURL:    srv.URL,
	}, subscription.WithStripeHTTPClient(srv.Client()))
	require.NoError(t, err)
	return stub, gw
}

var stripeRef = subscription.BillingRef{CustomerID: "cus_1", SubscriptionID: "sub_1"}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	t.Parallel()
	_, err := subscription.NewStripeGateway(subscription.StripeConfig{})
	assert.ErrorIs(t, err, subscription.ErrMissingAPIKey)
}

func TestStripeGateway_Updates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("cancel at period end", func(t *testing.T) {
		t.Parallel()
		stub, gw := newStripeStub(t, http.StatusOK, subscriptionJSON)

		require.NoError(t, gw.CancelAtPeriodEnd(ctx, stripeRef))
		req := stub.last(t)
		assert.Equal(t, http.MethodPost, req.method)
		assert.Equal(t, "/v1/subscriptions/sub_1", req.path)
		assert.Equal(t, []string{"true"}, req.form["cancel_at_period_end"])
	})

	t.Run("resume auto renew", func(t *testing.T) {
		t.Parallel()
		stub, gw := newStripeStub(t, http.StatusOK, subscriptionJSON)

		require.NoError(t, gw.ResumeAutoRenew(ctx, stripeRef))
		assert.Equal(t, []string{"false"}, stub.last(t).form["cancel_at_period_end"])
	})

	t.Run("pause collection", func(t *testing.T) {
		t.Parallel()
		stub, gw := newStripeStub(t, http.StatusOK, subscriptionJSON)
		resumesAt := t0.AddDate(0, 2, 0)

		require.NoError(t, gw.PauseCollection(ctx, stripeRef, resumesAt))
		req := stub.last(t)
		assert.Equal(t, []string{"void"}, req.form["pause_collection[behavior]"])
		assert.Equal(t, []string{strconv.FormatInt(resumesAt.Unix(), 10)}, req.form["pause_collection[resumes_at]"])
	})

	t.Run("resume collection unsets the pause", func(t *testing.T) {
		t.Parallel()
		stub, gw := newStripeStub(t, http.StatusOK, subscriptionJSON)

		require.NoError(t, gw.ResumeCollection(ctx, stripeRef))
		assert.Equal(t, []string{""}, stub.last(t).form["pause_collection"])
	})

	t.Run("missing subscription id", func(t *testing.T) {
		t.Parallel()
		stub, gw := newStripeStub(t, http.StatusOK, subscriptionJSON)

		err := gw.CancelAtPeriodEnd(ctx, subscription.BillingRef{CustomerID: "cus_1"})
		assert.ErrorIs(t, err, subscription.ErrNoBillingReference)
		assert.Zero(t, stub.count())
	})
}

func TestStripeGateway_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		_, gw := newStripeStub(t, http.StatusNotFound,
			`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such subscription: 'sub_1'"}}`)

		err := gw.CancelAtPeriodEnd(ctx, stripeRef)
		assert.ErrorIs(t, err, subscription.ErrProviderNotFound)
		assert.NotErrorIs(t, err, subscription.ErrGatewayUnavailable)
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		t.Parallel()
		stub, gw := newStripeStub(t, http.StatusInternalServerError,
			`{"error":{"type":"api_error","message":"Something went wrong"}}`)

		err := gw.PauseCollection(ctx, stripeRef, t0)
		assert.ErrorIs(t, err, subscription.ErrGatewayUnavailable)
		assert.True(t, subscription.IsRetryable(err))
		assert.Equal(t, 1, stub.count(), "no retries inside a call")
	})
}

func TestStripeGateway_FetchSubscription(t *testing.T) {
	t.Parallel()

	start, end := t0.Unix(), t0.AddDate(0, 1, 0).Unix()
	resumes := t0.AddDate(0, 0, 20).Unix()
	body := fmt.Sprintf(`{
		"id": "sub_1",
		"object": "subscription",
		"status": "active",
		"cancel_at_period_end": false,
		"current_period_start": %d,
		"current_period_end": %d,
		"pause_collection": {"behavior": "void", "resumes_at": %d}
	}`, start, end, resumes)
	stub, gw := newStripeStub(t, http.StatusOK, body)

	snap, err := gw.FetchSubscription(context.Background(), stripeRef)
	require.NoError(t, err)

	req := stub.last(t)
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/v1/subscriptions/sub_1", req.path)

	assert.Equal(t, subscription.StatusActive, snap.Status)
	assert.Equal(t, t0, snap.CurrentPeriodStart)
	assert.Equal(t, t0.AddDate(0, 1, 0), snap.CurrentPeriodEnd)
	assert.True(t, snap.CollectionPaused)
	require.NotNil(t, snap.PauseResumesAt)
	assert.Equal(t, t0.AddDate(0, 0, 20), *snap.PauseResumesAt)
	assert.Nil(t, snap.TrialEnd)
}

func TestStripeGateway_FetchUpcomingInvoice(t *testing.T) {
	t.Parallel()

	periodEnd := t0.AddDate(0, 1, 0).Unix()
	stub, gw := newStripeStub(t, http.StatusOK, fmt.Sprintf(
		`{"object":"invoice","amount_due":1900,"currency":"usd","period_end":%d}`, periodEnd))

	inv, err := gw.FetchUpcomingInvoice(context.Background(), "cus_1")
	require.NoError(t, err)

	req := stub.last(t)
	assert.Equal(t, "/v1/invoices/upcoming", req.path)
	assert.Equal(t, []string{"cus_1"}, req.query["customer"])
	assert.Equal(t, subscription.Money{Amount: 1900, Currency: "USD"}, inv.AmountDue)
	assert.Equal(t, t0.AddDate(0, 1, 0), inv.PeriodEnd)

	_, err = gw.FetchUpcomingInvoice(context.Background(), "")
	assert.ErrorIs(t, err, subscription.ErrMissingProviderCustomerID)
}
