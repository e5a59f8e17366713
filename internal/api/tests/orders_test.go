package api_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aditpra/smartcare-server/internal/api/testutils"
	"github.com/aditpra/smartcare-server/internal/models"
	"github.com/aditpra/smartcare-server/internal/notify"
)

func createOrder(t *testing.T, testCtx *testutils.TestContext, budget *int64) *models.Order {
	req := models.CreateOrderRequest{
		ProviderID:     testCtx.MitraID,
		ServiceType:    "cleaning",
		Description:    "Deep clean the apartment",
		Address:        "Jl. Merdeka 1",
		DesiredTime:    time.Now().Add(48 * time.Hour).UTC(),
		BudgetEstimate: budget,
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/orders",
		req,
		testutils.AuthHeaders(testCtx.UserJWT),
	)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.OrderResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotNil(t, response.Order)
	assert.Equal(t, models.OrderAwaitingConfirmation, response.Order.Status)

	return response.Order
}

func transitionOrder(testCtx *testutils.TestContext, orderID, token string, action models.OrderAction) (*models.Order, int) {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		"/api/orders/"+orderID+"/status",
		models.TransitionOrderRequest{Action: action},
		testutils.AuthHeaders(token),
	)

	var response models.OrderResponse
	json.Unmarshal(w.Body.Bytes(), &response)
	return response.Order, w.Code
}

func getBalance(t *testing.T, testCtx *testutils.TestContext, token string) int64 {
	w := testutils.PerformRequest(
		testCtx.Router, http.MethodGet, "/api/balance", nil, testutils.AuthHeaders(token))
	assert.Equal(t, http.StatusOK, w.Code)

	var response models.BalanceResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	return response.Balance
}

func TestOrderLifecycle(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	testutils.SeedBalance(t, testCtx, testCtx.UserID, 100000)

	// Subscribe both participants before anything happens
	userSub := testCtx.Hub.Subscribe(testCtx.UserID, notify.EntityOrder)
	defer userSub.Cancel()

	budget := int64(50000)
	order := createOrder(t, testCtx, &budget)

	// Requester cannot accept their own order
	_, code := transitionOrder(testCtx, order.ID, testCtx.UserJWT, models.ActionAccept)
	assert.Equal(t, http.StatusForbidden, code)

	// The assigned mitra accepts
	updated, code := transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionAccept)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OrderInProgress, updated.Status)

	// And completes
	updated, code = transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionComplete)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OrderCompleted, updated.Status)

	// Settlement moved the budget from requester to provider
	assert.Equal(t, int64(50000), getBalance(t, testCtx, testCtx.UserJWT))
	assert.Equal(t, int64(50000), getBalance(t, testCtx, testCtx.MitraJWT))

	// Terminal states admit no further transitions
	_, code = transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionComplete)
	assert.Equal(t, http.StatusConflict, code)

	// The requester observed the transitions in commit order
	var kinds []string
	for i := 0; i < 3; i++ {
		select {
		case ev := <-userSub.C:
			assert.Equal(t, notify.EntityOrder, ev.EntityType)
			assert.Equal(t, order.ID, ev.EntityID)
			kinds = append(kinds, ev.ChangeKind)
		default:
			t.Fatalf("expected 3 order events, got %d", len(kinds))
		}
	}
	assert.Equal(t, []string{"created", "accepted", "completed"}, kinds)
}

func TestOrderReject(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	order := createOrder(t, testCtx, nil)

	updated, code := transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionReject)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OrderRejected, updated.Status)

	// Rejected is terminal
	_, code = transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionAccept)
	assert.Equal(t, http.StatusConflict, code)
}

func TestOrderCannotSkipInProgress(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	order := createOrder(t, testCtx, nil)

	// Completing straight from awaiting_confirmation is illegal
	_, code := transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionComplete)
	assert.Equal(t, http.StatusConflict, code)
}

func TestOrderWithoutBudgetCompletesWithoutSettlement(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	order := createOrder(t, testCtx, nil)

	_, code := transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionAccept)
	assert.Equal(t, http.StatusOK, code)
	updated, code := transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionComplete)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OrderCompleted, updated.Status)

	assert.Equal(t, int64(0), getBalance(t, testCtx, testCtx.UserJWT))
	assert.Equal(t, int64(0), getBalance(t, testCtx, testCtx.MitraJWT))
}

func TestCompleteWithInsufficientBalance(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Requester has nothing; settlement must fail and the order must
	// stay in progress
	budget := int64(50000)
	order := createOrder(t, testCtx, &budget)

	_, code := transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionAccept)
	assert.Equal(t, http.StatusOK, code)

	_, code = transitionOrder(testCtx, order.ID, testCtx.MitraJWT, models.ActionComplete)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	w := testutils.PerformRequest(
		testCtx.Router, http.MethodGet, "/api/orders/"+order.ID, nil,
		testutils.AuthHeaders(testCtx.MitraJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var response models.OrderResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderInProgress, response.Order.Status)

	assert.Equal(t, int64(0), getBalance(t, testCtx, testCtx.MitraJWT))
}

func TestCreateOrderValidation(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	base := models.CreateOrderRequest{
		ServiceType: "plumbing",
		Description: "Fix the sink",
		Address:     "Jl. Sudirman 5",
		DesiredTime: time.Now().Add(24 * time.Hour).UTC(),
	}

	// Unknown provider
	req := base
	req.ProviderID = "non-existent-id"
	w := testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/orders", req,
		testutils.AuthHeaders(testCtx.UserJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Provider that is not a mitra
	req = base
	req.ProviderID = testCtx.AdminID
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/orders", req,
		testutils.AuthHeaders(testCtx.UserJWT))
	assert.Equal(t, http.StatusConflict, w.Code)

	// Mitra cannot place orders
	req = base
	req.ProviderID = testCtx.MitraID
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/orders", req,
		testutils.AuthHeaders(testCtx.MitraJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Non-positive budget
	badBudget := int64(-100)
	req = base
	req.ProviderID = testCtx.MitraID
	req.BudgetEstimate = &badBudget
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/orders", req,
		testutils.AuthHeaders(testCtx.UserJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderVisibility(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	order := createOrder(t, testCtx, nil)

	// Participants see the order in their lists
	w := testutils.PerformRequest(
		testCtx.Router, http.MethodGet, "/api/orders", nil,
		testutils.AuthHeaders(testCtx.MitraJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var list models.OrdersResponse
	err := json.Unmarshal(w.Body.Bytes(), &list)
	assert.NoError(t, err)
	assert.Len(t, list.Orders, 1)

	// Admin has read access to everything
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodGet, "/api/orders/"+order.ID, nil,
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	// A stranger does not
	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/auth/register",
		models.RegisterRequest{
			Email:    "stranger@example.com",
			Password: "Password123",
			Name:     "Stranger",
			Role:     models.RoleUser,
		}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router, http.MethodPost, "/api/auth/login",
		models.LoginRequest{Email: "stranger@example.com", Password: "Password123"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var auth models.AuthResponse
	err = json.Unmarshal(w.Body.Bytes(), &auth)
	assert.NoError(t, err)

	w = testutils.PerformRequest(
		testCtx.Router, http.MethodGet, "/api/orders/"+order.ID, nil,
		testutils.AuthHeaders(auth.Token))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
