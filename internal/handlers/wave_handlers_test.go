package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace_ops_backend/internal/middleware"
	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWaveService struct {
	err   error
	calls []string
	actor models.Actor
}

func (f *fakeWaveService) record(call string, actor models.Actor) {
	f.calls = append(f.calls, call)
	f.actor = actor
}

func (f *fakeWaveService) CreateWave(ctx context.Context, actor models.Actor, req services.CreateWaveRequest) (*models.WaveDetail, error) {
	f.record(fmt.Sprintf("create %s %v", req.WaveType, req.OrderIDs), actor)
	if f.err != nil {
		return nil, f.err
	}
	return &models.WaveDetail{Wave: models.Wave{ID: 1, WaveType: req.WaveType, TotalOrders: len(req.OrderIDs)}}, nil
}

func (f *fakeWaveService) GetWaves(ctx context.Context, filters models.WaveFilters) ([]models.Wave, int, error) {
	f.record("list", models.Actor{})
	return []models.Wave{{ID: 1}}, 1, f.err
}

func (f *fakeWaveService) GetWaveDetail(ctx context.Context, waveID int64) (*models.WaveDetail, error) {
	f.record(fmt.Sprintf("detail %d", waveID), models.Actor{})
	if f.err != nil {
		return nil, f.err
	}
	return &models.WaveDetail{Wave: models.Wave{ID: waveID}}, nil
}

func (f *fakeWaveService) CancelWave(ctx context.Context, actor models.Actor, waveID int64) (*services.CancelWaveResult, error) {
	f.record(fmt.Sprintf("cancel %d", waveID), actor)
	if f.err != nil {
		return nil, f.err
	}
	return &services.CancelWaveResult{WaveID: waveID, OrdersReturned: 2}, nil
}

func (f *fakeWaveService) MarkOrderOutOfStock(ctx context.Context, actor models.Actor, waveID int64, reference string, details map[string]interface{}) (*services.WaveOrderResult, error) {
	f.record(fmt.Sprintf("oos %d %s", waveID, reference), actor)
	if f.err != nil {
		return nil, f.err
	}
	return &services.WaveOrderResult{WaveID: waveID, Reference: reference}, nil
}

func (f *fakeWaveService) MarkWaveOrderOutOfStock(ctx context.Context, actor models.Actor, waveID, waveOrderID int64, details map[string]interface{}) (*services.WaveOrderResult, error) {
	f.record(fmt.Sprintf("oos-row %d %d", waveID, waveOrderID), actor)
	if f.err != nil {
		return nil, f.err
	}
	return &services.WaveOrderResult{WaveID: waveID}, nil
}

func (f *fakeWaveService) RemoveOrderFromWave(ctx context.Context, actor models.Actor, waveID int64, reference string) (*services.WaveOrderResult, error) {
	f.record(fmt.Sprintf("remove %d %s", waveID, reference), actor)
	if f.err != nil {
		return nil, f.err
	}
	return &services.WaveOrderResult{WaveID: waveID, Reference: reference}, nil
}

func (f *fakeWaveService) UpdateWaveStatus(ctx context.Context, actor models.Actor, waveID int64, status string) (*models.Wave, error) {
	f.record(fmt.Sprintf("status %d %s", waveID, status), actor)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Wave{ID: waveID, Status: status}, nil
}

func setupWaveRouter(svc services.WaveService, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, int64(9))
		c.Set(middleware.ContextUsername, "tester")
		c.Set(middleware.ContextUserRole, role)
		c.Next()
	})
	h := NewWaveHandler(svc)
	r.POST("/waves", h.CreateWave)
	r.GET("/waves", h.GetWaves)
	r.GET("/waves/:id", h.GetWave)
	r.DELETE("/waves/:id", h.CancelWave)
	r.PATCH("/waves/:id", h.UpdateWave)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestUpdateWaveActions(t *testing.T) {
	svc := &fakeWaveService{}
	r := setupWaveRouter(svc, models.RoleSupervisor)

	w := doJSON(r, http.MethodPatch, "/waves/5", gin.H{"action": "mark_oos", "orderId": "REF-1"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodPatch, "/waves/5", gin.H{"action": "remove_order", "orderId": "REF-2"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodPatch, "/waves/5", gin.H{"action": "update_status", "status": models.WaveStatusDone})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"oos 5 REF-1", "remove 5 REF-2", "status 5 Wave Done"}, svc.calls)
	assert.Equal(t, int64(9), svc.actor.UserID)
	assert.Equal(t, models.RoleSupervisor, svc.actor.Role)
}

func TestUpdateWaveValidation(t *testing.T) {
	svc := &fakeWaveService{}
	r := setupWaveRouter(svc, models.RoleSupervisor)

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{name: "unknown action", path: "/waves/5", body: gin.H{"action": "explode"}},
		{name: "missing action", path: "/waves/5", body: gin.H{"orderId": "REF-1"}},
		{name: "mark_oos without order", path: "/waves/5", body: gin.H{"action": "mark_oos"}},
		{name: "update_status without status", path: "/waves/5", body: gin.H{"action": "update_status"}},
		{name: "bad id", path: "/waves/abc", body: gin.H{"action": "mark_oos", "orderId": "REF-1"}},
		{name: "negative id", path: "/waves/-1", body: gin.H{"action": "mark_oos", "orderId": "REF-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_FAILED", decodeError(t, w).Error.Code)
		})
	}
	assert.Empty(t, svc.calls)
}

func TestWaveErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: fmt.Errorf("%w: Picker", services.ErrForbidden), status: http.StatusForbidden, code: "FORBIDDEN"},
		{err: services.ErrWaveNotFound, status: http.StatusNotFound, code: "NOT_FOUND"},
		{err: fmt.Errorf("%w: REF-1", services.ErrWaveOrderNotFound), status: http.StatusNotFound, code: "NOT_FOUND"},
		{err: services.ErrInvalidWaveStatus, status: http.StatusBadRequest, code: "VALIDATION_FAILED"},
		{err: services.ErrWaveBusy, status: http.StatusConflict, code: "CONFLICT"},
		{err: services.ErrOrderNotQueued, status: http.StatusConflict, code: "CONFLICT"},
		{err: errors.New("connection reset"), status: http.StatusInternalServerError, code: "INTERNAL_SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code+" "+tt.err.Error(), func(t *testing.T) {
			r := setupWaveRouter(&fakeWaveService{err: tt.err}, models.RoleSupervisor)
			w := doJSON(r, http.MethodDelete, "/waves/3", nil)
			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.code, body.Error.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "Internal error", body.Error.Details)
				assert.NotContains(t, w.Body.String(), "connection reset")
			}
		})
	}
}

func TestCancelWave(t *testing.T) {
	svc := &fakeWaveService{}
	r := setupWaveRouter(svc, models.RoleManager)

	w := doJSON(r, http.MethodDelete, "/waves/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Message string                    `json:"message"`
		Result  services.CancelWaveResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Wave cancelled", body.Message)
	assert.Equal(t, int64(3), body.Result.WaveID)
	assert.Equal(t, 2, body.Result.OrdersReturned)
}

func TestCreateWave(t *testing.T) {
	svc := &fakeWaveService{}
	r := setupWaveRouter(svc, models.RoleSupervisor)

	w := doJSON(r, http.MethodPost, "/waves", gin.H{"wave_type": "Standard", "order_ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(r, http.MethodPost, "/waves", gin.H{"wave_type": "Standard", "order_ids": []int64{1, 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/waves", gin.H{"wave_type": "Standard", "order_ids": []int64{1, 2}})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"create Standard [1 2]"}, svc.calls)
}

func TestGetWaves(t *testing.T) {
	r := setupWaveRouter(&fakeWaveService{}, models.RolePicker)

	w := doJSON(r, http.MethodGet, "/waves?page=2&page_size=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 2, body["page"])
	assert.EqualValues(t, 5, body["page_size"])
}
