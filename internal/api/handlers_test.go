package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nadlanscope/server/internal/comps"
	"nadlanscope/server/internal/geocoding"
	"nadlanscope/server/internal/models"
	"nadlanscope/server/internal/queue"
)

type fakeService struct {
	lastReq comps.Request
	result  *models.ComparablesResult
	err     error
}

func (f *fakeService) FetchComparables(req comps.Request) (*models.ComparablesResult, string, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, "", f.err
	}
	return f.result, "res-1", nil
}

func newTestRouter(service ComparablesService, q *queue.SearchRecordQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(service, nil, q, nil, logrus.New())

	router := gin.New()
	SetupRoutes(router, handler)
	return router
}

func emptyResult() *models.ComparablesResult {
	return &models.ComparablesResult{
		Stats: models.CompStats{
			Subject: models.SubjectLocation{Street: "הגולן", HouseNumber: 1},
		},
	}
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetComparables(t *testing.T) {
	service := &fakeService{result: emptyResult()}
	router := newTestRouter(service, nil)

	path := fmt.Sprintf("/api/comparables?street=%s&house_number=1&date_from=2023-01-01&target_area=80&top=5",
		url.QueryEscape("הגולן"))
	w := doGet(router, path)

	require.Equal(t, http.StatusOK, w.Code)

	var result models.ComparablesResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "הגולן", result.Stats.Subject.Street)

	assert.Equal(t, "הגולן", service.lastReq.Street)
	assert.Equal(t, 1, service.lastReq.HouseNumber)
	require.NotNil(t, service.lastReq.DateFrom)
	assert.Equal(t, "2023-01-01", service.lastReq.DateFrom.Format("2006-01-02"))
	require.NotNil(t, service.lastReq.TargetArea)
	assert.Equal(t, 80.0, *service.lastReq.TargetArea)
	assert.Equal(t, 5, service.lastReq.Top)
}

func TestGetComparablesMissingParams(t *testing.T) {
	router := newTestRouter(&fakeService{result: emptyResult()}, nil)

	w := doGet(router, "/api/comparables?house_number=1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetComparablesBadDate(t *testing.T) {
	router := newTestRouter(&fakeService{result: emptyResult()}, nil)

	path := fmt.Sprintf("/api/comparables?street=%s&house_number=1&date_from=yesterday", url.QueryEscape("הגולן"))
	w := doGet(router, path)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetComparablesErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: x", geocoding.ErrAddressNotFound), http.StatusNotFound},
		{comps.ErrNoTransactionsDataset, http.StatusNotFound},
		{fmt.Errorf("%w: boom", geocoding.ErrUpstreamService), http.StatusBadGateway},
		{fmt.Errorf("surprise"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		router := newTestRouter(&fakeService{err: tc.err}, nil)
		path := fmt.Sprintf("/api/comparables?street=%s&house_number=1", url.QueryEscape("הגולן"))
		w := doGet(router, path)
		assert.Equal(t, tc.code, w.Code, "error %v", tc.err)
	}
}

func TestGetComparablesQueuesSearchRecord(t *testing.T) {
	q := queue.NewSearchRecordQueue(4, logrus.New())
	service := &fakeService{result: emptyResult()}
	router := newTestRouter(service, q)

	path := fmt.Sprintf("/api/comparables?street=%s&house_number=1", url.QueryEscape("הגולן"))
	w := doGet(router, path)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, q.Len())
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeService{result: emptyResult()}, nil)

	w := doGet(router, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
