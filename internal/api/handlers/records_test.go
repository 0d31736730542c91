package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/es0612/health-insight-go/internal/database"
	"github.com/es0612/health-insight-go/internal/models"
)

type fakeRecordRepo struct {
	insertErr error
	listErr   error
	deleteErr error
	records   []models.HealthRecord
	inserted  []models.HealthRecordRequest
	deleted   []uuid.UUID
}

func (f *fakeRecordRepo) InsertRecord(ctx context.Context, userID uuid.UUID, req models.HealthRecordRequest) (*models.HealthRecord, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, req)
	source := req.Source
	if source == "" {
		source = models.SourceManual
	}
	return &models.HealthRecord{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       req.Kind,
		Value:      req.Value,
		Unit:       req.Unit,
		RecordedAt: req.RecordedAt,
		Source:     source,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (f *fakeRecordRepo) GetRecordsByKind(ctx context.Context, userID uuid.UUID, kind models.MetricKind, from, to time.Time) ([]models.HealthRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeRecordRepo) DeleteRecord(ctx context.Context, userID, recordID uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, recordID)
	return nil
}

type fakeInvalidator struct {
	cleared []uuid.UUID
	err     error
}

func (f *fakeInvalidator) ClearUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.cleared = append(f.cleared, userID)
	return 1, nil
}

func newRecordsRouter(repo RecordRepository, invalidator CacheInvalidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := NewRecordsHandler(repo, invalidator, logger)

	router := gin.New()
	records := router.Group("/records", func(c *gin.Context) {
		c.Set("user_id", testUserID.String())
	})
	{
		records.POST("", handler.CreateRecord)
		records.GET("", handler.ListRecords)
		records.DELETE("/:id", handler.DeleteRecord)
	}
	return router
}

func validRecordBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"kind":        "weight",
		"value":       72.5,
		"unit":        "kg",
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
		"source":      "manual",
	})
	require.NoError(t, err)
	return body
}

func TestCreateRecord(t *testing.T) {
	repo := &fakeRecordRepo{}
	invalidator := &fakeInvalidator{}
	router := newRecordsRouter(repo, invalidator)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/records", bytes.NewReader(validRecordBody(t)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var record models.HealthRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, models.MetricWeight, record.Kind)
	assert.Equal(t, testUserID, record.UserID)
	assert.True(t, decimal.NewFromFloat(72.5).Equal(record.Value))

	require.Len(t, repo.inserted, 1)
	// A new measurement invalidates the user's cached analyses
	assert.Equal(t, []uuid.UUID{testUserID}, invalidator.cleared)
}

func TestCreateRecord_InvalidPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"kind": "weight"`},
		{name: "missing unit", body: `{"kind":"weight","value":72.5,"recorded_at":"2026-03-15T08:00:00Z"}`},
		{name: "unknown kind", body: `{"kind":"mood","value":5,"unit":"score","recorded_at":"2026-03-15T08:00:00Z"}`},
		{name: "unknown source", body: `{"kind":"weight","value":72.5,"unit":"kg","recorded_at":"2026-03-15T08:00:00Z","source":"import"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRecordRepo{}
			router := newRecordsRouter(repo, &fakeInvalidator{})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/records", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, repo.inserted)
		})
	}
}

func TestCreateRecord_RepositoryError(t *testing.T) {
	repo := &fakeRecordRepo{insertErr: errors.New("connection refused")}
	router := newRecordsRouter(repo, &fakeInvalidator{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/records", bytes.NewReader(validRecordBody(t)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to store record")
}

func TestCreateRecord_CacheFailureDoesNotFailRequest(t *testing.T) {
	repo := &fakeRecordRepo{}
	invalidator := &fakeInvalidator{err: errors.New("redis down")}
	router := newRecordsRouter(repo, invalidator)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/records", bytes.NewReader(validRecordBody(t)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateRecord_WithoutCache(t *testing.T) {
	repo := &fakeRecordRepo{}
	router := newRecordsRouter(repo, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/records", bytes.NewReader(validRecordBody(t)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListRecords(t *testing.T) {
	repo := &fakeRecordRepo{records: dailySeries(models.MetricSteps, "steps", 8000, 100, 5)}
	router := newRecordsRouter(repo, &fakeInvalidator{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/records?kind=steps&days=7", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response RecordsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 5, response.Count)
	assert.Len(t, response.Records, 5)
}

func TestListRecords_RequiresKind(t *testing.T) {
	router := newRecordsRouter(&fakeRecordRepo{}, &fakeInvalidator{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/records", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "kind metric kind")
}

func TestListRecords_RepositoryError(t *testing.T) {
	repo := &fakeRecordRepo{listErr: errors.New("connection refused")}
	router := newRecordsRouter(repo, &fakeInvalidator{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/records?kind=steps", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to load records")
}

func TestDeleteRecord(t *testing.T) {
	repo := &fakeRecordRepo{}
	invalidator := &fakeInvalidator{}
	router := newRecordsRouter(repo, invalidator)

	recordID := uuid.New()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/records/"+recordID.String(), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Record deleted successfully")
	assert.Equal(t, []uuid.UUID{recordID}, repo.deleted)
	assert.Equal(t, []uuid.UUID{testUserID}, invalidator.cleared)
}

func TestDeleteRecord_InvalidID(t *testing.T) {
	router := newRecordsRouter(&fakeRecordRepo{}, &fakeInvalidator{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/records/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid record ID")
}

func TestDeleteRecord_NotFound(t *testing.T) {
	recordID := uuid.New()
	repo := &fakeRecordRepo{
		deleteErr: fmt.Errorf("record %s: %w", recordID, database.ErrRecordNotFound),
	}
	invalidator := &fakeInvalidator{}
	router := newRecordsRouter(repo, invalidator)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/records/"+recordID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Record not found")
	// Nothing was deleted, the cache stays untouched
	assert.Empty(t, invalidator.cleared)
}

func TestDeleteRecord_RepositoryError(t *testing.T) {
	repo := &fakeRecordRepo{deleteErr: errors.New("connection refused")}
	router := newRecordsRouter(repo, &fakeInvalidator{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/records/"+uuid.New().String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to delete record")
}

func TestRecordsEndpoints_RejectMissingUserIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := NewRecordsHandler(&fakeRecordRepo{}, nil, logger)
	router := gin.New()
	router.GET("/records", handler.ListRecords)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/records?kind=steps", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid user identity")
}
