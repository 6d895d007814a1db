package services

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agrosentry/backend/internal/knowledge"
	"github.com/agrosentry/backend/internal/logger"
	"github.com/agrosentry/backend/internal/prediction"
	"github.com/agrosentry/backend/internal/types"
)

func conf(v float64) *float64 {
	return &v
}

type fakeDetectionRepo struct {
	created    []*types.Detection
	createErr  error
	byID       map[uuid.UUID]*types.Detection
	listed     []*types.Detection
	lastLimit  int
	lastOffset int
	statRows   []*types.DiseaseStatRow
}

func (f *fakeDetectionRepo) Create(ctx context.Context, tx *gorm.DB, detections []*types.Detection) ([]*types.Detection, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, detections...)
	return detections, nil
}

func (f *fakeDetectionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Detection, error) {
	return f.byID[id], nil
}

func (f *fakeDetectionRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Detection, error) {
	f.lastLimit = limit
	f.lastOffset = offset
	return f.listed, nil
}

func (f *fakeDetectionRepo) StatsByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.DiseaseStatRow, error) {
	return f.statRows, nil
}

type fakeMLClient struct {
	resp       *prediction.RawResponse
	predictErr error
	health     *MLHealthStatus
}

func (f *fakeMLClient) Predict(ctx context.Context, image []byte, filename string) (*prediction.RawResponse, error) {
	return f.resp, f.predictErr
}

func (f *fakeMLClient) Health(ctx context.Context) (*MLHealthStatus, error) {
	return f.health, nil
}

func newServiceFixture(t *testing.T, repo *fakeDetectionRepo, ml MLClient) (DetectionService, string) {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)

	uploadDir := t.TempDir()
	t.Setenv("UPLOAD_DIR", uploadDir)
	uploads, err := NewUploadService(log)
	require.NoError(t, err)

	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	svc := NewDetectionService(gormDB, log, repo, uploads, ml, knowledge.NewStaticBase())
	return svc, uploadDir
}

func imageFileHeader(t *testing.T, filename, contentType string, payload []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	files := form.File["image"]
	require.Len(t, files, 1)
	return files[0]
}

func dirEntryCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestAnalyzeHappyPath(t *testing.T) {
	repo := &fakeDetectionRepo{}
	ml := &fakeMLClient{resp: &prediction.RawResponse{
		Success: true,
		Prediction: &prediction.RawPayload{AllPredictions: []prediction.RawPrediction{
			{ClassName: "grasshopper", Confidence: conf(0.92)},
		}},
	}}
	svc, uploadDir := newServiceFixture(t, repo, ml)

	file := imageFileHeader(t, "leaf.jpg", "image/jpeg", []byte("jpeg-bytes"))
	userID := uuid.New()

	result, err := svc.Analyze(context.Background(), userID, file)
	require.NoError(t, err)
	require.Empty(t, result.Note)
	require.Equal(t, "grasshopper", result.Prediction.DiseaseName)
	require.Equal(t, 0.92, result.Prediction.Confidence)
	require.Equal(t, string(prediction.SeverityHigh), result.Prediction.SeverityLevel)
	require.Equal(t, "Grasshopper Damage", result.DiseaseInfo.Name)
	require.Contains(t, result.ImageURL, "/uploads/")

	require.Len(t, repo.created, 1)
	require.Equal(t, userID, repo.created[0].UserID)
	require.Equal(t, "grasshopper", repo.created[0].PredictedDisease)
	require.Equal(t, 1, dirEntryCount(t, uploadDir))
}

func TestAnalyzeDegradedPredictorIsSuccessWithNote(t *testing.T) {
	repo := &fakeDetectionRepo{}
	ml := &fakeMLClient{resp: &prediction.RawResponse{Success: false}}
	svc, uploadDir := newServiceFixture(t, repo, ml)

	file := imageFileHeader(t, "leaf.png", "image/png", []byte("png-bytes"))

	result, err := svc.Analyze(context.Background(), uuid.New(), file)
	require.NoError(t, err)
	require.Equal(t, prediction.WarnServiceUnavailable, result.Note)
	require.Equal(t, prediction.UnknownClass, result.Prediction.DiseaseName)
	require.Equal(t, 0.0, result.Prediction.Confidence)

	// Degraded output is still a stored record, and the image stays.
	require.Len(t, repo.created, 1)
	require.Equal(t, prediction.UnknownClass, repo.created[0].PredictedDisease)
	require.Equal(t, 1, dirEntryCount(t, uploadDir))
}

func TestAnalyzePredictorTransportFailureCleansUpFile(t *testing.T) {
	repo := &fakeDetectionRepo{}
	ml := &fakeMLClient{predictErr: fmt.Errorf("connection refused")}
	svc, uploadDir := newServiceFixture(t, repo, ml)

	file := imageFileHeader(t, "leaf.jpg", "image/jpeg", []byte("jpeg-bytes"))

	_, err := svc.Analyze(context.Background(), uuid.New(), file)
	require.Error(t, err)
	require.Empty(t, repo.created)
	require.Equal(t, 0, dirEntryCount(t, uploadDir))
}

func TestAnalyzePersistFailureCleansUpFile(t *testing.T) {
	repo := &fakeDetectionRepo{createErr: fmt.Errorf("database gone")}
	ml := &fakeMLClient{resp: &prediction.RawResponse{
		Success: true,
		Prediction: &prediction.RawPayload{AllPredictions: []prediction.RawPrediction{
			{ClassName: "beetle", Confidence: conf(0.7)},
		}},
	}}
	svc, uploadDir := newServiceFixture(t, repo, ml)

	file := imageFileHeader(t, "leaf.jpg", "image/jpeg", []byte("jpeg-bytes"))

	_, err := svc.Analyze(context.Background(), uuid.New(), file)
	require.Error(t, err)
	require.Equal(t, 0, dirEntryCount(t, uploadDir))
}

func TestAnalyzeRejectsUnsupportedType(t *testing.T) {
	repo := &fakeDetectionRepo{}
	svc, uploadDir := newServiceFixture(t, repo, &fakeMLClient{})

	file := imageFileHeader(t, "notes.txt", "text/plain", []byte("hello"))

	_, err := svc.Analyze(context.Background(), uuid.New(), file)
	require.ErrorIs(t, err, ErrUnsupportedType)
	require.Empty(t, repo.created)
	require.Equal(t, 0, dirEntryCount(t, uploadDir))
}

func TestHistoryClampsPaging(t *testing.T) {
	now := time.Now()
	repo := &fakeDetectionRepo{listed: []*types.Detection{
		{ID: uuid.New(), ImagePath: filepath.Join("uploads", "a.jpg"), CreatedAt: now},
	}}
	svc, _ := newServiceFixture(t, repo, &fakeMLClient{})

	cases := []struct {
		name       string
		page       int
		limit      int
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"defaults_for_invalid", 0, -3, 1, 20, 0},
		{"third_page", 3, 10, 3, 10, 20},
		{"limit_capped", 1, 5000, 1, 100, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.History(context.Background(), uuid.New(), tc.page, tc.limit)
			require.NoError(t, err)
			require.Equal(t, tc.wantPage, result.Pagination.CurrentPage)
			require.Equal(t, tc.wantLimit, result.Pagination.PerPage)
			require.Equal(t, tc.wantLimit, repo.lastLimit)
			require.Equal(t, tc.wantOffset, repo.lastOffset)
			require.Len(t, result.Detections, 1)
			require.Equal(t, "/uploads/a.jpg", result.Detections[0].ImageURL)
		})
	}
}

func TestGetByIDOwnership(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	detectionID := uuid.New()
	repo := &fakeDetectionRepo{byID: map[uuid.UUID]*types.Detection{
		detectionID: {ID: detectionID, UserID: owner, ImagePath: "uploads/a.jpg"},
	}}
	svc, _ := newServiceFixture(t, repo, &fakeMLClient{})

	got, err := svc.GetByID(context.Background(), owner, detectionID)
	require.NoError(t, err)
	require.Equal(t, detectionID, got.ID)

	_, err = svc.GetByID(context.Background(), other, detectionID)
	require.ErrorIs(t, err, ErrDetectionForbidden)

	_, err = svc.GetByID(context.Background(), owner, uuid.New())
	require.ErrorIs(t, err, ErrDetectionNotFound)
}

// Pins the historical stats semantics: average_confidence is the mean of
// per-disease averages, not a record-weighted mean.
func TestStatsAveragesPerDiseaseMeans(t *testing.T) {
	repo := &fakeDetectionRepo{statRows: []*types.DiseaseStatRow{
		{PredictedDisease: "beetle", DiseaseCount: 2, AvgConfidence: 0.6},
		{PredictedDisease: "grasshopper", DiseaseCount: 1, AvgConfidence: 0.9},
	}}
	svc, _ := newServiceFixture(t, repo, &fakeMLClient{})

	stats, err := svc.Stats(context.Background(), uuid.New())
	require.NoError(t, err)

	require.Equal(t, int64(3), stats.TotalDetections)
	require.Equal(t, 2, stats.UniqueDiseases)
	// (0.6 + 0.9) / 2, regardless of beetle having twice the records.
	require.Equal(t, 0.75, stats.AverageConfidence)

	require.Len(t, stats.DiseaseBreakdown, 2)
	require.Equal(t, "beetle", stats.DiseaseBreakdown[0].DiseaseName)
	require.Equal(t, int64(2), stats.DiseaseBreakdown[0].Count)
	require.Equal(t, 66.67, stats.DiseaseBreakdown[0].Percentage)
	require.Equal(t, "grasshopper", stats.DiseaseBreakdown[1].DiseaseName)
	require.Equal(t, 33.33, stats.DiseaseBreakdown[1].Percentage)
}

func TestStatsEmptyHistory(t *testing.T) {
	svc, _ := newServiceFixture(t, &fakeDetectionRepo{}, &fakeMLClient{})

	stats, err := svc.Stats(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.TotalDetections)
	require.Equal(t, 0, stats.UniqueDiseases)
	require.Equal(t, 0.0, stats.AverageConfidence)
	require.Empty(t, stats.DiseaseBreakdown)
}
