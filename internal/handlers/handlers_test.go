package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"learnhub-backend/internal/authorization"
	"learnhub-backend/internal/middleware"
	"learnhub-backend/internal/models"
	"learnhub-backend/internal/payments"
	"learnhub-backend/internal/repository"
	"learnhub-backend/internal/service"
	"learnhub-backend/pkg/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Init()
	os.Exit(m.Run())
}

type stubGateway struct{}

func (stubGateway) CreateOrder(_ context.Context, params payments.OrderParams) (*payments.GatewayOrder, error) {
	return &payments.GatewayOrder{ID: "order_" + params.Receipt, AmountMinor: params.AmountMinor, Currency: params.Currency, Status: "created"}, nil
}

func (stubGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return signature == orderID+"|"+paymentID
}

func (stubGateway) KeyID() string { return "rzp_test_key" }

type testEnv struct {
	db      *gorm.DB
	router  *gin.Engine
	learner    *models.User
	instructor *models.User
	admin      *models.User
	course  *models.Course
	free    *models.Chapter
	premium *models.Chapter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))

	env := &testEnv{db: db}
	env.learner = &models.User{Username: "learner", Email: "learner@example.com", Role: authorization.RoleUser}
	env.admin = &models.User{Username: "admin", Email: "admin@example.com", Role: authorization.RoleAdmin}
	require.NoError(t, db.Create(env.learner).Error)
	require.NoError(t, db.Create(env.admin).Error)
	env.instructor = &models.User{Username: "instructor", Email: "instructor@example.com", Role: authorization.RoleInstructor}
	require.NoError(t, db.Create(env.instructor).Error)

	env.course = &models.Course{Title: "Go", Price: 500, IsPublished: true}
	require.NoError(t, db.Create(env.course).Error)

	env.free = &models.Chapter{Title: "Intro", IsPublished: true, VideoURL: "https://cdn/intro.mp4"}
	env.premium = &models.Chapter{Title: "Deep dive", IsPublished: true, IsPremium: true, Price: 150, VideoURL: "https://cdn/deep.mp4", Position: 1}
	require.NoError(t, db.Create(env.free).Error)
	require.NoError(t, db.Create(env.premium).Error)
	require.NoError(t, db.Create(&models.CourseChapter{CourseID: env.course.ID, ChapterID: env.free.ID}).Error)
	require.NoError(t, db.Create(&models.CourseChapter{CourseID: env.course.ID, ChapterID: env.premium.ID, Position: 1}).Error)
	require.NoError(t, db.Create(&models.ChapterQuestion{ChapterID: env.free.ID, Text: "2+2?", Options: models.StringList{"3", "4"}, CorrectOptionIndex: 1}).Error)

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	chapters := repository.NewChapterRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	orders := repository.NewOrderRepository(db)

	entitlement := service.NewEntitlementService(users, courses, chapters)
	progress := service.NewProgressService(courses, chapters, progressRepo, entitlement)
	orderService := service.NewOrderService(orders, users, courses, chapters, stubGateway{}, nil, service.OrderConfig{Currency: "INR", AllAccessPrice: 4999})

	chapterHandler := NewChapterHandler(entitlement, service.NewQuizService(courses, chapters, progressRepo, nil, 100), false)
	orderHandler := NewOrderHandler(orderService, false)
	questionHandler := NewQuestionHandler(service.NewQuestionService(chapters), false)
	progressHandler := NewProgressHandler(progress, service.NewUserService(users, chapters, progressRepo, progress), false)

	router := gin.New()
	api := router.Group("/api")
	api.Use(func(c *gin.Context) {
		var id uint
		if _, err := fmt.Sscan(c.GetHeader("X-Test-User"), &id); err == nil && id != 0 {
			var user models.User
			if err := db.First(&user, id).Error; err == nil {
				c.Set(middleware.ContextUserID, user.ID)
				c.Set(middleware.ContextRole, user.Role)
			}
		}
		c.Next()
	})
	api.GET("/chapter/:id", chapterHandler.GetChapter)
	api.POST("/chapter/:id/complete-chapter", chapterHandler.CompleteChapter)
	api.POST("/order/initiate", orderHandler.Initiate)
	api.POST("/order/verify", orderHandler.Verify)
	api.GET("/order/status", orderHandler.Status)
	api.GET("/progress/course/:id", progressHandler.CourseProgress)
	api.GET("/user/data/:userId", progressHandler.UserData)
	api.GET("/admin/chapters/:id/questions", middleware.RequirePermission(authorization.PermissionManageCatalog), questionHandler.List)

	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, userID uint, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-Test-User", fmt.Sprint(userID))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	decoded := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestGetChapterDeniedBodyCarriesNoVideo(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, fmt.Sprintf("/api/chapter/%d?courseId=%d", env.premium.ID, env.course.ID), env.learner.ID, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "payment_required", body["code"])
	assert.NotContains(t, rec.Body.String(), "videoUrl")
	assert.NotContains(t, rec.Body.String(), "cdn/deep.mp4")
	assert.NotContains(t, body, "details")
}

func TestGetChapterVideoVisibility(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, fmt.Sprintf("/api/chapter/%d", env.free.ID), env.learner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chapter := body["chapter"].(map[string]interface{})
	assert.Equal(t, "https://cdn/intro.mp4", chapter["videoUrl"])

	questions := chapter["questions"].([]interface{})
	require.Len(t, questions, 1)
	assert.NotContains(t, questions[0], "correctAnswerIndex")

	rec, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/chapter/%d?courseId=%d", env.premium.ID, env.course.ID), env.admin.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn/deep.mp4", body["chapter"].(map[string]interface{})["videoUrl"])
}

func TestRequestValidationStatuses(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   uint
		body   interface{}
		status int
		code   string
	}{
		{"unauthenticated", http.MethodGet, fmt.Sprintf("/api/chapter/%d", env.free.ID), 0, nil, http.StatusUnauthorized, "unauthorized"},
		{"malformed id", http.MethodGet, "/api/chapter/abc", env.learner.ID, nil, http.StatusBadRequest, "invalid_input"},
		{"unknown chapter", http.MethodGet, "/api/chapter/999", env.learner.ID, nil, http.StatusNotFound, "not_found"},
		{"chapter outside course", http.MethodGet, fmt.Sprintf("/api/chapter/%d?courseId=999", env.free.ID), env.learner.ID, nil, http.StatusNotFound, "not_found"},
		{"quiz without course", http.MethodPost, fmt.Sprintf("/api/chapter/%d/complete-chapter", env.free.ID), env.learner.ID, gin.H{"userAnswers": []interface{}{}}, http.StatusBadRequest, "invalid_input"},
		{"answers not a list", http.MethodPost, fmt.Sprintf("/api/chapter/%d/complete-chapter?courseId=%d", env.free.ID, env.course.ID), env.learner.ID, gin.H{"userAnswers": "4"}, http.StatusBadRequest, "invalid_input"},
		{"free chapter purchase", http.MethodPost, "/api/order/initiate", env.learner.ID, gin.H{"chapterId": env.free.ID}, http.StatusBadRequest, "conflict"},
		{"verify missing fields", http.MethodPost, "/api/order/verify", env.learner.ID, gin.H{"razorpay_order_id": "order_x"}, http.StatusBadRequest, "invalid_input"},
		{"unknown order", http.MethodGet, "/api/order/status?orderId=order_missing", env.learner.ID, nil, http.StatusNotFound, "not_found"},
		{"other user data", http.MethodGet, fmt.Sprintf("/api/user/data/%d", env.admin.ID), env.learner.ID, nil, http.StatusForbidden, "forbidden"},
		{"catalog route as learner", http.MethodGet, fmt.Sprintf("/api/admin/chapters/%d/questions", env.free.ID), env.learner.ID, nil, http.StatusForbidden, "forbidden"},
		{"other user data as instructor", http.MethodGet, fmt.Sprintf("/api/user/data/%d", env.learner.ID), env.instructor.ID, nil, http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			}
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRolePermissions(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/chapters/%d/questions", env.free.ID), env.instructor.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	questions := body["questions"].([]interface{})
	require.Len(t, questions, 1)
	assert.EqualValues(t, 1, questions[0].(map[string]interface{})["correctAnswerIndex"])

	rec, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/user/data/%d", env.learner.ID), env.admin.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, env.learner.ID, body["user"].(map[string]interface{})["id"])

	rec, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/chapter/%d?courseId=%d", env.premium.ID, env.course.ID), env.instructor.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestQuizPassThenResubmit(t *testing.T) {
	env := newTestEnv(t)

	var question models.ChapterQuestion
	require.NoError(t, env.db.Where("chapter_id = ?", env.free.ID).First(&question).Error)
	path := fmt.Sprintf("/api/chapter/%d/complete-chapter?courseId=%d", env.free.ID, env.course.ID)

	rec, body := env.do(t, http.MethodPost, path, env.learner.ID, gin.H{"userAnswers": []gin.H{{"questionId": question.ID, "selectedOptionIndex": 0}}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["passed"])
	assert.Equal(t, "Some answers are incorrect. Try again.", body["message"])

	correct := gin.H{"userAnswers": []gin.H{{"questionId": question.ID, "selectedOptionIndex": 1}}}
	rec, body = env.do(t, http.MethodPost, path, env.learner.ID, correct)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["passed"])
	assert.EqualValues(t, 100, body["coinsAwarded"])

	rec, body = env.do(t, http.MethodPost, path, env.learner.ID, correct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "conflict", body["code"])

	rec, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/progress/course/%d", env.course.ID), env.learner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 50, body["percentage"])
}

func TestOrderInitiateAndVerify(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/order/initiate", env.learner.ID, gin.H{"chapterId": env.premium.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 150, body["amount"])
	assert.EqualValues(t, 15000, body["amountMinor"])
	assert.Equal(t, "rzp_test_key", body["keyId"])
	gatewayOrderID := body["gatewayOrderId"].(string)

	verify := gin.H{"razorpay_order_id": gatewayOrderID, "razorpay_payment_id": "pay_1", "razorpay_signature": "forged"}
	rec, body = env.do(t, http.MethodPost, "/api/order/verify", env.learner.ID, verify)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "verification_failed", body["code"])

	verify["razorpay_signature"] = gatewayOrderID + "|pay_1"
	rec, body = env.do(t, http.MethodPost, "/api/order/verify", env.learner.ID, verify)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Payment verified successfully", body["message"])

	rec, body = env.do(t, http.MethodPost, "/api/order/verify", env.learner.ID, verify)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment already processed", body["message"])

	rec, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/chapter/%d?courseId=%d", env.premium.ID, env.course.ID), env.learner.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cdn/deep.mp4")

	rec, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/user/data/%d", env.learner.ID), env.learner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{float64(env.premium.ID)}, body["purchasedChapters"])
}

func TestInitiateAcceptsLowercaseCurrency(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/order/initiate", env.learner.ID, gin.H{"chapterId": env.premium.ID, "currency": "inr"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "INR", body["currency"])

	rec, body = env.do(t, http.MethodPost, "/api/order/initiate", env.learner.ID, gin.H{"chapterId": env.premium.ID, "currency": "US"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", body["code"])
}

func TestEmptyInitiateBodyBuysAllAccess(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/order/initiate", env.learner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 4999, body["amount"])
}

func TestUnexpectedErrorDetailsOnlyInDebug(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, debug := range []bool{false, true} {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		responder{debug: debug}.fail(c, errors.New("connection reset"))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "internal", body["code"])
		if debug {
			assert.Equal(t, "connection reset", body["details"])
		} else {
			assert.NotContains(t, body, "details")
		}
	}
}
