package handlers

import (
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/linkupapp/linkup/internal/middleware"
	"github.com/linkupapp/linkup/internal/models"
	"github.com/linkupapp/linkup/internal/realtime"
	"github.com/linkupapp/linkup/internal/services"
)

var handlerDBCounter int
var handlerDBCounterMu sync.Mutex

func openHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	handlerDBCounterMu.Lock()
	handlerDBCounter++
	name := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", handlerDBCounter)
	handlerDBCounterMu.Unlock()

	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Relationship{},
		&models.Notification{},
	))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func seedHandlerUser(t *testing.T, db *gorm.DB, email, username string) models.User {
	t.Helper()

	user := models.User{
		Email:    email,
		Password: "hashed",
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.Profile{
		UserID:   user.ID,
		Username: username,
	}).Error)
	return user
}

func newNotificationService(t *testing.T, db *gorm.DB) *services.NotificationService {
	t.Helper()

	svc, err := services.NewNotificationService(db, realtime.NewFeed(0))
	require.NoError(t, err)
	return svc
}

// authedContext builds a gin test context carrying the user identity the
// auth middleware would normally set.
func authedContext(t *testing.T, userID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Set(middleware.CtxUserIDKey, userID)
	return c, recorder
}
