package auditlog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/soonlist/soonlist-backend/internal/apperr"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&AuditLog{}))
	return NewService(NewRepository(db))
}

func TestLogActionAndFilter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.LogAction(ctx, "user_1", "abc123", "EVENT_CREATED", map[string]interface{}{"lists": 2}, "10.0.0.1", StatusSuccess))
	require.NoError(t, svc.LogAction(ctx, "user_1", "", "EVENT_CREATED", nil, "10.0.0.1", StatusFailure))
	require.NoError(t, svc.LogAction(ctx, "user_2", "def456", "EVENT_DELETED", nil, "10.0.0.2", StatusSuccess))

	page, err := svc.GetAuditLogs(ctx, AuditLogFilter{UserID: "user_1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 1, page.TotalPages)

	page, err = svc.GetAuditLogs(ctx, AuditLogFilter{Status: StatusFailure})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Nil(t, page.Data[0].EventID)
	assert.JSONEq(t, `{}`, string(page.Data[0].Details))

	page, err = svc.GetAuditLogs(ctx, AuditLogFilter{EventID: "abc123", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
	require.Len(t, page.Data, 1)
	assert.JSONEq(t, `{"lists":2}`, string(page.Data[0].Details))

	got, err := svc.GetAuditLogByID(ctx, page.Data[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", *got.EventID)
}

func TestGetAuditLogByIDNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetAuditLogByID(context.Background(), 42)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
