package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) (Repository, *gorm.DB) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&PushToken{}))
	return NewRepository(db), db
}

type fakeSender struct {
	calls  int
	tokens []string
	msg    PushMessage
	result SendResult
	err    error
}

func (f *fakeSender) Send(_ context.Context, tokens []string, msg PushMessage) (SendResult, error) {
	f.calls++
	f.tokens = tokens
	f.msg = msg
	return f.result, f.err
}

func testRequest() Request {
	return Request{
		UserID:    "user_1",
		Timezone:  "America/Los_Angeles",
		EventID:   "abc123",
		EventName: "Jazz Night",
		Source:    SourceAIPipeline,
		Method:    MethodURL,
		Count:     3,
	}
}

func TestDispatcher_SendsToActiveTokens(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveToken(ctx, &PushToken{UserID: "user_1", Token: "tok-a", DeviceType: "ios"}))
	require.NoError(t, repo.SaveToken(ctx, &PushToken{UserID: "user_1", Token: "tok-b", DeviceType: "android"}))
	require.NoError(t, repo.SaveToken(ctx, &PushToken{UserID: "user_2", Token: "tok-c"}))

	sender := &fakeSender{result: SendResult{ProviderID: "msg-1", SuccessCount: 2}}
	d := NewDispatcher(repo, sender, "https://www.soonlist.com/")

	out := d.Dispatch(ctx, testRequest())

	assert.True(t, out.Success)
	assert.Empty(t, out.Error)
	assert.True(t, strings.HasPrefix(out.NotificationID, "not_"))
	assert.Equal(t, "https://www.soonlist.com/event/abc123", out.URL)
	assert.Equal(t, "3 captures today 🔥", out.Title)
	assert.Equal(t, "Jazz Night", out.Subtitle)
	assert.Equal(t, "msg-1", out.ProviderID)
	assert.Equal(t, MethodURL, out.Method)

	assert.ElementsMatch(t, []string{"tok-a", "tok-b"}, sender.tokens)
	assert.Equal(t, out.NotificationID, sender.msg.NotificationID)
	assert.Equal(t, "abc123", sender.msg.EventID)

	var touched int64
	require.NoError(t, db.Model(&PushToken{}).Where("last_used_at IS NOT NULL").Count(&touched).Error)
	assert.EqualValues(t, 2, touched)
}

func TestDispatcher_NoTokens(t *testing.T) {
	repo, _ := newTestRepo(t)
	sender := &fakeSender{}
	d := NewDispatcher(repo, sender, "https://www.soonlist.com")

	out := d.Dispatch(context.Background(), testRequest())

	assert.False(t, out.Success)
	assert.Equal(t, "no registered devices", out.Error)
	assert.Zero(t, sender.calls)
}

func TestDispatcher_SendFailureDeactivatesInvalidTokens(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveToken(ctx, &PushToken{UserID: "user_1", Token: "tok-a"}))
	require.NoError(t, repo.SaveToken(ctx, &PushToken{UserID: "user_1", Token: "tok-b"}))

	sender := &fakeSender{
		result: SendResult{FailureCount: 2, InvalidTokens: []string{"tok-b"}},
		err:    errors.New("failed to send to 2/2 tokens"),
	}
	d := NewDispatcher(repo, sender, "https://www.soonlist.com")

	out := d.Dispatch(ctx, testRequest())

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "failed to send")

	active, err := repo.ActiveTokens(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a"}, active)
}

func TestDispatcher_MissingCountUsesFirstCaptureCopy(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveToken(ctx, &PushToken{UserID: "user_1", Token: "tok-a"}))

	sender := &fakeSender{result: SendResult{ProviderID: "msg-1", SuccessCount: 1}}
	d := NewDispatcher(repo, sender, "https://www.soonlist.com")

	out := d.Dispatch(ctx, testRequest())

	assert.True(t, out.Success)
	assert.Equal(t, "First capture today ✨", out.Title)
}

func TestDispatcher_UniqueNotificationIDs(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewNotificationID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestRepository_SaveTokenReactivates(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveToken(ctx, &PushToken{UserID: "user_1", Token: "tok-a"}))
	require.NoError(t, repo.DeactivateTokens(ctx, "user_1", []string{"tok-a"}))

	active, err := repo.ActiveTokens(ctx, "user_1")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repo.SaveToken(ctx, &PushToken{UserID: "user_1", Token: "tok-a", DeviceType: "ios"}))
	active, err = repo.ActiveTokens(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a"}, active)
}
