package event

import (
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/soonlist/soonlist-backend/internal/ai"
)

// newTestDB returns a private in-memory sqlite database with foreign keys
// enforced and the event tables migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role string, lists int) User {
	t.Helper()

	u := User{
		ID:          "user_" + gofakeit.LetterN(10),
		Username:    gofakeit.Username() + gofakeit.DigitN(4),
		DisplayName: gofakeit.Name(),
		Email:       gofakeit.Email(),
		Timezone:    "America/New_York",
		Role:        role,
	}
	for i := 0; i < lists; i++ {
		u.Lists = append(u.Lists, List{
			ID:         "list_" + gofakeit.LetterN(10),
			Name:       gofakeit.HipsterWord(),
			Visibility: VisibilityPrivate,
		})
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func generated(name string) ai.GeneratedEvent {
	return ai.GeneratedEvent{
		Event: ai.Event{
			Name:        name,
			Description: gofakeit.Sentence(8),
			StartDate:   "2025-07-04",
			EndDate:     "2025-07-04",
			StartTime:   "19:00",
			EndTime:     "22:00",
			TimeZone:    "America/New_York",
			Location:    gofakeit.Street(),
		},
		Metadata: &ai.Metadata{EventCategory: "music", Performers: []string{gofakeit.Name()}},
	}
}

func materialized(t *testing.T, u User) *Event {
	t.Helper()
	e, err := Materialize(generated(gofakeit.Noun()+" night"), MaterializeInput{UserID: u.ID, UserName: u.Username})
	require.NoError(t, err)
	return e
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}
