//go:build integration

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soonlist/soonlist-backend/config"
	"github.com/soonlist/soonlist-backend/internal/ai"
	"github.com/soonlist/soonlist-backend/internal/auditlog"
	"github.com/soonlist/soonlist-backend/internal/event"
	"github.com/soonlist/soonlist-backend/internal/notification"
)

var (
	pool     *dockertest.Pool
	resource *dockertest.Resource
	testDB   *sql.DB
	testCfg  = &config.Config{
		DBHost:     "localhost",
		DBUser:     "soonlist",
		DBPassword: "password",
		DBName:     "soonlist_test",
		DBSSLMode:  "disable",
	}
)

func TestMain(m *testing.M) {
	var err error
	pool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}

	resource, err = pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15",
		Env: []string{
			"POSTGRES_USER=" + testCfg.DBUser,
			"POSTGRES_PASSWORD=" + testCfg.DBPassword,
			"POSTGRES_DB=" + testCfg.DBName,
		},
	}, func(conf *docker.HostConfig) {
		conf.AutoRemove = true
		conf.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start resource: %s", err)
	}
	_ = resource.Expire(120)
	testCfg.DBPort = resource.GetPort("5432/tcp")

	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		var err error
		testDB, err = Open(testCfg)
		return err
	}); err != nil {
		log.Fatalf("Could not connect to postgres: %s", err)
	}

	if err := Migrate(testDB, testCfg.DBName); err != nil {
		log.Fatal(err.Error())
	}

	code := m.Run()

	_ = testDB.Close()
	if err := pool.Purge(resource); err != nil {
		log.Printf("Could not purge resource: %s", err)
	}
	os.Exit(code)
}

func TestMigrateIsIdempotent(t *testing.T) {
	require.NoError(t, Migrate(testDB, testCfg.DBName))
}

func TestEventRoundTripOnPostgres(t *testing.T) {
	db, err := Connect(testDB, false)
	require.NoError(t, err)
	ctx := context.Background()

	user := event.User{ID: "user_pg", Username: "pg_user", Lists: []event.List{{ID: "list_pg", Name: "Music"}}}
	require.NoError(t, db.Create(&user).Error)

	row, err := event.Materialize(ai.GeneratedEvent{
		Event: ai.Event{Name: "Jazz Night", StartDate: "2025-03-14", EndDate: "2025-03-14", StartTime: "19:00", EndTime: "22:00"},
	}, event.MaterializeInput{UserID: user.ID, UserName: user.Username, ImageURL: "https://cdn.soonlist.com/a.png", Visibility: "public"})
	require.NoError(t, err)

	svc := event.NewService(event.NewRepository(db), auditlog.NewService(auditlog.NewRepository(db)))
	saved, err := svc.Create(ctx, event.CreateParams{Event: row, Comment: "bring cash", ListIDs: []string{"list_pg", "list_pg"}}, "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC), saved.StartDateTime.UTC())
	assert.Len(t, saved.Event.Data().Images, event.ImageSlots)
	require.Len(t, saved.EventToLists, 1)
	require.Len(t, saved.Comments, 1)
	require.NotNil(t, saved.User)

	_, err = svc.Create(ctx, event.CreateParams{Event: mustMaterialize(t, user), ListIDs: []string{"list_missing"}}, "127.0.0.1")
	require.Error(t, err)

	var events int64
	require.NoError(t, db.Model(&event.Event{}).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	var audits int64
	require.NoError(t, db.Model(&auditlog.AuditLog{}).Where("event_id = ?", saved.ID).Count(&audits).Error)
	assert.EqualValues(t, 1, audits)
}

func TestPushTokensOnPostgres(t *testing.T) {
	db, err := Connect(testDB, false)
	require.NoError(t, err)
	ctx := context.Background()

	repo := notification.NewRepository(db)
	require.NoError(t, repo.SaveToken(ctx, &notification.PushToken{UserID: "user_pg", Token: "tok-1", DeviceType: "ios"}))
	require.NoError(t, repo.SaveToken(ctx, &notification.PushToken{UserID: "user_pg", Token: "tok-1", DeviceType: "ios"}))

	tokens, err := repo.ActiveTokens(ctx, "user_pg")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, tokens)
}

func mustMaterialize(t *testing.T, u event.User) *event.Event {
	t.Helper()
	e, err := event.Materialize(ai.GeneratedEvent{
		Event: ai.Event{Name: fmt.Sprintf("Event for %s", u.Username), StartDate: "2025-03-15", EndDate: "2025-03-15"},
	}, event.MaterializeInput{UserID: u.ID, UserName: u.Username})
	require.NoError(t, err)
	return e
}
