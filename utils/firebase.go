package utils

import (
	"context"
	"fmt"
	"os"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/soonlist/soonlist-backend/config"
)

// Firebase holds the clients built from one Firebase app. Messaging and
// Bucket are nil when the matching service could not be initialized.
type Firebase struct {
	App       *firebase.App
	Messaging *messaging.Client
	Bucket    *gcs.BucketHandle
}

func (f *Firebase) FCMEnabled() bool {
	return f != nil && f.Messaging != nil
}

func (f *Firebase) StorageEnabled() bool {
	return f != nil && f.Bucket != nil
}

// InitFirebase initializes the Firebase Admin SDK with FCM and Storage. A
// missing credentials file or project id is reported as an error and the
// caller continues without push and uploads.
func InitFirebase(ctx context.Context, cfg *config.Config) (*Firebase, error) {
	credentialsPath := cfg.FCMCredentialsPath
	if credentialsPath == "" {
		credentialsPath = "./serviceAccountKey.json"
	}
	log := logrus.WithFields(logrus.Fields{
		"credentials": credentialsPath,
		"project_id":  cfg.FCMProjectID,
	})

	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		log.Warn("⚠️ Firebase credentials file not found")
		return nil, fmt.Errorf("firebase credentials file not found: %s", credentialsPath)
	}
	if cfg.FCMProjectID == "" {
		log.Warn("⚠️ FIREBASE_PROJECT_ID not set")
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.FCMProjectID,
		StorageBucket: cfg.StorageBucket,
	}, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("firebase app initialization failed: %w", err)
	}
	log.Info("✅ Firebase app initialized")

	fb := &Firebase{App: app}

	if fb.Messaging, err = app.Messaging(ctx); err != nil {
		log.WithError(err).Warn("FCM client unavailable, push notifications disabled")
	}

	if cfg.StorageBucket != "" {
		store, err := app.Storage(ctx)
		if err != nil {
			log.WithError(err).Warn("storage client unavailable, image uploads disabled")
			return fb, nil
		}
		if fb.Bucket, err = store.Bucket(cfg.StorageBucket); err != nil {
			log.WithError(err).Warn("storage bucket unavailable, image uploads disabled")
		}
	}
	return fb, nil
}
