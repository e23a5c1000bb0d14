// Package storage archives delivery attachments in S3-compatible object
// storage (AWS S3, MinIO, R2).
//
// The gateway uploads each attachment once at enqueue time and the job
// payload carries only the object key; the dispatcher downloads the bytes
// on every attempt:
//
//	archive, err := storage.New(storage.Config{
//		Bucket:    "postbox-attachments",
//		AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
//		SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
//		Endpoint:  "http://localhost:9000",
//		PathStyle: true,
//	})
//
// Errors match ErrNotFound, ErrAccessDenied or the operation's failure
// sentinel through errors.Is.
package storage
