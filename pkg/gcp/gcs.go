package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type putFunc func(ctx context.Context, srcPath, dstPath string) error

// UploadFilesToGCS uploads the specified path to GCS. If the path is a
// directory, it uploads all regular files in it (non-recursive).
func UploadFilesToGCS(ctx context.Context, log logrus.FieldLogger, bucketName, srcPath string, opts ...option.ClientOption) error {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	bucket := client.Bucket(bucketName)
	return uploadPath(ctx, srcPath, func(ctx context.Context, src, dst string) error {
		if err := uploadFile(ctx, bucket, src, dst); err != nil {
			return err
		}
		log.WithField("bucket", bucketName).Infof("Uploaded %s to %s", src, dst)
		return nil
	})
}

func uploadPath(ctx context.Context, srcPath string, put putFunc) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return newError(KindIO, "stat "+srcPath, err)
	}
	if info.IsDir() {
		return uploadDirectory(ctx, srcPath, put)
	}
	return put(ctx, srcPath, filepath.Base(srcPath))
}

func uploadDirectory(ctx context.Context, srcDir string, put putFunc) error {
	files, err := os.ReadDir(srcDir)
	if err != nil {
		return newError(KindIO, "read "+srcDir, err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if err := put(ctx, filepath.Join(srcDir, f.Name()), f.Name()); err != nil {
			return err
		}
	}
	return nil
}

func uploadFile(ctx context.Context, bucket *storage.BucketHandle, srcPath, dstPath string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return newError(KindIO, "open "+srcPath, err)
	}
	defer file.Close()

	w := bucket.Object(dstPath).NewWriter(ctx)
	if _, err = io.Copy(w, file); err != nil {
		w.Close()
		return newError(KindAPI, "upload "+srcPath, err)
	}
	if err := w.Close(); err != nil {
		return newError(KindAPI, "upload "+srcPath, err)
	}
	return nil
}
