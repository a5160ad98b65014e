package firebase

import "mime/multipart"

// StorageClient is the image store used by the catalog handlers.
type StorageClient interface {
	UploadImage(file multipart.File, folder, filename, contentType string) (string, error)
	ImportImage(imageURL, folder, name string) (string, error)
	DeleteFile(objectPath string) error
	BucketName() string
}

var _ StorageClient = (*Storage)(nil)
