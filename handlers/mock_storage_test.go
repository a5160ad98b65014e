package handlers

import (
	"mime/multipart"

	"tablebook-backend/firebase"
)

const testBucket = "test-bucket"

type mockStorage struct {
	UploadImageFn   func(file multipart.File, folder, filename, contentType string) (string, error)
	ImportImageFn   func(imageURL, folder, name string) (string, error)
	DeleteFileFn    func(objectPath string) error
	DeleteFileCalls []string
	UploadCalls     []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{DeleteFileCalls: []string{}}
}

func (m *mockStorage) UploadImage(file multipart.File, folder, filename, contentType string) (string, error) {
	m.UploadCalls = append(m.UploadCalls, folder+"/"+filename)
	if m.UploadImageFn != nil {
		return m.UploadImageFn(file, folder, filename, contentType)
	}
	return firebase.PublicURL(testBucket, folder+"/"+filename), nil
}

func (m *mockStorage) ImportImage(imageURL, folder, name string) (string, error) {
	m.UploadCalls = append(m.UploadCalls, folder+"/"+name)
	if m.ImportImageFn != nil {
		return m.ImportImageFn(imageURL, folder, name)
	}
	return firebase.PublicURL(testBucket, folder+"/"+name+"_imported.jpg"), nil
}

func (m *mockStorage) DeleteFile(objectPath string) error {
	m.DeleteFileCalls = append(m.DeleteFileCalls, objectPath)
	if m.DeleteFileFn != nil {
		return m.DeleteFileFn(objectPath)
	}
	return nil
}

func (m *mockStorage) BucketName() string {
	return testBucket
}

var _ firebase.StorageClient = (*mockStorage)(nil)
