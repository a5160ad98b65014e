package firebase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const publicHost = "https://storage.googleapis.com"

var (
	ErrNotConfigured = errors.New("firebase storage is not configured")

	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// sanitizeFilename removes special characters from filenames and limits length.
func sanitizeFilename(filename string) string {
	sanitized := unsafeChars.ReplaceAllString(filename, "_")

	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}

	if sanitized == "" || sanitized == "." || sanitized == ".." {
		sanitized = "file"
	}

	return sanitized
}

func objectPath(folder, filename string, at time.Time) string {
	return fmt.Sprintf("%s/%d_%s", sanitizeFilename(folder), at.Unix(), sanitizeFilename(filename))
}

// PublicURL is the anonymous-read URL for an object.
func PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/%s/%s", publicHost, bucket, path)
}

// ObjectPathFromURL reverses PublicURL. It returns "" for URLs that do not
// point into bucket.
func ObjectPathFromURL(bucket, rawURL string) string {
	prefix := fmt.Sprintf("%s/%s/", publicHost, bucket)
	if bucket == "" || !strings.HasPrefix(rawURL, prefix) {
		return ""
	}
	return strings.TrimPrefix(rawURL, prefix)
}

var privateRanges = []*net.IPNet{
	parseCIDR("10.0.0.0/8"),
	parseCIDR("172.16.0.0/12"),
	parseCIDR("192.168.0.0/16"),
	parseCIDR("127.0.0.0/8"),
	parseCIDR("169.254.0.0/16"),
	parseCIDR("0.0.0.0/8"),
	parseCIDR("::1/128"),
	parseCIDR("fc00::/7"),
	parseCIDR("fe80::/10"),
}

func isPrivateIP(ip net.IP) bool {
	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("invalid CIDR: %s", cidr))
	}
	return network
}

// validateExternalURL rejects URLs that are not http(s) or that resolve to a
// private address.
func validateExternalURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme '%s' is not allowed; only http and https are permitted", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no hostname")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("requests to localhost are not allowed")
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname '%s': %w", host, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("URL resolves to private IP address %s, which is not allowed", ip.String())
		}
	}

	return nil
}

// Init builds the Firebase app from GOOGLE_APPLICATION_CREDENTIALS, which may
// hold either inline JSON or a file path.
func Init(ctx context.Context) (*firebase.App, error) {
	credJSON := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")

	var opts []option.ClientOption
	switch {
	case strings.HasPrefix(credJSON, "{"):
		log.Println("Using Firebase credentials from environment variable")
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	case credJSON != "":
		log.Println("Using Firebase credentials from file:", credJSON)
		opts = append(opts, option.WithCredentialsFile(credJSON))
	default:
		log.Println("Warning: GOOGLE_APPLICATION_CREDENTIALS not set, using default credentials")
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init failed: %w", err)
	}

	log.Println("Firebase initialized successfully")
	return app, nil
}

// Storage writes public images into a single Cloud Storage bucket.
type Storage struct {
	app        *firebase.App
	bucketName string
	httpClient *http.Client
	now        func() time.Time
}

func NewStorage(app *firebase.App, bucketName string) *Storage {
	return &Storage{
		app:        app,
		bucketName: bucketName,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

func (s *Storage) bucket(ctx context.Context) (*storage.BucketHandle, error) {
	if s.app == nil || s.bucketName == "" {
		return nil, ErrNotConfigured
	}
	client, err := s.app.Storage(ctx)
	if err != nil {
		return nil, err
	}
	return client.Bucket(s.bucketName)
}

func (s *Storage) write(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	bucket, err := s.bucket(ctx)
	if err != nil {
		return "", err
	}

	obj := bucket.Object(path)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, body); err != nil {
		wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		log.Printf("Warning: failed to set public ACL on %s: %v", path, err)
	}

	return PublicURL(s.bucketName, path), nil
}

func (s *Storage) UploadImage(file multipart.File, folder, filename, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	return s.write(ctx, objectPath(folder, filename, s.now()), contentType, file)
}

// ImportImage fetches a remote image and stores a copy under folder.
func (s *Storage) ImportImage(imageURL, folder, name string) (string, error) {
	if err := validateExternalURL(imageURL); err != nil {
		return "", fmt.Errorf("URL validation failed for %s: %w", imageURL, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image from %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("URL %s returned non-image content-type %q", imageURL, contentType)
	}

	path := fmt.Sprintf("%s/%s_%s", sanitizeFilename(folder), sanitizeFilename(name), uuid.NewString()[:8])
	return s.write(ctx, path, contentType, io.LimitReader(resp.Body, 5<<20))
}

func (s *Storage) DeleteFile(objectPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bucket, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	if err := bucket.Object(objectPath).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectPath, err)
	}

	log.Printf("Deleted file %s from bucket %s", objectPath, s.bucketName)
	return nil
}

// BucketName reports the configured bucket, used to map public URLs back to
// object paths.
func (s *Storage) BucketName() string {
	return s.bucketName
}
