package local

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"medscan-backend/internal/shared/storage/object"
	"medscan-backend/internal/shared/util"
)

// Store implements ObjectStore using the local filesystem. Read capability
// URLs point back at the hosting process (/objects/...) and carry an HMAC
// signature plus an expiry, mirroring what S3 presigning provides.
type Store struct {
	baseDir string
	baseURL string
	secret  []byte
}

// New creates a new local object store rooted at baseDir. baseURL is the
// externally reachable address of the hosting process.
func New(baseDir, baseURL string) *Store {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		secret = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	}
	return &Store{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
	}
}

// Save writes the reader to disk under a freshly generated blob name.
func (s *Store) Save(ctx context.Context, fileName string, r io.Reader) (string, int64, string, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}

	blobName, err := newBlobName(fileName)
	if err != nil {
		return "", 0, "", err
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", 0, "", fmt.Errorf("mkdir: %w", err)
	}

	fullPath := filepath.Join(s.baseDir, blobName)
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, "", fmt.Errorf("open file: %w", err)
	}

	// A failure mid-write must not leave a partial blob behind.
	abort := func(err error) (string, int64, string, error) {
		_ = f.Close()
		_ = os.Remove(fullPath)
		return "", 0, "", err
	}

	var sniff [512]byte
	n, readErr := io.ReadFull(r, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return abort(fmt.Errorf("read sniff: %w", readErr))
	}

	mimeType := http.DetectContentType(sniff[:n])

	size := int64(0)
	if n > 0 {
		if _, err := f.Write(sniff[:n]); err != nil {
			return abort(fmt.Errorf("write sniff: %w", err))
		}
		size += int64(n)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		return abort(fmt.Errorf("write body: %w", err))
	}
	size += written

	if err := f.Close(); err != nil {
		return abort(fmt.Errorf("close file: %w", err))
	}

	return blobName, size, mimeType, nil
}

// Open opens a stored blob for reading.
func (s *Store) Open(ctx context.Context, blobName string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := filepath.Clean(blobName)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid blob name")
	}

	fullPath := filepath.Join(s.baseDir, clean)
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// SignReadURL returns a read URL for one blob, signed with the store secret
// and bounded by ttl.
func (s *Store) SignReadURL(ctx context.Context, blobName string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("sign read url: ttl must be positive")
	}

	exp := time.Now().UTC().Add(ttl).Unix()
	sig := s.sign(blobName, exp)
	return fmt.Sprintf("%s/objects/%s?exp=%d&sig=%s", s.baseURL, url.PathEscape(blobName), exp, sig), nil
}

// VerifyRead checks the signature and expiry produced by SignReadURL.
func (s *Store) VerifyRead(blobName, expRaw, sig string) error {
	exp, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expiry")
	}
	if time.Now().UTC().Unix() > exp {
		return fmt.Errorf("capability url expired")
	}
	expected := s.sign(blobName, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func (s *Store) sign(blobName string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "read:%s:%d", blobName, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

func newBlobName(fileName string) (string, error) {
	token := uuid.NewString()
	if strings.TrimSpace(fileName) == "" {
		return token, nil
	}
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return token + "_" + sanitized, nil
}

var _ object.ObjectStore = (*Store)(nil)
