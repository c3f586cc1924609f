package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const (
	// MaxPhotoSize bounds profile photo uploads.
	MaxPhotoSize = 2 << 20
	// UploadsPath is the URL prefix photos are served under.
	UploadsPath = "/uploads/"
)

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// UserService manages the caller's own profile. It also resolves verified
// identities to stored users for the authentication middleware.
type UserService struct {
	storage   *storage.SQLiteRepository
	uploadDir string
	logger    *log.Logger
}

func NewUserService(storage *storage.SQLiteRepository, uploadDir string, logger *log.Logger) *UserService {
	return &UserService{
		storage:   storage,
		uploadDir: uploadDir,
		logger:    logger.WithComponent(log.ComponentUser),
	}
}

// ProfileInput carries partial profile updates.
type ProfileInput struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
}

// Photo is an uploaded profile image. ContentType is the sniffed type.
type Photo struct {
	ContentType string
	Size        int64
	Data        io.Reader
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (core.User, error) {
	u, err := s.storage.GetUserByID(ctx, id)
	if err != nil {
		return core.User{}, storageError(err, "User not found")
	}
	return u, nil
}

func (s *UserService) GetUserByUID(ctx context.Context, uid string) (core.User, error) {
	u, err := s.storage.GetUserByUID(ctx, uid)
	if err != nil {
		return core.User{}, storageError(err, "User not found")
	}
	return u, nil
}

// Update applies profile changes and, when photo is set, replaces the
// stored picture.
func (s *UserService) Update(ctx context.Context, userID string, in ProfileInput, photo *Photo) (core.User, error) {
	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return core.User{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return core.User{}, core.Validationf("Name cannot be empty")
		}
		u.Name = name
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if phone != "" && !phonePattern.MatchString(phone) {
			return core.User{}, core.Validationf("Phone number must be in E.164 format")
		}
		u.Phone = phone
	}
	if in.Company != nil {
		u.Company = strings.TrimSpace(*in.Company)
	}

	oldPhoto := u.PhotoURL
	if photo != nil {
		url, err := s.savePhoto(photo)
		if err != nil {
			return core.User{}, err
		}
		u.PhotoURL = url
	}

	if err := s.storage.UpdateUser(ctx, &u); err != nil {
		if photo != nil {
			s.removePhoto(ctx, u.PhotoURL)
		}
		return core.User{}, storageError(err, "User not found")
	}
	if photo != nil && oldPhoto != u.PhotoURL {
		s.removePhoto(ctx, oldPhoto)
	}

	s.logger.InfoContext(ctx, "Profile updated", log.FieldUserID, userID, "photo", photo != nil)
	return u, nil
}

// Delete removes the user and everything they own.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteUser(ctx, userID); err != nil {
		return storageError(err, "User not found")
	}
	s.removePhoto(ctx, u.PhotoURL)
	s.logger.InfoContext(ctx, "User deleted", log.FieldUserID, userID)
	return nil
}

func (s *UserService) savePhoto(p *Photo) (string, error) {
	ext, ok := photoExtensions[p.ContentType]
	if !ok {
		return "", core.Validationf("File type is not allowed")
	}
	if p.Size > MaxPhotoSize {
		return "", core.Validationf("File too large, maximum is 2MB")
	}
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return "", core.Internal("create upload directory", err)
	}

	name := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return "", core.Internal("create photo file", err)
	}
	n, err := io.Copy(f, io.LimitReader(p.Data, MaxPhotoSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxPhotoSize {
		err = core.Validationf("File too large, maximum is 2MB")
	}
	if err != nil {
		os.Remove(filepath.Join(s.uploadDir, name))
		if core.KindOf(err) == core.KindValidation {
			return "", err
		}
		return "", core.Internal("write photo file", err)
	}
	return UploadsPath + name, nil
}

// removePhoto deletes a previously uploaded photo. External URLs, such as
// Google profile pictures, are left alone.
func (s *UserService) removePhoto(ctx context.Context, url string) {
	name, ok := strings.CutPrefix(url, UploadsPath)
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		return
	}
	if err := os.Remove(filepath.Join(s.uploadDir, name)); err != nil && !os.IsNotExist(err) {
		s.logger.WarnContext(ctx, "Failed to remove photo", "file", name, log.FieldError, err)
	}
}

