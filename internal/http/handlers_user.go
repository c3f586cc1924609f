package http

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// multipartOverhead leaves room for the text fields next to the photo.
const multipartOverhead = 1 << 20

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.deps.Users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

// handleUpdateUser accepts JSON or a multipart form with an optional "file"
// image.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in services.ProfileInput
	var photo *services.Photo
	if isMultipart(r) {
		in, photo, err = parseProfileForm(w, r)
		if photo != nil {
			defer photo.Data.(io.Closer).Close()
		}
	} else {
		err = decodeJSON(w, r, &in, false)
		in.Name, in.Phone, in.Company = sanitizePtr(in.Name), sanitizePtr(in.Phone), sanitizePtr(in.Company)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.deps.Users.Update(r.Context(), userID, in, photo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    user,
	})
}

func parseProfileForm(w http.ResponseWriter, r *http.Request) (services.ProfileInput, *services.Photo, error) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxPhotoSize+multipartOverhead)
	if err := r.ParseMultipartForm(services.MaxPhotoSize + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return services.ProfileInput{}, nil, core.Validationf("File too large, maximum is 2MB")
		}
		return services.ProfileInput{}, nil, core.Validationf("Invalid multipart form")
	}

	in := services.ProfileInput{
		Name:    formValue(r, "name"),
		Phone:   formValue(r, "phone"),
		Company: formValue(r, "company"),
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return in, nil, core.Validationf("Invalid file upload")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		file.Close()
		return in, nil, core.Internal("read upload", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return in, nil, core.Internal("rewind upload", err)
	}
	return in, &services.Photo{
		ContentType: http.DetectContentType(head[:n]),
		Size:        header.Size,
		Data:        file,
	}, nil
}

// uploadsDir serves files from dir without directory listings.
func uploadsDir(dir string) http.FileSystem {
	return noListingFS{http.Dir(dir)}
}

type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	if strings.HasSuffix(name, "/") {
		return nil, fs.ErrNotExist
	}
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Users.Delete(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "User deleted successfully")
}
