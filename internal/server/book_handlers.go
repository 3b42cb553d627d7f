package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bookstore/internal/app"
	"bookstore/pkg/domain"
)

// Multipart bodies may carry the image budget plus the text fields.
const maxBookFormBytes = app.MaxUploadBytes + 1<<20

type bookPage struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Data     any   `json:"data"`
}

func bookQuery(r *http.Request) domain.BookQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	return domain.BookQuery{Search: strings.TrimSpace(q.Get("search")), Page: page, PageSize: size}
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	page, err := s.app.ListBooks(p, bookQuery(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookPage{Total: page.Total, Page: page.Page, PageSize: page.PageSize, Data: page.Items})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w, "book not found")
		return
	}
	book, err := s.app.GetBook(p, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	in, uploads, cleanup, ok := parseBookForm(w, r)
	if !ok {
		return
	}
	defer cleanup()
	book, err := s.app.CreateBook(r.Context(), p, in, uploads)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w, "book not found")
		return
	}
	in, uploads, cleanup, ok := parseBookForm(w, r)
	if !ok {
		return
	}
	defer cleanup()
	book, err := s.app.UpdateBook(r.Context(), p, id, in, uploads)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w, "book not found")
		return
	}
	if err := s.app.DeleteBook(r.Context(), p, id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	bookID, ok := pathID(r, "bookId")
	if !ok {
		notFound(w, "book not found")
		return
	}
	imageID, ok := pathID(r, "imageId")
	if !ok {
		notFound(w, "image not found")
		return
	}
	if err := s.app.DeleteImage(r.Context(), p, bookID, imageID); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseBookForm reads the multipart book form. On failure it has already
// written the response. cleanup closes the opened image parts.
func parseBookForm(w http.ResponseWriter, r *http.Request) (app.BookInput, []app.ImageUpload, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBookFormBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorCode(w, http.StatusBadRequest, "BOOK_UPLOAD_TOO_LARGE", app.ErrUploadTooLarge.Error())
			return app.BookInput{}, nil, nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return app.BookInput{}, nil, nil, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("price")))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BOOK_INVALID_PRICE", "price must be a valid decimal")
		return app.BookInput{}, nil, nil, false
	}
	in := app.BookInput{
		Name:        r.FormValue("name"),
		Category:    r.FormValue("category"),
		Price:       price,
		Description: r.FormValue("description"),
	}

	var files []multipart.File
	cleanup := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	var uploads []app.ImageUpload
	for _, fh := range r.MultipartForm.File["images"] {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			writeError(w, http.StatusBadRequest, "invalid form data")
			return app.BookInput{}, nil, nil, false
		}
		files = append(files, f)
		uploads = append(uploads, app.ImageUpload{Filename: fh.Filename, Size: fh.Size, Content: f})
	}
	return in, uploads, cleanup, true
}
