package server

import (
	"net/http"

	"github.com/shopspring/decimal"

	"bookstore/pkg/domain"
)

type homeBook struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	FirstImageURL string          `json:"firstImageUrl"`
}

type homeBookDetail struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
}

type adminBook struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Category   string          `json:"category"`
	UploadedBy string          `json:"uploadedBy"`
}

type vendorBook struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	FirstImageURL string          `json:"firstImageUrl"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	page, err := s.app.BrowseBooks(bookQuery(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	items := make([]homeBook, 0, len(page.Items))
	for _, b := range page.Items {
		items = append(items, homeBook{ID: b.ID, Name: b.Name, Price: b.Price, FirstImageURL: b.FirstImageURL()})
	}
	writeJSON(w, http.StatusOK, bookPage{Total: page.Total, Page: page.Page, PageSize: page.PageSize, Data: items})
}

func (s *Server) handleHomeBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w, "book not found")
		return
	}
	b, err := s.app.PublicBook(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	images := make([]string, 0, len(b.Images))
	for _, img := range b.Images {
		images = append(images, img.URL)
	}
	writeJSON(w, http.StatusOK, homeBookDetail{
		ID:          b.ID,
		Name:        b.Name,
		Price:       b.Price,
		Description: b.Description,
		Category:    b.Category,
		Images:      images,
	})
}

func (s *Server) handleAdminBooks(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	books, err := s.app.AdminBooks(p)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]adminBook, 0, len(books))
	for _, b := range books {
		out = append(out, adminBook{ID: b.ID, Name: b.Name, Price: b.Price, Category: b.Category, UploadedBy: b.Owner})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	stats, err := s.app.AdminStats(r.Context(), p)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVendorBooks(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	books, err := s.app.VendorBooks(p)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]vendorBook, 0, len(books))
	for _, b := range books {
		out = append(out, vendorBook{ID: b.ID, Name: b.Name, Price: b.Price, Category: b.Category, FirstImageURL: b.FirstImageURL()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVendorStats(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	stats, err := s.app.VendorStats(p)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVendorSales(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	sales, err := s.app.VendorSales(p)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}
