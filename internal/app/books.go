package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bookstore/pkg/domain"
)

// BookInput carries the mutable fields of a book.
type BookInput struct {
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
}

func (in BookInput) normalize() (BookInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, ErrNameRequired
	}
	if in.Price.IsNegative() {
		return in, ErrNegativePrice
	}
	return in, nil
}

// ListBooks returns a page of books visible to p.
func (a *App) ListBooks(p domain.Principal, q domain.BookQuery) (domain.BookPage, error) {
	q.OwnerID = ScopeFor(p)
	return a.store.ListBooks(q)
}

// GetBook returns one book if p may access it.
func (a *App) GetBook(p domain.Principal, id uint) (domain.Book, error) {
	book, err := a.loadBook(id)
	if err != nil {
		return domain.Book{}, err
	}
	if !CanAccess(p, book.UserID) {
		return domain.Book{}, ErrForbidden
	}
	return book, nil
}

func (a *App) loadBook(id uint) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// CreateBook stores a new book owned by p together with up to two images.
func (a *App) CreateBook(ctx context.Context, p domain.Principal, in BookInput, uploads []ImageUpload) (domain.Book, error) {
	in, err := in.normalize()
	if err != nil {
		return domain.Book{}, err
	}
	prepared, err := prepareImages(0, uploads)
	if err != nil {
		return domain.Book{}, err
	}
	images, err := a.uploadImages(ctx, prepared)
	if err != nil {
		return domain.Book{}, err
	}
	book := domain.Book{
		Name:        in.Name,
		Category:    in.Category,
		Price:       in.Price,
		Description: in.Description,
		UserID:      p.UserID,
		Owner:       p.Username,
		AddedBy:     p.Username,
		UpdatedBy:   p.Username,
		Images:      images,
	}
	if err := a.store.CreateBook(&book); err != nil {
		a.removeObjects(ctx, images)
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// UpdateBook replaces the mutable fields and appends images while slots remain.
func (a *App) UpdateBook(ctx context.Context, p domain.Principal, id uint, in BookInput, uploads []ImageUpload) (domain.Book, error) {
	book, err := a.GetBook(p, id)
	if err != nil {
		return domain.Book{}, err
	}
	in, err = in.normalize()
	if err != nil {
		return domain.Book{}, err
	}
	prepared, err := prepareImages(len(book.Images), uploads)
	if err != nil {
		return domain.Book{}, err
	}
	images, err := a.uploadImages(ctx, prepared)
	if err != nil {
		return domain.Book{}, err
	}
	book.Name = in.Name
	book.Category = in.Category
	book.Price = in.Price
	book.Description = in.Description
	book.UpdatedBy = p.Username
	if err := a.store.UpdateBook(&book, images); err != nil {
		a.removeObjects(ctx, images)
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	return a.loadBook(id)
}

// DeleteBook removes the book, its images and payments, then its stored objects.
func (a *App) DeleteBook(ctx context.Context, p domain.Principal, id uint) error {
	book, err := a.GetBook(p, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteBook(id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	a.removeObjects(ctx, book.Images)
	return nil
}

// DeleteImage detaches one image from a book the caller may modify.
func (a *App) DeleteImage(ctx context.Context, p domain.Principal, bookID, imageID uint) error {
	book, err := a.GetBook(p, bookID)
	if err != nil {
		return err
	}
	img, ok, err := a.store.GetImage(imageID)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	if !ok || img.BookID != book.ID {
		return ErrImageNotFound
	}
	if err := a.store.DeleteImage(imageID); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	a.removeObjects(ctx, []domain.Image{img})
	return nil
}

// BrowseBooks is the public catalog listing across all owners.
func (a *App) BrowseBooks(q domain.BookQuery) (domain.BookPage, error) {
	q.OwnerID = nil
	return a.store.ListBooks(q)
}

// PublicBook returns a book for the public detail page.
func (a *App) PublicBook(id uint) (domain.Book, error) {
	return a.loadBook(id)
}
