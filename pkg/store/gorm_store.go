package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookstore/pkg/domain"
)

const migrateLockID int64 = 41720931

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type aggregateRow struct {
	Count int64
	Total decimal.Decimal
}

type saleRow struct {
	BookTitle string
	Buyer     string
	Amount    decimal.Decimal
	Status    string
	PaidAt    *time.Time
	Reference string
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the Postgres DB and runs auto-migrations under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := openDB(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewGormStoreWithDialector opens a store over any gorm dialector and migrates it.
// Used with sqlite for local runs and tests.
func NewGormStoreWithDialector(dialector gorm.Dialector) (*GormStore, error) {
	db, err := openDB(dialector)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// DB exposes the underlying handle for connection tuning.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func openDB(dialector gorm.Dialector) (*gorm.DB, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserModel{}, &BookModel{}, &ImageModel{}, &PaymentModel{}, &PaymentEventModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a user. A taken username yields ErrDuplicate.
func (s *GormStore) CreateUser(u *domain.User) error {
	model := userToModel(*u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	*u = userFromModel(model)
	return nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id uint) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int64, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateBook inserts a book together with its images.
func (s *GormStore) CreateBook(b *domain.Book) error {
	model := bookToModel(*b)
	images := model.Images
	model.Images = nil
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return err
		}
		for i := range images {
			images[i].BookID = model.ID
		}
		if len(images) > 0 {
			if err := tx.Create(&images).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	model.Images = images
	owner := b.Owner
	*b = bookFromModel(model)
	b.Owner = owner
	return nil
}

// UpdateBook replaces the mutable fields and appends images in one transaction.
func (s *GormStore) UpdateBook(b *domain.Book, added []domain.Image) error {
	now := time.Now().UTC()
	images := make([]ImageModel, 0, len(added))
	for _, img := range added {
		m := imageToModel(img)
		m.BookID = b.ID
		images = append(images, m)
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BookModel{}).Where("id = ?", b.ID).Updates(map[string]any{
			"name":        b.Name,
			"category":    b.Category,
			"price":       b.Price,
			"description": b.Description,
			"updated_by":  b.UpdatedBy,
			"updated_at":  now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if len(images) > 0 {
			if err := tx.Create(&images).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.UpdatedAt = now
	for _, m := range images {
		b.Images = append(b.Images, imageFromModel(m))
	}
	return nil
}

// GetBook retrieves a book with its images and owner.
func (s *GormStore) GetBook(id uint) (domain.Book, bool, error) {
	var model BookModel
	if err := s.withRelations(s.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns one page of books matching q plus the total match count.
func (s *GormStore) ListBooks(q domain.BookQuery) (domain.BookPage, error) {
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	var total int64
	if err := filterBooks(s.db.Model(&BookModel{}), q).Count(&total).Error; err != nil {
		return domain.BookPage{}, err
	}
	var models []BookModel
	tx := filterBooks(s.withRelations(s.db), q).
		Order("created_at ASC").Order("id ASC").
		Offset((page - 1) * size).
		Limit(size)
	if err := tx.Find(&models).Error; err != nil {
		return domain.BookPage{}, err
	}
	items := make([]domain.Book, 0, len(models))
	for _, m := range models {
		items = append(items, bookFromModel(m))
	}
	return domain.BookPage{Total: total, Page: page, PageSize: size, Items: items}, nil
}

// ListAllBooks returns every book, optionally restricted to one owner.
func (s *GormStore) ListAllBooks(ownerID *uint) ([]domain.Book, error) {
	var models []BookModel
	tx := s.withRelations(s.db).Order("created_at ASC").Order("id ASC")
	if ownerID != nil {
		tx = tx.Where("user_id = ?", *ownerID)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

func (s *GormStore) withRelations(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "username") })
}

func filterBooks(tx *gorm.DB, q domain.BookQuery) *gorm.DB {
	if q.OwnerID != nil {
		tx = tx.Where("user_id = ?", *q.OwnerID)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		tx = tx.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return tx
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// DeleteBook removes a book with its images and payments.
func (s *GormStore) DeleteBook(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ImageModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&PaymentModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// BookCount returns number of books.
func (s *GormStore) BookCount() (int64, error) {
	var count int64
	if err := s.db.Model(&BookModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// OwnerBookStats returns how many books an owner lists and their summed price.
func (s *GormStore) OwnerBookStats(ownerID uint) (int64, decimal.Decimal, error) {
	var row aggregateRow
	err := s.db.Model(&BookModel{}).
		Select("COUNT(*) AS count, COALESCE(SUM(price), 0) AS total").
		Where("user_id = ?", ownerID).
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	return row.Count, row.Total, nil
}

// GetImage returns an image by ID.
func (s *GormStore) GetImage(id uint) (domain.Image, bool, error) {
	var model ImageModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Image{}, false, nil
		}
		return domain.Image{}, false, err
	}
	return imageFromModel(model), true, nil
}

// DeleteImage removes one image row.
func (s *GormStore) DeleteImage(id uint) error {
	return s.db.Delete(&ImageModel{}, "id = ?", id).Error
}

// CreatePayment inserts a payment row.
func (s *GormStore) CreatePayment(p *domain.Payment) error {
	model := paymentToModel(*p)
	if err := s.db.Omit(clause.Associations).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	*p = paymentFromModel(model)
	return nil
}

// GetPaymentByReference looks up a payment by its gateway reference.
func (s *GormStore) GetPaymentByReference(ref string) (domain.Payment, bool, error) {
	var model PaymentModel
	if err := s.db.Where("reference = ?", ref).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Payment{}, false, nil
		}
		return domain.Payment{}, false, err
	}
	return paymentFromModel(model), true, nil
}

// TransitionPayment moves a pending payment to a terminal status.
// It reports false when no pending row matched the reference.
func (s *GormStore) TransitionPayment(ref string, to domain.PaymentStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     string(to),
		"updated_at": at,
	}
	if to == domain.PaymentSuccess {
		updates["paid_at"] = at
	}
	res := s.db.Model(&PaymentModel{}).
		Where("reference = ? AND status = ?", ref, string(domain.PaymentPending)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListSales returns successful payments on books owned by ownerID, newest first.
func (s *GormStore) ListSales(ownerID uint) ([]domain.Sale, error) {
	var rows []saleRow
	err := s.db.Table("payment_models AS p").
		Select("b.name AS book_title, u.username AS buyer, p.amount, p.status, p.paid_at, p.reference").
		Joins("JOIN book_models b ON b.id = p.book_id").
		Joins("JOIN user_models u ON u.id = p.buyer_id").
		Where("b.user_id = ? AND p.status = ?", ownerID, string(domain.PaymentSuccess)).
		Order("p.paid_at DESC").Order("p.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		sales = append(sales, domain.Sale{
			BookTitle: r.BookTitle,
			Buyer:     r.Buyer,
			Amount:    r.Amount,
			Status:    domain.PaymentStatus(r.Status),
			PaidAt:    r.PaidAt,
			Reference: r.Reference,
		})
	}
	return sales, nil
}

// PaymentTotals returns the count and summed amount of successful payments.
func (s *GormStore) PaymentTotals() (int64, decimal.Decimal, error) {
	var row aggregateRow
	err := s.db.Model(&PaymentModel{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", string(domain.PaymentSuccess)).
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	return row.Count, row.Total, nil
}

// RecordPaymentEvent appends a webhook delivery to the audit table.
func (s *GormStore) RecordPaymentEvent(e domain.PaymentEvent) error {
	model := PaymentEventModel{
		Event:      e.Event,
		Reference:  e.Reference,
		Payload:    e.Payload,
		Applied:    e.Applied,
		ReceivedAt: e.ReceivedAt,
	}
	if model.ReceivedAt.IsZero() {
		model.ReceivedAt = time.Now().UTC()
	}
	return s.db.Create(&model).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		PasswordSalt: u.PasswordSalt,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role, ok := domain.ParseUserRole(m.Role)
	if !ok {
		role = domain.RoleUser
	}
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		PasswordSalt: m.PasswordSalt,
		Role:         role,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	images := make([]ImageModel, 0, len(b.Images))
	for _, img := range b.Images {
		images = append(images, imageToModel(img))
	}
	return BookModel{
		ID:          b.ID,
		Name:        b.Name,
		Category:    b.Category,
		Price:       b.Price,
		Description: b.Description,
		UserID:      b.UserID,
		AddedBy:     b.AddedBy,
		UpdatedBy:   b.UpdatedBy,
		Images:      images,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	images := make([]domain.Image, 0, len(m.Images))
	for _, img := range m.Images {
		images = append(images, imageFromModel(img))
	}
	return domain.Book{
		ID:          m.ID,
		Name:        m.Name,
		Category:    m.Category,
		Price:       m.Price,
		Description: m.Description,
		UserID:      m.UserID,
		Owner:       m.User.Username,
		AddedBy:     m.AddedBy,
		UpdatedBy:   m.UpdatedBy,
		Images:      images,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func imageToModel(img domain.Image) ImageModel {
	return ImageModel{
		ID:         img.ID,
		URL:        img.URL,
		StorageKey: img.StorageKey,
		BookID:     img.BookID,
	}
}

func imageFromModel(m ImageModel) domain.Image {
	return domain.Image{
		ID:         m.ID,
		URL:        m.URL,
		StorageKey: m.StorageKey,
		BookID:     m.BookID,
	}
}

func paymentToModel(p domain.Payment) PaymentModel {
	return PaymentModel{
		ID:        p.ID,
		Reference: p.Reference,
		Email:     p.Email,
		Amount:    p.Amount,
		Status:    string(p.Status),
		PaidAt:    p.PaidAt,
		BookID:    p.BookID,
		BuyerID:   p.BuyerID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func paymentFromModel(m PaymentModel) domain.Payment {
	status, ok := domain.ParsePaymentStatus(m.Status)
	if !ok {
		status = domain.PaymentPending
	}
	return domain.Payment{
		ID:        m.ID,
		Reference: m.Reference,
		Email:     m.Email,
		Amount:    m.Amount,
		Status:    status,
		PaidAt:    m.PaidAt,
		BookID:    m.BookID,
		BuyerID:   m.BuyerID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
