package app

import "errors"

// Validation failures.
var (
	ErrInvalidUsername      = errors.New("username must be a valid email address")
	ErrPasswordRequired     = errors.New("password is required")
	ErrUsernameTaken        = errors.New("username already exists")
	ErrNameRequired         = errors.New("name is required")
	ErrNegativePrice        = errors.New("price must not be negative")
	ErrTooManyImages        = errors.New("a book can have at most 2 images")
	ErrImageTooLarge        = errors.New("each image must be 5MB or smaller")
	ErrUploadTooLarge       = errors.New("images must total 20MB or less")
	ErrUnsupportedImageType = errors.New("only jpg, jpeg and png images are allowed")
	ErrImageUpload          = errors.New("failed to upload image")
	ErrInvalidEmail         = errors.New("email must be a valid email address")
	ErrBookIDRequired       = errors.New("bookId is required")
	ErrReferenceRequired    = errors.New("reference is required")
	ErrPaymentInitFailed    = errors.New("failed to initialize transaction")
	ErrPaymentVerifyFailed  = errors.New("failed to verify transaction")
	ErrInvalidWebhook       = errors.New("invalid webhook payload")
)

// Authentication failures.
var (
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// ErrForbidden is returned when the caller is neither the owner nor an admin.
var ErrForbidden = errors.New("forbidden")

// Missing entities.
var (
	ErrBookNotFound    = errors.New("book not found")
	ErrImageNotFound   = errors.New("image not found")
	ErrBuyerNotFound   = errors.New("buyer not found")
	ErrPaymentNotFound = errors.New("payment not found")
)
