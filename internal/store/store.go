package store

import (
	"context"
	"errors"
	"time"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("already exists")
)

type Repository interface {
	SaveSale(ctx context.Context, sale domain.SaleRecord) error
	FindSaleByInvoice(ctx context.Context, storeID string, invoiceNo string) (*domain.SaleRecord, error)
	ListSales(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.SaleRecord, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
