package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"finance_tracker/internal/db"
	"finance_tracker/internal/domain"
	"finance_tracker/internal/logger"
	"finance_tracker/internal/repository"
	"finance_tracker/internal/service"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type sample struct {
	amount    int64
	concept   string
	monthsAgo int
	daysAgo   int
	typ       domain.TransactionType
	owner     string
}

var samples = []sample{
	{5000, "Monthly Salary", 0, 0, domain.TransactionIncome, "admin"},
	{4500, "Monthly Salary", 1, 0, domain.TransactionIncome, "admin"},
	{4500, "Monthly Salary", 2, 0, domain.TransactionIncome, "admin"},
	{1000, "Freelance Project", 0, 15, domain.TransactionIncome, "admin"},
	{1200, "Rent", 0, 0, domain.TransactionExpense, "admin"},
	{1200, "Rent", 1, 0, domain.TransactionExpense, "admin"},
	{1200, "Rent", 2, 0, domain.TransactionExpense, "admin"},
	{200, "Utilities", 0, 0, domain.TransactionExpense, "admin"},
	{180, "Utilities", 1, 0, domain.TransactionExpense, "admin"},
	{350, "Groceries", 0, 22, domain.TransactionExpense, "admin"},
	{60, "Internet", 0, 0, domain.TransactionExpense, "user"},
}

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	withTransactions := flag.Bool("transactions", true, "insert sample transactions")
	flag.Parse()

	// expects DATABASE_URL env var
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := db.Connect(ctx, dsn)
	if err != nil {
		logger.Fatal("connect failed", "error", err)
	}
	defer store.Close()

	users := repository.NewUserRepository(store)
	phone := "+1234567890"
	admin := upsertUser(ctx, users, &domain.User{Name: "Administrator", Email: "admin@example.com", Phone: &phone, Role: domain.RoleAdmin})
	regular := upsertUser(ctx, users, &domain.User{Name: "Regular User", Email: "user@example.com", Role: domain.RoleUser})

	if *withTransactions {
		owners := map[string]string{"admin": admin.ID, "user": regular.ID}
		txs := repository.NewTransactionRepository(store)
		now := time.Now().UTC()
		for _, s := range samples {
			tx := &domain.Transaction{
				ID:      uuid.NewString(),
				Amount:  decimal.NewFromInt(s.amount),
				Concept: s.concept,
				Date:    now.AddDate(0, -s.monthsAgo, -s.daysAgo),
				Type:    s.typ,
				UserID:  owners[s.owner],
			}
			if err := txs.Create(ctx, tx); err != nil {
				logger.Fatal("create transaction failed", "error", err, "concept", s.concept)
			}
		}
		logger.Info("sample transactions created", "count", len(samples))
	}

	// print tokens for manual testing
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return
	}
	tokens, err := service.NewTokenService(secret, 24*time.Hour)
	if err != nil {
		logger.Fatal("token service", "error", err)
	}
	for _, u := range []*domain.User{admin, regular} {
		token, err := tokens.Generate(u.ID)
		if err != nil {
			logger.Fatal("failed to generate token", "error", err)
		}
		fmt.Printf("%s (%s) token=%s\n", u.Email, u.Role, token)
	}
}

func upsertUser(ctx context.Context, repo *repository.UserRepository, u *domain.User) *domain.User {
	existing, err := repo.GetByEmail(ctx, u.Email)
	if err == nil {
		logger.Info("user already exists", "email", existing.Email, "id", existing.ID)
		return existing
	}
	if !errors.Is(err, domain.ErrNotFound) {
		logger.Fatal("lookup user failed", "error", err, "email", u.Email)
	}

	u.ID = uuid.NewString()
	if err := repo.Create(ctx, u); err != nil {
		logger.Fatal("create user failed", "error", err, "email", u.Email)
	}
	logger.Info("user created", "email", u.Email, "id", u.ID, "role", u.Role)
	return u
}
