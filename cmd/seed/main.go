package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/smartshop/smartshop-backend/pkg/util"
	"github.com/xuri/excelize/v2"
)

// Seeds the database with an admin account and, when an xlsx path is given,
// imports the product catalog from it.
//
// Expected sheet layout (first row is the header):
//
//	name | sku | description | price | stock | brand | category | images
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	userRepo := repository.NewUserRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())

	if err := seedAdmin(userRepo); err != nil {
		log.Fatal("Failed to seed admin account:", err)
	}

	if len(os.Args) < 2 {
		fmt.Println("No catalog file given, skipping product import.")
		fmt.Println("Usage: go run cmd/seed/main.go [catalog.xlsx]")
		return
	}

	filePath := os.Args[1]
	fmt.Printf("Reading catalog file: %s\n", filePath)

	products, skipped, err := readProductsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read catalog:", err)
	}

	fmt.Printf("Products to import: %d (skipped %d invalid rows)\n", len(products), skipped)
	if len(products) == 0 {
		return
	}

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	batchSize := 500
	if err := productRepo.BulkCreate(products, batchSize); err != nil {
		log.Fatal("Failed to bulk create products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", len(products))
}

func seedAdmin(userRepo repository.UserRepository) error {
	email := getenvDefault("SEED_ADMIN_EMAIL", "admin@smartshop.local")

	if _, err := userRepo.FindByEmail(email); err == nil {
		fmt.Printf("Admin account %s already exists, skipping.\n", email)
		return nil
	}

	password := getenvDefault("SEED_ADMIN_PASSWORD", "changeme123")
	hash, err := util.HashPassword(password)
	if err != nil {
		return err
	}

	admin := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         model.RoleAdmin,
	}
	if err := userRepo.Create(admin); err != nil {
		return err
	}

	fmt.Printf("Admin account created: %s\n", email)
	return nil
}

func readProductsFromXLSX(filePath string) ([]model.Product, int, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, 0, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("no data found in XLSX file")
	}

	var products []model.Product
	seenSKUs := make(map[string]bool)
	skipped := 0

	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 5 {
			skipped++
			continue
		}

		name := strings.TrimSpace(row[0])
		sku := strings.TrimSpace(row[1])
		description := strings.TrimSpace(cell(row, 2))
		priceStr := strings.TrimSpace(cell(row, 3))
		stockStr := strings.TrimSpace(cell(row, 4))

		if name == "" || sku == "" {
			skipped++
			continue
		}
		if seenSKUs[sku] {
			skipped++
			continue
		}

		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price <= 0 {
			skipped++
			continue
		}
		stock, err := strconv.Atoi(stockStr)
		if err != nil || stock < 0 {
			skipped++
			continue
		}

		seenSKUs[sku] = true
		products = append(products, model.Product{
			Name:        name,
			SKU:         sku,
			Description: description,
			Price:       price,
			Stock:       stock,
			Brand:       strings.TrimSpace(cell(row, 5)),
			Category:    strings.TrimSpace(cell(row, 6)),
			Images:      strings.TrimSpace(cell(row, 7)),
			IsActive:    true,
		})
	}

	return products, skipped, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
