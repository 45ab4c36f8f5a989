package repository

import (
	"testing"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartTest(t *testing.T) (*gorm.DB, CartRepository, *model.User, *model.Product) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	repo := NewCartRepository(testDB)

	user := &model.User{
		Email:        "customer@example.com",
		PasswordHash: "hash",
		Name:         "Test Customer",
		Role:         model.RoleCustomer,
	}
	testDB.Create(user)

	product := &model.Product{
		Name:     "USB Hub",
		SKU:      "UH-1",
		Price:    250000,
		Stock:    10,
		IsActive: true,
	}
	testDB.Create(product)

	return testDB, repo, user, product
}

func TestCartRepository_CreateAndList(t *testing.T) {
	_, repo, user, product := setupCartTest(t)

	item := &model.CartItem{
		UserID:      user.ID,
		ProductID:   product.ID,
		Quantity:    2,
		UnitPrice:   product.Price,
		ProductName: product.Name,
	}
	require.NoError(t, repo.Create(item))

	items, err := repo.ListByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, product.ID, items[0].Product.ID)
}

func TestCartRepository_DuplicateProductRejected(t *testing.T) {
	_, repo, user, product := setupCartTest(t)

	first := &model.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 1, UnitPrice: product.Price, ProductName: product.Name}
	require.NoError(t, repo.Create(first))

	dup := &model.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 3, UnitPrice: product.Price, ProductName: product.Name}
	assert.Error(t, repo.Create(dup))
}

func TestCartRepository_FindByUserAndProduct(t *testing.T) {
	_, repo, user, product := setupCartTest(t)

	item := &model.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 1, UnitPrice: product.Price, ProductName: product.Name}
	require.NoError(t, repo.Create(item))

	found, err := repo.FindByUserAndProduct(user.ID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, found.ID)

	_, err = repo.FindByUserAndProduct(user.ID, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCartRepository_Update(t *testing.T) {
	_, repo, user, product := setupCartTest(t)

	item := &model.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 1, UnitPrice: product.Price, ProductName: product.Name}
	require.NoError(t, repo.Create(item))

	item.Quantity = 5
	require.NoError(t, repo.Update(item))

	found, err := repo.FindByID(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, found.Quantity)
}

func TestCartRepository_DeleteAllByUser(t *testing.T) {
	testDB, repo, user, product := setupCartTest(t)

	second := &model.Product{Name: "Webcam", SKU: "WC-1", Price: 900000, Stock: 4, IsActive: true}
	testDB.Create(second)

	require.NoError(t, repo.Create(&model.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 1, UnitPrice: product.Price, ProductName: product.Name}))
	require.NoError(t, repo.Create(&model.CartItem{UserID: user.ID, ProductID: second.ID, Quantity: 2, UnitPrice: second.Price, ProductName: second.Name}))

	require.NoError(t, repo.DeleteAllByUser(testDB, user.ID))

	items, err := repo.ListByUser(user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// The same product can be re-added after the cart was cleared.
	assert.NoError(t, repo.Create(&model.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 1, UnitPrice: product.Price, ProductName: product.Name}))
}
