package catalog

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	return NewService(memory.NewProductRepository(store), memory.NewCategoryRepository(store), nil), store
}

func TestService_ProductLifecycle(t *testing.T) {
	svc, _ := newService(t)

	created, err := svc.CreateProduct(ProductInput{
		Name:        "Кофеварка",
		Description: "Рожковая кофеварка",
		PriceMinor:  799900,
		Stock:       7,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated product id")
	}

	updated, err := svc.UpdateProduct(created.ID, ProductInput{
		Name:       "Кофеварка Pro",
		PriceMinor: 899900,
		Stock:      999, // игнорируется: остаток меняет только order workflow
	})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Name != "Кофеварка Pro" || updated.PriceMinor != 899900 {
		t.Fatalf("unexpected updated product: %+v", updated)
	}
	if updated.Stock != 7 {
		t.Fatalf("expected stock to stay 7, got %d", updated.Stock)
	}

	deleted, err := svc.DeleteProduct(created.ID)
	if err != nil || !deleted {
		t.Fatalf("delete product: deleted=%v err=%v", deleted, err)
	}
	if _, err := svc.GetProduct(created.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound after delete, got %v", err)
	}
}

func TestService_ProductValidation(t *testing.T) {
	svc, _ := newService(t)

	if _, err := svc.CreateProduct(ProductInput{Name: "", PriceMinor: 100}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if _, err := svc.CreateProduct(ProductInput{Name: "X", PriceMinor: -1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for negative price, got %v", err)
	}
	if _, err := svc.CreateProduct(ProductInput{Name: "X", Stock: -1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for negative stock, got %v", err)
	}
}

func TestService_ListProductsPagination(t *testing.T) {
	svc, _ := newService(t)

	for _, name := range []string{"Арбуз", "Банан", "Вишня", "Груша", "Дыня"} {
		if _, err := svc.CreateProduct(ProductInput{Name: name, PriceMinor: 100, Stock: 1}); err != nil {
			t.Fatalf("create product %s: %v", name, err)
		}
	}

	page, err := svc.ListProducts(2, 2)
	if err != nil {
		t.Fatalf("list products page 2: %v", err)
	}
	if len(page) != 2 || page[0].Name != "Вишня" || page[1].Name != "Груша" {
		t.Fatalf("unexpected second page: %+v", page)
	}

	// Некорректные параметры страницы приводятся к значениям по умолчанию.
	page, err = svc.ListProducts(0, -5)
	if err != nil {
		t.Fatalf("list products default page: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("expected all 5 products on default page, got %d", len(page))
	}
}

func TestService_CategoryLifecycleAndLinks(t *testing.T) {
	svc, _ := newService(t)

	product, err := svc.CreateProduct(ProductInput{Name: "Чай", PriceMinor: 34900, Stock: 3})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	category, err := svc.CreateCategory("Напитки")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	if _, err := svc.CreateCategory(""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty category name, got %v", err)
	}

	if err := svc.AssignProduct(product.ID, category.ID); err != nil {
		t.Fatalf("assign product: %v", err)
	}
	if err := svc.AssignProduct(product.ID, category.ID); err != nil {
		t.Fatalf("re-assign must be no-op: %v", err)
	}
	if err := svc.AssignProduct("missing", category.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on assigning missing product, got %v", err)
	}
	if err := svc.AssignProduct(product.ID, "missing"); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound on assigning to missing category, got %v", err)
	}

	products, err := svc.ProductsInCategory(category.ID)
	if err != nil {
		t.Fatalf("products in category: %v", err)
	}
	if len(products) != 1 || products[0].ID != product.ID {
		t.Fatalf("unexpected category products: %+v", products)
	}

	categories, err := svc.CategoriesOfProduct(product.ID)
	if err != nil {
		t.Fatalf("categories of product: %v", err)
	}
	if len(categories) != 1 || categories[0].ID != category.ID {
		t.Fatalf("unexpected product categories: %+v", categories)
	}

	renamed, err := svc.UpdateCategory(category.ID, "Горячие напитки")
	if err != nil {
		t.Fatalf("rename category: %v", err)
	}
	if renamed.Name != "Горячие напитки" {
		t.Fatalf("unexpected renamed category: %+v", renamed)
	}

	removed, err := svc.UnassignProduct(product.ID, category.ID)
	if err != nil || !removed {
		t.Fatalf("unassign: removed=%v err=%v", removed, err)
	}
	removed, err = svc.UnassignProduct(product.ID, category.ID)
	if err != nil {
		t.Fatalf("repeat unassign: %v", err)
	}
	if removed {
		t.Fatal("expected repeat unassign to report false")
	}

	deleted, err := svc.DeleteCategory(category.ID)
	if err != nil || !deleted {
		t.Fatalf("delete category: deleted=%v err=%v", deleted, err)
	}
	if _, err := svc.ProductsInCategory(category.ID); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound after delete, got %v", err)
	}
}
