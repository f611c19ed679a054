package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"preordercore/pkg/domain"
)

func seedPeriodAndUser(t *testing.T, store *Store) (User, string) {
	t.Helper()
	var user User
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if err := tx.AddPeriod("October 2025"); err != nil {
			return err
		}
		var err error
		user, err = tx.CreateUser(User{Name: "Dina", Address: "Jl. Melati 5", Phone: "081234567890"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return user, "October 2025"
}

func createProduct(t *testing.T, store *Store, p Product) Product {
	t.Helper()
	var created Product
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateProduct(p)
		return err
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return created
}

func TestCreateUserFirstRegistrantIsAdmin(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var first, second User
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		first, err = tx.CreateUser(User{Name: "Ayu", Address: "Jl. Mawar 1", Phone: "081111111111"})
		if err != nil {
			return err
		}
		second, err = tx.CreateUser(User{Name: "Budi", Address: "Jl. Mawar 2", Phone: "082222222222"})
		return err
	})
	if err != nil {
		t.Fatalf("create users: %v", err)
	}
	if !first.IsAdmin {
		t.Fatalf("expected first registrant to be admin")
	}
	if second.IsAdmin {
		t.Fatalf("expected second registrant not to be admin")
	}
}

func TestCreateUserPhoneValidation(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	for _, phone := range []string{"", "12345", "abcdefghijk", "0812345678901234"} {
		_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
			_, err := tx.CreateUser(User{Name: "X", Phone: phone})
			return err
		})
		if err == nil {
			t.Fatalf("expected phone %q to be rejected", phone)
		}
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateUser(User{Name: "Ayu", Phone: "081234567890"})
		return err
	}); err != nil {
		t.Fatalf("valid phone rejected: %v", err)
	}

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateUser(User{Name: "Budi", Phone: "081234567890"})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate phone rejection, got %v", err)
	}
}

func TestRollbackOnError(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateUser(User{Name: "Ayu", Phone: "081234567890"}); err != nil {
			return err
		}
		_, err := tx.CreateUser(User{Name: "", Phone: "082222222222"})
		return err
	})
	if err == nil {
		t.Fatalf("expected transaction error")
	}
	if got := len(store.ListUsers()); got != 0 {
		t.Fatalf("expected rollback to leave no users, got %d", got)
	}
}

type alwaysBlockRule struct{}

func (alwaysBlockRule) Name() string { return "always_block" }

func (alwaysBlockRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     "always_block",
		Severity: domain.SeverityBlock,
		Message:  "blocked",
	}}}, nil
}

func TestBlockingViolationRollsBack(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(alwaysBlockRule{})
	store := NewStore(engine)

	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateUser(User{Name: "Ayu", Phone: "081234567890"})
		return err
	})
	if err == nil {
		t.Fatalf("expected rule violation error")
	}
	var violation domain.RuleViolationError
	if !errorsAs(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %T", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if got := len(store.ListUsers()); got != 0 {
		t.Fatalf("expected no committed users, got %d", got)
	}
}

func errorsAs(err error, target *domain.RuleViolationError) bool {
	v, ok := err.(domain.RuleViolationError)
	if ok {
		*target = v
	}
	return ok
}

func TestCreateOrderCopiesProductFields(t *testing.T) {
	store := NewStore(nil)
	user, period := seedPeriodAndUser(t, store)
	product := createProduct(t, store, Product{Name: "Kaos Polos", Sizes: []string{"M", "L"}, Colors: []string{"Black"}, Price: 75000, Period: period})

	var order Order
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		order, err = tx.CreateOrder(Order{UserID: user.ID, ProductID: product.ID, Size: "M", Color: "Black", Quantity: 3, Period: period})
		return err
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.UserName != "Dina" || order.ProductName != "Kaos Polos" {
		t.Fatalf("expected copied names, got %q/%q", order.UserName, order.ProductName)
	}
	if order.Price != 75000 || order.Total != 225000 {
		t.Fatalf("expected price 75000 total 225000, got %v/%v", order.Price, order.Total)
	}
	if order.Status != domain.OrderStatusDraft {
		t.Fatalf("expected draft status, got %s", order.Status)
	}
	if order.DropshipAddress != "Jl. Melati 5" {
		t.Fatalf("expected dropship address to default to user address, got %q", order.DropshipAddress)
	}
}

func TestCreateOrderOptionDefaults(t *testing.T) {
	store := NewStore(nil)
	user, period := seedPeriodAndUser(t, store)
	plain := createProduct(t, store, Product{Name: "Mug", Price: 30000, Period: period})
	sized := createProduct(t, store, Product{Name: "Kaos", Sizes: []string{"M"}, Price: 50000, Period: period})

	var order Order
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		order, err = tx.CreateOrder(Order{UserID: user.ID, ProductID: plain.ID, Quantity: 1, Period: period})
		return err
	})
	if err != nil {
		t.Fatalf("create optionless order: %v", err)
	}
	if order.Size != "-" || order.Color != "-" {
		t.Fatalf("expected dash defaults, got %q/%q", order.Size, order.Color)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateOrder(Order{UserID: user.ID, ProductID: sized.ID, Quantity: 1, Period: period})
		return err
	})
	if err == nil {
		t.Fatalf("expected missing size to be rejected")
	}
}

func TestDeleteOrderGuards(t *testing.T) {
	store := NewStore(nil)
	user, period := seedPeriodAndUser(t, store)
	product := createProduct(t, store, Product{Name: "Mug", Price: 30000, Period: period})
	ctx := context.Background()

	var locked, sent Order
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		locked, err = tx.CreateOrder(Order{UserID: user.ID, ProductID: product.ID, Quantity: 1, Period: period})
		if err != nil {
			return err
		}
		sent, err = tx.CreateOrder(Order{UserID: user.ID, ProductID: product.ID, Quantity: 2, Period: period})
		if err != nil {
			return err
		}
		if err := tx.SetOrderLock(locked.ID, true); err != nil {
			return err
		}
		now := time.Now().UTC()
		_, err = tx.UpdateOrder(sent.ID, func(o *Order) error {
			o.Status = domain.OrderStatusSent
			o.SentAt = &now
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("seed orders: %v", err)
	}

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteOrder(locked.ID)
	})
	if err == nil || !strings.Contains(err.Error(), "locked") {
		t.Fatalf("expected locked deletion rejection, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteOrder(sent.ID)
	})
	if err == nil || !strings.Contains(err.Error(), "sent") {
		t.Fatalf("expected sent deletion rejection, got %v", err)
	}
}

func TestPeriodLifecycle(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := tx.AddPeriod("October 2025"); err != nil {
			return err
		}
		return tx.AddPeriod("November 2025")
	}); err != nil {
		t.Fatalf("add periods: %v", err)
	}
	if got := store.ActivePeriod(); got != "November 2025" {
		t.Fatalf("expected newest period active, got %q", got)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.SetActivePeriod("October 2025")
	}); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if got := store.ActivePeriod(); got != "October 2025" {
		t.Fatalf("expected switch back, got %q", got)
	}

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.AddPeriod("October 2025")
	})
	if err == nil {
		t.Fatalf("expected duplicate period rejection")
	}
	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.SetActivePeriod("December 2025")
	})
	if err == nil {
		t.Fatalf("expected unknown period rejection")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := NewStore(nil)
	user, period := seedPeriodAndUser(t, store)
	product := createProduct(t, store, Product{Name: "Mug", Price: 30000, Period: period})

	var order Order
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		order, err = tx.CreateOrder(Order{UserID: user.ID, ProductID: product.ID, Quantity: 2, Period: period})
		if err != nil {
			return err
		}
		if err := tx.SetOrderLock(order.ID, true); err != nil {
			return err
		}
		_, err = tx.AppendNotification(Notification{Message: "hello"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snapshot := store.ExportState()
	restored := NewStore(nil)
	restored.ImportState(snapshot)

	if got := len(restored.ListUsers()); got != 1 {
		t.Fatalf("expected 1 user after import, got %d", got)
	}
	if got := len(restored.ListOrders()); got != 1 {
		t.Fatalf("expected 1 order after import, got %d", got)
	}
	if got := restored.ActivePeriod(); got != period {
		t.Fatalf("expected active period %q, got %q", period, got)
	}
	if got := restored.LockedOrderIDs(); len(got) != 1 || got[0] != order.ID {
		t.Fatalf("expected locked set %v, got %v", []string{order.ID}, got)
	}
	if got := restored.ListNotifications(); len(got) != 1 || got[0].Message != "hello" {
		t.Fatalf("expected notification round trip, got %v", got)
	}
}

func TestMigrateSnapshotNormalizes(t *testing.T) {
	snapshot := Snapshot{
		Orders: map[string]Order{
			"o1": {Base: domain.Base{ID: "o1"}, Price: 10000, Quantity: 0, Total: 1},
		},
		ActivePeriod: "October 2025",
	}
	store := NewStore(nil)
	store.ImportState(snapshot)

	orders := store.ListOrders()
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.Status != domain.OrderStatusDraft {
		t.Fatalf("expected default draft status, got %s", o.Status)
	}
	if o.Quantity != 1 || o.Total != 10000 {
		t.Fatalf("expected normalized quantity/total, got %d/%v", o.Quantity, o.Total)
	}
	periods := store.ListPeriods()
	if len(periods) != 1 || periods[0] != "October 2025" {
		t.Fatalf("expected active period appended to periods, got %v", periods)
	}
}

func TestViewIsolation(t *testing.T) {
	store := NewStore(nil)
	_, period := seedPeriodAndUser(t, store)
	product := createProduct(t, store, Product{Name: "Mug", Sizes: []string{"S"}, Price: 30000, Period: period})

	err := store.View(context.Background(), func(view TransactionView) error {
		p, ok := view.FindProduct(product.ID)
		if !ok {
			t.Fatalf("product missing from view")
		}
		p.Sizes[0] = "mutated"
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	p, _ := store.GetProduct(product.ID)
	if p.Sizes[0] != "S" {
		t.Fatalf("view mutation leaked into committed state")
	}
}
