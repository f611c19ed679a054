package core

import (
	"context"
	"testing"
)

func seedReportData(t *testing.T) (*Service, User, User, Product, Product) {
	t.Helper()
	svc := newTestService(t)
	ctx := context.Background()

	ayu := register(t, svc, "Ayu", "081111111111")
	budi := register(t, svc, "Budi", "082222222222")

	if _, err := svc.AddPeriod(ctx, "October 2025"); err != nil {
		t.Fatalf("add period: %v", err)
	}
	mug, _, err := svc.CreateProduct(ctx, ProductDraft{Name: "Mug", Price: 30000})
	if err != nil {
		t.Fatalf("create mug: %v", err)
	}
	if _, _, err := svc.PlaceOrder(ctx, OrderRequest{UserID: ayu.ID, ProductID: mug.ID, Quantity: 2}); err != nil {
		t.Fatalf("order mug: %v", err)
	}

	if _, err := svc.AddPeriod(ctx, "November 2025"); err != nil {
		t.Fatalf("add second period: %v", err)
	}
	kaos, _, err := svc.CreateProduct(ctx, ProductDraft{Name: "Kaos", Price: 50000})
	if err != nil {
		t.Fatalf("create kaos: %v", err)
	}
	if _, _, err := svc.PlaceOrder(ctx, OrderRequest{UserID: budi.ID, ProductID: kaos.ID, Quantity: 1}); err != nil {
		t.Fatalf("order kaos: %v", err)
	}

	for _, id := range []string{ayu.ID, budi.ID} {
		if _, _, err := svc.SendDraftOrders(ctx, id); err != nil {
			t.Fatalf("send drafts: %v", err)
		}
	}
	return svc, ayu, budi, mug, kaos
}

func TestReportExcludesDrafts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ayu := register(t, svc, "Ayu", "081111111111")
	product := seedCatalog(t, svc)
	if _, _, err := svc.PlaceOrder(ctx, OrderRequest{UserID: ayu.ID, ProductID: product.ID, Size: "M", Color: "Black", Quantity: 1}); err != nil {
		t.Fatalf("place order: %v", err)
	}

	report, err := svc.Report(ctx, OrderFilter{})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Summary.Count != 0 || len(report.Orders) != 0 {
		t.Fatalf("expected drafts to be excluded, got %+v", report.Summary)
	}
}

func TestReportFilters(t *testing.T) {
	svc, ayu, _, mug, _ := seedReportData(t)
	ctx := context.Background()

	all, err := svc.Report(ctx, OrderFilter{})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if all.Summary.Count != 2 || all.Summary.Total != 110000 {
		t.Fatalf("expected 2 orders totaling 110000, got %+v", all.Summary)
	}
	if len(all.ByPeriod) != 2 {
		t.Fatalf("expected two period groups, got %v", all.ByPeriod)
	}
	if got := all.ByPeriod["October 2025"]; got.Count != 1 || got.Total != 60000 {
		t.Fatalf("unexpected October summary %+v", got)
	}

	byUser, err := svc.Report(ctx, OrderFilter{UserID: ayu.ID})
	if err != nil {
		t.Fatalf("report by user: %v", err)
	}
	if byUser.Summary.Count != 1 || byUser.Orders[0].UserID != ayu.ID {
		t.Fatalf("expected only Ayu's order, got %+v", byUser)
	}

	byProduct, err := svc.Report(ctx, OrderFilter{ProductID: mug.ID})
	if err != nil {
		t.Fatalf("report by product: %v", err)
	}
	if byProduct.Summary.Count != 1 || byProduct.Orders[0].ProductID != mug.ID {
		t.Fatalf("expected only mug orders, got %+v", byProduct)
	}

	byPeriod, err := svc.Report(ctx, OrderFilter{Period: "November 2025"})
	if err != nil {
		t.Fatalf("report by period: %v", err)
	}
	if byPeriod.Summary.Count != 1 || byPeriod.Summary.Total != 50000 {
		t.Fatalf("expected November summary, got %+v", byPeriod.Summary)
	}

	// AND-combined filters can narrow to nothing.
	empty, err := svc.Report(ctx, OrderFilter{UserID: ayu.ID, Period: "November 2025"})
	if err != nil {
		t.Fatalf("report intersection: %v", err)
	}
	if empty.Summary.Count != 0 {
		t.Fatalf("expected empty intersection, got %+v", empty.Summary)
	}
}
