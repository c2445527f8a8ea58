package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/utils"
)

// ReportService aggregates orders and stock for the back-office. It never writes.
type ReportService struct {
	db     *gorm.DB
	orders *OrderService
	now    func() time.Time
}

// NewReportService constructs ReportService.
func NewReportService(db *gorm.DB, orders *OrderService) *ReportService {
	return &ReportService{db: db, orders: orders, now: time.Now}
}

type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

type TopProduct struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int64     `json:"quantity"`
}

// InventoryItem is one variant row of the stock table.
type InventoryItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	IsActive    bool            `json:"is_active"`
	VariantID   uuid.UUID       `json:"variant_id"`
	WeightLabel string          `json:"weight_label"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Status      string          `json:"status"`
}

// Dashboard holds the admin landing page metrics. Sales and revenue only
// count delivered orders.
type Dashboard struct {
	TotalSales      int64            `json:"total_sales"`
	TotalRevenue    decimal.Decimal  `json:"total_revenue"`
	MonthlyRevenue  []MonthlyRevenue `json:"monthly_revenue"`
	MonthlyGrowth   float64          `json:"monthly_growth"`
	TopProduct      *TopProduct      `json:"top_product"`
	OpenOrderCount  int64            `json:"open_order_count"`
	OpenOrders      []models.Order   `json:"open_orders"`
	OrdersByStatus  map[string]int64 `json:"orders_by_status"`
	ActiveUsers     int64            `json:"active_users"`
	TotalUsers      int64            `json:"total_users"`
	LowStockCount   int              `json:"low_stock_count"`
	OutOfStockCount int              `json:"out_of_stock_count"`
	Inventory       []InventoryItem  `json:"inventory"`
}

const (
	openOrdersOnDashboard = 10
	activeUserWindow      = 30 * 24 * time.Hour
)

// Dashboard computes every dashboard metric.
func (s *ReportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	report := &Dashboard{TotalRevenue: decimal.Zero, OrdersByStatus: map[string]int64{}}

	var delivered []models.Order
	if err := db.Select("id, total_amount, created_at").
		Where("status = ?", models.OrderStatusDelivered).
		Find(&delivered).Error; err != nil {
		return nil, storeError(err)
	}

	monthly := make([]decimal.Decimal, 12)
	for i := range monthly {
		monthly[i] = decimal.Zero
	}
	thisMonth, lastMonth := decimal.Zero, decimal.Zero
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	startOfLastMonth := startOfMonth.AddDate(0, -1, 0)
	for _, order := range delivered {
		report.TotalRevenue = report.TotalRevenue.Add(order.TotalAmount)
		placed := order.CreatedAt.In(now.Location())
		if placed.Year() == now.Year() {
			monthly[placed.Month()-1] = monthly[placed.Month()-1].Add(order.TotalAmount)
		}
		switch {
		case !placed.Before(startOfMonth):
			thisMonth = thisMonth.Add(order.TotalAmount)
		case !placed.Before(startOfLastMonth):
			lastMonth = lastMonth.Add(order.TotalAmount)
		}
	}
	for i, revenue := range monthly {
		report.MonthlyRevenue = append(report.MonthlyRevenue, MonthlyRevenue{
			Month:   time.Month(i + 1).String()[:3],
			Revenue: revenue,
		})
	}
	report.MonthlyGrowth = growthPercent(thisMonth, lastMonth)

	if err := db.Model(&models.OrderItem{}).
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ?", models.OrderStatusDelivered).
		Scan(&report.TotalSales).Error; err != nil {
		return nil, storeError(err)
	}

	var top []TopProduct
	if err := db.Model(&models.OrderItem{}).
		Select("order_items.product_id AS product_id, order_items.product_name AS product_name, SUM(order_items.quantity) AS quantity").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ?", models.OrderStatusDelivered).
		Group("order_items.product_id, order_items.product_name").
		Order("quantity DESC").
		Limit(1).
		Scan(&top).Error; err != nil {
		return nil, storeError(err)
	}
	if len(top) > 0 {
		report.TopProduct = &top[0]
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, storeError(err)
	}
	for _, sc := range counts {
		report.OrdersByStatus[sc.Status] = sc.Count
	}

	open := db.Model(&models.Order{}).Where("status IN ?", models.OpenOrderStatuses)
	if err := open.Count(&report.OpenOrderCount).Error; err != nil {
		return nil, storeError(err)
	}
	if err := db.Preload("User").
		Where("status IN ?", models.OpenOrderStatuses).
		Order("created_at desc").
		Limit(openOrdersOnDashboard).
		Find(&report.OpenOrders).Error; err != nil {
		return nil, storeError(err)
	}

	if err := db.Model(&models.User{}).Count(&report.TotalUsers).Error; err != nil {
		return nil, storeError(err)
	}
	if err := db.Model(&models.Order{}).
		Where("created_at >= ?", now.Add(-activeUserWindow)).
		Distinct("user_id").
		Count(&report.ActiveUsers).Error; err != nil {
		return nil, storeError(err)
	}

	inventory, err := s.Inventory(ctx)
	if err != nil {
		return nil, err
	}
	report.Inventory = inventory
	for _, item := range inventory {
		switch item.Status {
		case "out-of-stock":
			report.OutOfStockCount++
		case "low-stock":
			report.LowStockCount++
		}
	}

	return report, nil
}

func growthPercent(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	growth, _ := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return growth
}

// Inventory lists every variant with its stock status, lowest stock first.
func (s *ReportService) Inventory(ctx context.Context) ([]InventoryItem, error) {
	var items []InventoryItem
	if err := s.db.WithContext(ctx).Table("product_variants").
		Select(`products.id AS product_id, products.name AS product_name, products.is_active AS is_active,
			product_variants.id AS variant_id, product_variants.weight_label AS weight_label,
			product_variants.price AS price, product_variants.stock AS stock`).
		Joins("JOIN products ON products.id = product_variants.product_id").
		Order("product_variants.stock ASC, products.name ASC").
		Scan(&items).Error; err != nil {
		return nil, storeError(err)
	}

	for i := range items {
		items[i].Status = models.StockStatus(items[i].Stock)
	}
	return items, nil
}

// WriteOrdersPDF renders the filtered order list as a landscape A4 table.
func (s *ReportService) WriteOrdersPDF(ctx context.Context, w io.Writer, filter OrderFilter) error {
	orders, _, err := s.orders.ListAllOrders(ctx, filter, utils.Pagination{Page: 1, Limit: -1})
	if err != nil {
		return err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Orders report", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Orders report", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", s.now().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	if filter.Status != "" {
		pdf.CellFormat(0, 6, "Status: "+filter.Status, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	headers := []string{"Order", "Placed", "Customer", "Payment", "Status", "Items", "Shipping", "Total"}
	widths := []float64{45, 32, 55, 30, 35, 15, 30, 35}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	total := decimal.Zero
	for _, order := range orders {
		customer := order.DeliveryName
		if order.User != nil {
			customer = order.User.FullName()
		}
		quantity := 0
		for _, item := range order.Items {
			quantity += item.Quantity
		}
		if order.Status != models.OrderStatusCancelled {
			total = total.Add(order.TotalAmount)
		}

		cells := []string{
			order.OrderNumber,
			order.CreatedAt.Format("2006-01-02 15:04"),
			customer,
			order.PaymentMethod,
			string(order.Status),
			fmt.Sprintf("%d", quantity),
			order.ShippingFee.StringFixed(2),
			order.TotalAmount.StringFixed(2),
		}
		for i, cell := range cells {
			align := "L"
			if i >= 5 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 8, fmt.Sprintf("%d orders, %s excluding cancelled", len(orders), total.StringFixed(2)), "", 1, "R", false, 0, "")

	return pdf.Output(w)
}
