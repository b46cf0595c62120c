package infrastructure

import "ordersaga/internal/service/order/domain"

func toOrderModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:            o.ID,
		CustomerID:    o.Snapshot.CustomerID,
		ProductIDs:    append([]string(nil), o.Snapshot.ProductIDs...),
		TotalAmount:   o.Snapshot.TotalAmount,
		Status:        string(o.State),
		PlacedTime:    o.Snapshot.PlacedTime,
		ConfirmedTime: o.Snapshot.ConfirmedTime,
	}
}

func toDomainOrder(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}
	return &domain.Order{
		ID:    m.ID,
		State: domain.State(m.Status),
		Snapshot: domain.OrderSnapshot{
			ProductIDs:    m.ProductIDs,
			CustomerID:    m.CustomerID,
			TotalAmount:   m.TotalAmount,
			PlacedTime:    m.PlacedTime.UTC(),
			ConfirmedTime: m.ConfirmedTime,
		},
	}
}
