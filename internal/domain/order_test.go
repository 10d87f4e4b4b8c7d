package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusEnProceso, OrderStatusEnCamino, true},
		{OrderStatusEnProceso, OrderStatusCancelado, true},
		{OrderStatusEnProceso, OrderStatusEntregado, false},
		{OrderStatusEnProceso, OrderStatusEnProceso, false},
		{OrderStatusEnCamino, OrderStatusEntregado, true},
		{OrderStatusEnCamino, OrderStatusCancelado, true},
		{OrderStatusEnCamino, OrderStatusEnProceso, false},
		{OrderStatusEntregado, OrderStatusCancelado, false},
		{OrderStatusEntregado, OrderStatusEnCamino, false},
		{OrderStatusCancelado, OrderStatusEnProceso, false},
		{OrderStatusCancelado, OrderStatusCancelado, false},
		{"ENVIADO", OrderStatusEnCamino, false},
		{OrderStatusEnProceso, "ENVIADO", false},
	}

	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		assert.Equalf(t, tc.want, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusEnProceso, OrderStatusEnCamino, OrderStatusEntregado, OrderStatusCancelado} {
		assert.Truef(t, ValidStatus(s), "%s should be valid", s)
	}

	assert.False(t, ValidStatus("PENDIENTE"))
	assert.False(t, ValidStatus(""))
}

func TestDiscountedPrice(t *testing.T) {
	p := Product{Price: 200, Discount: 25}
	assert.Equal(t, 150.0, p.DiscountedPrice())

	full := Product{Price: 99.99, Discount: 0}
	assert.Equal(t, 99.99, full.DiscountedPrice())
}
